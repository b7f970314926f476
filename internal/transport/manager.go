// Package transport owns the push-channel lifecycle: dialing, the bounded
// reconnect loop, fire-and-forget sends, and decoding inbound push events
// into session messages.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/truthordare/gameclient/internal/game"
	"github.com/truthordare/gameclient/internal/protocol"
)

var ErrRetriesExhausted = errors.New("reconnect attempts exhausted")

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed" // permanent, no further attempts
)

const (
	defaultMaxAttempts = 5
	defaultRetryDelay  = 3000 * time.Millisecond
	dialTimeout        = 10 * time.Second
	writeTimeout       = 3 * time.Second
)

// Manager maintains the websocket to the authority. All lifecycle signals and
// decoded push events are delivered, in arrival order, to a single session
// inbox. The run loop is the only background activity; it is cancelled by the
// context passed to Run, or stops permanently after the retry budget is spent.
type Manager struct {
	url         string
	inbox       chan<- game.Msg
	log         *zap.Logger
	maxAttempts int
	retryDelay  time.Duration

	mu    sync.Mutex
	conn  *websocket.Conn
	state State
}

func NewManager(url string, log *zap.Logger) *Manager {
	return &Manager{
		url:         url,
		log:         log,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		state:       StateDisconnected,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) setConn(c *websocket.Conn) {
	m.mu.Lock()
	m.conn = c
	m.mu.Unlock()
}

// Send posts a one-way action. While not connected the action is dropped, not
// queued: the authority's contract is fire-and-forget, and this core never
// retries user actions.
func (m *Manager) Send(event string, payload any) error {
	m.mu.Lock()
	conn, state := m.conn, m.state
	m.mu.Unlock()

	if conn == nil || state != StateConnected {
		m.log.Debug("dropping action while offline", zap.String("event", event))
		return nil
	}

	frame, err := protocol.Encode(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}

// Run drives the connect/read/reconnect cycle until ctx is cancelled or the
// retry budget is exhausted. Attempts are spaced by a fixed delay with no
// backoff or jitter; a successful connection resets the budget. Lifecycle
// signals and push events are delivered to inbox in arrival order.
func (m *Manager) Run(ctx context.Context, inbox chan<- game.Msg) error {
	m.inbox = inbox
	attempts := 0
	wait := false

	for {
		if wait {
			select {
			case <-time.After(m.retryDelay):
			case <-ctx.Done():
				m.setState(StateDisconnected)
				return ctx.Err()
			}
		}
		wait = true

		if attempts == 0 && m.State() != StateReconnecting {
			m.setState(StateConnecting)
		} else {
			m.setState(StateReconnecting)
		}

		conn, sessionID, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				m.setState(StateDisconnected)
				return ctx.Err()
			}
			attempts++
			m.log.Warn("connect attempt failed",
				zap.Int("attempt", attempts),
				zap.Int("max", m.maxAttempts),
				zap.Error(err))
			if attempts >= m.maxAttempts {
				m.setState(StateFailed)
				m.deliver(ctx, game.ConnFailed{Err: err})
				return fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
			}
			continue
		}

		attempts = 0
		m.setConn(conn)
		m.setState(StateConnected)
		m.deliver(ctx, game.Connected{SessionID: sessionID})

		reason := m.readLoop(ctx, conn)
		m.setConn(nil)
		conn.Close(websocket.StatusNormalClosure, "bye")

		if ctx.Err() != nil {
			m.setState(StateDisconnected)
			return ctx.Err()
		}

		m.setState(StateReconnecting)
		m.deliver(ctx, game.Disconnected{Reason: reason})
	}
}

// dial opens the websocket and waits for the welcome frame assigning our
// transport session id. A connection without a welcome is treated as a failed
// attempt.
func (m *Manager) dial(ctx context.Context) (*websocket.Conn, string, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, m.url, nil)
	if err != nil {
		return nil, "", err
	}

	_, frame, err := conn.Read(dialCtx)
	if err != nil {
		conn.Close(websocket.StatusProtocolError, "no welcome")
		return nil, "", fmt.Errorf("awaiting welcome: %w", err)
	}

	env, err := protocol.Decode(frame)
	if err != nil || env.Event != protocol.EventWelcome {
		conn.Close(websocket.StatusProtocolError, "bad welcome")
		return nil, "", fmt.Errorf("expected welcome frame, got %q", env.Event)
	}

	var welcome protocol.Welcome
	if err := json.Unmarshal(env.Data, &welcome); err != nil {
		conn.Close(websocket.StatusProtocolError, "bad welcome")
		return nil, "", fmt.Errorf("decode welcome: %w", err)
	}

	return conn, welcome.SessionID, nil
}

// readLoop decodes push events until the connection drops and returns the
// close reason. Malformed frames and unknown events are logged and skipped,
// never fatal.
func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) string {
	for {
		_, frame, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return "server closed connection"
			}
			return err.Error()
		}

		env, err := protocol.Decode(frame)
		if err != nil {
			m.log.Debug("dropping malformed frame", zap.Error(err))
			continue
		}

		msg, ok := toSessionMsg(env)
		if !ok {
			m.log.Debug("dropping unknown event", zap.String("event", env.Event))
			continue
		}
		m.deliver(ctx, msg)
	}
}

func (m *Manager) deliver(ctx context.Context, msg game.Msg) {
	select {
	case m.inbox <- msg:
	case <-ctx.Done():
	}
}

// toSessionMsg translates a wire envelope into the session message owning
// that event type.
func toSessionMsg(env protocol.Envelope) (game.Msg, bool) {
	switch env.Event {
	case protocol.EventRosterUpdate:
		var players []protocol.Participant
		if err := json.Unmarshal(env.Data, &players); err != nil {
			return nil, false
		}
		return game.RosterUpdate{Players: players}, true

	case protocol.EventTurnChanged:
		var playerID string
		if err := json.Unmarshal(env.Data, &playerID); err != nil {
			return nil, false
		}
		return game.TurnChanged{PlayerID: playerID}, true

	case protocol.EventTurnSession:
		var sessionID string
		if err := json.Unmarshal(env.Data, &sessionID); err != nil {
			return nil, false
		}
		return game.TurnSessionUpdate{SessionID: sessionID}, true

	case protocol.EventPromptDelivered:
		var p protocol.Prompt
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, false
		}
		return game.PromptDelivered{Kind: p.Kind, Category: p.Category, Prompt: p.Prompt}, true

	case protocol.EventChatEntry:
		var e protocol.ChatEntry
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, false
		}
		return game.ChatReceived{Author: e.Author, Content: e.Content}, true

	case protocol.EventActionError:
		var message string
		if err := json.Unmarshal(env.Data, &message); err != nil {
			return nil, false
		}
		return game.ActionError{Message: message}, true

	default:
		return nil, false
	}
}
