package game

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/truthordare/gameclient/internal/identity"
	"github.com/truthordare/gameclient/internal/protocol"
)

var ErrNoIdentity = errors.New("no local identity registered")

// Sender posts one-way actions to the authority. Sends are fire-and-forget;
// a send while offline is dropped, matching the authority's contract.
type Sender interface {
	Send(event string, payload any) error
}

type Msg interface{ isSessionMsg() }

// Transport lifecycle, synthesized by the connection manager.

type Connected struct{ SessionID string }

type Disconnected struct{ Reason string }

// ConnFailed marks the permanent offline state after the reconnect budget is
// exhausted.
type ConnFailed struct{ Err error }

// Authority push events.

type RosterUpdate struct{ Players []protocol.Participant }

type TurnChanged struct{ PlayerID string }

type TurnSessionUpdate struct{ SessionID string }

type PromptDelivered struct{ Kind, Category, Prompt string }

type ChatReceived struct{ Author, Content string }

type ActionError struct{ Message string }

// User commands.

type SetIdentity struct{ Identity *identity.LocalIdentity }

type RequestPrompt struct {
	Kind     string
	Category string
	Reply    chan error
}

type SubmitAnswer struct {
	Text  string
	Reply chan error
}

type SendChat struct{ Text string }

type Watch struct {
	ID     string
	Outbox chan View
}

type Unwatch struct{ ID string }

type GetView struct{ Reply chan View }

type Shutdown struct{}

func (Connected) isSessionMsg()         {}
func (Disconnected) isSessionMsg()      {}
func (ConnFailed) isSessionMsg()        {}
func (RosterUpdate) isSessionMsg()      {}
func (TurnChanged) isSessionMsg()       {}
func (TurnSessionUpdate) isSessionMsg() {}
func (PromptDelivered) isSessionMsg()   {}
func (ChatReceived) isSessionMsg()      {}
func (ActionError) isSessionMsg()       {}
func (SetIdentity) isSessionMsg()       {}
func (RequestPrompt) isSessionMsg()     {}
func (SubmitAnswer) isSessionMsg()      {}
func (SendChat) isSessionMsg()          {}
func (Watch) isSessionMsg()             {}
func (Unwatch) isSessionMsg()           {}
func (GetView) isSessionMsg()           {}
func (Shutdown) isSessionMsg()          {}

// View is an immutable snapshot of everything a renderer needs. A new one is
// broadcast to watchers after every processed message.
type View struct {
	Version     int
	Connected   bool
	Offline     bool // reconnect budget exhausted, permanently offline
	SessionID   string
	Identity    *identity.LocalIdentity
	Players     []protocol.Participant
	LocalIndex  int
	OnlineCount int
	MyTurn      bool
	ActiveName  string // display name of the turn owner, "" when unknown
	Choice      ChoiceState
	Kind        string
	Category    string
	Prompt      string
	Chat        []Entry
	LastError   string
}

// Session runs the single event-processing sequence. All inbound push events
// and all user commands funnel through one inbox and are handled one at a
// time, so the components it owns need no locking. Components never mutate
// each other; cross-component effects (turn loss resetting the choice flow,
// the roster translating turn keys) happen here.
type Session struct {
	inbox     chan Msg
	sender    Sender
	log       *zap.Logger
	ident     *identity.LocalIdentity
	sessionID string
	connected bool
	offline   bool
	lastError string

	roster   *Roster
	turn     *TurnTracker
	choice   *ChoiceFlow
	feed     *Feed
	version  int
	watchers map[string]chan View

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSession(parent context.Context, sender Sender, ident *identity.LocalIdentity, log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		inbox:    make(chan Msg, 64),
		sender:   sender,
		log:      log,
		ident:    ident,
		roster:   NewRoster(),
		turn:     NewTurnTracker(),
		choice:   NewChoiceFlow(),
		feed:     NewFeed(),
		watchers: make(map[string]chan View),
		ctx:      ctx,
		cancel:   cancel,
	}

	go s.loop()
	return s
}

// Inbox is where the transport and the UI deliver messages.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Connected:
				s.handleConnected(msg)
			case Disconnected:
				s.connected = false
				s.log.Info("disconnected", zap.String("reason", msg.Reason))
			case ConnFailed:
				s.connected = false
				s.offline = true
				s.log.Warn("connection permanently failed", zap.Error(msg.Err))
			case RosterUpdate:
				s.handleRoster(msg)
			case TurnChanged:
				s.turn.SetPlayer(msg.PlayerID, s.roster)
				s.enforceTurn()
			case TurnSessionUpdate:
				s.turn.SetSession(msg.SessionID)
				s.enforceTurn()
			case PromptDelivered:
				if !s.choice.Deliver(msg.Kind, msg.Category, msg.Prompt) {
					s.log.Debug("prompt with no pending request ignored",
						zap.String("kind", msg.Kind))
				}
			case ChatReceived:
				s.feed.Append(Entry{Author: msg.Author, Content: msg.Content})
			case ActionError:
				s.lastError = msg.Message
				s.choice.Reset()
				s.log.Warn("authority rejected action", zap.String("message", msg.Message))
			case SetIdentity:
				s.handleSetIdentity(msg)
			case RequestPrompt:
				msg.Reply <- s.handleRequestPrompt(msg)
			case SubmitAnswer:
				msg.Reply <- s.handleSubmitAnswer(msg)
			case SendChat:
				s.handleSendChat(msg)
			case Watch:
				s.watchers[msg.ID] = msg.Outbox
				msg.Outbox <- s.view()
			case Unwatch:
				delete(s.watchers, msg.ID)
			case GetView:
				// reflects internal state without data races
				msg.Reply <- s.view()
				continue
			case Shutdown:
				s.shutdown()
				return
			}

			s.broadcast()
		}
	}
}

// handleConnected re-asserts identity on every successful connection, first
// and reconnects alike: the authority has no memory of us across transport
// sessions.
func (s *Session) handleConnected(msg Connected) {
	s.sessionID = msg.SessionID
	s.connected = true
	s.offline = false
	s.log.Info("connected", zap.String("session_id", msg.SessionID))
	s.sendJoin()
}

func (s *Session) sendJoin() {
	if s.ident == nil {
		return
	}
	err := s.sender.Send(protocol.ActionJoin, protocol.JoinPayload{
		ID:        s.ident.ID,
		Name:      s.ident.Name,
		Age:       s.ident.Age,
		Gender:    s.ident.Gender,
		SessionID: s.sessionID,
	})
	if err != nil {
		s.log.Warn("join send failed", zap.Error(err))
	}
}

func (s *Session) handleRoster(msg RosterUpdate) {
	localID := ""
	if s.ident != nil {
		localID = s.ident.ID
	}
	s.roster.Replace(msg.Players, localID)
}

// enforceTurn resets an in-progress request once the turn has moved away from
// the local player. A stale prompt must never stay visible after the turn has
// passed.
func (s *Session) enforceTurn() {
	if s.turn.IsLocal(s.roster.LocalSessionID()) {
		return
	}
	if s.choice.State() != ChoiceNone {
		s.choice.Reset()
	}
}

func (s *Session) handleSetIdentity(msg SetIdentity) {
	s.ident = msg.Identity
	if s.connected {
		s.sendJoin()
	}
}

func (s *Session) handleRequestPrompt(msg RequestPrompt) error {
	if s.ident == nil {
		return ErrNoIdentity
	}
	if err := s.choice.Begin(msg.Kind, msg.Category); err != nil {
		return err
	}
	s.lastError = ""
	return s.sender.Send(protocol.ActionChoose, protocol.ChoosePayload{
		PlayerID: s.ident.ID,
		Kind:     msg.Kind,
		Category: msg.Category,
		Nonce:    s.choice.Nonce(),
	})
}

func (s *Session) handleSubmitAnswer(msg SubmitAnswer) error {
	if s.ident == nil {
		return ErrNoIdentity
	}
	nonce := s.choice.Nonce()
	answer, err := s.choice.Answer(msg.Text)
	if err != nil {
		return err
	}
	return s.sender.Send(protocol.ActionDone, protocol.DonePayload{
		PlayerID:   s.ident.ID,
		Answer:     answer,
		PlayerName: s.ident.Name,
		Nonce:      nonce,
	})
}

// handleSendChat drops empty messages and messages from unnamed players. The
// message is not appended locally; it shows up when the authority echoes it
// back, which keeps the feed a single source of truth.
func (s *Session) handleSendChat(msg SendChat) {
	trimmed := strings.TrimSpace(msg.Text)
	if trimmed == "" || s.ident == nil || s.ident.Name == "" {
		return
	}
	err := s.sender.Send(protocol.ActionChat, protocol.ChatPayload{
		PlayerName: s.ident.Name,
		Message:    trimmed,
	})
	if err != nil {
		s.log.Warn("chat send failed", zap.Error(err))
	}
}

func (s *Session) view() View {
	myTurn := s.turn.IsLocal(s.roster.LocalSessionID())
	activeName, _ := s.roster.NameOf(s.turn.ActiveSessionID())

	return View{
		Version:     s.version,
		Connected:   s.connected,
		Offline:     s.offline,
		SessionID:   s.sessionID,
		Identity:    s.ident,
		Players:     s.roster.Players(),
		LocalIndex:  s.roster.LocalIndex(),
		OnlineCount: s.roster.OnlineCount(),
		MyTurn:      myTurn,
		ActiveName:  activeName,
		Choice:      s.choice.State(),
		Kind:        s.choice.Kind(),
		Category:    s.choice.Category(),
		Prompt:      s.choice.Prompt(),
		Chat:        s.feed.Entries(),
		LastError:   s.lastError,
	}
}

func (s *Session) broadcast() {
	s.version++
	snap := s.view()
	for id, ch := range s.watchers {
		select {
		case ch <- snap:
			// ok
		default:
			// Watcher is slow/full - drop them.
			close(ch)
			delete(s.watchers, id)
		}
	}
}

func (s *Session) shutdown() {
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
	s.cancel()
}
