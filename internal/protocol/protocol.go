// Package protocol defines the wire format shared with the game authority:
// event names, the JSON envelope, and the payload shapes for both directions.
package protocol

import (
	"encoding/json"
	"slices"
)

// Server -> client push events.
const (
	EventWelcome         = "welcome"
	EventRosterUpdate    = "roster_update"
	EventTurnChanged     = "turn_changed"
	EventTurnSession     = "turn_session_update"
	EventPromptDelivered = "prompt_delivered"
	EventChatEntry       = "chat_entry"
	EventActionError     = "action_error"
)

// Client -> server one-way actions. None of these get a direct reply; their
// effects show up as later push events, or not at all.
const (
	ActionJoin   = "join"
	ActionChoose = "choose"
	ActionDone   = "done"
	ActionChat   = "chat"
)

const (
	KindTruth = "truth"
	KindDare  = "dare"
)

var Categories = []string{"all", "friends", "couple", "dirty", "good"}

func ValidKind(kind string) bool {
	return kind == KindTruth || kind == KindDare
}

func ValidCategory(category string) bool {
	return slices.Contains(Categories, category)
}

// Envelope wraps every frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func Encode(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(frame, &env)
	return env, err
}

// Participant is one roster entry. ID survives reconnects; SessionID is the
// transport identifier of the connection currently representing the player and
// changes on every reconnect.
type Participant struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	SessionID string `json:"socketId"`
}

// Welcome is the first frame the authority sends after accepting a connection.
// It assigns the transport session id.
type Welcome struct {
	SessionID string `json:"sessionId"`
}

type Prompt struct {
	Kind     string `json:"kind"`
	Category string `json:"category"`
	Prompt   string `json:"prompt"`
}

type ChatEntry struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

type JoinPayload struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	SessionID string `json:"socketId"`
}

type ChoosePayload struct {
	PlayerID string `json:"playerId"`
	Kind     string `json:"type"`
	Category string `json:"category"`
	Nonce    string `json:"nonce"`
}

type DonePayload struct {
	PlayerID   string `json:"playerId"`
	Answer     string `json:"answer"`
	PlayerName string `json:"playerName"`
	Nonce      string `json:"nonce"`
}

type ChatPayload struct {
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
}
