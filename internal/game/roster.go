package game

import "github.com/truthordare/gameclient/internal/protocol"

// Roster holds the latest full roster snapshot pushed by the authority. Every
// push replaces the previous snapshot wholesale; there are no diffs. Order is
// authority-defined and only meaningful for deriving the local index.
type Roster struct {
	players    []protocol.Participant
	localIndex int
}

func NewRoster() *Roster {
	return &Roster{localIndex: -1}
}

// Replace swaps in a new snapshot and recomputes the local player's position
// by stable id. A missing entry is normal during the join race and leaves the
// index at -1.
func (r *Roster) Replace(players []protocol.Participant, localID string) {
	r.players = players
	r.localIndex = -1
	if localID == "" {
		return
	}
	for i, p := range players {
		if p.ID == localID {
			r.localIndex = i
			return
		}
	}
}

func (r *Roster) Players() []protocol.Participant {
	out := make([]protocol.Participant, len(r.players))
	copy(out, r.players)
	return out
}

func (r *Roster) OnlineCount() int { return len(r.players) }

func (r *Roster) LocalIndex() int { return r.localIndex }

// Local returns the roster entry representing the local player, if present.
func (r *Roster) Local() (protocol.Participant, bool) {
	if r.localIndex < 0 || r.localIndex >= len(r.players) {
		return protocol.Participant{}, false
	}
	return r.players[r.localIndex], true
}

// LocalSessionID is the transport session currently representing the local
// player, derived from the roster. Empty until the authority reflects the join.
func (r *Roster) LocalSessionID() string {
	p, ok := r.Local()
	if !ok {
		return ""
	}
	return p.SessionID
}

// SessionIDOf translates a stable player id into that player's current
// transport session id.
func (r *Roster) SessionIDOf(playerID string) (string, bool) {
	for _, p := range r.players {
		if p.ID == playerID {
			return p.SessionID, true
		}
	}
	return "", false
}

// NameOf returns the display name for a session id, for "waiting for X" views.
func (r *Roster) NameOf(sessionID string) (string, bool) {
	if sessionID == "" {
		return "", false
	}
	for _, p := range r.players {
		if p.SessionID == sessionID {
			return p.Name, true
		}
	}
	return "", false
}
