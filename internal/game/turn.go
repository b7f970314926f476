package game

// TurnTracker follows the authority's turn decisions. Ownership is keyed by
// transport session id: that is the only key comparable against the session
// the local player currently holds. The authority broadcasts turn changes in
// two key spaces (stable player id and raw session id); both collapse to a
// session id here, at the boundary.
type TurnTracker struct {
	activeSessionID string
}

func NewTurnTracker() *TurnTracker {
	return &TurnTracker{}
}

// SetSession adopts a raw session id from a turn_session_update push.
func (t *TurnTracker) SetSession(sessionID string) {
	t.activeSessionID = sessionID
}

// SetPlayer adopts a stable player id from a turn_changed push, translating it
// through the roster. An id the roster does not know (the player may have just
// left) clears ownership rather than keeping a stale session.
func (t *TurnTracker) SetPlayer(playerID string, roster *Roster) {
	sid, ok := roster.SessionIDOf(playerID)
	if !ok {
		t.activeSessionID = ""
		return
	}
	t.activeSessionID = sid
}

func (t *TurnTracker) ActiveSessionID() string { return t.activeSessionID }

// IsLocal reports whether the turn belongs to the given local session id. An
// empty id on either side never matches.
func (t *TurnTracker) IsLocal(localSessionID string) bool {
	return localSessionID != "" && t.activeSessionID == localSessionID
}
