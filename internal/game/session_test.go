package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/truthordare/gameclient/internal/identity"
	"github.com/truthordare/gameclient/internal/protocol"
)

type sentAction struct {
	event   string
	payload any
}

// fakeSender records outbound actions. Sends happen on the session goroutine,
// so access is guarded.
type fakeSender struct {
	mu      sync.Mutex
	actions []sentAction
}

func (f *fakeSender) Send(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, sentAction{event: event, payload: payload})
	return nil
}

func (f *fakeSender) byEvent(event string) []sentAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentAction
	for _, a := range f.actions {
		if a.event == event {
			out = append(out, a)
		}
	}
	return out
}

func newTestSession(t *testing.T, ident *identity.LocalIdentity) (*Session, *fakeSender) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sender := &fakeSender{}
	return NewSession(ctx, sender, ident, zap.NewNop()), sender
}

// syncView round-trips a GetView through the inbox. Because messages are
// processed in order, the reply doubles as a barrier for everything sent
// before it.
func syncView(t *testing.T, s *Session) View {
	t.Helper()
	reply := make(chan View, 1)
	s.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func requestPrompt(t *testing.T, s *Session, kind, category string) error {
	t.Helper()
	reply := make(chan error, 1)
	s.Inbox() <- RequestPrompt{Kind: kind, Category: category, Reply: reply}
	select {
	case err := <-reply:
		return err
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for request reply")
		return nil // unreachable
	}
}

func submitAnswer(t *testing.T, s *Session, text string) error {
	t.Helper()
	reply := make(chan error, 1)
	s.Inbox() <- SubmitAnswer{Text: text, Reply: reply}
	select {
	case err := <-reply:
		return err
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for answer reply")
		return nil // unreachable
	}
}

func annIdentity() *identity.LocalIdentity {
	return &identity.LocalIdentity{ID: "p1", Name: "Ann", Age: 25, Gender: "female"}
}

func TestSession_JoinsOnEveryConnect(t *testing.T) {
	s, sender := newTestSession(t, annIdentity())

	s.Inbox() <- Connected{SessionID: "sess-a"}
	syncView(t, s)

	joins := sender.byEvent(protocol.ActionJoin)
	if len(joins) != 1 {
		t.Fatalf("expected 1 join after first connect, got %d", len(joins))
	}
	join := joins[0].payload.(protocol.JoinPayload)
	if join.ID != "p1" || join.Name != "Ann" || join.SessionID != "sess-a" {
		t.Fatalf("unexpected join payload: %+v", join)
	}

	// reconnect: the authority has no memory of us, join again
	s.Inbox() <- Disconnected{Reason: "transport error"}
	s.Inbox() <- Connected{SessionID: "sess-b"}
	syncView(t, s)

	joins = sender.byEvent(protocol.ActionJoin)
	if len(joins) != 2 {
		t.Fatalf("expected 2 joins after reconnect, got %d", len(joins))
	}
	if joins[1].payload.(protocol.JoinPayload).SessionID != "sess-b" {
		t.Fatalf("second join should carry the new session id: %+v", joins[1].payload)
	}
}

func TestSession_NoJoinWithoutIdentity(t *testing.T) {
	s, sender := newTestSession(t, nil)

	s.Inbox() <- Connected{SessionID: "sess-a"}
	syncView(t, s)

	if got := sender.byEvent(protocol.ActionJoin); len(got) != 0 {
		t.Fatalf("expected no join without identity, got %d", len(got))
	}
}

func TestSession_SetIdentityJoinsWhileConnected(t *testing.T) {
	s, sender := newTestSession(t, nil)

	s.Inbox() <- Connected{SessionID: "sess-a"}
	s.Inbox() <- SetIdentity{Identity: annIdentity()}
	syncView(t, s)

	joins := sender.byEvent(protocol.ActionJoin)
	if len(joins) != 1 {
		t.Fatalf("expected join right after registration, got %d", len(joins))
	}
}

func TestSession_PromptRequestCycle(t *testing.T) {
	s, sender := newTestSession(t, annIdentity())
	s.Inbox() <- Connected{SessionID: "sess-a"}

	if err := requestPrompt(t, s, "dare", "dare"); err != nil {
		t.Fatalf("requestPrompt: %v", err)
	}

	v := syncView(t, s)
	if v.Choice != ChoiceLoading || v.Category != "dare" {
		t.Fatalf("expected Loading(dare), got %s(%s)", v.Choice, v.Category)
	}

	chooses := sender.byEvent(protocol.ActionChoose)
	if len(chooses) != 1 {
		t.Fatalf("expected 1 choose action, got %d", len(chooses))
	}
	choose := chooses[0].payload.(protocol.ChoosePayload)
	if choose.PlayerID != "p1" || choose.Kind != "dare" || choose.Category != "dare" {
		t.Fatalf("unexpected choose payload: %+v", choose)
	}
	if choose.Nonce == "" {
		t.Fatalf("choose must carry a correlation nonce")
	}

	s.Inbox() <- PromptDelivered{Kind: "dare", Category: "dare", Prompt: "Sing a song"}
	v = syncView(t, s)
	if v.Choice != ChoicePresented || v.Prompt != "Sing a song" {
		t.Fatalf("expected Presented(Sing a song), got %s(%s)", v.Choice, v.Prompt)
	}

	if err := submitAnswer(t, s, "I will!"); err != nil {
		t.Fatalf("submitAnswer: %v", err)
	}

	dones := sender.byEvent(protocol.ActionDone)
	if len(dones) != 1 {
		t.Fatalf("expected 1 done action, got %d", len(dones))
	}
	done := dones[0].payload.(protocol.DonePayload)
	if done.Answer != "I will!" || done.PlayerName != "Ann" || done.Nonce != choose.Nonce {
		t.Fatalf("unexpected done payload: %+v", done)
	}

	if v = syncView(t, s); v.Choice != ChoiceNone {
		t.Fatalf("flow must return to None after submit, got %s", v.Choice)
	}
}

func TestSession_RequestPromptRequiresIdentity(t *testing.T) {
	s, sender := newTestSession(t, nil)

	if err := requestPrompt(t, s, "truth", "all"); err != ErrNoIdentity {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
	if got := sender.byEvent(protocol.ActionChoose); len(got) != 0 {
		t.Fatalf("rejected request must not send, got %d actions", len(got))
	}
}

func TestSession_SecondRequestRejected(t *testing.T) {
	s, sender := newTestSession(t, annIdentity())

	if err := requestPrompt(t, s, "truth", "all"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := requestPrompt(t, s, "dare", "all"); err != ErrRequestPending {
		t.Fatalf("expected ErrRequestPending, got %v", err)
	}
	if got := sender.byEvent(protocol.ActionChoose); len(got) != 1 {
		t.Fatalf("expected exactly 1 choose action, got %d", len(got))
	}
}

func TestSession_EmptyAnswerRejected(t *testing.T) {
	s, sender := newTestSession(t, annIdentity())

	if err := requestPrompt(t, s, "truth", "all"); err != nil {
		t.Fatalf("requestPrompt: %v", err)
	}
	s.Inbox() <- PromptDelivered{Kind: "truth", Category: "all", Prompt: "q"}

	for _, text := range []string{"", "   "} {
		if err := submitAnswer(t, s, text); err != ErrEmptyAnswer {
			t.Fatalf("expected ErrEmptyAnswer for %q, got %v", text, err)
		}
	}

	v := syncView(t, s)
	if v.Choice != ChoicePresented {
		t.Fatalf("rejected answer must not change state, got %s", v.Choice)
	}
	if got := sender.byEvent(protocol.ActionDone); len(got) != 0 {
		t.Fatalf("rejected answer must not send, got %d actions", len(got))
	}
}

func TestSession_TurnLossForcesReset(t *testing.T) {
	s, _ := newTestSession(t, annIdentity())

	s.Inbox() <- Connected{SessionID: "sess-p1"}
	s.Inbox() <- RosterUpdate{Players: snapshot("p1", "p2")}
	s.Inbox() <- TurnSessionUpdate{SessionID: "sess-p1"}

	v := syncView(t, s)
	if !v.MyTurn {
		t.Fatalf("expected my turn, got %+v", v)
	}

	if err := requestPrompt(t, s, "truth", "all"); err != nil {
		t.Fatalf("requestPrompt: %v", err)
	}
	s.Inbox() <- PromptDelivered{Kind: "truth", Category: "all", Prompt: "q"}

	// turn moves to p2: the in-progress request must be discarded
	s.Inbox() <- TurnChanged{PlayerID: "p2"}

	v = syncView(t, s)
	if v.MyTurn {
		t.Fatalf("turn should have moved away")
	}
	if v.Choice != ChoiceNone {
		t.Fatalf("stale request must be reset on turn loss, got %s", v.Choice)
	}
	if v.ActiveName != "player-p2" {
		t.Fatalf("expected active name player-p2, got %q", v.ActiveName)
	}
}

func TestSession_ActionErrorResetsFromAnyState(t *testing.T) {
	s, _ := newTestSession(t, annIdentity())

	if err := requestPrompt(t, s, "truth", "all"); err != nil {
		t.Fatalf("requestPrompt: %v", err)
	}
	s.Inbox() <- ActionError{Message: "no questions left"}

	v := syncView(t, s)
	if v.Choice != ChoiceNone {
		t.Fatalf("action_error must reset the flow, got %s", v.Choice)
	}
	if v.LastError != "no questions left" {
		t.Fatalf("error must be surfaced, got %q", v.LastError)
	}

	// and again from Presented
	if err := requestPrompt(t, s, "truth", "all"); err != nil {
		t.Fatalf("requestPrompt after error: %v", err)
	}
	s.Inbox() <- PromptDelivered{Kind: "truth", Category: "all", Prompt: "q"}
	s.Inbox() <- ActionError{Message: "server hiccup"}

	if v = syncView(t, s); v.Choice != ChoiceNone {
		t.Fatalf("action_error must reset from Presented too, got %s", v.Choice)
	}
}

func TestSession_PromptWithoutPendingRequestIgnored(t *testing.T) {
	s, _ := newTestSession(t, annIdentity())

	s.Inbox() <- PromptDelivered{Kind: "truth", Category: "all", Prompt: "stale"}

	v := syncView(t, s)
	if v.Choice != ChoiceNone || v.Prompt != "" {
		t.Fatalf("unsolicited prompt must be ignored, got %s(%q)", v.Choice, v.Prompt)
	}
}

func TestSession_ChatSendRules(t *testing.T) {
	s, sender := newTestSession(t, annIdentity())

	s.Inbox() <- SendChat{Text: "   "}
	s.Inbox() <- SendChat{Text: "hello there"}
	syncView(t, s)

	chats := sender.byEvent(protocol.ActionChat)
	if len(chats) != 1 {
		t.Fatalf("expected exactly 1 chat action, got %d", len(chats))
	}
	payload := chats[0].payload.(protocol.ChatPayload)
	if payload.PlayerName != "Ann" || payload.Message != "hello there" {
		t.Fatalf("unexpected chat payload: %+v", payload)
	}

	// no optimistic local append; the entry shows up on echo only
	if v := syncView(t, s); len(v.Chat) != 0 {
		t.Fatalf("chat must not be appended locally, got %d entries", len(v.Chat))
	}

	s.Inbox() <- ChatReceived{Author: "Ann", Content: "hello there"}
	if v := syncView(t, s); len(v.Chat) != 1 {
		t.Fatalf("echoed chat should appear, got %d entries", len(v.Chat))
	}
}

func TestSession_ChatRequiresDisplayName(t *testing.T) {
	s, sender := newTestSession(t, nil)

	s.Inbox() <- SendChat{Text: "hello"}
	syncView(t, s)

	if got := sender.byEvent(protocol.ActionChat); len(got) != 0 {
		t.Fatalf("chat without a display name must be dropped, got %d", len(got))
	}
}

func TestSession_RosterDerivation(t *testing.T) {
	s, _ := newTestSession(t, annIdentity())

	s.Inbox() <- RosterUpdate{Players: snapshot("p2", "p1", "p3")}
	v := syncView(t, s)
	if v.LocalIndex != 1 || v.OnlineCount != 3 {
		t.Fatalf("expected index 1 of 3, got %d of %d", v.LocalIndex, v.OnlineCount)
	}

	// join race: not reflected yet
	s.Inbox() <- RosterUpdate{Players: snapshot("p2", "p3")}
	v = syncView(t, s)
	if v.LocalIndex != -1 || v.OnlineCount != 2 {
		t.Fatalf("expected undefined index, got %d of %d", v.LocalIndex, v.OnlineCount)
	}
}

func TestSession_PermanentFailureSurfacesOffline(t *testing.T) {
	s, _ := newTestSession(t, annIdentity())

	s.Inbox() <- Connected{SessionID: "sess-a"}
	s.Inbox() <- Disconnected{Reason: "drop"}
	s.Inbox() <- ConnFailed{Err: context.DeadlineExceeded}

	v := syncView(t, s)
	if !v.Offline || v.Connected {
		t.Fatalf("exhausted retries must read as offline, got %+v", v)
	}
}

func TestSession_WatchersReceiveSnapshotsAndCloseOnShutdown(t *testing.T) {
	s, _ := newTestSession(t, annIdentity())

	out := make(chan View, 32)
	s.Inbox() <- Watch{ID: "ui", Outbox: out}

	// registration delivers the current view immediately
	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for initial snapshot")
	}

	s.Inbox() <- ChatReceived{Author: "Ann", Content: "hi"}
	deadline := time.After(time.Second)
	for {
		select {
		case v := <-out:
			if len(v.Chat) == 1 {
				goto shutdown
			}
		case <-deadline:
			t.Fatalf("timed out waiting for chat snapshot")
		}
	}

shutdown:
	s.Inbox() <- Shutdown{}
	deadline = time.After(time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return // closed as expected
			}
		case <-deadline:
			t.Fatalf("watcher channel not closed on shutdown")
		}
	}
}
