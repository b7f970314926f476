package game

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/truthordare/gameclient/internal/protocol"
)

var ErrRequestPending = errors.New("a prompt request is already pending")
var ErrNoPrompt = errors.New("no prompt is being presented")
var ErrEmptyAnswer = errors.New("answer is empty")
var ErrUnknownKind = errors.New("unknown prompt kind")

type ChoiceState string

const (
	ChoiceNone      ChoiceState = "none"
	ChoiceLoading   ChoiceState = "loading"
	ChoicePresented ChoiceState = "presented"
)

// ChoiceFlow is the per-player request/prompt/answer cycle:
//
//	None -> Loading(category) -> Presented(kind, category, prompt) -> None
//
// At most one request is in flight at a time. Outbound actions carry a nonce
// so an extended authority could correlate replies; the current one does not,
// which is why inbound prompts are matched purely by state (see Deliver).
type ChoiceFlow struct {
	state    ChoiceState
	kind     string
	category string
	prompt   string
	nonce    string
}

func NewChoiceFlow() *ChoiceFlow {
	return &ChoiceFlow{state: ChoiceNone}
}

// Begin starts a new request cycle. Only legal from None. The category is
// passed through as-is; the authority owns category validity.
func (c *ChoiceFlow) Begin(kind, category string) error {
	if c.state != ChoiceNone {
		return ErrRequestPending
	}
	if !protocol.ValidKind(kind) {
		return ErrUnknownKind
	}

	c.state = ChoiceLoading
	c.kind = kind
	c.category = category
	c.prompt = ""
	c.nonce = uuid.NewString()
	return nil
}

// Deliver handles an inbound prompt. From Loading it completes the cycle as
// expected. From Presented it adopts the new prompt; the authority is trusted
// over local state. From None it is ignored: with no correlation id on the
// wire, a prompt arriving after a reset (turn change, error) is
// indistinguishable from a fresh one, and showing it without a pending
// request would be worse than dropping it.
func (c *ChoiceFlow) Deliver(kind, category, prompt string) bool {
	if c.state == ChoiceNone {
		return false
	}
	c.state = ChoicePresented
	c.kind = kind
	c.category = category
	c.prompt = prompt
	return true
}

// Answer validates and consumes the presented prompt. The flow returns to
// None unconditionally on success; no acknowledgment is awaited.
func (c *ChoiceFlow) Answer(text string) (string, error) {
	if c.state != ChoicePresented {
		return "", ErrNoPrompt
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyAnswer
	}
	c.Reset()
	return trimmed, nil
}

// Reset forces the flow back to None from any state. Used on turn loss and on
// authority-reported action errors.
func (c *ChoiceFlow) Reset() {
	c.state = ChoiceNone
	c.kind = ""
	c.category = ""
	c.prompt = ""
	c.nonce = ""
}

func (c *ChoiceFlow) State() ChoiceState { return c.state }
func (c *ChoiceFlow) Kind() string       { return c.kind }
func (c *ChoiceFlow) Category() string   { return c.category }
func (c *ChoiceFlow) Prompt() string     { return c.prompt }
func (c *ChoiceFlow) Nonce() string      { return c.nonce }
