// Package transcript assembles incremental transcription deltas into
// complete alternating user/tutor utterances.
package transcript

import (
	"strings"
	"time"
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser  Role = "User"
	RoleTutor Role = "Tutor"
)

// Message is a sealed turn.
type Message struct {
	Role Role
	Text string
	At   time.Time
}

// Assembler groups transcript deltas into turns. A turn stays open while
// deltas keep arriving from the same speaker; the first delta from the other
// speaker seals it. At most one turn is open at a time. Role alternation is
// inferred purely from which side produced the delta, never from timestamps.
//
// Assembler is not safe for concurrent use; the bridge delivers deltas from
// its single inbound-message goroutine.
type Assembler struct {
	now func() time.Time

	messages []Message

	open     strings.Builder
	openRole Role
	hasOpen  bool

	onSeal func(Message)
}

// New creates an empty Assembler.
func New() *Assembler {
	return &Assembler{now: time.Now}
}

// OnSeal registers a callback invoked for every sealed message, in order.
func (a *Assembler) OnSeal(fn func(Message)) {
	a.onSeal = fn
}

// OnDelta feeds one incremental transcript fragment. isUser tags the side
// that produced it (input transcription = user, output transcription =
// tutor).
func (a *Assembler) OnDelta(text string, isUser bool) {
	role := RoleTutor
	if isUser {
		role = RoleUser
	}
	if a.hasOpen && a.openRole != role {
		a.seal()
	}
	if !a.hasOpen {
		a.hasOpen = true
		a.openRole = role
	}
	a.open.WriteString(text)
}

// Finish seals any still-open turn. Safe to call when nothing is open.
func (a *Assembler) Finish() {
	if a.hasOpen {
		a.seal()
	}
}

func (a *Assembler) seal() {
	msg := Message{Role: a.openRole, Text: a.open.String(), At: a.now()}
	a.messages = append(a.messages, msg)
	a.open.Reset()
	a.hasOpen = false
	if a.onSeal != nil {
		a.onSeal(msg)
	}
}

// Messages returns the sealed turns in arrival order.
func (a *Assembler) Messages() []Message {
	return append([]Message(nil), a.messages...)
}

// OpenText returns the accumulated text of the open turn, if any.
func (a *Assembler) OpenText() (string, Role, bool) {
	if !a.hasOpen {
		return "", "", false
	}
	return a.open.String(), a.openRole, true
}

// Transcript renders the sealed turns as one "<Role>: <text>" line per turn,
// preserving order with no interleaving. This is the evaluation input.
func (a *Assembler) Transcript() string {
	var b strings.Builder
	for i, msg := range a.messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Text)
	}
	return b.String()
}
