package chat

import "github.com/zhouzirui/z-chat/backend/internal/model/chat"

// Transcript is the ordered turn history of one session. It always starts with the greeting
// turn and only grows by Append. It is not safe for concurrent use; Service guards it.
type Transcript struct {
	greeting chat.Turn
	turns    []chat.Turn
}

// NewTranscript returns a transcript holding only the assistant greeting.
func NewTranscript(greeting string) *Transcript {
	t := &Transcript{greeting: chat.AssistantTurn(greeting)}
	t.Reset()
	return t
}

// Append adds a turn to the end. No dedup, no cap.
func (t *Transcript) Append(turn chat.Turn) {
	t.turns = append(t.turns, turn)
}

// Reset drops everything but the greeting.
func (t *Transcript) Reset() {
	t.turns = make([]chat.Turn, 1, 16)
	t.turns[0] = t.greeting
}

// Snapshot returns an independent copy of the turns.
func (t *Transcript) Snapshot() []chat.Turn {
	copied := make([]chat.Turn, len(t.turns))
	copy(copied, t.turns)
	return copied
}

// Len returns the number of turns including the greeting.
func (t *Transcript) Len() int {
	return len(t.turns)
}
