package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

func TestTranscriptStartsWithGreeting(t *testing.T) {
	tr := NewTranscript("hello there")

	turns := tr.Snapshot()
	require.Len(t, turns, 1)
	assert.Equal(t, chat.RoleAssistant, turns[0].Role)
	assert.Equal(t, "hello there", turns[0].Content)
}

func TestTranscriptResetFromAnyLength(t *testing.T) {
	for _, n := range []int{0, 1, 5, 100} {
		tr := NewTranscript("hi")
		for i := 0; i < n; i++ {
			tr.Append(chat.UserTurn("q"))
			tr.Append(chat.AssistantTurn("a"))
		}
		tr.Reset()

		assert.Equal(t, 1, tr.Len())
		assert.Equal(t, chat.AssistantTurn("hi"), tr.Snapshot()[0])
	}
}

func TestTranscriptAppendKeepsDuplicatesInOrder(t *testing.T) {
	tr := NewTranscript("hi")
	tr.Append(chat.UserTurn("same"))
	tr.Append(chat.UserTurn("same"))

	assert.Equal(t, []chat.Turn{
		chat.AssistantTurn("hi"),
		chat.UserTurn("same"),
		chat.UserTurn("same"),
	}, tr.Snapshot())
}

func TestTranscriptSnapshotIsIndependent(t *testing.T) {
	tr := NewTranscript("hi")
	snap := tr.Snapshot()
	snap[0].Content = "mutated"
	tr.Append(chat.UserTurn("later"))

	assert.Len(t, snap, 1)
	assert.Equal(t, "hi", tr.Snapshot()[0].Content)
}
