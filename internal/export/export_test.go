package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

func sampleDoc() Document {
	return Document{
		SessionID:  "s1",
		Config:     chat.NewGenerationConfig("gemini-2.0-flash", 0.7),
		ExportedAt: time.Date(2024, 5, 1, 13, 42, 59, 0, time.UTC),
		Turns: []chat.Turn{
			chat.AssistantTurn("Assalam-o-Alaikum! 🤖"),
			chat.UserTurn("پاکستان کا دارالحکومت کیا ہے؟ <b>&</b>"),
			chat.AssistantTurn("اسلام آباد"),
		},
	}
}

func TestJSONRoundTripPreservesTurns(t *testing.T) {
	doc := sampleDoc()
	data, err := JSONExporter{}.Export(doc)
	require.NoError(t, err)

	var decoded []chat.Turn
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, doc.Turns, decoded)
}

func TestJSONKeepsNonASCIIVerbatimAndIsIndented(t *testing.T) {
	data, err := JSONExporter{}.Export(sampleDoc())
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "اسلام آباد")
	assert.Contains(t, out, "<b>&</b>")
	assert.NotContains(t, out, `\u`)
	assert.True(t, strings.HasPrefix(out, "[\n  {\n    \"role\": \"assistant\""))
	assert.False(t, strings.HasSuffix(out, "\n"))
}

func TestExportRejectsEmptyTranscript(t *testing.T) {
	_, err := JSONExporter{}.Export(Document{})
	assert.ErrorIs(t, err, ErrEmptyTranscript)

	_, err = MarkdownExporter{}.Export(Document{})
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}

func TestMarkdownExport(t *testing.T) {
	data, err := MarkdownExporter{}.Export(sampleDoc())
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "- **Model**: gemini-2.0-flash")
	assert.Contains(t, out, "- **Temperature**: 0.7")
	assert.Contains(t, out, "### User\n\nپاکستان")
	assert.Equal(t, 2, strings.Count(out, "### Assistant"))
}

func TestFilename(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 7, 30, 0, time.UTC)
	assert.Equal(t, "gemini_chat_2024-05-01_0907.json", Filename("gemini_chat", at, ".json"))
	assert.Equal(t, "chat_2024-05-01_0907.md", Filename(" ", at, ".md"))
}

func TestForFormat(t *testing.T) {
	for name, ext := range map[string]string{"": ".json", "json": ".json", "Markdown": ".md", "md": ".md"} {
		exp, err := ForFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, ext, exp.FileExtension())
	}

	_, err := ForFormat("pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	exp, _ := ForFormat("json")
	assert.Equal(t, "application/json", exp.MimeType())
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := WriteFile(dir, "gemini_chat", JSONExporter{}, sampleDoc())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "gemini_chat_2024-05-01_1342.json"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []chat.Turn
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 3)
}
