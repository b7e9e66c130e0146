package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// MarkdownExporter renders one section per turn with a short metadata header.
type MarkdownExporter struct{}

func (MarkdownExporter) Export(doc Document) ([]byte, error) {
	if len(doc.Turns) == 0 {
		return nil, ErrEmptyTranscript
	}

	var sb strings.Builder
	sb.WriteString("# Chat transcript\n\n")
	if doc.Config.Model != "" {
		sb.WriteString(fmt.Sprintf("- **Model**: %s\n", doc.Config.Model))
		sb.WriteString(fmt.Sprintf("- **Temperature**: %.1f\n", doc.Config.Temperature))
	}
	if !doc.ExportedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("- **Exported**: %s\n", doc.ExportedAt.Format(time.RFC3339)))
	}
	sb.WriteString(fmt.Sprintf("- **Turns**: %d\n\n---\n", len(doc.Turns)))

	for _, turn := range doc.Turns {
		sb.WriteString(fmt.Sprintf("\n### %s\n\n", roleHeading(turn.Role)))
		sb.WriteString(strings.TrimRight(turn.Content, "\n"))
		sb.WriteString("\n")
	}
	return []byte(sb.String()), nil
}

func (MarkdownExporter) FileExtension() string { return ".md" }

func (MarkdownExporter) MimeType() string { return "text/markdown; charset=utf-8" }

func roleHeading(role chat.Role) string {
	switch role {
	case chat.RoleUser:
		return "User"
	case chat.RoleAssistant:
		return "Assistant"
	default:
		return string(role)
	}
}
