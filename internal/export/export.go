// Package export 将会话记录序列化为可下载的文件。
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

// FilenameLayout keeps minute resolution, e.g. gemini_chat_2024-05-01_1342.json.
const FilenameLayout = "2006-01-02_1504"

var (
	// ErrUnknownFormat is returned by ForFormat for unsupported names.
	ErrUnknownFormat = errors.New("unknown export format")
	// ErrEmptyTranscript guards against exporting nothing.
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// Document is what gets exported: the transcript plus the settings it was produced under.
type Document struct {
	SessionID  string
	Config     chat.GenerationConfig
	ExportedAt time.Time
	Turns      []chat.Turn
}

// Exporter converts a Document into one file format.
type Exporter interface {
	Export(doc Document) ([]byte, error)
	// FileExtension includes the leading dot.
	FileExtension() string
	MimeType() string
}

// ForFormat resolves "json" (default when empty) or "markdown"/"md".
func ForFormat(name string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONExporter{}, nil
	case "markdown", "md":
		return MarkdownExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
}

// Filename builds <prefix>_<YYYY-MM-DD_HHMM><ext>.
func Filename(prefix string, at time.Time, ext string) string {
	if strings.TrimSpace(prefix) == "" {
		prefix = "chat"
	}
	return fmt.Sprintf("%s_%s%s", prefix, at.Format(FilenameLayout), ext)
}

// WriteFile exports doc into dir and returns the written path.
func WriteFile(dir, prefix string, exporter Exporter, doc Document) (string, error) {
	content, err := exporter.Export(doc)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(dir, Filename(prefix, doc.ExportedAt, exporter.FileExtension()))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}
