package export

import (
	"bytes"
	"encoding/json"
)

// JSONExporter writes the transcript as a pretty-printed array of {role, content}.
// Non-Latin text and HTML characters are kept verbatim.
type JSONExporter struct{}

func (JSONExporter) Export(doc Document) ([]byte, error) {
	if len(doc.Turns) == 0 {
		return nil, ErrEmptyTranscript
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc.Turns); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (JSONExporter) FileExtension() string { return ".json" }

func (JSONExporter) MimeType() string { return "application/json" }
