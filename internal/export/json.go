package export

import (
	"encoding/json"
	"io"
)

// JSONExporter exports conversations as pretty-printed JSON.
type JSONExporter struct{}

// Export writes the whole conversation as one JSON document.
func (e *JSONExporter) Export(conv *Conversation, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(conv)
}

// Extension returns the file extension for this format.
func (e *JSONExporter) Extension() string {
	return "json"
}
