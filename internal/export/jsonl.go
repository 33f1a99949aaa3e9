package export

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONLExporter exports conversations as one message object per line.
type JSONLExporter struct{}

// Export writes each message as a single JSON line.
func (e *JSONLExporter) Export(conv *Conversation, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, msg := range conv.Messages {
		obj := map[string]interface{}{
			"id":      msg.ID,
			"role":    msg.Role,
			"content": msg.PlainText(),
		}
		if !msg.Timestamp.IsZero() {
			obj["timestamp"] = msg.Timestamp
		}
		if msg.Model != "" {
			obj["model"] = msg.Model
		}

		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format.
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
