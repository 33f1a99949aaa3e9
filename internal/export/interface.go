// Package export renders a loaded conversation in interchange formats.
package export

import (
	"fmt"
	"io"

	"github.com/opensesh/sessionhub/internal/model"
)

// Conversation is the unit of export: one session plus its messages,
// oldest first.
type Conversation struct {
	Session  model.Session   `json:"session" yaml:"session"`
	Messages []model.Message `json:"messages" yaml:"messages"`
}

// Exporter defines the interface for all export formats.
type Exporter interface {
	Export(conv *Conversation, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format.
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: jsonl, md, yaml, json)", format)
	}
}
