package export

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLExporter exports conversations in YAML format.
type YAMLExporter struct{}

// Export writes the whole conversation as one YAML document.
func (e *YAMLExporter) Export(conv *Conversation, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	return enc.Encode(conv)
}

// Extension returns the file extension for this format.
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
