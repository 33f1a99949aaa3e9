package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/opensesh/sessionhub/internal/model"
)

// MarkdownExporter exports conversations in Markdown format.
type MarkdownExporter struct{}

// Export renders the conversation as a readable Markdown transcript.
func (e *MarkdownExporter) Export(conv *Conversation, w io.Writer) error {
	s := conv.Session

	_, _ = fmt.Fprintf(w, "# Session %s\n\n", s.ID)
	if s.Metadata.Summary != "" {
		_, _ = fmt.Fprintf(w, "**Summary:** %s  \n", s.Metadata.Summary)
	}
	if s.Metadata.Workspace != "" {
		_, _ = fmt.Fprintf(w, "**Workspace:** %s  \n", s.Metadata.Workspace)
	}
	_, _ = fmt.Fprintf(w, "**Provider:** %s  \n", s.ProviderID)
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(conv.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")
	_, _ = fmt.Fprintf(w, "## Messages\n\n")

	for i, msg := range conv.Messages {
		timestamp := ""
		if !msg.Timestamp.IsZero() {
			timestamp = fmt.Sprintf(" (%s)", msg.Timestamp.Format(time.RFC3339))
		}

		content := escapeMarkdown(msg.PlainText())
		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", roleLabel(msg.Role), timestamp, content)

		for _, call := range msg.ToolCalls {
			_, _ = fmt.Fprintf(w, "> tool: `%s`\n\n", call.Name)
		}

		if i < len(conv.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

func roleLabel(role model.MessageRole) string {
	switch role {
	case model.RoleUser:
		return "User"
	case model.RoleAssistant:
		return "Assistant"
	case model.RoleSystem:
		return "System"
	default:
		return string(role)
	}
}

// escapeMarkdown escapes emphasis markers outside code blocks.
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format.
func (e *MarkdownExporter) Extension() string {
	return "md"
}
