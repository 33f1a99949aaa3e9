package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/opensesh/sessionhub/internal/export"
	"github.com/opensesh/sessionhub/internal/model"
)

var (
	showAll    bool
	showFormat string
	showOutput string
)

var (
	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)
)

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "View a session's conversation",
	Long: `View the messages of one session. By default only the most recent page
is shown; pass --all to load the entire conversation.

The session id may be abbreviated to any unique prefix. Use --export to
write the conversation to a file instead of the terminal (formats: jsonl,
md, yaml, json).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		session, err := findSession(ctx, args[0])
		if err != nil {
			return err
		}

		if err := hub.Pipeline.SelectSession(ctx, *session); err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
		if showAll || showFormat != "" {
			if err := hub.Pipeline.LoadAll(ctx); err != nil {
				return fmt.Errorf("failed to load full conversation: %w", err)
			}
		}

		messages := hub.Pipeline.Messages()

		if showFormat != "" {
			return exportConversation(session, messages)
		}

		displayConversation(session, messages)
		return nil
	},
}

// findSession locates a session by id, or unique id prefix, across every
// available source.
func findSession(ctx context.Context, id string) (*model.Session, error) {
	projects := hub.Pipeline.ScanAllSources(ctx)

	var matches []model.Session
	for _, p := range projects {
		sessions, err := hub.Pipeline.Sessions(ctx, p.ProviderID, p.Path, p.ID, false)
		if err != nil {
			continue
		}
		for _, s := range sessions {
			if s.ID == id {
				found := s
				return &found, nil
			}
			if strings.HasPrefix(s.ID, id) {
				matches = append(matches, s)
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("session %q not found in any source", id)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("session id %q is ambiguous (%d matches), use a longer prefix", id, len(matches))
	}
}

func displayConversation(session *model.Session, messages []model.Message) {
	title := session.Metadata.Summary
	if title == "" {
		title = session.ID
	}
	fmt.Println(headerStyle.Render("💬 " + title))
	if session.Metadata.Workspace != "" {
		fmt.Println(workspaceStyle.Render("   " + session.Metadata.Workspace))
	}

	pagination := hub.Pipeline.Pagination()
	fmt.Println(dateStyle.Render(fmt.Sprintf("   %d of %d message(s), provider %s", len(messages), pagination.TotalCount, session.ProviderID)))
	fmt.Println()

	for _, msg := range messages {
		label := ""
		switch msg.Role {
		case model.RoleUser:
			label = userStyle.Render("You")
		case model.RoleAssistant:
			label = assistantStyle.Render("Assistant")
		default:
			label = dateStyle.Render(string(msg.Role))
		}

		when := ""
		if !msg.Timestamp.IsZero() {
			when = dateStyle.Render("  " + formatWhen(msg.Timestamp))
		}
		fmt.Println(label + when)

		if text := msg.PlainText(); text != "" {
			fmt.Println(indent(text, "  "))
		}
		for _, call := range msg.ToolCalls {
			fmt.Println(toolStyle.Render("  ⚙ " + call.Name))
		}
		fmt.Println()
	}

	if pagination.HasMore && !showAll {
		fmt.Println(idStyle.Render(fmt.Sprintf("💡 %d older message(s) not shown, pass --all to load everything", pagination.TotalCount-len(messages))))
	}
}

func exportConversation(session *model.Session, messages []model.Message) error {
	exporter, err := export.NewExporter(showFormat)
	if err != nil {
		return err
	}

	conv := &export.Conversation{Session: *session, Messages: messages}

	out := os.Stdout
	if showOutput != "" {
		f, err := os.Create(showOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := exporter.Export(conv, out); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if showOutput != "" {
		fmt.Println(successStyle.Render("✅ Exported"), len(messages), "message(s) to", showOutput)
	}
	return nil
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showAll, "all", false, "Load the entire conversation")
	showCmd.Flags().StringVar(&showFormat, "export", "", "Export format (jsonl, md, yaml, json)")
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "", "Output file (default: stdout)")
}
