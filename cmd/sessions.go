package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	sessionsProvider  string
	sessionsProjectID string
	sessionsForce     bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions <project-path>",
	Short: "List sessions in a project",
	Long: `List the sessions of one project, most recent first.

Project paths come from the output of 'sessionhub projects'. Results are
cached per project; pass --refresh to bypass the cache.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := hub.Pipeline.Sessions(cmd.Context(), sessionsProvider, args[0], sessionsProjectID, sessionsForce)
		if err != nil {
			return fmt.Errorf("failed to load sessions: %w", err)
		}

		if len(sessions) == 0 {
			fmt.Println(headerStyle.Render("📋 No sessions found"))
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("📋 Found %d session(s)", len(sessions))))
		fmt.Println()

		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Summary")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Last Activity")+"\t")
		_, _ = fmt.Fprintln(w, strings.Repeat("─", 100))

		for _, s := range sessions {
			summary := s.Metadata.Summary
			if summary == "" {
				summary = "Untitled"
			}
			summary = clip(summary, 50)

			last := dateStyle.Render("—")
			if !s.LastMessageAt.IsZero() {
				last = dateStyle.Render(formatWhen(s.LastMessageAt))
			}

			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
				idStyle.Render(shortID(s.ID)),
				summary,
				countStyle.Render(strconv.Itoa(s.MessageCount)),
				last,
			)
		}
		_ = w.Flush()
		fmt.Println()
		if len(sessions) > 0 {
			fmt.Println(idStyle.Render("💡 Tip: Use the full ID (e.g., ") +
				lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Render(sessions[0].ID) +
				idStyle.Render(") with `sessionhub show <id>`"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.Flags().StringVar(&sessionsProvider, "provider", "", "Provider id (claude-code, cursor, codex)")
	sessionsCmd.Flags().StringVar(&sessionsProjectID, "project-id", "", "Provider-native project id")
	sessionsCmd.Flags().BoolVar(&sessionsForce, "refresh", false, "Bypass the session cache")
	_ = sessionsCmd.MarkFlagRequired("provider")
}
