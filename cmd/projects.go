package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	workspaceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects across all sources",
	Long:  `Scan every available source and list the projects found, newest activity first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		projects := hub.Pipeline.ScanAllSources(cmd.Context())
		if len(projects) == 0 {
			fmt.Println(headerStyle.Render("📋 No projects found"))
			fmt.Println(idStyle.Render("💡 Tip: register a source first with `sessionhub sources add <path>`"))
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("📋 Found %d project(s)", len(projects))))
		fmt.Println()

		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(w, titleStyle.Render("Name")+"\t"+titleStyle.Render("Provider")+"\t"+titleStyle.Render("Sessions")+"\t"+titleStyle.Render("Last Activity")+"\t"+titleStyle.Render("Path")+"\t")
		_, _ = fmt.Fprintln(w, strings.Repeat("─", 110))

		for _, p := range projects {
			name := clip(p.Name, 40)

			last := dateStyle.Render("—")
			if p.LastActivityAt != nil {
				last = dateStyle.Render(formatWhen(*p.LastActivityAt))
			}

			path := clipTail(p.Path, 50)

			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
				name,
				workspaceStyle.Render(p.ProviderID),
				countStyle.Render(strconv.Itoa(p.SessionCount)),
				last,
				dateStyle.Render(path),
			)
		}
		_ = w.Flush()
		fmt.Println()
		fmt.Println(idStyle.Render("💡 Tip: list a project's sessions with `sessionhub sessions --provider <id> <path>`"))
		return nil
	},
}

// formatWhen renders a timestamp relative to now, the way session lists
// show recency.
func formatWhen(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

// shortID trims generated ids to the first 8 chars for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// clip shortens a label to max runes with a trailing ellipsis.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// clipTail keeps the end of a path, eliding the front.
func clipTail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return "..." + string(runes[len(runes)-(max-3):])
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}
