package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/opensesh/sessionhub/internal/pipeline"
)

var (
	statsProvider  string
	statsProject   string
	statsProjectID string
)

var statsCmd = &cobra.Command{
	Use:   "stats [session-id]",
	Short: "Show token usage statistics",
	Long: `Show token usage for one session, or for every session in a project
with --project. Providers that don't record token counts report zeroes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if statsProject != "" {
			if statsProvider == "" {
				return fmt.Errorf("--project requires --provider")
			}
			rows, err := hub.Pipeline.ProjectStats(ctx, statsProvider, statsProject, statsProjectID)
			if err != nil {
				return fmt.Errorf("failed to compute project stats: %w", err)
			}
			displayProjectStats(rows)
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("provide a session id or --project <path>")
		}

		session, err := findSession(ctx, args[0])
		if err != nil {
			return err
		}
		stats, err := hub.Pipeline.SessionStats(ctx, *session)
		if err != nil {
			return fmt.Errorf("failed to compute session stats: %w", err)
		}

		title := stats.Summary
		if title == "" {
			title = stats.SessionID
		}
		fmt.Println(headerStyle.Render("📊 " + title))
		fmt.Println()
		fmt.Printf("  Messages:        %s\n", countStyle.Render(strconv.Itoa(stats.MessageCount)))
		fmt.Printf("  Input tokens:    %s\n", countStyle.Render(strconv.Itoa(stats.InputTokens)))
		fmt.Printf("  Output tokens:   %s\n", countStyle.Render(strconv.Itoa(stats.OutputTokens)))
		if stats.CacheCreationTokens > 0 || stats.CacheReadTokens > 0 {
			fmt.Printf("  Cache creation:  %s\n", countStyle.Render(strconv.Itoa(stats.CacheCreationTokens)))
			fmt.Printf("  Cache read:      %s\n", countStyle.Render(strconv.Itoa(stats.CacheReadTokens)))
		}
		fmt.Printf("  Total:           %s\n", countStyle.Render(strconv.Itoa(stats.TotalTokens)))

		if len(stats.TokensByModel) > 0 {
			fmt.Println()
			fmt.Println(titleStyle.Render("  By model:"))
			models := make([]string, 0, len(stats.TokensByModel))
			for m := range stats.TokensByModel {
				models = append(models, m)
			}
			sort.Strings(models)
			for _, m := range models {
				fmt.Printf("    %-30s %s\n", m, countStyle.Render(strconv.Itoa(stats.TokensByModel[m])))
			}
		}

		if !stats.FirstMessageAt.IsZero() {
			fmt.Println()
			fmt.Println(dateStyle.Render(fmt.Sprintf("  %s → %s",
				stats.FirstMessageAt.Format("2006-01-02 15:04"),
				stats.LastMessageAt.Format("2006-01-02 15:04"))))
		}
		return nil
	},
}

func displayProjectStats(rows []pipeline.SessionTokenStats) {
	if len(rows) == 0 {
		fmt.Println(headerStyle.Render("📊 No sessions with usage data"))
		return
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("📊 %d session(s), heaviest first", len(rows))))
	fmt.Println()

	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Summary")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Input")+"\t"+titleStyle.Render("Output")+"\t"+titleStyle.Render("Total")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 100))

	for _, row := range rows {
		summary := row.Summary
		if summary == "" {
			summary = "Untitled"
		}
		summary = clip(summary, 40)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t\n",
			idStyle.Render(shortID(row.SessionID)),
			summary,
			row.MessageCount,
			row.InputTokens,
			row.OutputTokens,
			countStyle.Render(strconv.Itoa(row.TotalTokens)),
		)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsProvider, "provider", "", "Provider id, required with --project")
	statsCmd.Flags().StringVar(&statsProject, "project", "", "Project path to aggregate")
	statsCmd.Flags().StringVar(&statsProjectID, "project-id", "", "Provider-native project id")
}
