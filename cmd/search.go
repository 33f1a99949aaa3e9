package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensesh/sessionhub/internal/model"
	"github.com/opensesh/sessionhub/internal/provider"
)

var (
	searchRoles  []string
	searchAfter  string
	searchBefore string
	searchMax    int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search messages across all sources",
	Long: `Search message text across every available source in parallel. Matching
is case-insensitive substring. Sources that fail are skipped; results
from the rest are merged newest first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filters, err := buildSearchFilters()
		if err != nil {
			return err
		}

		results := hub.Pipeline.SearchAllSources(ctx, args[0], filters)
		if len(results) == 0 {
			fmt.Println(headerStyle.Render("🔍 No matches"))
			return nil
		}

		sessions := hub.Pipeline.ResolveSearchSessions(ctx, results)

		fmt.Println(headerStyle.Render(fmt.Sprintf("🔍 %d match(es)", len(results))))
		fmt.Println()

		for _, r := range results {
			context := snippet(r.Message.PlainText(), args[0], 120)

			summary := ""
			if s, ok := sessions[r.Message.SessionID]; ok {
				summary = s.Metadata.Summary
			}
			if summary == "" {
				summary = shortID(r.Message.SessionID)
			}

			when := "—"
			if !r.Message.Timestamp.IsZero() {
				when = formatWhen(r.Message.Timestamp)
			}

			fmt.Println(titleStyle.Render(summary) + dateStyle.Render("  "+when+"  ") + workspaceStyle.Render(r.ProviderID))
			fmt.Println("  " + context)
			fmt.Println(idStyle.Render("  session " + r.Message.SessionID))
			fmt.Println()
		}
		return nil
	},
}

func buildSearchFilters() (provider.SearchFilters, error) {
	filters := provider.SearchFilters{MaxResults: searchMax}

	for _, role := range searchRoles {
		filters.Roles = append(filters.Roles, model.MessageRole(role))
	}
	if searchAfter != "" {
		t, err := time.Parse("2006-01-02", searchAfter)
		if err != nil {
			return filters, fmt.Errorf("invalid --after date (want YYYY-MM-DD): %w", err)
		}
		filters.After = &t
	}
	if searchBefore != "" {
		t, err := time.Parse("2006-01-02", searchBefore)
		if err != nil {
			return filters, fmt.Errorf("invalid --before date (want YYYY-MM-DD): %w", err)
		}
		filters.Before = &t
	}
	return filters, nil
}

// snippet returns a window of text around the first occurrence of query,
// collapsed to one line.
func snippet(text, query string, width int) string {
	text = strings.Join(strings.Fields(text), " ")
	idx := strings.Index(strings.ToLower(text), strings.ToLower(query))
	if idx < 0 {
		idx = 0
	}

	start := idx - width/3
	if start < 0 {
		start = 0
	}
	end := start + width
	if end > len(text) {
		end = len(text)
	}

	out := text[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(text) {
		out += "..."
	}
	return out
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringSliceVar(&searchRoles, "role", nil, "Filter by role (user, assistant), repeatable")
	searchCmd.Flags().StringVar(&searchAfter, "after", "", "Only messages after this date (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchBefore, "before", "", "Only messages before this date (YYYY-MM-DD)")
	searchCmd.Flags().IntVar(&searchMax, "max", 100, "Maximum results per source")
}
