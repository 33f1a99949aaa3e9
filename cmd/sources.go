package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	sourceName  string
	defaultRoot string
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage registered session sources",
	Long: `Manage the root directories sessionhub reads sessions from.

Each source is a path bound to exactly one provider, detected when the
source is added. The first source added becomes the default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSourcesList()
	},
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSourcesList()
	},
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Register a source root",
	Long: `Register a directory as a session source. The provider is detected
automatically from the directory's layout.

Pass a path, or use --default-root to register a provider's conventional
location (e.g. ~/.claude/projects for claude-code).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if defaultRoot != "" {
			src, err := hub.AddDefaultRoot(ctx, defaultRoot, sourceName)
			if err != nil {
				return fmt.Errorf("failed to add default root for %s: %w", defaultRoot, err)
			}
			fmt.Println(successStyle.Render("✅ Added source"), src.Name, idStyle.Render("("+src.ID+")"))
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("provide a path or --default-root <provider>")
		}

		src, err := hub.Sources.Add(ctx, args[0], sourceName)
		if err != nil {
			return fmt.Errorf("failed to add source: %w", err)
		}

		fmt.Println(successStyle.Render("✅ Added source"), src.Name, idStyle.Render("("+src.ID+")"))
		fmt.Printf("   Provider: %s\n", src.ProviderID)
		fmt.Printf("   Path:     %s\n", src.RootPath)
		if !src.IsAvailable {
			fmt.Println(warningStyle.Render("⚠️  Source registered but currently offline:"), src.ValidationError)
		} else {
			fmt.Printf("   Projects: %d, Sessions: %d\n", src.Stats.ProjectCount, src.Stats.SessionCount)
		}
		return nil
	},
}

var sourcesRemoveCmd = &cobra.Command{
	Use:   "remove <source-id>",
	Short: "Remove a registered source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := hub.Sources.Remove(args[0]); err != nil {
			return fmt.Errorf("failed to remove source: %w", err)
		}
		fmt.Println(successStyle.Render("✅ Removed source"), args[0])
		return nil
	},
}

var sourcesSetDefaultCmd = &cobra.Command{
	Use:   "set-default <source-id>",
	Short: "Mark a source as the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := hub.Sources.SetDefault(args[0]); err != nil {
			return fmt.Errorf("failed to set default: %w", err)
		}
		fmt.Println(successStyle.Render("✅ Default source is now"), args[0])
		return nil
	},
}

var sourcesSelectCmd = &cobra.Command{
	Use:   "select [source-id]",
	Short: "Select a source for subsequent browsing, or clear the selection",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		if err := hub.Sources.Select(id); err != nil {
			return fmt.Errorf("failed to select source: %w", err)
		}
		if id == "" {
			fmt.Println(successStyle.Render("✅ Selection cleared"))
		} else {
			fmt.Println(successStyle.Render("✅ Selected source"), id)
		}
		return nil
	},
}

var sourcesRefreshCmd = &cobra.Command{
	Use:   "refresh [source-id]",
	Short: "Re-scan sources and refresh health status",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(args) == 1 {
			if err := hub.Sources.Refresh(ctx, args[0]); err != nil {
				return fmt.Errorf("refresh failed: %w", err)
			}
		} else {
			hub.Sources.RefreshAll(ctx)
		}
		hub.Pipeline.ForceRefresh()
		return runSourcesList()
	},
}

func runSourcesList() error {
	sources := hub.Sources.List()
	if len(sources) == 0 {
		fmt.Println(headerStyle.Render("📋 No sources registered"))
		fmt.Println(idStyle.Render("💡 Tip: `sessionhub sources add <path>` or `sessionhub sources add --default-root claude-code`"))
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("📋 %d source(s)", len(sources))))
	fmt.Println()

	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Name")+"\t"+titleStyle.Render("Provider")+"\t"+titleStyle.Render("Health")+"\t"+titleStyle.Render("Projects")+"\t"+titleStyle.Render("Sessions")+"\t"+titleStyle.Render("Path")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 110))

	for _, src := range sources {
		name := src.Name
		if src.IsDefault {
			name += " *"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t\n",
			idStyle.Render(shortID(src.ID)),
			name,
			src.ProviderID,
			renderHealth(src.HealthStatus),
			src.Stats.ProjectCount,
			src.Stats.SessionCount,
			dateStyle.Render(src.RootPath),
		)
	}
	_ = w.Flush()
	fmt.Println()
	fmt.Println(idStyle.Render("💡 * marks the default source"))
	return nil
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesRemoveCmd)
	sourcesCmd.AddCommand(sourcesSetDefaultCmd)
	sourcesCmd.AddCommand(sourcesSelectCmd)
	sourcesCmd.AddCommand(sourcesRefreshCmd)

	sourcesAddCmd.Flags().StringVar(&sourceName, "name", "", "Display name for the source")
	sourcesAddCmd.Flags().StringVar(&defaultRoot, "default-root", "", "Register a provider's conventional root (claude-code, cursor, codex)")
}
