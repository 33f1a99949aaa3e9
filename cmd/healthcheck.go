package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/opensesh/sessionhub/internal/model"
)

var (
	healthcheckVerbose bool
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that sessionhub can reach every registered source",
	Long: `Check the health of sessionhub by verifying:
  • Provider adapters registered
  • Source state loaded
  • Each source root reachable and recognized by its provider
  • Session data accessible

This command is useful for debugging storage issues, especially in CI/CD environments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fmt.Println(sectionStyle.Render("🔍 Sessionhub Health Check"))
		fmt.Println()

		// Step 1: Providers
		fmt.Println(infoStyle.Render("Step 1: Checking registered providers..."))
		ids := hub.Registry.IDs()
		if len(ids) == 0 {
			fmt.Println(errorStyle.Render("❌ No provider adapters registered"))
			os.Exit(1)
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("✅ %d provider(s) registered", len(ids))))
		if healthcheckVerbose {
			for _, id := range ids {
				fmt.Printf("   • %s\n", id)
			}
		}
		fmt.Println()

		// Step 2: Sources
		fmt.Println(infoStyle.Render("Step 2: Checking registered sources..."))
		sources := hub.Sources.List()
		if len(sources) == 0 {
			fmt.Println(warningStyle.Render("⚠️  No sources registered"))
			fmt.Println("   Add one with: sessionhub sources add <path>")
			return nil
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("✅ %d source(s) registered", len(sources))))
		fmt.Println()

		// Step 3: Per-source reachability
		fmt.Println(infoStyle.Render("Step 3: Probing each source..."))
		unhealthy := 0
		for _, src := range sources {
			if err := hub.Sources.Refresh(ctx, src.ID); err != nil {
				unhealthy++
				fmt.Println(errorStyle.Render("❌ "+src.Name), dateStyle.Render(src.RootPath))
				fmt.Printf("   %v\n", err)
				continue
			}

			refreshed, err := hub.Sources.Get(src.ID)
			if err != nil {
				unhealthy++
				fmt.Println(errorStyle.Render("❌ "+src.Name), err)
				continue
			}

			switch refreshed.HealthStatus {
			case model.HealthHealthy:
				fmt.Println(successStyle.Render("✅ "+refreshed.Name),
					fmt.Sprintf("(%s, %d project(s), %d session(s))",
						refreshed.ProviderID, refreshed.Stats.ProjectCount, refreshed.Stats.SessionCount))
			case model.HealthDegraded:
				fmt.Println(warningStyle.Render("⚠️  "+refreshed.Name), "degraded")
			default:
				unhealthy++
				fmt.Println(errorStyle.Render("❌ "+refreshed.Name), "offline")
				if refreshed.ValidationError != "" {
					fmt.Printf("   %s\n", refreshed.ValidationError)
				}
			}
			if healthcheckVerbose {
				fmt.Printf("   Path: %s\n", refreshed.RootPath)
			}
		}
		fmt.Println()

		// Summary
		if unhealthy == 0 {
			fmt.Println(successStyle.Render("✅ All sources healthy"))
			return nil
		}
		fmt.Println(warningStyle.Render(fmt.Sprintf("⚠️  %d of %d source(s) unreachable", unhealthy, len(sources))))
		os.Exit(1)
		return nil
	},
}

// renderHealth colors a health status for table display.
func renderHealth(status model.HealthStatus) string {
	switch status {
	case model.HealthHealthy:
		return successStyle.Render("healthy")
	case model.HealthDegraded:
		return warningStyle.Render("degraded")
	default:
		return errorStyle.Render("offline")
	}
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckVerbose, "detail", false, "Show paths and per-provider detail")
}
