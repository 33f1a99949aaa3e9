package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensesh/sessionhub/internal/app"
	"github.com/opensesh/sessionhub/internal/config"
	"github.com/opensesh/sessionhub/internal/logging"
)

var (
	verbose  bool
	stateDir string
	version  string = "dev"
	commit   string = "unknown"
	date     string = "unknown"
)

// hub is the shared application instance, built once per process in
// PersistentPreRunE and used by every subcommand.
var hub *app.App

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sessionhub",
	Short: "Browse and search AI coding assistant sessions from one place",
	Long: `A CLI tool that normalizes conversation logs from multiple AI coding
assistants (Claude Code, Cursor, Codex) into one universal model.

Register the directories the assistants write to as sources, then browse
projects and sessions, page through conversations, search across every
source at once, and export transcripts.

Quick Start:
  sessionhub sources add ~/.claude            # Register a source
  sessionhub projects                         # List projects across sources
  sessionhub search "database migration"      # Search every source
  sessionhub show <session-id> --export md    # Export a transcript

Settings are read from ` + config.Path(),
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.Verbose {
			verbose = true
		}
		if stateDir == "" {
			stateDir = cfg.StateDir
		}

		logger := logging.New(verbose)
		a, err := app.New(stateDir, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		if err := a.Initialize(); err != nil {
			return fmt.Errorf("failed to register providers: %w", err)
		}

		a.Pipeline.SetPageSize(cfg.Pipeline.PageSize)
		a.Pipeline.SetExcludeSidechain(cfg.Pipeline.ExcludeSidechain)
		hub = a
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "Custom state directory (default: user config dir)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
