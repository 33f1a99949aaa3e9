package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opensesh/sessionhub/internal/logging"
	"github.com/opensesh/sessionhub/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch source roots and refresh on change",
	Long: `Watch every registered source root for filesystem changes. When new
session data appears and the writes settle, sources are re-scanned and
the project cache is invalidated. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := logging.New(verbose)
		watcher, err := watch.New(func(ctx context.Context) error {
			hub.Sources.RefreshAll(ctx)
			hub.Pipeline.ForceRefresh()
			fmt.Println(successStyle.Render("✅ Sources refreshed"))
			return nil
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}

		sources := hub.Sources.Available()
		if len(sources) == 0 {
			return fmt.Errorf("no available sources to watch")
		}
		watched := 0
		for _, src := range sources {
			if err := watcher.AddRoot(src.RootPath); err == nil {
				watched++
				fmt.Println(infoStyle.Render("👀 Watching"), src.Name, dateStyle.Render(src.RootPath))
			}
		}
		if watched == 0 {
			return fmt.Errorf("no source roots could be watched")
		}

		if err := watcher.Start(ctx); err != nil {
			return err
		}
		fmt.Println(idStyle.Render("💡 Press Ctrl+C to stop"))

		<-ctx.Done()
		watcher.Stop()
		fmt.Println()
		fmt.Println(infoStyle.Render("Stopped watching"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
