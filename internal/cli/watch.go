package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vaultrag/internal/adapter/fs"
	"vaultrag/internal/domain"
	"vaultrag/internal/logger"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Keep the index up to date as documents change",
	Long: `Bring the index up to date, then watch the vault and re-index changed
documents until interrupted.

Example:
  vaultrag watch ~/vault`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "delay before re-indexing a burst of changes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	path, err := resolveVault(args)
	if err != nil {
		return err
	}
	a, err := openApp(GetConfig(), path, openOptions{clearStale: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.stale || a.index.Snapshot().Len() == 0 {
		_, err = a.indexer.Rebuild(ctx, path, newProgress())
	} else {
		_, err = a.indexer.Update(ctx, path)
	}
	if err != nil {
		return fmt.Errorf("initial indexing failed: %w", err)
	}

	w, err := fs.NewWatcher(path, a.walker, watchDebounce)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	logger.Info("watching %s (Ctrl+C to stop)", path)

	return w.Run(ctx, func(paths []string) {
		reindex(ctx, a, path, paths)
	})
}

func reindex(ctx context.Context, a *app, root string, paths []string) {
	res, err := a.indexer.IndexFiles(ctx, root, paths)
	switch {
	case errors.Is(err, domain.ErrRebuildInProgress):
		logger.Warn("index busy; %d changed files will be picked up by the next update", len(paths))
	case err != nil:
		logger.Error("re-index failed: %v", err)
	default:
		for _, e := range res.Errors {
			logger.Warn("%s", e)
		}
	}
}
