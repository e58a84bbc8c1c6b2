package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"vaultrag/config"
	"vaultrag/internal/usecase"
)

var indexFull bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index vault documents for retrieval",
	Long: `Index documents in the specified vault directory.
The index is stored in .vaultrag/index.db within the vault.

Without --full only new, modified and deleted documents are processed.
A full rebuild is forced when the embedding model or chunking settings
changed since the index was built.

Examples:
  vaultrag index .              # Update the index for the current directory
  vaultrag index ~/vault --full # Re-embed every document`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexFull, "full", false, "rebuild the whole index")
}

func resolveVault(args []string) (string, error) {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return "", fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", path)
	}
	return path, nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	path, err := resolveVault(args)
	if err != nil {
		return err
	}

	a, err := openApp(GetConfig(), path, openOptions{clearStale: true})
	if err != nil {
		return err
	}
	defer a.Close()

	full := indexFull || a.stale || a.index.Snapshot().Len() == 0
	fmt.Printf("Scanning %s...\n", path)

	var result *usecase.IndexResult
	if full {
		result, err = a.indexer.Rebuild(cmd.Context(), path, newProgress())
	} else {
		result, err = a.indexer.Update(cmd.Context(), path)
	}
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	printIndexResult(result)
	fmt.Printf("\nIndex stored at: %s\n", config.IndexDBPath(path))
	return nil
}

func printIndexResult(result *usecase.IndexResult) {
	fmt.Printf("\nIndexing complete (generation %d):\n", result.Generation)
	fmt.Printf("  Files indexed:  %d\n", result.FilesIndexed)
	fmt.Printf("  Files skipped:  %d (unchanged)\n", result.FilesSkipped)
	fmt.Printf("  Files deleted:  %d (removed)\n", result.FilesDeleted)
	fmt.Printf("  Chunks written: %d\n", result.ChunksWritten)
	if result.ChunksDeleted > 0 {
		fmt.Printf("  Chunks deleted: %d\n", result.ChunksDeleted)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}

// newProgress returns an embedding progress callback backed by a progress
// bar that is created once the total is known.
func newProgress() usecase.Progress {
	var (
		bar       *progressbar.ProgressBar
		mu        sync.Mutex
		startTime time.Time
	)

	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		_ = bar.Set(done)

		if done > 0 && done < total {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
