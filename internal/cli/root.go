package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vaultrag/config"
	"vaultrag/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "vaultrag",
	Short: "Vault RAG - search and chat over a folder of personal notes",
	Long: `vaultrag indexes a folder of Markdown, text and JSON notes into a vector
index, ranks results with semantic similarity plus filename, keyword and
document-type boosts, and assembles citation-checked context for a local
or OpenAI-compatible chat model.

Example usage:
  vaultrag index ~/vault                 # Build or update the index
  vaultrag query -q "mini pc"            # Ranked search
  vaultrag ask -q "what runs on the nas" # Grounded answer
  vaultrag serve --port 8000             # HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
		if verbose {
			logger.SetVerbose(true)
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <dir>/vaultrag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "vault directory (default is current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
