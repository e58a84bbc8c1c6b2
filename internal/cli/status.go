package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vaultrag/config"
	"vaultrag/internal/domain"
	"vaultrag/internal/usecase"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openForQuery(false)
	if err != nil {
		return err
	}
	defer a.Close()

	st := usecase.Status(a.index)
	cfg := GetConfig()
	fmt.Printf("Vault:       %s\n", GetRootDir())
	fmt.Printf("Index:       %s\n", config.IndexDBPath(GetRootDir()))
	fmt.Printf("Embedding:   %s/%s (%d-d)\n", cfg.Embedding.Provider, a.embedder.ModelName(), st.Dimension)
	fmt.Printf("Generation:  %d\n", st.Generation)
	fmt.Printf("Documents:   %d\n", st.Documents)
	fmt.Printf("Chunks:      %d\n", st.Chunks)
	for _, t := range domain.DocTypes {
		if n := st.ByType[string(t)]; n > 0 {
			fmt.Printf("  %-10s %d\n", t, n)
		}
	}

	if a.journal != nil {
		sessions, err := a.journal.Sessions(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Sessions:    %d journaled\n", len(sessions))
	}
	return nil
}
