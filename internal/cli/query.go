package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vaultrag/config"
	"vaultrag/internal/domain"
)

var (
	queryText  string
	queryTopK  int
	queryJSON  bool
	queryTypes []string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search indexed documents",
	Long: `Search the vault with hybrid ranking: semantic similarity plus filename,
keyword and document-type boosts.

Examples:
  vaultrag query -q "mini pc"
  vaultrag query -q "backup disks" --top-k 10 --json
  vaultrag query -q "spare cables" --prefer inventory`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().StringSliceVar(&queryTypes, "prefer", nil, "doc types to boost (default from config)")
	queryCmd.MarkFlagRequired("query")
}

// openForQuery opens an existing index for read commands.
func openForQuery(generator bool) (*app, error) {
	rootDir := GetRootDir()
	if _, err := os.Stat(config.IndexDBPath(rootDir)); os.IsNotExist(err) {
		return nil, fmt.Errorf("no index found. Run 'vaultrag index' first")
	}
	return openApp(GetConfig(), rootDir, openOptions{generator: generator})
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	a, err := openForQuery(false)
	if err != nil {
		return err
	}
	defer a.Close()

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}
	boost := cfg.Boost()
	if len(queryTypes) > 0 {
		boost.PreferTypes = nil
		for _, name := range queryTypes {
			t, ok := domain.ParseDocType(name)
			if !ok {
				return fmt.Errorf("%w: unknown doc type %q", domain.ErrInvalidConfig, name)
			}
			boost.PreferTypes = append(boost.PreferTypes, t)
		}
	}

	results, err := a.retriever.Search(cmd.Context(), queryText, topK, boost)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		if results == nil {
			results = []domain.SearchResult{}
		}
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		fmt.Printf("--- [%d] %s [%s] (score: %.2f = sim %.2f + kw %.2f + type %.2f) ---\n",
			i+1, r.SourceDocumentID, r.DocType, r.FinalScore, r.Similarity, r.KeywordScore, r.TypeBoost)
		if r.Section != "" {
			fmt.Printf("Section: %s\n", r.Section)
		}
		text := []rune(r.Body())
		if len(text) > 500 {
			text = append(text[:500], []rune("...")...)
		}
		fmt.Println(string(text))
		fmt.Println()
	}
	return nil
}
