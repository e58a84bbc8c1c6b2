package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vaultrag/internal/adapter/analyzer"
	"vaultrag/internal/usecase"
)

var (
	chatQuery   string
	chatSession string
	chatJSON    bool
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print the assembled context for a question",
	Long: `Retrieve evidence for a question and print the prompt that would be sent
to the chat model, without calling it.

Examples:
  vaultrag context -q "what is missing from my backup setup"
  vaultrag context -q "nas disks" --json`,
	RunE: runContext,
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a question answered from the vault",
	Long: `Answer a question with the configured chat model, grounded in vault
evidence. Pass --session to continue a conversation; a journal
(session.journal_path) keeps sessions across invocations.

Examples:
  vaultrag ask -q "how much ram does the mini pc have"
  vaultrag ask -q "and the cpu?" --session 0b6c...`,
	RunE: runAsk,
}

func init() {
	for _, cmd := range []*cobra.Command{contextCmd, askCmd} {
		rootCmd.AddCommand(cmd)
		cmd.Flags().StringVarP(&chatQuery, "query", "q", "", "question (required)")
		cmd.Flags().StringVarP(&chatSession, "session", "s", "", "session id")
		cmd.Flags().BoolVar(&chatJSON, "json", false, "output as JSON")
		cmd.MarkFlagRequired("query")
	}
}

func runContext(cmd *cobra.Command, args []string) error {
	a, err := openForQuery(false)
	if err != nil {
		return err
	}
	defer a.Close()

	bundle, err := a.chat.Context(cmd.Context(), chatSession, chatQuery)
	if err != nil {
		return err
	}

	if chatJSON {
		output, _ := json.MarshalIndent(bundle, "", "  ")
		fmt.Println(string(output))
		return nil
	}
	prompt := usecase.Render(bundle)
	fmt.Println(prompt)
	fmt.Fprintf(os.Stderr, "\n%d evidence chunks, %d dropped, ~%d tokens\n",
		len(bundle.Evidence), bundle.Dropped, analyzer.NewTokenizer().CountTokens(prompt))
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := openForQuery(true)
	if err != nil {
		return err
	}
	defer a.Close()

	reply, err := a.chat.Ask(cmd.Context(), chatSession, chatQuery)
	if err != nil {
		return err
	}

	if chatJSON {
		output, _ := json.MarshalIndent(reply, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(reply.Response)
	if len(reply.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range reply.Sources {
			fmt.Printf("  - %s (%s, relevance %.2f)\n", s.Source, s.SourceID, s.Relevance)
		}
	}
	fmt.Printf("\nSession: %s\n", reply.SessionID)
	return nil
}
