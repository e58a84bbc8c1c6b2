package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	verifyFile  string
	verifyClaim string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check whether a document supports a claim",
	Long: `Search for a claim and report the best matching chunk from the named
document, if any.

Example:
  vaultrag verify --file "Mini PC.md" --claim "32GB RAM"`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyFile, "file", "", "document file name or vault path (required)")
	verifyCmd.Flags().StringVar(&verifyClaim, "claim", "", "claim to check (required)")
	verifyCmd.MarkFlagRequired("file")
	verifyCmd.MarkFlagRequired("claim")
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := openForQuery(false)
	if err != nil {
		return err
	}
	defer a.Close()

	v, err := a.verify.Verify(cmd.Context(), verifyFile, verifyClaim)
	if err != nil {
		return err
	}
	output, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(output))
	return nil
}
