package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"vectorchat/internal/usecase"
)

type searchOptions struct {
	query      string
	topK       int
	jsonOutput bool
}

func newSearchCmd(a *app) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Show the stored chunks closest to a query",
		Long: `Embed the query and print the nearest stored chunks with their scores.
No score threshold is applied.

Examples:
  vectorchat search -q "capital of France"
  vectorchat search -q "capital of France" -k 10 --json`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSearch(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "search query (required)")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "number of results (default from config)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "output results as JSON")
	return cmd
}

func (a *app) runSearch(cmd *cobra.Command, opts *searchOptions) error {
	if strings.TrimSpace(opts.query) == "" {
		return usageError("--query is required")
	}
	if opts.topK < 0 {
		return usageError("--top-k must be positive, got %d", opts.topK)
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	k := opts.topK
	if k == 0 {
		k = a.cfg.Retrieve.TopK
	}

	embedder, err := a.newEmbedder()
	if err != nil {
		return err
	}
	st, err := a.newReadStore()
	if err != nil {
		return err
	}
	defer st.Close()

	uc := usecase.NewRetrieveUseCase(embedder, st, k, 0, 0)
	results, err := uc.Search(cmd.Context(), opts.query, k)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		data, err := json.MarshalIndent(usecase.ToScoredResults(results), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintf(out, "No results for: %s\n", opts.query)
		return nil
	}

	fmt.Fprintf(out, "Found %d results for: %s\n\n", len(results), opts.query)
	for i, r := range results {
		fmt.Fprintf(out, "--- [%d] %s chunk %d/%d (score: %.2f) ---\n",
			i+1, r.Payload.Source, r.Payload.ChunkIndex+1, r.Payload.TotalChunks, r.Score)
		fmt.Fprintln(out, r.Payload.Text)
		fmt.Fprintln(out)
	}
	return nil
}
