package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperengineering/recollect/internal/service"
	"github.com/hyperengineering/recollect/internal/types"
	"github.com/hyperengineering/recollect/internal/validation"
	"github.com/spf13/cobra"
)

var searchTopK int

var searchCmd = &cobra.Command{
	Use:   "search <uuid> <query>",
	Short: "Find the stored prompts most similar to a query",
	Args:  cobra.ExactArgs(2),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0,
		"Number of results (0 uses the configured default)")
	searchCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	uuid, query := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if errs := validation.ValidateSearchRequest(query, searchTopK, cfg.Search.MaxTopK); len(errs) > 0 {
		return fmt.Errorf("invalid search: %s %s", errs[0].Field, errs[0].Message)
	}

	rt, err := service.Open(ctx, cfg, newLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.Search(ctx, uuid, query, searchTopK)
	if err != nil {
		return err
	}

	if jsonOutput {
		hits := make([]types.SearchHit, len(res.Results))
		for i, m := range res.Results {
			hits[i] = types.SearchHit{Key: m.Key, Similarity: m.Similarity, Content: m.Content}
		}
		return printJSON(cmd.OutOrStdout(), types.SearchResponse{
			Results:      hits,
			Query:        res.Query,
			TotalResults: res.TotalResults,
		})
	}

	if res.TotalResults == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "RANK\tSIMILARITY\tPROMPT\tRESPONSE")
	for i, m := range res.Results {
		fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", i+1, m.Similarity, truncate(m.Key, 48), truncate(m.Content, 64))
	}
	return w.Flush()
}

// truncate shortens s to at most n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
