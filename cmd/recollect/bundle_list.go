package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/hyperengineering/recollect/internal/types"
	"github.com/spf13/cobra"
)

var bundleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bundles in the primary and fallback backends",
	Args:  cobra.NoArgs,
	RunE:  runBundleList,
}

func runBundleList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	summaries, err := rt.List(ctx)
	if err != nil {
		return fmt.Errorf("list bundles: %w", err)
	}

	bundles := make([]types.BundleSummary, len(summaries))
	for i, s := range summaries {
		bundles[i] = toBundleSummary(s)
	}
	sort.SliceStable(bundles, func(i, j int) bool {
		return bundles[i].UUID < bundles[j].UUID
	})

	stats, err := rt.Stats(ctx)
	if err != nil {
		return fmt.Errorf("count bundles: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"bundles": bundles,
			"total":   len(bundles),
			"stats":   stats,
		})
	}

	if len(bundles) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No bundles found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "UUID\tSOURCE\tPROMPTS\tDIMS\tSIZE\tCREATED")
	for _, b := range bundles {
		created := "-"
		if b.CreatedAt != nil {
			created = humanize.Time(*b.CreatedAt)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			b.UUID,
			b.Source,
			humanize.Comma(int64(b.EmbeddingShape[0])),
			b.EmbeddingShape[1],
			humanize.Bytes(embeddingSize(b)),
			created,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s: %s, %s: %s\n",
		stats.PrimaryBackend, pluralBundles(stats.PrimaryCount),
		stats.FallbackBackend, pluralBundles(stats.FallbackCount),
	)
	return nil
}

func pluralBundles(n int64) string {
	if n == 1 {
		return "1 bundle"
	}
	return humanize.Comma(n) + " bundles"
}
