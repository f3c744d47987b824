package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var bundleInfoCmd = &cobra.Command{
	Use:   "info <uuid>",
	Short: "Show details and search readiness for one bundle",
	Args:  cobra.ExactArgs(1),
	RunE:  runBundleInfo,
}

func runBundleInfo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	sum, err := rt.Describe(ctx, args[0])
	if err != nil {
		return err
	}
	health, err := rt.Health(ctx, sum.UUID)
	if err != nil {
		return err
	}

	b := toBundleSummary(*sum)
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"bundle":           b,
			"status":           health.Status,
			"ready_for_search": health.ReadyForSearch(),
			"model":            rt.ModelName(),
		})
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintf(w, "UUID:\t%s\n", b.UUID)
	fmt.Fprintf(w, "Source:\t%s\n", b.Source)
	fmt.Fprintf(w, "Revision:\t%s\n", valueOrDash(b.Revision))
	fmt.Fprintf(w, "Prompts:\t%s\n", humanize.Comma(int64(b.EmbeddingShape[0])))
	fmt.Fprintf(w, "Embeddings:\t%d x %d (%s)\n", b.EmbeddingShape[0], b.EmbeddingShape[1], humanize.Bytes(embeddingSize(b)))
	if b.CreatedAt != nil {
		fmt.Fprintf(w, "Created:\t%s (%s)\n", b.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(*b.CreatedAt))
	} else {
		fmt.Fprintf(w, "Created:\t-\n")
	}
	fmt.Fprintf(w, "Status:\t%s\n", health.Status)
	return w.Flush()
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
