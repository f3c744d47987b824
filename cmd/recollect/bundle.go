package main

import (
	"encoding/json"
	"io"
	"text/tabwriter"

	"github.com/hyperengineering/recollect/internal/store"
	"github.com/hyperengineering/recollect/internal/types"
	"github.com/spf13/cobra"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Manage stored conversation bundles",
	Long:  "List, inspect, mirror and delete per-user bundles without running the server.",
}

func init() {
	bundleCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")

	bundleCmd.AddCommand(bundleListCmd)
	bundleCmd.AddCommand(bundleInfoCmd)
	bundleCmd.AddCommand(bundleDeleteCmd)
	bundleCmd.AddCommand(bundleMirrorCmd)
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func toBundleSummary(s store.Summary) types.BundleSummary {
	out := types.BundleSummary{
		UUID:           s.UUID,
		Source:         s.Source,
		Revision:       s.Revision,
		EmbeddingShape: s.Shape,
	}
	if !s.CreatedAt.IsZero() {
		t := s.CreatedAt
		out.CreatedAt = &t
	}
	return out
}

// embeddingSize returns the raw float32 payload size for a shape.
func embeddingSize(s types.BundleSummary) uint64 {
	return uint64(s.EmbeddingShape[0]) * uint64(s.EmbeddingShape[1]) * 4
}
