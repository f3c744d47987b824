package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/hyperengineering/recollect/internal/types"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract <uuid> <file>",
	Short: "Index a conversation export for a user",
	Long:  "Parse a conversation export, embed every prompt and replace the user's stored bundle. Use - to read the export from stdin.",
	Args:  cobra.ExactArgs(2),
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func readExport(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return data, nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	raw, err := readExport(cmd, args[1])
	if err != nil {
		return err
	}

	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.Extract(ctx, args[0], raw)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), types.ExtractResponse{
			Success:        true,
			UUID:           res.UUID,
			DocumentCount:  res.DocumentCount,
			EmbeddingShape: res.EmbeddingShape,
			Revision:       res.Revision,
			Model:          res.Model,
			Overwrites:     res.Stats.Overwrites,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexed %s prompts for %q\n", humanize.Comma(int64(res.DocumentCount)), res.UUID)
	fmt.Fprintf(out, "  revision:   %s\n", res.Revision)
	fmt.Fprintf(out, "  embeddings: %d x %d (%s)\n",
		res.EmbeddingShape.Rows(), res.EmbeddingShape.Cols(),
		humanize.Bytes(uint64(res.EmbeddingShape.Rows()*res.EmbeddingShape.Cols()*4)))
	fmt.Fprintf(out, "  model:      %s\n", res.Model)
	if res.Stats.Overwrites > 0 {
		fmt.Fprintf(out, "  repeated prompts overwritten: %d\n", res.Stats.Overwrites)
	}
	return nil
}
