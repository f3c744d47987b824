package main

import (
	"context"
	"fmt"

	"github.com/hyperengineering/recollect/internal/types"
	"github.com/spf13/cobra"
)

var bundleMirrorCmd = &cobra.Command{
	Use:   "mirror <uuid>",
	Short: "Copy a bundle from the primary into the fallback store",
	Args:  cobra.ExactArgs(1),
	RunE:  runBundleMirror,
}

func runBundleMirror(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.Mirror(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), types.MirrorResponse{
			UUID:           res.UUID,
			Revision:       res.Revision,
			Backend:        res.Backend,
			EmbeddingShape: res.Shape,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Mirrored %q (revision %s, %d x %d) to %s\n",
		res.UUID, res.Revision, res.Shape.Rows(), res.Shape.Cols(), res.Backend)
	return nil
}
