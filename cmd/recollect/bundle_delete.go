package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/hyperengineering/recollect/internal/store"
	"github.com/hyperengineering/recollect/internal/types"
	"github.com/hyperengineering/recollect/internal/validation"
	"github.com/spf13/cobra"
)

var deleteForce bool

var bundleDeleteCmd = &cobra.Command{
	Use:   "delete <uuid>",
	Short: "Delete a user's bundle",
	Long:  "Delete a user's bundle from the primary backend, or from the fallback when the primary cannot. Requires --force or interactive confirmation.",
	Args:  cobra.ExactArgs(1),
	RunE:  runBundleDelete,
}

func init() {
	bundleDeleteCmd.Flags().BoolVar(&deleteForce, "force", false,
		"Skip confirmation prompt")
}

func runBundleDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	uuid, err := validation.NormalizeUserID(args[0])
	if err != nil {
		return err
	}

	if !deleteForce {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintf(errOut, "WARNING: This will permanently delete the bundle for %q.\n", uuid)
		fmt.Fprint(errOut, "Type the uuid to confirm: ")

		reader := bufio.NewReader(cmd.InOrStdin())
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}

		if strings.TrimSpace(input) != uuid {
			fmt.Fprintln(errOut, "Aborted. uuid did not match.")
			return nil
		}
	}

	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.Delete(ctx, uuid)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), types.DeleteResponse{
			Success: res.Success,
			Status:  string(res.Status),
			UUID:    res.UUID,
		})
	}

	switch res.Status {
	case store.DeletedFromPrimary:
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted bundle %q\n", res.UUID)
	case store.DeletedFromFallback:
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted bundle %q from the fallback store\n", res.UUID)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "No bundle found for %q\n", res.UUID)
	}
	return nil
}
