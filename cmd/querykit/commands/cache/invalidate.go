package cache

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/marmos91/querykit/cmd/querykit/cmdutil"
	"github.com/marmos91/querykit/internal/cli/prompt"
	"github.com/marmos91/querykit/pkg/apiclient"
	"github.com/spf13/cobra"
)

var (
	invalidateKey    string
	invalidatePrefix string
	invalidateTable  string
	invalidateAll    bool
	invalidateForce  bool
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Remove cache entries",
	Long: `Remove cache entries so the next query reads the source again.

Exactly one of --key, --prefix, --table or --all must be given.

Examples:
  # Drop every cached read of the events table
  querykit cache invalidate --table events

  # Drop a single entry
  querykit cache invalidate --key 'events:community_id:"7"'

  # Empty the cache without confirmation
  querykit cache invalidate --all --force`,
	RunE: runInvalidate,
}

func init() {
	invalidateCmd.Flags().StringVar(&invalidateKey, "key", "", "Exact cache key")
	invalidateCmd.Flags().StringVar(&invalidatePrefix, "prefix", "", "Key prefix")
	invalidateCmd.Flags().StringVar(&invalidateTable, "table", "", "Table name")
	invalidateCmd.Flags().BoolVar(&invalidateAll, "all", false, "Clear the whole cache")
	invalidateCmd.Flags().BoolVarP(&invalidateForce, "force", "f", false, "Skip confirmation for --all")
	invalidateCmd.MarkFlagsMutuallyExclusive("key", "prefix", "table", "all")
	invalidateCmd.MarkFlagsOneRequired("key", "prefix", "table", "all")
}

type invalidateResult struct {
	Removed int `json:"removed"`
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	if invalidateAll && !invalidateForce {
		ok, err := prompt.Confirm("Clear the whole cache?", false)
		if err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("\nAborted.")
				return nil
			}
			return err
		}
		if !ok {
			return nil
		}
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	ctx, cancel := cmdutil.Context()
	defer cancel()

	removed, err := invalidate(ctx, client)
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return fmt.Errorf("key %q is not cached", invalidateKey)
		}
		return fmt.Errorf("failed to invalidate: %w", err)
	}

	return cmdutil.PrintResourceWithSuccess(os.Stdout, invalidateResult{Removed: removed},
		fmt.Sprintf("Removed %d cache entries", removed))
}

func invalidate(ctx context.Context, client *apiclient.Client) (int, error) {
	switch {
	case invalidateKey != "":
		if err := client.InvalidateKey(ctx, invalidateKey); err != nil {
			return 0, err
		}
		return 1, nil
	case invalidatePrefix != "":
		return client.InvalidatePrefix(ctx, invalidatePrefix)
	case invalidateTable != "":
		return client.InvalidateTable(ctx, invalidateTable)
	default:
		return client.ClearCache(ctx)
	}
}
