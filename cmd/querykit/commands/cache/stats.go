package cache

import (
	"fmt"
	"os"
	"strconv"

	"github.com/marmos91/querykit/cmd/querykit/cmdutil"
	"github.com/marmos91/querykit/internal/cli/output"
	"github.com/marmos91/querykit/pkg/apiclient"
	"github.com/spf13/cobra"
)

var showKeys bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Long: `Show the number of cached entries and fetches in flight.

Examples:
  querykit cache stats
  querykit cache stats --keys
  querykit cache stats -o json`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&showKeys, "keys", false, "List cached keys")
}

// statsTable renders cache stats, optionally followed by the keys.
type statsTable struct {
	stats *apiclient.CacheStats
	keys  bool
}

func (t statsTable) Headers() []string {
	if t.keys {
		return []string{"KEY"}
	}
	return nil
}

func (t statsTable) Rows() [][]string {
	if t.keys {
		rows := make([][]string, len(t.stats.Keys))
		for i, k := range t.stats.Keys {
			rows[i] = []string{k}
		}
		return rows
	}
	return output.KeyValues{
		{"Entries", strconv.Itoa(t.stats.Size)},
		{"Pending", strconv.Itoa(t.stats.Pending)},
	}.Rows()
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	ctx, cancel := cmdutil.Context()
	defer cancel()

	stats, err := client.CacheStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get cache stats: %w", err)
	}

	empty := showKeys && len(stats.Keys) == 0
	return cmdutil.PrintOutput(os.Stdout, stats, empty, "Cache is empty.", statsTable{stats: stats, keys: showKeys})
}
