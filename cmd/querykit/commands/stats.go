package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/marmos91/querykit/cmd/querykit/cmdutil"
	"github.com/marmos91/querykit/internal/cli/output"
	"github.com/marmos91/querykit/pkg/apiclient"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache, worker and preload statistics",
	Long: `Show a snapshot of the running server: cache size, worker pool load,
offloaded transforms and preload queue depths.

Examples:
  querykit stats
  querykit stats -o yaml`,
	RunE: runStats,
}

// statsView renders apiclient.Stats as label/value lines.
type statsView struct{ *apiclient.Stats }

func (v statsView) Headers() []string { return nil }

func (v statsView) Rows() [][]string {
	s := v.Stats
	return output.KeyValues{
		{"Cache entries", strconv.Itoa(s.Cache.Size)},
		{"Cache pending", strconv.Itoa(s.Cache.Pending)},
		{"Pool", fmt.Sprintf("%s (%d workers)", s.Pool.Name, s.Pool.Size)},
		{"Pool busy/queued", fmt.Sprintf("%d/%d", s.Pool.Busy, s.Pool.Queued)},
		{"Offload running", fmt.Sprintf("%d/%d", s.Offload.Running, s.Offload.Capacity)},
		{"Preload pending", fmt.Sprintf("high=%d normal=%d low=%d", s.Preload.PendingHigh, s.Preload.PendingNormal, s.Preload.PendingLow)},
		{"Preload done", fmt.Sprintf("completed=%d failed=%d dropped=%d", s.Preload.Completed, s.Preload.Failed, s.Preload.Dropped)},
	}.Rows()
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	ctx, cancel := cmdutil.Context()
	defer cancel()

	stats, err := client.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}
	return cmdutil.PrintOutput(os.Stdout, stats, false, "", statsView{stats})
}
