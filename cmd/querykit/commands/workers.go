package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/marmos91/querykit/cmd/querykit/cmdutil"
	"github.com/marmos91/querykit/pkg/apiclient"
	"github.com/spf13/cobra"
)

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Worker pool commands",
}

var workersStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show worker pool load",
	Long: `Show the transform pool's workers and queue, and how many transforms
are running on ephemeral workers.

Examples:
  querykit workers stats`,
	RunE: runWorkersStats,
}

func init() {
	workersCmd.AddCommand(workersStatsCmd)
}

// workersTable renders the pool and the offloader as two rows.
type workersTable struct{ *apiclient.WorkerStats }

func (t workersTable) Headers() []string {
	return []string{"POOL", "SIZE", "AVAILABLE", "BUSY", "QUEUED"}
}

func (t workersTable) Rows() [][]string {
	p, o := t.Pool, t.Offload
	return [][]string{
		{p.Name, strconv.Itoa(p.Size), strconv.Itoa(p.Available), strconv.Itoa(p.Busy), strconv.Itoa(p.Queued)},
		{"offload", strconv.Itoa(o.Capacity), strconv.Itoa(o.Capacity - o.Running), strconv.Itoa(o.Running), "-"},
	}
}

func runWorkersStats(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	ctx, cancel := cmdutil.Context()
	defer cancel()

	stats, err := client.WorkerStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get worker stats: %w", err)
	}
	return cmdutil.PrintOutput(os.Stdout, stats, false, "", workersTable{stats})
}
