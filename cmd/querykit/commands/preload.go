package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/querykit/cmd/querykit/cmdutil"
	"github.com/marmos91/querykit/pkg/preload"
	"github.com/spf13/cobra"
)

var preloadPriority string

var preloadCmd = &cobra.Command{
	Use:   "preload <url> [url ...]",
	Short: "Schedule resources for preloading",
	Long: `Schedule URLs on the server's preloader.

query://<table>?col=val warms the query cache, s3://<bucket>/<key> warms the
object cache, and http(s) URLs are fetched as prefetch requests. Duplicate
URLs inside the dedupe window are skipped.

Examples:
  querykit preload query://events?community_id=7
  querykit preload --priority low https://cdn.example.com/hero.webp s3://avatars/u/42.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPreload,
}

var navigateCmd = &cobra.Command{
	Use:   "navigate <route>",
	Short: "Report a navigation to trigger route preloads",
	Long: `Tell the server a client navigated to route. The URLs configured under
preload.routes for it are scheduled after the settle delay.

Examples:
  querykit navigate /events`,
	Args: cobra.ExactArgs(1),
	RunE: runNavigate,
}

func init() {
	preloadCmd.Flags().StringVarP(&preloadPriority, "priority", "p", "normal", "Priority (high|normal|low)")
}

func runPreload(cmd *cobra.Command, args []string) error {
	if _, err := preload.ParsePriority(preloadPriority); err != nil {
		return err
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	ctx, cancel := cmdutil.Context()
	defer cancel()

	result, err := client.Preload(ctx, preloadPriority, args...)
	if err != nil {
		return fmt.Errorf("failed to schedule preloads: %w", err)
	}

	msg := fmt.Sprintf("Scheduled %d of %d resources", result.Accepted, result.Requested)
	if skipped := result.Requested - result.Accepted; skipped > 0 {
		msg += fmt.Sprintf(" (%d duplicate or dropped)", skipped)
	}
	return cmdutil.PrintResourceWithSuccess(os.Stdout, result, msg)
}

func runNavigate(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	ctx, cancel := cmdutil.Context()
	defer cancel()

	if err := client.Navigate(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to report navigation: %w", err)
	}
	return cmdutil.PrintResourceWithSuccess(os.Stdout, map[string]string{"route": args[0]},
		fmt.Sprintf("Navigation to %s reported", args[0]))
}
