package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/querykit/cmd/querykit/cmdutil"
	"github.com/marmos91/querykit/internal/cli/output"
	"github.com/marmos91/querykit/pkg/apiclient"
	"github.com/spf13/cobra"
)

var (
	querySort   string
	queryDesc   bool
	queryLimit  int
	queryOffset int
	querySearch string
	querySelect string
)

var queryCmd = &cobra.Command{
	Use:   "query <table> [column=value ...]",
	Short: "Query a table through the cache",
	Long: `Read a table through the server's query cache.

Arguments after the table name are equality filters. Filtered reads are
cached per filter set; sorting, paging, search and column selection run on
the worker pool over the cached rows.

Examples:
  # Open events of one community
  querykit query events community_id=7 status=open

  # Ten most liked posts, two columns
  querykit query posts --sort likes --desc --limit 10 --select id,title

  # As JSON
  querykit query events -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&querySort, "sort", "", "Sort by column")
	queryCmd.Flags().BoolVar(&queryDesc, "desc", false, "Sort descending")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "Maximum rows to return")
	queryCmd.Flags().IntVar(&queryOffset, "offset", 0, "Rows to skip")
	queryCmd.Flags().StringVar(&querySearch, "search", "", "Case-insensitive text search across string columns")
	queryCmd.Flags().StringVar(&querySelect, "select", "", "Comma-separated columns to return")
}

func runQuery(cmd *cobra.Command, args []string) error {
	table := args[0]
	filters, err := cmdutil.ParseFilters(args[1:])
	if err != nil {
		return err
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	ctx, cancel := cmdutil.Context()
	defer cancel()

	columns := cmdutil.ParseCommaSeparatedList(querySelect)
	result, err := client.Query(ctx, table, filters, apiclient.QueryOptions{
		Sort:   querySort,
		Desc:   queryDesc,
		Limit:  queryLimit,
		Offset: queryOffset,
		Search: querySearch,
		Select: columns,
	})
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}

	return cmdutil.PrintOutput(os.Stdout, result, result.Count == 0, "No rows.",
		output.RecordTable{Columns: columns, Records: result.Rows})
}
