// Package cache implements the query cache subcommands.
package cache

import (
	"github.com/spf13/cobra"
)

// Cmd is the cache subcommand.
var Cmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and invalidate the query cache",
	Long: `Inspect and invalidate the query cache of a running server.

Subcommands:
  stats       Show cache size, keys and in-flight fetches
  invalidate  Remove entries by key, prefix or table`,
}

func init() {
	Cmd.AddCommand(statsCmd)
	Cmd.AddCommand(invalidateCmd)
}
