// Package commands implements the querykit command-line interface.
package commands

import (
	"time"

	"github.com/marmos91/querykit/cmd/querykit/cmdutil"
	cachecmd "github.com/marmos91/querykit/cmd/querykit/commands/cache"
	configcmd "github.com/marmos91/querykit/cmd/querykit/commands/config"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "querykit",
	Short: "QueryKit - cached queries, background workers and preloading",
	Long: `QueryKit serves table queries from a stale-while-revalidate cache,
runs heavy transforms on a worker pool and warms the cache ahead of use
with a priority preloader.

"querykit start" runs the server. The other commands talk to a running
server through its admin API.

Use "querykit [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.ConfigFile, _ = cmd.Flags().GetString("config")
		cmdutil.Flags.ServerURL, _ = cmd.Flags().GetString("server")
		cmdutil.Flags.Token, _ = cmd.Flags().GetString("token")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		cmdutil.Flags.Timeout, _ = cmd.Flags().GetDuration("timeout")
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: $XDG_CONFIG_HOME/querykit/config.yaml)")
	rootCmd.PersistentFlags().String("server", "", "Server URL (default: http://localhost:<api.port>)")
	rootCmd.PersistentFlags().String("token", "", "Bearer token (default: a service_role token signed with api.jwt.secret)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Request timeout for client commands")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(workersCmd)
	rootCmd.AddCommand(preloadCmd)
	rootCmd.AddCommand(navigateCmd)
	rootCmd.AddCommand(cachecmd.Cmd)
	rootCmd.AddCommand(configcmd.Cmd)
	rootCmd.AddCommand(completionCmd)

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cmdutil.Flags.ConfigFile
}
