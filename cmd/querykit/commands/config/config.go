// Package config implements the "querykit config" subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd groups the configuration subcommands. None of them contact a running
// server; they operate on the file named by --config or the default path.
var Cmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"cfg"},
	Short:   "Inspect and edit the configuration file",
	Long: `Inspect and edit the QueryKit configuration file.

Create one with 'querykit init', then:
  show      print the effective configuration (secrets redacted)
  validate  load, validate and summarize it
  schema    emit a JSON schema for editor completion
  edit      open it in $VISUAL or $EDITOR and re-validate`,
}

func init() {
	Cmd.AddCommand(showCmd, validateCmd, schemaCmd, editCmd)
}
