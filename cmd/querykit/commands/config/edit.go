package config

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/marmos91/querykit/pkg/config"
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open configuration in editor",
	Long: `Open the configuration file in $VISUAL or $EDITOR (falling back to vi),
then load it again and report whether the edited file is still valid.

Examples:
  querykit config edit
  querykit config edit --config /etc/querykit/config.yaml`,
	RunE: runConfigEdit,
}

// editorCommand returns the editor argv, honoring editors configured with
// arguments such as "code --wait".
func editorCommand() []string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if fields := strings.Fields(os.Getenv(env)); len(fields) > 0 {
			return fields
		}
	}
	return []string{"vi"}
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}
	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("configuration file not found: %s\n\n"+
			"Create it first with:\n"+
			"  querykit init --config %s", configPath, configPath)
	}

	argv := append(editorCommand(), configPath)
	editor := exec.CommandContext(cmd.Context(), argv[0], argv[1:]...)
	editor.Stdin, editor.Stdout, editor.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := editor.Run(); err != nil {
		return fmt.Errorf("failed to run editor %q: %w", argv[0], err)
	}

	if _, err := config.MustLoad(configPath); err != nil {
		return fmt.Errorf("edited configuration is invalid: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved and valid: %s\n", configPath)
	return nil
}
