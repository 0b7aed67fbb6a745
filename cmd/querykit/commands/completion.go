package commands

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for querykit.

Bash:
  $ querykit completion bash > /etc/bash_completion.d/querykit

Zsh:
  $ querykit completion zsh > "${fpath[1]}/_querykit"

Fish:
  $ querykit completion fish > ~/.config/fish/completions/querykit.fish

PowerShell:
  PS> querykit completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, out := cmd.Root(), cmd.OutOrStdout()
		gen := map[string]func() error{
			"bash":       func() error { return root.GenBashCompletionV2(out, true) },
			"zsh":        func() error { return root.GenZshCompletion(out) },
			"fish":       func() error { return root.GenFishCompletion(out, true) },
			"powershell": func() error { return root.GenPowerShellCompletionWithDesc(out) },
		}
		return gen[args[0]]()
	},
}
