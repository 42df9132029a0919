package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for hookkit.

To load completions:

Bash:
  $ source <(hookkit completion bash)
  # To load completions for each session, execute once:
  # Linux:
  $ hookkit completion bash > /etc/bash_completion.d/hookkit
  # macOS:
  $ hookkit completion bash > $(brew --prefix)/etc/bash_completion.d/hookkit

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ hookkit completion zsh > "${fpath[1]}/_hookkit"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ hookkit completion fish | source
  # To load completions for each session, execute once:
  $ hookkit completion fish > ~/.config/fish/completions/hookkit.fish

PowerShell:
  PS> hookkit completion powershell | Out-String | Invoke-Expression
  # To load completions for every new session, run:
  PS> hookkit completion powershell > hookkit.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return rootCmd.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
