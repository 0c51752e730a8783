package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for client2login.

To load completions:

Bash:
  $ source <(client2login completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ client2login completion bash > /etc/bash_completion.d/client2login
  # macOS:
  $ client2login completion bash > $(brew --prefix)/etc/bash_completion.d/client2login

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ client2login completion zsh > "${fpath[1]}/_client2login"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ client2login completion fish | source

  # To load completions for each session, execute once:
  $ client2login completion fish > ~/.config/fish/completions/client2login.fish
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
