package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgerlanc/hookkit/internal/config"
	"github.com/dgerlanc/hookkit/internal/constants"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hookkit configuration file",
	Long: `Initialize creates a new hookkit configuration file with default settings
and prints the settings.json snippet that installs hookkit for every event.

The config file is written to ~/.config/hookkit/config.toml (or the
directory named by the HOOKKIT_CONFIG environment variable).

Use --force to overwrite an existing configuration file.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config file")
}

// settingsSnippet installs hookkit for every event it handles.
const settingsSnippet = `{
  "hooks": {
    "PreToolUse": [{"matcher": "Bash|Write|Edit|MultiEdit|NotebookEdit", "hooks": [{"type": "command", "command": "hookkit"}]}],
    "PostToolUse": [{"matcher": "Write|Edit|MultiEdit", "hooks": [{"type": "command", "command": "hookkit"}]}],
    "UserPromptSubmit": [{"hooks": [{"type": "command", "command": "hookkit"}]}],
    "SessionStart": [{"hooks": [{"type": "command", "command": "hookkit"}]}],
    "Stop": [{"hooks": [{"type": "command", "command": "hookkit"}]}],
    "PreCompact": [{"hooks": [{"type": "command", "command": "hookkit"}]}],
    "SubagentStop": [{"hooks": [{"type": "command", "command": "hookkit"}]}]
  }
}`

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	configPath := filepath.Join(configDir, constants.ConfigFileName)

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := os.MkdirAll(configDir, constants.DirMode); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, config.GetDefaultConfig(), constants.FileMode); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration written to: %s\n", configPath)
	fmt.Fprintln(out, "Run 'hookkit validate' to verify your configuration.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Add this to ~/.claude/settings.json:")
	fmt.Fprintln(out, settingsSnippet)

	return nil
}
