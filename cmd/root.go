// Package cmd implements the CLI commands for hookkit.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgerlanc/hookkit/internal/audit"
	"github.com/dgerlanc/hookkit/internal/config"
	"github.com/dgerlanc/hookkit/internal/logger"
)

var (
	// Global flags
	verbose    bool
	dryRun     bool
	noAuditLog bool
)

// ExitError makes Execute's caller exit with Code without printing anything.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hookkit",
	Short: "Safety and context hooks for Claude Code",
	Long: `hookkit is a single binary that answers every Claude Code hook event.

When called without arguments, it reads one hook event as JSON from stdin and
dispatches on hook_event_name:

  PreToolUse        deny dangerous Bash commands and edits to protected
                    files; warn about risky git operations
  PostToolUse       reformat edited shell scripts, name the formatter for
                    other files
  UserPromptSubmit  add the time, thinking and autonomy hints, a skill
  SessionStart      load git state, the previous session and progress notes
  Stop              archive a summary of the session
  PreCompact        archive key lines and warn before compaction
  SubagentStop      send weak subagent output back for more evidence

hookkit fails open: if the input cannot be read or a handler fails, the
error is logged and the tool call proceeds as if no hook were installed.
The exit status is always 0.

Run 'hookkit init' to write a config file and print the settings.json
snippet that installs the hooks.`,
	// Run the hook by default when no subcommand is given
	Run: runHook,
	// Silence usage on errors
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	// Initialize before running any command
	cobra.OnInitialize(initApp)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (debug logging to stderr)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Print a readable decision to stderr instead of JSON")
	rootCmd.PersistentFlags().BoolVar(&noAuditLog, "no-audit-log", false, "Disable audit logging")
}

// initApp initializes the application (config, logger, audit)
func initApp() {
	// Config comes first because it names the log file.
	initErr := config.Init()
	cfg := config.Get()

	logger.Init(logger.Options{Verbose: verbose, File: cfg.LogFile()})
	if initErr != nil {
		logger.Warn("using default configuration", "error", initErr)
	}

	if err := audit.Init(cfg.Paths.AuditLog, noAuditLog); err != nil {
		logger.Warn("audit log disabled", "error", err)
	}
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return verbose
}

// IsDryRun returns whether dry-run mode is enabled
func IsDryRun() bool {
	return dryRun
}
