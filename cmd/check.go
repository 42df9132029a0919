package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgerlanc/hookkit/internal/config"
	"github.com/dgerlanc/hookkit/internal/hook"
	"github.com/dgerlanc/hookkit/internal/risk"
)

var checkExitCode bool

var checkCmd = &cobra.Command{
	Use:   "check [command...]",
	Short: "Classify a shell command",
	Long: `Check classifies a shell command with the configured rules and prints the
decision.

The arguments are joined into one command. Without arguments, every line
of stdin is classified as a separate command.

With --exit-code, check exits with status 2 when any command is denied.`,
	Example: `  hookkit check git push --force origin main
  printf 'git status\nrm -rf ~\n' | hookkit check`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkExitCode, "exit-code", false, "Exit with status 2 if a command is denied")
	// Flags after the first argument belong to the command being checked.
	checkCmd.Flags().SetInterspersed(false)
}

type checkStyles struct {
	deny, warn, allow, detail lipgloss.Style
}

func newCheckStyles(color bool) checkStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return checkStyles{plain, plain, plain, plain}
	}
	return checkStyles{
		deny:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		warn:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		allow:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		detail: lipgloss.NewStyle().Faint(true),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runCheck(cmd *cobra.Command, args []string) error {
	classifier, err := config.Get().NewClassifier(hook.LogSink{})
	if err != nil {
		return fmt.Errorf("failed to build classifier: %w", err)
	}

	var commands []string
	if len(args) > 0 {
		commands = []string{strings.Join(args, " ")}
	} else {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				commands = append(commands, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read commands: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	styles := newCheckStyles(isTerminal(out))
	denied := false
	for _, c := range commands {
		o := classifier.Classify(c)
		printOutcome(out, styles, c, o)
		if o.Decision == risk.Deny {
			denied = true
		}
	}

	if denied && checkExitCode {
		return &ExitError{Code: 2}
	}
	return nil
}

func printOutcome(w io.Writer, s checkStyles, command string, o risk.Outcome) {
	switch o.Decision {
	case risk.Deny:
		fmt.Fprintf(w, "%s %s\n", s.deny.Render("DENY "), command)
		fmt.Fprintln(w, s.detail.Render(fmt.Sprintf("      %s [%s]", o.Reason, o.Rule)))
	case risk.Warn:
		fmt.Fprintf(w, "%s %s\n", s.warn.Render("WARN "), command)
		fmt.Fprintln(w, s.detail.Render(fmt.Sprintf("      %s [%s]", o.Suggestion, o.Rule)))
	default:
		fmt.Fprintf(w, "%s %s\n", s.allow.Render("ALLOW"), command)
	}
}
