package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgerlanc/hookkit/internal/hook"
	"github.com/dgerlanc/hookkit/internal/risk"
)

// runHook is the default command: it handles one event read from stdin.
// It never fails; see the fail-open note in the root help text.
func runHook(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d := hook.New(hook.Options{DryRun: dryRun})
	res := d.Process(ctx, os.Stdin)

	if dryRun {
		describe(os.Stderr, res)
		return
	}
	if res.Output != "" {
		fmt.Fprintln(os.Stdout, res.Output)
	}
}

// describe writes a readable summary of res for --dry-run.
func describe(w io.Writer, res hook.Result) {
	if res.Err != nil {
		fmt.Fprintf(w, "ERROR (ignored, no output): %v\n", res.Err)
		return
	}
	if res.Event == hook.EventPreToolUse {
		switch o := res.Outcome; o.Decision {
		case risk.Deny:
			fmt.Fprintf(w, "DENY [%s]: %s\n", o.Rule, o.Reason)
		case risk.Warn:
			fmt.Fprintf(w, "WARN [%s]: %s\n", o.Rule, o.Suggestion)
		default:
			fmt.Fprintln(w, "ALLOW")
		}
		return
	}
	if res.Output == "" {
		fmt.Fprintf(w, "%s: (no output)\n", eventName(res.Event))
		return
	}
	fmt.Fprintf(w, "%s:\n%s\n", eventName(res.Event), res.Output)
}

func eventName(e string) string {
	if e == "" {
		return "(unknown event)"
	}
	return e
}
