// hookkit - safety and context hooks for Claude Code
//
// A single binary handles every hook event. It denies destructive Bash
// commands and edits to protected files, warns about risky git operations,
// and keeps session context across restarts and compactions.
//
// Usage in ~/.claude/settings.json (see `hookkit init` for all events):
//
//	"hooks": {
//	  "PreToolUse": [{
//	    "matcher": "Bash|Write|Edit|MultiEdit",
//	    "hooks": [{"type": "command", "command": "hookkit"}]
//	  }]
//	}
//
// Test:
//
//	echo '{"hook_event_name":"PreToolUse","tool_name":"Bash","tool_input":{"command":"rm -rf ~"}}' | hookkit
package main

import (
	"errors"
	"os"

	"github.com/dgerlanc/hookkit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
