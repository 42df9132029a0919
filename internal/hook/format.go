package hook

import (
	"encoding/json"

	"github.com/dgerlanc/hookkit/internal/logger"
)

const denyFallback = `{"hookSpecificOutput":{"hookEventName":"PreToolUse","permissionDecision":"deny","permissionDecisionReason":"internal error"}}`

// FormatDeny returns the PreToolUse deny output.
func FormatDeny(reason string) string {
	out := Output{
		HookSpecificOutput: SpecificOutput{
			HookEventName:            EventPreToolUse,
			PermissionDecision:       DecisionDeny,
			PermissionDecisionReason: reason,
		},
	}
	if s := marshal(out); s != "" {
		return s
	}
	return denyFallback
}

// FormatContext returns output adding text to the assistant's context for
// the given event.
func FormatContext(event, text string) string {
	return marshal(Output{
		HookSpecificOutput: SpecificOutput{
			HookEventName:     event,
			AdditionalContext: text,
		},
	})
}

// FormatBlock returns the SubagentStop output that keeps the subagent
// running.
func FormatBlock(reason string) string {
	return marshal(BlockOutput{Decision: "block", Reason: reason})
}

func marshal(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Debug("failed to marshal output", "error", err)
		return ""
	}
	return string(data)
}
