package hook

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Hook event names.
const (
	EventPreToolUse       = "PreToolUse"
	EventPostToolUse      = "PostToolUse"
	EventUserPromptSubmit = "UserPromptSubmit"
	EventSessionStart     = "SessionStart"
	EventStop             = "Stop"
	EventPreCompact       = "PreCompact"
	EventSubagentStop     = "SubagentStop"
)

// Tool names.
const (
	ToolBash         = "Bash"
	ToolWrite        = "Write"
	ToolEdit         = "Edit"
	ToolMultiEdit    = "MultiEdit"
	ToolNotebookEdit = "NotebookEdit"
)

// Permission decisions.
const DecisionDeny = "deny"

// LenientString decodes any JSON value. Strings keep their value; numbers,
// objects, arrays, booleans and null decode to "".
type LenientString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *LenientString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		*s = ""
		return nil
	}
	*s = LenientString(v)
	return nil
}

// ToolInput is the tool_input field of tool events.
type ToolInput struct {
	Command      LenientString `json:"command"`
	Description  LenientString `json:"description,omitempty"`
	FilePath     LenientString `json:"file_path"`
	NotebookPath LenientString `json:"notebook_path"`
}

// UnmarshalJSON implements json.Unmarshaler. A tool_input that is not an
// object decodes to the zero value.
func (t *ToolInput) UnmarshalJSON(data []byte) error {
	*t = ToolInput{}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	type plain ToolInput
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	*t = ToolInput(p)
	return nil
}

// Path returns the file the tool operates on.
func (t ToolInput) Path() string {
	if t.FilePath != "" {
		return string(t.FilePath)
	}
	return string(t.NotebookPath)
}

// Input is the JSON payload of every hook event. Fields that do not apply
// to an event are left empty.
type Input struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Cwd            string `json:"cwd"`
	PermissionMode string `json:"permission_mode"`
	HookEventName  string `json:"hook_event_name"`

	// PreToolUse and PostToolUse
	ToolName     string          `json:"tool_name"`
	ToolInput    ToolInput       `json:"tool_input"`
	ToolUseID    string          `json:"tool_use_id"`
	ToolResponse json.RawMessage `json:"tool_response,omitempty"`

	// UserPromptSubmit
	Prompt LenientString `json:"prompt"`

	// SessionStart
	Source string `json:"source,omitempty"`

	// PreCompact
	Trigger            string        `json:"trigger,omitempty"`
	Context            LenientString `json:"context"`
	OriginalTokenCount float64       `json:"original_token_count"`
	TargetTokenCount   float64       `json:"target_token_count"`

	// SubagentStop
	Output LenientString `json:"output"`

	// Stop and SubagentStop
	StopHookActive bool `json:"stop_hook_active"`
}

// ToolSucceeded reports whether tool_response says the tool succeeded. A
// missing or non-boolean success field counts as success.
func (in Input) ToolSucceeded() bool {
	return gjson.GetBytes(in.ToolResponse, "success").Type != gjson.False
}

// Output is the hookSpecificOutput envelope.
type Output struct {
	HookSpecificOutput SpecificOutput `json:"hookSpecificOutput"`
}

// SpecificOutput carries a permission decision or extra context.
type SpecificOutput struct {
	HookEventName            string `json:"hookEventName"`
	PermissionDecision       string `json:"permissionDecision,omitempty"`
	PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
	AdditionalContext        string `json:"additionalContext,omitempty"`
}

// BlockOutput is the top-level decision used by SubagentStop.
type BlockOutput struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}
