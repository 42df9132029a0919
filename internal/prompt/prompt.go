// Package prompt derives extra context for a submitted user prompt: the
// current time, thinking and autonomy instructions triggered by keywords,
// and a suggested skill.
package prompt

import (
	"regexp"
	"strings"
	"time"
)

// TimeFormat is the layout of the current-time line.
const TimeFormat = "2006-01-02 15:04:05"

type trigger struct {
	phrase      string
	instruction string
}

// Checked in order; the first phrase found wins, so "think hard" must come
// before "think".
var thinkingTriggers = []trigger{
	{"ultrathink", "Enable extended thinking with maximum depth."},
	{"think hard", "Enable extended thinking for this complex problem."},
	{"think", "Apply careful reasoning to this question."},
}

const (
	autonomousMode = "Mode: AUTONOMOUS - Execute end-to-end without checkpoints."
	supervisedMode = "Mode: SUPERVISED - Explain each action before executing."
)

// ThinkingInstruction returns the instruction for the first thinking trigger
// contained in p, or "".
func ThinkingInstruction(p string) string {
	lower := strings.ToLower(p)
	for _, t := range thinkingTriggers {
		if strings.Contains(lower, t.phrase) {
			return t.instruction
		}
	}
	return ""
}

// AutonomyMode returns the requested autonomy mode line, or "".
func AutonomyMode(p string) string {
	lower := strings.ToLower(p)
	switch {
	case strings.Contains(lower, "autonomous"), strings.Contains(lower, "handle it"):
		return autonomousMode
	case strings.Contains(lower, "step by step"), strings.Contains(lower, "supervise"):
		return supervisedMode
	}
	return ""
}

// Injector builds the context block for a prompt.
type Injector struct {
	Now func() time.Time
}

// Context returns the lines to attach to prompt, joined by newlines. The
// current time is always present.
func (i Injector) Context(prompt string) string {
	now := time.Now()
	if i.Now != nil {
		now = i.Now()
	}
	parts := []string{"Current time: " + now.Format(TimeFormat)}
	if s := ThinkingInstruction(prompt); s != "" {
		parts = append(parts, s)
	}
	if s := AutonomyMode(prompt); s != "" {
		parts = append(parts, s)
	}
	if s := SuggestSkill(prompt); s != "" {
		parts = append(parts, "Suggested skill: "+s)
	}
	return strings.Join(parts, "\n")
}

type skillRule struct {
	skill string
	re    *regexp.Regexp
}

// First match wins.
var skillRules = []skillRule{
	{"superpowers:systematic-debugging", regexp.MustCompile(`(?i)\b(?:bugs?|errors?|crash(?:es|ed|ing)?|exceptions?|broken|failing)\b`)},
	{"superpowers:brainstorming", regexp.MustCompile(`(?i)\b(?:brainstorm\w*|ideas?)\b`)},
	{"superpowers:test-driven-development", regexp.MustCompile(`(?i)\b(?:implement\w*|unit\s+tests?|write\s+tests?)\b`)},
	{"superpowers:requesting-code-review", regexp.MustCompile(`(?i)\breview\w*\b`)},
	{"superpowers:verification-before-completion", regexp.MustCompile(`(?i)\b(?:done|ready\s+to\s+merge)\b`)},
}

// SuggestSkill returns the skill that fits p best, or "" when nothing does.
func SuggestSkill(p string) string {
	for _, r := range skillRules {
		if r.re.MatchString(p) {
			return r.skill
		}
	}
	return ""
}
