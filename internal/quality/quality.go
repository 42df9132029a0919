// Package quality checks that a subagent's final output shows evidence of
// the work it claims to have done.
package quality

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// DefaultMinOutputChars is used when Gate.MinOutputChars is zero.
const DefaultMinOutputChars = 50

// Failure reasons.
const (
	ReasonTooBrief    = "Output too brief - provide more detail"
	ReasonUncertain   = "Contains uncertain language - provide evidence"
	ReasonNoEvidence  = "Missing evidence of work - show output/results"
	blockReasonFormat = "Quality check failed: %s. Please provide more detail with evidence of work."
)

var redFlags = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:should|would|could)\s+work`),
	regexp.MustCompile(`(?i)\bI (?:think|believe|assume)\b`),
	regexp.MustCompile(`(?i)\bdone[.!]?\s*$`),
}

var indicators = []*regexp.Regexp{
	regexp.MustCompile("```"),
	regexp.MustCompile(`(?i)(?:error|success|pass|fail)`),
	regexp.MustCompile(`(?i)(?:created|modified|updated|fixed)`),
	regexp.MustCompile(`(?i)\d+\s*(?:test|file|line)`),
}

// Gate holds the quality thresholds.
type Gate struct {
	MinOutputChars int
}

// Check returns "" when output passes, otherwise the reason it failed.
func (g Gate) Check(output string) string {
	min := g.MinOutputChars
	if min <= 0 {
		min = DefaultMinOutputChars
	}
	if utf8.RuneCountInString(output) < min {
		return ReasonTooBrief
	}
	for _, re := range redFlags {
		if re.MatchString(output) {
			return ReasonUncertain
		}
	}
	for _, re := range indicators {
		if re.MatchString(output) {
			return ""
		}
	}
	return ReasonNoEvidence
}

// BlockReason is the message sent back when a check fails.
func BlockReason(reason string) string {
	return fmt.Sprintf(blockReasonFormat, reason)
}
