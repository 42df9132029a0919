// Package risk classifies shell command strings as allowed, warned or denied.
//
// A Classifier holds an ordered rule table that is compiled once by New and
// never mutated afterwards, so Classify is safe for concurrent use. Rules are
// evaluated top to bottom against the whole command string and the first
// match wins. Deny rules always precede warn rules, which precede allow rules.
//
// The package performs no I/O. Failures while evaluating a rule are reported
// to the Sink supplied in Options and the rule is treated as not matching.
package risk

import (
	"fmt"
	"strings"
)

// Decision is the verdict for a command.
type Decision string

const (
	Allow Decision = "allow"
	Warn  Decision = "warn"
	Deny  Decision = "deny"
)

// rank orders decisions the way they must appear in a rule table.
func (d Decision) rank() int {
	switch d {
	case Deny:
		return 0
	case Warn:
		return 1
	case Allow:
		return 2
	}
	return -1
}

// ParseDecision converts a configuration string to a Decision.
func ParseDecision(s string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(s)))
	if d.rank() < 0 {
		return "", fmt.Errorf("unknown severity %q (want deny, warn or allow)", s)
	}
	return d, nil
}

// Category groups rules by the kind of damage they guard against.
type Category string

const (
	DestructiveFS       Category = "destructive-fs"
	ForkBomb            Category = "fork-bomb"
	DiskOverwrite       Category = "disk-overwrite"
	RemoteCodeExec      Category = "remote-code-exec"
	GitHistoryRewrite   Category = "git-history-rewrite"
	GitForcePush        Category = "git-force-push"
	GitDestructiveLocal Category = "git-destructive-local"
	GitCaution          Category = "git-caution"
)

var categoryLabels = map[Category]string{
	DestructiveFS:       "destructive filesystem operation",
	ForkBomb:            "fork bomb",
	DiskOverwrite:       "raw disk overwrite",
	RemoteCodeExec:      "remote code execution",
	GitHistoryRewrite:   "git history rewrite",
	GitForcePush:        "git force push",
	GitDestructiveLocal: "destructive local git operation",
	GitCaution:          "risky git operation",
}

// Categories returns every known category in a stable order.
func Categories() []Category {
	return []Category{
		DestructiveFS, ForkBomb, DiskOverwrite, RemoteCodeExec,
		GitHistoryRewrite, GitForcePush, GitDestructiveLocal, GitCaution,
	}
}

// Label returns the human-readable name of the category.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Outcome is the result of classifying one command.
//
// Reason is set only for Deny and Suggestion only for Warn. Category, Rule,
// Description and Match are informational and empty for Allow.
type Outcome struct {
	Decision    Decision `json:"decision"`
	Reason      string   `json:"reason,omitempty"`
	Suggestion  string   `json:"suggestion,omitempty"`
	Category    Category `json:"category,omitempty"`
	Rule        string   `json:"rule,omitempty"`
	Description string   `json:"description,omitempty"`
	Match       string   `json:"match,omitempty"`
	// MatchStart and MatchEnd are the byte offsets of Match in the
	// classified command.
	MatchStart int `json:"-"`
	MatchEnd   int `json:"-"`
}

// Sink receives rule evaluation failures. Implementations must be safe for
// concurrent use when the Classifier is shared.
type Sink interface {
	RuleFailed(rule string, err error)
}

type nopSink struct{}

func (nopSink) RuleFailed(string, error) {}

// BranchMatch controls how protected branch names are recognised in a push.
type BranchMatch string

const (
	// BranchExact requires the whole ref to equal a protected name, so
	// "maintenance" is not treated as "main".
	BranchExact BranchMatch = "exact"
	// BranchSubstring treats any ref containing a protected name as
	// protected.
	BranchSubstring BranchMatch = "substring"
)

// ParseBranchMatch converts a configuration string to a BranchMatch. The
// empty string selects BranchExact.
func ParseBranchMatch(s string) (BranchMatch, error) {
	switch m := BranchMatch(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return BranchExact, nil
	case BranchExact, BranchSubstring:
		return m, nil
	}
	return "", fmt.Errorf("unknown branch_match %q (want exact or substring)", s)
}

// DefaultProtectedBranches are used when Options.ProtectedBranches is nil.
var DefaultProtectedBranches = []string{"main", "master", "production", "release"}
