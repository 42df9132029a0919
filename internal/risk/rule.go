package risk

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/dgerlanc/hookkit/internal/patterns"
)

// RuleSpec describes one entry of the rule table.
//
// Pattern and Exclude are regular expressions matched case-insensitively;
// use (?-i:...) to pin a flag letter whose case changes its meaning. A match
// is discarded when Exclude matches the matched text. Description and
// Suggestion may refer to named groups of Pattern as $name.
type RuleSpec struct {
	Name        string   `json:"name" yaml:"name" toml:"name"`
	Pattern     string   `json:"pattern" yaml:"pattern" toml:"pattern"`
	Exclude     string   `json:"exclude,omitempty" yaml:"exclude,omitempty" toml:"exclude"`
	Category    Category `json:"category" yaml:"category" toml:"category"`
	Severity    Decision `json:"severity" yaml:"severity" toml:"severity"`
	Description string   `json:"description" yaml:"description" toml:"description"`
	Suggestion  string   `json:"suggestion,omitempty" yaml:"suggestion,omitempty" toml:"suggestion"`
}

// ErrRuleOrder is returned when a rule of lower severity precedes one of
// higher severity.
var ErrRuleOrder = errors.New("rule table out of order")

type rule struct {
	spec    RuleSpec
	re      *regexp.Regexp
	exclude *regexp.Regexp
}

func compileRule(spec RuleSpec) (rule, error) {
	if spec.Name == "" {
		return rule{}, errors.New("rule has no name")
	}
	if !spec.Category.Valid() {
		return rule{}, fmt.Errorf("rule %q: unknown category %q", spec.Name, spec.Category)
	}
	if spec.Severity.rank() < 0 {
		return rule{}, fmt.Errorf("rule %q: unknown severity %q", spec.Name, spec.Severity)
	}
	switch spec.Severity {
	case Deny:
		if spec.Description == "" {
			return rule{}, fmt.Errorf("rule %q: deny rules need a description", spec.Name)
		}
	case Warn:
		if spec.Suggestion == "" {
			return rule{}, fmt.Errorf("rule %q: warn rules need a suggestion", spec.Name)
		}
	}

	p, err := patterns.Compile(spec.Pattern, spec.Name)
	if err != nil {
		return rule{}, fmt.Errorf("compiling pattern: %w", err)
	}
	r := rule{spec: spec, re: p.Regex}
	if spec.Exclude != "" {
		x, err := patterns.Compile(spec.Exclude, spec.Name+" exclude")
		if err != nil {
			return rule{}, fmt.Errorf("compiling exclude: %w", err)
		}
		r.exclude = x.Regex
	}
	return r, nil
}

// compileTable compiles specs in order and checks that severities never
// decrease down the table.
func compileTable(specs []RuleSpec) ([]rule, error) {
	rules := make([]rule, 0, len(specs))
	prev := Deny
	for _, s := range specs {
		r, err := compileRule(s)
		if err != nil {
			return nil, err
		}
		if s.Severity.rank() < prev.rank() {
			return nil, fmt.Errorf("%w: %s rule %q follows a %s rule", ErrRuleOrder, s.Severity, s.Name, prev)
		}
		prev = s.Severity
		rules = append(rules, r)
	}
	return rules, nil
}

// match returns the submatch indices of the first non-excluded match. A
// panic is converted to an error so one broken rule cannot take down the
// caller.
func (r *rule) match(cmd string) (loc []int, err error) {
	defer func() {
		if p := recover(); p != nil {
			loc, err = nil, fmt.Errorf("rule %q: panic during match: %v", r.spec.Name, p)
		}
	}()

	for _, m := range r.re.FindAllStringSubmatchIndex(cmd, -1) {
		if r.exclude != nil && r.exclude.MatchString(cmd[m[0]:m[1]]) {
			continue
		}
		return m, nil
	}
	return nil, nil
}

func (r *rule) expand(tmpl, cmd string, loc []int) string {
	if tmpl == "" {
		return ""
	}
	return string(r.re.ExpandString(nil, tmpl, cmd, loc))
}

func (r *rule) outcome(cmd string, loc []int) Outcome {
	o := Outcome{
		Decision:    r.spec.Severity,
		Category:    r.spec.Category,
		Rule:        r.spec.Name,
		Description: r.expand(r.spec.Description, cmd, loc),
		Match:       cmd[loc[0]:loc[1]],
		MatchStart:  loc[0],
		MatchEnd:    loc[1],
	}
	switch o.Decision {
	case Deny:
		o.Reason = "Blocked " + r.spec.Category.Label() + ": " + o.Description
	case Warn:
		o.Suggestion = r.expand(r.spec.Suggestion, cmd, loc)
	case Allow:
		o = Outcome{Decision: Allow}
	}
	return o
}
