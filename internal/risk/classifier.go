package risk

import (
	"fmt"
	"strings"
	"sync"
)

// Options configures a Classifier.
type Options struct {
	// ProtectedBranches are the refs a force push may never target. Nil
	// selects DefaultProtectedBranches; an empty non-nil slice protects
	// nothing.
	ProtectedBranches []string
	BranchMatch       BranchMatch
	// ExtraRules are appended to the built-in table. Deny rules are placed
	// after the built-in deny rules and warn rules after the built-in warn
	// rules, so severity ordering is preserved.
	ExtraRules []RuleSpec
	Sink       Sink
}

// Classifier evaluates commands against an immutable rule table.
type Classifier struct {
	rules []rule
	sink  Sink
}

// New builds the rule table and compiles every pattern. An invalid pattern,
// category or severity is reported here rather than during classification.
func New(opts Options) (*Classifier, error) {
	branches := opts.ProtectedBranches
	if branches == nil {
		branches = DefaultProtectedBranches
	}
	branches = cleanBranches(branches)

	mode := opts.BranchMatch
	if mode == "" {
		mode = BranchExact
	}
	if mode != BranchExact && mode != BranchSubstring {
		return nil, fmt.Errorf("unknown branch match mode %q", mode)
	}

	var extraDeny, extraWarn, extraAllow []RuleSpec
	for _, r := range opts.ExtraRules {
		switch r.Severity {
		case Deny:
			extraDeny = append(extraDeny, r)
		case Warn:
			extraWarn = append(extraWarn, r)
		case Allow:
			extraAllow = append(extraAllow, r)
		default:
			return nil, fmt.Errorf("rule %q: unknown severity %q", r.Name, r.Severity)
		}
	}

	var specs []RuleSpec
	specs = append(specs, groupA...)
	specs = append(specs, groupB(branches, mode)...)
	specs = append(specs, extraDeny...)
	specs = append(specs, groupC...)
	specs = append(specs, extraWarn...)
	specs = append(specs, extraAllow...)

	rules, err := compileTable(specs)
	if err != nil {
		return nil, err
	}
	if err := checkUniqueNames(rules); err != nil {
		return nil, err
	}

	sink := opts.Sink
	if sink == nil {
		sink = nopSink{}
	}
	return &Classifier{rules: rules, sink: sink}, nil
}

// MustNew is like New but panics on error.
func MustNew(opts Options) *Classifier {
	c, err := New(opts)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultClassifier = sync.OnceValue(func() *Classifier {
	return MustNew(Options{})
})

// Default returns a shared Classifier built from the default options.
func Default() *Classifier {
	return defaultClassifier()
}

// Classify returns the outcome of the first rule matching command. The empty
// string is always allowed.
func (c *Classifier) Classify(command string) Outcome {
	if command == "" {
		return Outcome{Decision: Allow}
	}
	for i := range c.rules {
		r := &c.rules[i]
		loc, err := r.match(command)
		if err != nil {
			c.sink.RuleFailed(r.spec.Name, err)
			continue
		}
		if loc != nil {
			return r.outcome(command, loc)
		}
	}
	return Outcome{Decision: Allow}
}

// Rules returns a copy of the compiled rule table in evaluation order.
func (c *Classifier) Rules() []RuleSpec {
	specs := make([]RuleSpec, len(c.rules))
	for i, r := range c.rules {
		specs[i] = r.spec
	}
	return specs
}

func cleanBranches(branches []string) []string {
	out := make([]string, 0, len(branches))
	for _, b := range branches {
		b = strings.TrimPrefix(strings.TrimSpace(b), "refs/heads/")
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

func checkUniqueNames(rules []rule) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if seen[r.spec.Name] {
			return fmt.Errorf("duplicate rule name %q", r.spec.Name)
		}
		seen[r.spec.Name] = true
	}
	return nil
}
