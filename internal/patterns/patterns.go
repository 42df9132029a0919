// Package patterns provides functions for building and compiling the regex
// patterns used by the risk rule table.
//
// Rule patterns scan the whole command string, so unlike anchored allow-list
// patterns they start at a word boundary rather than at ^. Every pattern is
// compiled case-insensitively.
package patterns

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmptyPattern is returned when a pattern string is empty.
var ErrEmptyPattern = errors.New("empty pattern")

// ErrMatchesEmpty is returned when a pattern matches the empty string and
// would therefore match every command.
var ErrMatchesEmpty = errors.New("pattern matches the empty string")

// Pattern holds a compiled regex and its description.
type Pattern struct {
	Regex   *regexp.Regexp
	Name    string
	Pattern string // original pattern string, without the case-insensitive prefix
}

// BuildFlagPattern converts a flag specification to one regex alternative.
// "-f" becomes `-f\s+`
// "-C <arg>" becomes `-C\s*\S+\s+` (allows -Cdir or -C dir)
// "<arg>" becomes `\S+\s+` (positional argument)
// "" (empty) becomes ""
func BuildFlagPattern(flag string) string {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		return ""
	}
	if flag == "<arg>" {
		return `\S+\s+`
	}
	if strings.HasSuffix(flag, " <arg>") {
		flagName := strings.TrimSuffix(flag, " <arg>")
		return regexp.QuoteMeta(flagName) + `\s*\S+\s+`
	}
	return regexp.QuoteMeta(flag) + `\s+`
}

// BuildAlternation joins literal words into a non-capturing alternation.
// ["main", "master"] becomes `(?:main|master)`.
func BuildAlternation(words []string) string {
	return "(?:" + quoteAll(words) + ")"
}

// BuildNamedAlternation is like BuildAlternation but captures the match
// under name so rule templates can refer to it as $name.
func BuildNamedAlternation(name string, words []string) string {
	return "(?P<" + name + ">" + quoteAll(words) + ")"
}

// BuildSimplePattern creates an unanchored regex for a command phrase.
// "terraform destroy" becomes `\bterraform\s+destroy\b`
func BuildSimplePattern(cmd string) string {
	fields := strings.Fields(cmd)
	for i, f := range fields {
		fields[i] = regexp.QuoteMeta(f)
	}
	return `\b` + strings.Join(fields, `\s+`) + `\b`
}

// BuildSubcommandPattern creates a regex for a command with subcommands,
// allowing any number of the given global flags between them in any order.
// cmd="git", subcommands=["push"], flags=["-C <arg>"] becomes
// `\bgit\s+(?:-C\s*\S+\s+)*(?:push)\b`
func BuildSubcommandPattern(cmd string, subcommands []string, flags []string) string {
	var alts []string
	for _, f := range flags {
		if p := BuildFlagPattern(f); p != "" {
			alts = append(alts, p)
		}
	}

	var flagPatterns string
	if len(alts) > 0 {
		flagPatterns = "(?:" + strings.Join(alts, "|") + ")*"
	}

	return `\b` + regexp.QuoteMeta(cmd) + `\s+` + flagPatterns + BuildAlternation(subcommands) + `\b`
}

// Compile compiles a pattern string case-insensitively into a Pattern with
// the given name. It rejects empty patterns and patterns that match the
// empty string.
func Compile(pattern, name string) (Pattern, error) {
	if strings.TrimSpace(pattern) == "" {
		return Pattern{}, fmt.Errorf("%s: %w", name, ErrEmptyPattern)
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Pattern{}, fmt.Errorf("%s: %w", name, err)
	}
	if re.MatchString("") {
		return Pattern{}, fmt.Errorf("%s: %w", name, ErrMatchesEmpty)
	}
	return Pattern{Regex: re, Name: name, Pattern: pattern}, nil
}

// MustCompile is like Compile but panics if the pattern is invalid.
func MustCompile(pattern, name string) Pattern {
	p, err := Compile(pattern, name)
	if err != nil {
		panic(err)
	}
	return p
}

func quoteAll(words []string) string {
	escaped := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		escaped = append(escaped, regexp.QuoteMeta(w))
	}
	return strings.Join(escaped, "|")
}
