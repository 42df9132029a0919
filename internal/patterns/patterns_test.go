package patterns

import (
	"errors"
	"regexp"
	"testing"
)

func TestBuildFlagPattern(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"positional arg", "<arg>", `\S+\s+`},
		{"simple flag", "-f", `-f\s+`},
		{"flag with arg", "-C <arg>", `-C\s*\S+\s+`},
		{"long name flag", "--no-pager", `--no-pager\s+`},
		{"long name with arg", "--git-dir <arg>", `--git-dir\s*\S+\s+`},
		{"whitespace trimming", "  -f  ", `-f\s+`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildFlagPattern(tt.input)
			if got != tt.expected {
				t.Errorf("BuildFlagPattern(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestBuildAlternation(t *testing.T) {
	tests := []struct {
		name     string
		words    []string
		expected string
	}{
		{"two words", []string{"main", "master"}, `(?:main|master)`},
		{"meta characters quoted", []string{"release.1"}, `(?:release\.1)`},
		{"blank words dropped", []string{"main", " ", ""}, `(?:main)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildAlternation(tt.words)
			if got != tt.expected {
				t.Errorf("BuildAlternation(%v) = %q, want %q", tt.words, got, tt.expected)
			}
		})
	}
}

func TestBuildNamedAlternation(t *testing.T) {
	got := BuildNamedAlternation("branch", []string{"main", "production"})
	want := `(?P<branch>main|production)`
	if got != want {
		t.Fatalf("BuildNamedAlternation() = %q, want %q", got, want)
	}

	re := regexp.MustCompile(got)
	m := re.FindStringSubmatch("production")
	if m == nil || m[re.SubexpIndex("branch")] != "production" {
		t.Errorf("expected named group to capture production, got %v", m)
	}
}

func TestBuildSimplePattern(t *testing.T) {
	tests := []struct {
		name     string
		cmd      string
		expected string
	}{
		{"single word", "mkfs", `\bmkfs\b`},
		{"phrase", "terraform destroy", `\bterraform\s+destroy\b`},
		{"extra whitespace", "  terraform   destroy ", `\bterraform\s+destroy\b`},
		{"meta characters", "a.b", `\ba\.b\b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildSimplePattern(tt.cmd)
			if got != tt.expected {
				t.Errorf("BuildSimplePattern(%q) = %q, want %q", tt.cmd, got, tt.expected)
			}
		})
	}
}

func TestBuildSimplePattern_Regex(t *testing.T) {
	tests := []struct {
		name    string
		cmd     string
		input   string
		matches bool
	}{
		{"exact match", "terraform destroy", "terraform destroy", true},
		{"inside a chain", "terraform destroy", "cd infra && terraform  destroy -auto-approve", true},
		{"word boundary", "terraform destroy", "terraform destroyer", false},
		{"different command", "terraform destroy", "terraform plan", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pattern := BuildSimplePattern(tt.cmd)
			re := regexp.MustCompile(pattern)
			got := re.MatchString(tt.input)
			if got != tt.matches {
				t.Errorf("Pattern %q matching %q = %v, want %v", pattern, tt.input, got, tt.matches)
			}
		})
	}
}

func TestBuildSubcommandPattern(t *testing.T) {
	tests := []struct {
		name        string
		cmd         string
		subcommands []string
		flags       []string
		expected    string
	}{
		{
			name:        "single subcommand",
			cmd:         "git",
			subcommands: []string{"push"},
			expected:    `\bgit\s+(?:push)\b`,
		},
		{
			name:        "several subcommands",
			cmd:         "git",
			subcommands: []string{"filter-branch", "filter-repo"},
			expected:    `\bgit\s+(?:filter-branch|filter-repo)\b`,
		},
		{
			name:        "with flags",
			cmd:         "git",
			subcommands: []string{"reset"},
			flags:       []string{"-C <arg>", "--no-pager"},
			expected:    `\bgit\s+(?:-C\s*\S+\s+|--no-pager\s+)*(?:reset)\b`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildSubcommandPattern(tt.cmd, tt.subcommands, tt.flags)
			if got != tt.expected {
				t.Errorf("BuildSubcommandPattern() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestBuildSubcommandPattern_Regex(t *testing.T) {
	flags := []string{"-C <arg>", "-c <arg>", "--no-pager"}
	tests := []struct {
		name    string
		input   string
		matches bool
	}{
		{"bare subcommand", "git push", true},
		{"global flag before subcommand", "git -C /repo push origin", true},
		{"several global flags in any order", "git --no-pager -c core.x=y -C repo push", true},
		{"inside a chain", "make && git push", true},
		{"other subcommand", "git pull", false},
		{"prefix of longer word", "git pushx", false},
		{"not git", "legit push", false},
	}

	pattern := BuildSubcommandPattern("git", []string{"push"}, flags)
	re := regexp.MustCompile(pattern)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := re.MatchString(tt.input)
			if got != tt.matches {
				t.Errorf("Pattern %q matching %q = %v, want %v", pattern, tt.input, got, tt.matches)
			}
		})
	}
}

func TestCompile(t *testing.T) {
	p, err := Compile(`\bmkfs\b`, "format")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if p.Name != "format" {
		t.Errorf("Name = %q, want %q", p.Name, "format")
	}
	if p.Pattern != `\bmkfs\b` {
		t.Errorf("Pattern = %q, want original pattern", p.Pattern)
	}
	if !p.Regex.MatchString("MKFS.ext4 /dev/sda1") {
		t.Error("expected compiled pattern to be case-insensitive")
	}
}

func TestCompileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		wantErr error
	}{
		{"empty", "", ErrEmptyPattern},
		{"whitespace only", "   ", ErrEmptyPattern},
		{"matches empty string", `x*`, ErrMatchesEmpty},
		{"optional everything", `(?:rm)?`, ErrMatchesEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.pattern, tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Compile(%q) error = %v, want %v", tt.pattern, err, tt.wantErr)
			}
		})
	}
}

func TestCompileSyntaxError(t *testing.T) {
	if _, err := Compile(`rm (`, "broken"); err == nil {
		t.Error("expected error for invalid regex")
	}
}

func TestMustCompilePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected MustCompile to panic on an invalid pattern")
		}
	}()
	MustCompile(`(`, "broken")
}
