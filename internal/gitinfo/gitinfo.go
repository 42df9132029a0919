// Package gitinfo reads branch and history information by running git.
//
// Every call is bounded by a timeout and any failure yields an empty
// result; callers only use the output to decorate context text.
package gitinfo

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/dgerlanc/hookkit/internal/logger"
)

// DefaultTimeout bounds a single git invocation.
const DefaultTimeout = 5 * time.Second

// Runner runs git commands in a directory.
type Runner struct {
	// Git is the git executable. Empty means "git" from PATH.
	Git     string
	Timeout time.Duration
}

// Branch returns the current branch name of the repository in dir, or ""
// when dir is not a repository or git is unavailable.
func (r Runner) Branch(ctx context.Context, dir string) string {
	return r.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// RecentCommits returns up to n one-line commit summaries, newest first.
func (r Runner) RecentCommits(ctx context.Context, dir string, n int) []string {
	if n <= 0 {
		return nil
	}
	out := r.run(ctx, dir, "log", "-"+strconv.Itoa(n), "--oneline")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func (r Runner) run(ctx context.Context, dir string, args ...string) string {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	git := r.Git
	if git == "" {
		git = "git"
	}
	cmd := exec.CommandContext(ctx, git, args...)
	cmd.Dir = dir
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		logger.Debug("git command failed", "args", args, "dir", dir, "error", err)
		return ""
	}
	return strings.TrimSpace(stdout.String())
}
