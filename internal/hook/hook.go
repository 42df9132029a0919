// Package hook reads one hook event payload and produces the response for
// it.
//
// Failures never block the assistant. A payload that cannot be read or
// decoded, a handler error, and a panic inside a handler all end the same
// way: the problem is logged and the event gets no output. Availability of
// the assistant wins over strictness; the built-in deny rules are the only
// thing that stops a tool call.
package hook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dgerlanc/hookkit/internal/audit"
	"github.com/dgerlanc/hookkit/internal/compaction"
	"github.com/dgerlanc/hookkit/internal/config"
	"github.com/dgerlanc/hookkit/internal/constants"
	"github.com/dgerlanc/hookkit/internal/format"
	"github.com/dgerlanc/hookkit/internal/gitinfo"
	"github.com/dgerlanc/hookkit/internal/logger"
	"github.com/dgerlanc/hookkit/internal/prompt"
	"github.com/dgerlanc/hookkit/internal/quality"
	"github.com/dgerlanc/hookkit/internal/risk"
	"github.com/dgerlanc/hookkit/internal/session"
)

var (
	// ErrInputTooLarge is returned when the payload exceeds MaxInputBytes.
	ErrInputTooLarge = errors.New("hook input too large")
	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("hook handler panicked")
)

// Result is the outcome of processing one event.
type Result struct {
	Event string
	// Output is written to stdout as is. Empty means no output.
	Output string
	// Outcome is set for PreToolUse events.
	Outcome risk.Outcome
	// Err is the failure that was swallowed, for logging by the caller.
	Err error
}

// Options configures a Dispatcher. Zero fields take defaults.
type Options struct {
	Config     *config.Config
	Classifier *risk.Classifier
	Git        gitinfo.Runner
	Now        func() time.Time
	// DryRun is recorded in audit entries.
	DryRun bool
}

// Dispatcher routes events to their handlers.
type Dispatcher struct {
	cfg        *config.Config
	classifier *risk.Classifier
	files      *FileGuard
	formatter  format.Dispatcher
	injector   prompt.Injector
	gate       quality.Gate
	git        gitinfo.Runner
	now        func() time.Time
	dryRun     bool
}

// LogSink reports classifier rule failures to the log.
type LogSink struct{}

func (LogSink) RuleFailed(rule string, err error) {
	logger.Error("rule evaluation failed", "rule", rule, "error", err)
}

// New creates a Dispatcher. A classifier that cannot be built from the
// config is replaced by the built-in one.
func New(opts Options) *Dispatcher {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Get()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	classifier := opts.Classifier
	if classifier == nil {
		c, err := cfg.NewClassifier(LogSink{})
		if err != nil {
			logger.Error("classifier config rejected, using built-in rules", "error", err)
			c = risk.MustNew(risk.Options{Sink: LogSink{}})
		}
		classifier = c
	}
	git := opts.Git
	if git.Timeout == 0 {
		git.Timeout = cfg.Session.GitTimeout
	}

	return &Dispatcher{
		cfg:        cfg,
		classifier: classifier,
		files:      NewFileGuard(cfg.Safety.ProtectedFiles),
		formatter:  format.Dispatcher{Commands: cfg.Format.Commands, FormatShell: cfg.Format.FormatShell},
		injector:   prompt.Injector{Now: now},
		gate:       quality.Gate{MinOutputChars: cfg.Quality.MinOutputChars},
		git:        git,
		now:        now,
		dryRun:     opts.DryRun,
	}
}

// Process reads one event payload from r and handles it.
func (d *Dispatcher) Process(ctx context.Context, r io.Reader) Result {
	start := d.now()

	data, err := io.ReadAll(io.LimitReader(r, constants.MaxInputBytes+1))
	if err != nil {
		logger.Error("failed to read input", "error", err)
		return Result{Err: fmt.Errorf("failed to read input: %w", err)}
	}
	if len(data) > constants.MaxInputBytes {
		logger.Error("input exceeds limit", "limit", constants.MaxInputBytes)
		return Result{Err: ErrInputTooLarge}
	}

	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		logger.Error("failed to decode input", "error", err)
		return Result{Err: fmt.Errorf("failed to decode input: %w", err)}
	}
	logger.Debug("received event", "event", in.HookEventName, "tool", in.ToolName, "session", in.SessionID)

	res := d.dispatch(ctx, &in, start)
	res.Event = in.HookEventName
	if res.Err != nil {
		logger.Error("event handler failed", "event", in.HookEventName, "error", res.Err)
	}
	return res
}

// dispatch runs the handler for in, converting a panic into an error with
// no output.
func (d *Dispatcher) dispatch(ctx context.Context, in *Input, start time.Time) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			logger.Debug("handler stack", "stack", string(debug.Stack()))
			res = Result{Err: fmt.Errorf("%w: %v", ErrHandlerPanic, p)}
		}
	}()

	switch in.HookEventName {
	case EventPreToolUse:
		return d.preToolUse(ctx, in, start)
	case EventPostToolUse:
		return d.postToolUse(in)
	case EventUserPromptSubmit:
		return d.userPromptSubmit(in)
	case EventSessionStart:
		return d.sessionStart(ctx, in)
	case EventStop:
		return d.stop(in)
	case EventPreCompact:
		return d.preCompact(in)
	case EventSubagentStop:
		return d.subagentStop(in)
	default:
		logger.Debug("ignoring event", "event", in.HookEventName)
		return Result{}
	}
}

func isFileTool(name string) bool {
	switch name {
	case ToolWrite, ToolEdit, ToolMultiEdit, ToolNotebookEdit:
		return true
	}
	return false
}

func (d *Dispatcher) preToolUse(ctx context.Context, in *Input, start time.Time) Result {
	switch {
	case in.ToolName == ToolBash:
		return d.checkCommand(in, start)
	case isFileTool(in.ToolName):
		return d.checkFile(ctx, in, start)
	default:
		logger.Debug("no check for tool", "tool", in.ToolName)
		return Result{Outcome: risk.Outcome{Decision: risk.Allow}}
	}
}

func (d *Dispatcher) checkCommand(in *Input, start time.Time) Result {
	cmd := string(in.ToolInput.Command)
	outcome := d.classifier.Classify(cmd)
	logger.Debug("classified command", "command", cmd, "decision", outcome.Decision, "rule", outcome.Rule)

	res := Result{Outcome: outcome}
	switch outcome.Decision {
	case risk.Deny:
		res.Output = FormatDeny(outcome.Reason)
		logger.Info("denied command", "rule", outcome.Rule, "category", outcome.Category)
	case risk.Warn:
		res.Output = FormatContext(EventPreToolUse, outcome.Suggestion)
		logger.Info("warned about command", "rule", outcome.Rule, "category", outcome.Category)
	}

	entry := d.auditEntry(in, start, outcome)
	entry.Command = cmd
	entry.Segments = attribute(cmd, outcome)
	d.logAudit(entry)
	return res
}

// attribute splits cmd into chain segments and marks the ones overlapping
// the range the rule matched. An unparseable command is kept as a single segment.
func attribute(cmd string, outcome risk.Outcome) []audit.Segment {
	segments, err := SplitCommandChain(cmd)
	if err != nil {
		return []audit.Segment{{Command: cmd, Triggered: outcome.Decision != risk.Allow}}
	}

	start, end := -1, -1
	if outcome.Match != "" {
		start, end = outcome.MatchStart, outcome.MatchEnd
	}
	out := make([]audit.Segment, 0, len(segments))
	for _, s := range segments {
		out = append(out, audit.Segment{
			Command:   s.Text,
			Triggered: start >= 0 && s.Contains(start, end),
		})
	}
	return out
}

func (d *Dispatcher) checkFile(ctx context.Context, in *Input, start time.Time) Result {
	path := in.ToolInput.Path()
	outcome := risk.Outcome{Decision: risk.Allow}
	if pattern, ok := d.files.Match(path); ok {
		outcome = risk.Outcome{
			Decision: risk.Deny,
			Reason:   "Protected file pattern detected: " + path,
			Rule:     pattern,
		}
		logger.Info("denied protected file", "path", path, "pattern", pattern)
	} else if path != "" {
		d.noteProtectedBranch(ctx, in.Cwd, path)
	}

	res := Result{Outcome: outcome}
	if outcome.Decision == risk.Deny {
		res.Output = FormatDeny(outcome.Reason)
	}
	entry := d.auditEntry(in, start, outcome)
	entry.FilePath = path
	d.logAudit(entry)
	return res
}

// noteProtectedBranch logs an edit made while a protected branch is checked
// out. The edit itself is allowed.
func (d *Dispatcher) noteProtectedBranch(ctx context.Context, dir, path string) {
	branch := d.git.Branch(ctx, dir)
	if branch == "" {
		return
	}
	for _, b := range d.cfg.Safety.ProtectedBranches {
		if strings.TrimPrefix(b, "refs/heads/") == branch {
			logger.Info("file edited on protected branch", "branch", branch, "path", path)
			return
		}
	}
}

func (d *Dispatcher) auditEntry(in *Input, start time.Time, o risk.Outcome) audit.Entry {
	var configError string
	if err := config.InitError(); err != nil {
		configError = err.Error()
	}
	return audit.Entry{
		Event:       in.HookEventName,
		Tool:        in.ToolName,
		ToolUseID:   in.ToolUseID,
		SessionID:   in.SessionID,
		DurationMs:  float64(d.now().Sub(start).Microseconds()) / 1000.0,
		Decision:    string(o.Decision),
		Category:    string(o.Category),
		Rule:        o.Rule,
		Reason:      o.Reason,
		Suggestion:  o.Suggestion,
		Cwd:         in.Cwd,
		DryRun:      d.dryRun,
		ConfigPath:  config.GetConfigPath(),
		ConfigError: configError,
	}
}

func (d *Dispatcher) logAudit(e audit.Entry) {
	if err := audit.Log(e); err != nil {
		logger.Warn("failed to write audit entry", "error", err)
	}
}

func (d *Dispatcher) postToolUse(in *Input) Result {
	switch in.ToolName {
	case ToolWrite, ToolEdit, ToolMultiEdit:
	default:
		return Result{}
	}
	if !in.ToolSucceeded() {
		logger.Debug("tool failed, skipping format", "tool", in.ToolName)
		return Result{}
	}
	path := in.ToolInput.Path()
	if path == "" {
		return Result{}
	}

	fr, err := d.formatter.Handle(path)
	if errors.Is(err, format.ErrNotExist) {
		logger.Debug("edited file is gone, skipping format", "path", path)
		return Result{}
	}
	if err != nil {
		return Result{Err: err}
	}
	msg := fr.Message()
	if msg == "" {
		return Result{}
	}
	return Result{Output: FormatContext(EventPostToolUse, msg)}
}

func (d *Dispatcher) userPromptSubmit(in *Input) Result {
	return Result{Output: FormatContext(EventUserPromptSubmit, d.injector.Context(string(in.Prompt)))}
}

func (d *Dispatcher) sessionStart(ctx context.Context, in *Input) Result {
	sc := session.StartContext{
		Branch:  d.git.Branch(ctx, in.Cwd),
		Commits: d.git.RecentCommits(ctx, in.Cwd, d.cfg.Session.RecentCommits),
	}

	prev, err := session.LoadLatest(d.cfg.SessionsDir())
	switch {
	case err == nil:
		sc.Previous = prev
	case errors.Is(err, session.ErrNoArchive):
	default:
		logger.Warn("failed to load previous session", "error", err)
	}

	if path := d.cfg.Paths.ProgressFile; path != "" {
		lines, err := session.TailLines(path, d.cfg.Session.ProgressLines)
		if err != nil {
			logger.Debug("progress file unavailable", "path", path, "error", err)
		}
		sc.Progress = lines
	}

	return Result{Output: FormatContext(EventSessionStart, sc.String())}
}

func (d *Dispatcher) stop(in *Input) Result {
	t, err := session.ParseTranscript(in.TranscriptPath)
	if err != nil {
		logger.Warn("failed to parse transcript", "error", err)
	}

	a := &session.Archiver{
		Dir:       d.cfg.SessionsDir(),
		MinFreeMB: d.cfg.Session.MinFreeMB,
		Now:       d.now,
	}
	if d.cfg.Session.ArchiveTranscript {
		a.TranscriptPath = in.TranscriptPath
	}
	path, err := a.Write(session.Record{
		SessionID:     in.SessionID,
		Summary:       t.Summary,
		ToolsUsed:     t.ToolsUsed,
		FilesModified: t.FilesModified,
	})
	if err != nil {
		return Result{Err: err}
	}
	return Result{Output: "Session archived to: " + path}
}

func (d *Dispatcher) preCompact(in *Input) Result {
	text := string(in.Context)
	if len([]rune(text)) < d.cfg.Compaction.MinContextChars || text == "" {
		return Result{}
	}

	elements := compaction.Extract(text)
	if !elements.Empty() {
		a := &compaction.Archiver{
			Dir:      d.cfg.CompressionArchivesDir(),
			MaxItems: d.cfg.Compaction.MaxItems,
			Now:      d.now,
		}
		if path, err := a.Write(elements); err != nil {
			logger.Warn("failed to archive context", "error", err)
		} else {
			logger.Info("context archived before compaction", "path", path)
		}
	}

	impact := compaction.Impact{
		OriginalTokens: int64(in.OriginalTokenCount),
		TargetTokens:   int64(in.TargetTokenCount),
	}
	return Result{Output: compaction.Warning(impact, elements)}
}

func (d *Dispatcher) subagentStop(in *Input) Result {
	out := string(in.Output)
	if out == "" {
		return Result{}
	}
	reason := d.gate.Check(out)
	if reason == "" {
		return Result{}
	}
	logger.Info("subagent output failed quality check", "reason", reason)
	return Result{Output: FormatBlock(quality.BlockReason(reason))}
}
