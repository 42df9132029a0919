package hook

import (
	"errors"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ErrUnparseable is returned when a command cannot be parsed.
var ErrUnparseable = errors.New("unparseable command")

// Segment is one simple command of a command line. Start and End are byte
// offsets into the original line.
type Segment struct {
	Text       string
	Start, End int
}

// Contains reports whether the byte range [start, end) overlaps s.
func (s Segment) Contains(start, end int) bool {
	return start < s.End && end > s.Start
}

// SplitCommandChain splits command into segments on &&, ||, ;, |, & using a proper shell parser.
// This handles quoted strings, redirections, and other shell syntax correctly.
// Returns ErrUnparseable if the command cannot be parsed.
func SplitCommandChain(cmd string) ([]Segment, error) {
	if strings.TrimSpace(cmd) == "" {
		return nil, nil
	}

	parser := syntax.NewParser()
	prog, err := parser.Parse(strings.NewReader(cmd), "")
	if err != nil {
		return nil, ErrUnparseable
	}

	var segments []Segment
	for _, stmt := range prog.Stmts {
		extractCommands(cmd, stmt, &segments)
	}
	return segments, nil
}

// extractCommands recursively collects the leaf statements of stmt.
func extractCommands(src string, stmt *syntax.Stmt, segments *[]Segment) {
	if stmt == nil || stmt.Cmd == nil {
		return
	}
	each := func(stmts []*syntax.Stmt) {
		for _, s := range stmts {
			extractCommands(src, s, segments)
		}
	}

	switch cmd := stmt.Cmd.(type) {
	case *syntax.BinaryCmd:
		extractCommands(src, cmd.X, segments)
		extractCommands(src, cmd.Y, segments)

	case *syntax.Subshell:
		each(cmd.Stmts)

	case *syntax.Block:
		each(cmd.Stmts)

	case *syntax.IfClause:
		for clause := cmd; clause != nil; clause = clause.Else {
			each(clause.Cond)
			each(clause.Then)
		}

	case *syntax.WhileClause:
		each(cmd.Cond)
		each(cmd.Do)

	case *syntax.ForClause:
		each(cmd.Do)

	case *syntax.CaseClause:
		for _, item := range cmd.Items {
			each(item.Stmts)
		}

	case *syntax.TimeClause:
		extractCommands(src, cmd.Stmt, segments)

	case *syntax.CoprocClause:
		extractCommands(src, cmd.Stmt, segments)

	case *syntax.FuncDecl:
		extractCommands(src, cmd.Body, segments)

	default:
		// CallExpr, DeclClause, LetClause, ArithmCmd, TestClause and
		// anything newer are leaves. The statement span includes its
		// redirections.
		addSegment(src, stmt, segments)
	}
}

func addSegment(src string, stmt *syntax.Stmt, segments *[]Segment) {
	start, end := int(stmt.Pos().Offset()), int(stmt.End().Offset())
	if start < 0 || end > len(src) || start >= end {
		return
	}
	text := strings.TrimRight(src[start:end], " \t\n;")
	if strings.TrimSpace(text) == "" {
		return
	}
	*segments = append(*segments, Segment{Text: text, Start: start, End: start + len(text)})
}
