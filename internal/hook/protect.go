package hook

import (
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/dgerlanc/hookkit/internal/logger"
)

type fileGlob struct {
	pattern string
	g       glob.Glob
}

// FileGuard denies edits to files matching protected globs.
type FileGuard struct {
	globs []fileGlob
}

// NewFileGuard compiles patterns. Invalid patterns are logged and skipped.
func NewFileGuard(patterns []string) *FileGuard {
	fg := &FileGuard{}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			logger.Error("invalid protected file pattern", "pattern", p, "error", err)
			continue
		}
		fg.globs = append(fg.globs, fileGlob{pattern: p, g: g})
	}
	return fg
}

// Match returns the first pattern matching the base name or the full path
// of path.
func (fg *FileGuard) Match(path string) (pattern string, ok bool) {
	if path == "" {
		return "", false
	}
	base := filepath.Base(path)
	for _, fgl := range fg.globs {
		if fgl.g.Match(base) || fgl.g.Match(path) {
			return fgl.pattern, true
		}
	}
	return "", false
}
