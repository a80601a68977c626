package fsscan

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/syftbox-sh/syftbox/internal/aclspec"
)

// DefaultIgnorePatterns are baked in regardless of the user's own ignore
// file: the legacy permission file's renamed backup, hidden files, OS
// junk, and common editor scratch files (spec section 4.1).
var DefaultIgnorePatterns = []string{
	"*.migrated",
	".*",
	".DS_Store",
	"Thumbs.db",
	"*.swp",
	"*.swo",
	"*~",
	".syftbox/",
}

// IgnoreFileName is the workspace-root gitignore-style file a user can add
// their own exclusion patterns to.
const IgnoreFileName = ".syftignore"

// Ignore matches relative paths against the default patterns plus any
// patterns found in the workspace's .syftignore file.
type Ignore struct {
	matcher *gitignore.GitIgnore
}

// LoadIgnore builds an Ignore for workspaceRoot, reading IgnoreFileName if
// present.
func LoadIgnore(workspaceRoot string) (*Ignore, error) {
	patterns := append([]string{}, DefaultIgnorePatterns...)

	ignorePath := filepath.Join(workspaceRoot, IgnoreFileName)
	if body, err := os.ReadFile(ignorePath); err == nil {
		for _, line := range strings.Split(string(body), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, line)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	m := gitignore.CompileIgnoreLines(patterns...)
	return &Ignore{matcher: m}, nil
}

// Match reports whether relPath (forward-slash, relative to the workspace
// root) is ignored. The permission file itself is never ignored: rules
// must always be discoverable by a scan.
func (i *Ignore) Match(relPath string, isDir bool) bool {
	if filepath.Base(relPath) == aclspec.FileName {
		return false
	}
	path := relPath
	if isDir {
		path += "/"
	}
	return i.matcher.MatchesPath(path)
}

// AsFunc adapts Ignore to the IgnoreFunc signature Scan expects.
func (i *Ignore) AsFunc() IgnoreFunc {
	return i.Match
}
