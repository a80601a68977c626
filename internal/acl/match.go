package acl

import (
	"path"

	"github.com/bmatcuk/doublestar/v4"
)

// matchGlob reports whether filePath matches pattern, where pattern is
// interpreted relative to dir (the permission file's own directory), per
// spec: "path" is a glob pattern relative to the permission file's
// directory.
func matchGlob(dir, pattern, filePath string) bool {
	rel := filePath
	if dir != "" {
		var ok bool
		rel, ok = relativeTo(dir, filePath)
		if !ok {
			return false
		}
	}
	full := path.Join(dir, pattern)
	matched, err := doublestar.Match(full, filePath)
	if err == nil && matched {
		return true
	}
	// also accept patterns expressed purely relative to dir, e.g. "**"
	// matching rel directly, which covers dir == "" (datasite root rules).
	matched, err = doublestar.Match(pattern, rel)
	return err == nil && matched
}

func relativeTo(dir, filePath string) (string, bool) {
	if dir == "" {
		return filePath, true
	}
	if len(filePath) <= len(dir) || filePath[:len(dir)] != dir || filePath[len(dir)] != '/' {
		return "", false
	}
	return filePath[len(dir)+1:], true
}
