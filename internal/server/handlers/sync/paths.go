package sync

import (
	"path"
	"strings"
)

// cleanRelPath rejects absolute paths and "." / ".." segments, returning
// the slash-cleaned path. The server never trusts a client-supplied path
// to stay inside the snapshot root without this check.
func cleanRelPath(p string) (string, bool) {
	if p == "" || strings.HasPrefix(p, "/") {
		return "", false
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return clean, true
}
