// Package snapshot manages the server's on-disk replica of file bytes —
// the authoritative copy spec section 3 describes ("the server's
// snapshot folder is the authoritative replica"). It provides the
// temp-file-then-rename staging apply_diff's atomicity (spec section 4.8)
// depends on.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/syftbox-sh/syftbox/internal/utils"
)

// Snapshot resolves datasite-relative paths against an on-disk root and
// stages writes through a temp file before they become visible.
type Snapshot struct {
	root string
}

// New builds a Snapshot rooted at root (the server's datasites
// directory).
func New(root string) *Snapshot {
	return &Snapshot{root: root}
}

// Root returns the snapshot's on-disk root directory.
func (s *Snapshot) Root() string {
	return s.root
}

// AbsPath resolves relPath (forward-slash, datasite-relative) to its
// on-disk location.
func (s *Snapshot) AbsPath(relPath string) string {
	return filepath.Join(s.root, filepath.FromSlash(relPath))
}

// Read returns the current bytes at relPath.
func (s *Snapshot) Read(relPath string) ([]byte, error) {
	return os.ReadFile(s.AbsPath(relPath))
}

// Exists reports whether relPath currently exists in the snapshot.
func (s *Snapshot) Exists(relPath string) bool {
	return utils.FileExists(s.AbsPath(relPath))
}

// Stage writes content to a temp file alongside relPath's final location
// and returns its path plus the hex SHA-256 hash of content. The caller
// commits with Commit once its database transaction succeeds, or aborts
// with Abort on any failure — the target is never touched until Commit.
func (s *Snapshot) Stage(relPath string, content []byte) (tempPath string, hash string, err error) {
	target := s.AbsPath(relPath)
	if err := utils.EnsureParent(target); err != nil {
		return "", "", fmt.Errorf("stage %s: %w", relPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".syftbox-stage-*")
	if err != nil {
		return "", "", fmt.Errorf("stage %s: %w", relPath, err)
	}
	defer tmp.Close()

	if _, err := tmp.Write(content); err != nil {
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("stage %s: %w", relPath, err)
	}

	sum := sha256.Sum256(content)
	return tmp.Name(), hex.EncodeToString(sum[:]), nil
}

// Commit atomically renames tempPath over relPath's final location.
func (s *Snapshot) Commit(tempPath, relPath string) error {
	target := s.AbsPath(relPath)
	if err := os.Rename(tempPath, target); err != nil {
		return fmt.Errorf("commit %s: %w", relPath, err)
	}
	return nil
}

// Abort discards a staged temp file without touching the target.
func (s *Snapshot) Abort(tempPath string) error {
	if tempPath == "" {
		return nil
	}
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("abort stage %s: %w", tempPath, err)
	}
	return nil
}

// Delete removes relPath from the snapshot.
func (s *Snapshot) Delete(relPath string) error {
	if err := os.Remove(s.AbsPath(relPath)); err != nil {
		return fmt.Errorf("delete %s: %w", relPath, err)
	}
	return nil
}

// Move renames fromRel's on-disk file to toRel without staging and
// without touching the metadata store. store.MoveWithTransaction does
// its own os.Rename, so it is not combined with Move for one file.
func (s *Snapshot) Move(fromRel, toRel string) error {
	if err := utils.EnsureParent(s.AbsPath(toRel)); err != nil {
		return err
	}
	return os.Rename(s.AbsPath(fromRel), s.AbsPath(toRel))
}
