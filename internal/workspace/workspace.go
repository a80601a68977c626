// Package workspace owns the on-disk layout under a user's data
// directory (spec section 4.1): the datasites subtree, a logs folder, a
// metadata folder guarding single-instance access, and the default
// permission files a fresh datasite gets.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/syftbox-sh/syftbox/internal/aclspec"
	"github.com/syftbox-sh/syftbox/internal/utils"
)

const (
	logsDir            = "logs"
	datasitesDir       = "datasites"
	publicDir          = "public"
	metadataDir        = ".data"
	lockFile           = "syftbox.lock"
	legacyMetadataFile = ".metadata.json"
)

// ErrWorkspaceLocked is returned by Lock when another process already
// holds the workspace lock.
var ErrWorkspaceLocked = errors.New("workspace locked by another process")

// ErrPathEscapesRoot is returned by Resolve for any relative path that
// normalizes outside the datasites root.
var ErrPathEscapesRoot = errors.New("path escapes workspace root")

// Workspace resolves on-disk paths, manages the ignore list, and
// guarantees the root directory structure exists.
type Workspace struct {
	Owner         string
	Root          string
	DatasitesDir  string
	MetadataDir   string
	LogsDir       string
	UserDir       string
	UserPublicDir string

	flock *flock.Flock
}

// New builds a Workspace rooted at rootDir for user.
func New(rootDir string, user string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root %s: %w", rootDir, err)
	}

	lockFilePath := filepath.Join(root, metadataDir, lockFile)

	return &Workspace{
		Owner:         user,
		Root:          root,
		LogsDir:       filepath.Join(root, logsDir),
		DatasitesDir:  filepath.Join(root, datasitesDir),
		MetadataDir:   filepath.Join(root, metadataDir),
		UserDir:       filepath.Join(root, datasitesDir, user),
		UserPublicDir: filepath.Join(root, datasitesDir, user, publicDir),
		flock:         flock.New(lockFilePath),
	}, nil
}

// Lock guarantees single-instance access to this workspace via a
// gofrs/flock file lock under .data/.
func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.MetadataDir); err != nil {
		return fmt.Errorf("create %s: %w", w.MetadataDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}
	return nil
}

// Unlock releases the workspace lock, if held by this process, and
// removes the lock file (spec section 4.1: "guaranteed release of opened
// files ... on all exit paths").
func (w *Workspace) Unlock() error {
	if !w.flock.Locked() {
		return nil
	}
	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock workspace: %w", err)
	}
	if err := os.Remove(w.flock.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// Setup moves aside a legacy workspace layout if detected, locks the
// workspace, creates the required directory structure, and installs the
// default permission files for a fresh datasite.
func (w *Workspace) Setup() error {
	if w.isLegacyWorkspace() {
		newPath := w.Root + ".old"
		if err := os.Rename(w.Root, newPath); err != nil {
			return fmt.Errorf("move legacy workspace to %s: %w", newPath, err)
		}
		slog.Warn("legacy workspace detected, moved aside", "path", newPath)
	}

	if err := w.Lock(); err != nil {
		return err
	}

	slog.Info("workspace setup", "root", w.Root)

	for _, dir := range []string{w.MetadataDir, w.LogsDir, w.UserPublicDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if err := w.createDefaultAcl(); err != nil {
		return fmt.Errorf("create default permission files: %w", err)
	}

	return nil
}

// createDefaultAcl installs the default permission file tree for a fresh
// datasite: a private root (no rules, so only the owner has access) and
// a public-read rule for the public/ subtree. Mirrors
// syftbox/server/users.py's datasite bootstrap from the original source.
func (w *Workspace) createDefaultAcl() error {
	rootPermFile := filepath.Join(w.UserDir, aclspec.FileName)
	if !utils.FileExists(rootPermFile) {
		// Save writes under Dir, so Dir is the absolute directory here.
		root := aclspec.NewRuleSet(w.UserDir, 1)
		if err := root.Save(); err != nil {
			return fmt.Errorf("create root permission file: %w", err)
		}
	}

	publicPermFile := filepath.Join(w.UserPublicDir, aclspec.FileName)
	if !utils.FileExists(publicPermFile) {
		public := aclspec.NewRuleSet(w.UserPublicDir, 2, aclspec.PublicReadRule())
		if err := public.Save(); err != nil {
			return fmt.Errorf("create public permission file: %w", err)
		}
	}

	return nil
}

func (w *Workspace) relDatasitePath(abs string) string {
	rel, err := filepath.Rel(w.DatasitesDir, abs)
	if err != nil {
		return abs
	}
	return rel
}

// Resolve turns a datasite-relative path into its absolute on-disk
// location, rejecting any path that normalizes outside DatasitesDir.
func (w *Workspace) Resolve(relPath string) (string, error) {
	clean := NormPath(relPath)
	abs := filepath.Join(w.DatasitesDir, clean)
	if !strings.HasPrefix(abs, filepath.Clean(w.DatasitesDir)+string(filepath.Separator)) && abs != filepath.Clean(w.DatasitesDir) {
		return "", ErrPathEscapesRoot
	}
	return abs, nil
}

// DatasiteRelPath converts an absolute on-disk path back to its
// datasite-relative, forward-slash form.
func (w *Workspace) DatasiteRelPath(absPath string) (string, error) {
	rel, err := filepath.Rel(w.DatasitesDir, absPath)
	if err != nil {
		return "", err
	}
	return NormPath(rel), nil
}

// Owner returns the datasite owner (first path segment) for a
// datasite-relative path.
func Owner(relPath string) string {
	relPath = NormPath(relPath)
	if idx := strings.Index(relPath, "/"); idx >= 0 {
		return relPath[:idx]
	}
	return relPath
}

func (w *Workspace) isLegacyWorkspace() bool {
	return utils.FileExists(filepath.Join(w.Root, legacyMetadataFile))
}

// NormPath cleans path to a forward-slash, non-leading-slash relative
// form, independent of the host platform's separator.
func NormPath(path string) string {
	path = filepath.Clean(path)
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.TrimLeft(path, "/")
}
