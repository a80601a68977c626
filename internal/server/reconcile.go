package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/syftbox-sh/syftbox/internal/acl"
	"github.com/syftbox-sh/syftbox/internal/aclspec"
	"github.com/syftbox-sh/syftbox/internal/fsscan"
	"github.com/syftbox-sh/syftbox/internal/server/store"
)

// migrateLegacyPermissions walks root for any "_.syftperm" file and
// converts it to the current YAML format, renaming the legacy file to
// "<name>.migrated" (spec section 9's open question, resolved per
// SPEC_FULL.md section C: a one-time server-startup task).
func migrateLegacyPermissions(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !aclspec.IsLegacyPermissionFile(path) {
			return nil
		}

		dir := filepath.Dir(path)
		rel, relErr := filepath.Rel(root, dir)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			rel = ""
		}

		if _, err := aclspec.MigrateLegacyFile(rel, depthOf(rel), path); err != nil {
			return fmt.Errorf("migrate %s: %w", path, err)
		}
		slog.Info("migrated legacy permission file", "path", path)
		return nil
	})
}

// loadRuleSets walks root for every permission file, parses it, and
// installs it into engine and the store's compiled rule table
// (spec section 4.7).
func loadRuleSets(ctx context.Context, root string, st *store.Store, engine *acl.Engine) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Base(path) != aclspec.FileName {
			return nil
		}

		dir := filepath.Dir(path)
		rel, relErr := filepath.Rel(root, dir)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			rel = ""
		}
		depth := depthOf(rel)

		rs, err := aclspec.ParseFile(rel, depth, path)
		if err != nil {
			// A malformed permission file does not change effective
			// permissions (spec section 4.2's failure semantics); skip
			// installing it but keep walking.
			slog.Error("parse permission file", "path", path, "error", err)
			return nil
		}

		engine.Put(rs)
		if err := st.ReplaceRules(ctx, rel, depth, rs.Rules); err != nil {
			return fmt.Errorf("replace rules for %s: %w", rel, err)
		}
		return nil
	})
}

// reconcileSnapshot rescans the snapshot folder against the metadata
// store and repairs any divergence left by the narrow apply_diff window
// spec section 4.8 describes, or by a crash between a file move and its
// transaction commit.
func reconcileSnapshot(ctx context.Context, root string, st *store.Store, ignore *fsscan.Ignore) error {
	scanResult, err := fsscan.Scan(ctx, root, ignore.AsFunc(), nil)
	if err != nil {
		return fmt.Errorf("reconcile: scan %s: %w", root, err)
	}
	for rel, scanErr := range scanResult.Errors {
		slog.Warn("reconcile: skipped unreadable file", "path", rel, "error", scanErr)
	}

	onDisk := make(map[string]fsscan.FileMetadata, len(scanResult.Files))
	for _, m := range scanResult.Files {
		onDisk[m.Path] = m
	}

	known, err := st.ListMetadata(ctx, "", 0, 0)
	if err != nil {
		return fmt.Errorf("reconcile: list metadata: %w", err)
	}

	for _, m := range known {
		if _, ok := onDisk[m.Path]; !ok {
			if err := st.DeleteFileMetadata(ctx, m.Path); err != nil {
				slog.Error("reconcile: drop stale row", "path", m.Path, "error", err)
			}
		}
	}

	for path, m := range onDisk {
		existing, err := st.GetFileMetadata(ctx, path)
		if err == nil && existing.Hash == m.Hash {
			continue
		}
		if err := st.SaveFileMetadata(ctx, m); err != nil {
			slog.Error("reconcile: save metadata", "path", path, "error", err)
		}
	}

	return nil
}

func depthOf(dir string) int {
	if dir == "" {
		return 0
	}
	return len(strings.Split(dir, "/"))
}
