// Package sync implements the nine /sync/* endpoints spec section 6
// defines: the wire surface the client's transport.Client talks to.
package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/syftbox-sh/syftbox/internal/acl"
	"github.com/syftbox-sh/syftbox/internal/aclspec"
	"github.com/syftbox-sh/syftbox/internal/fsscan"
	"github.com/syftbox-sh/syftbox/internal/rsync"
	"github.com/syftbox-sh/syftbox/internal/server/snapshot"
	"github.com/syftbox-sh/syftbox/internal/server/store"
)

// Handler serves the /sync/* routes against the shared store, ACL
// engine, and snapshot folder.
type Handler struct {
	store    *store.Store
	acl      *acl.Engine
	snapshot *snapshot.Snapshot
}

func New(st *store.Store, engine *acl.Engine, snap *snapshot.Snapshot) *Handler {
	return &Handler{store: st, acl: engine, snapshot: snap}
}

// canAccess reports whether user has kind on path, consulting the ACL
// engine's compiled rule sets (spec section 4.2: owner and admin always
// have every permission).
func (h *Handler) canAccess(user, path string, kind aclspec.PermissionKind) bool {
	return h.acl.CanAccess(user, path, kind)
}

func depthOf(dir string) int {
	if dir == "" {
		return 0
	}
	return len(strings.Split(dir, "/"))
}

// onPermissionFileChanged re-parses a just-written permission file and
// installs it into both the in-memory ACL engine and the store's
// compiled rule table, per spec section 4.7's permission-table
// maintenance (every create/modify of a permission file replaces its
// rows wholesale and rebuilds rule_file_link).
func (h *Handler) onPermissionFileChanged(ctx context.Context, filePath string, content []byte) error {
	dir := path.Dir(filePath)
	if dir == "." {
		dir = ""
	}
	depth := depthOf(dir)

	rs, err := aclspec.Parse(dir, depth, bytes.NewReader(content))
	if err != nil {
		// A malformed permission file does not change effective
		// permissions (spec section 4.2): leave the previously compiled
		// rules in force and report the parse error upward.
		return err
	}

	h.acl.Put(rs)
	return h.store.ReplaceRules(ctx, dir, depth, rs.Rules)
}

// onPermissionFileDeleted clears a deleted permission file's rows and
// removes it from the in-memory engine.
func (h *Handler) onPermissionFileDeleted(ctx context.Context, filePath string) error {
	dir := path.Dir(filePath)
	if dir == "." {
		dir = ""
	}
	h.acl.Remove(dir)
	return h.store.ReplaceRules(ctx, dir, depthOf(dir), nil)
}

func metadataFromBytes(path string, content []byte) (fsscan.FileMetadata, error) {
	sum := sha256.Sum256(content)
	sig, err := rsync.ComputeSignature(bytes.NewReader(content))
	if err != nil {
		return fsscan.FileMetadata{}, fmt.Errorf("compute signature: %w", err)
	}
	return fsscan.FileMetadata{
		Path:         path,
		Hash:         hex.EncodeToString(sum[:]),
		Signature:    sig.Encode(),
		FileSize:     int64(len(content)),
		LastModified: time.Now().UTC(),
	}, nil
}
