// Package synccompute diffs local and remote file metadata for a datasite
// and emits an ordered list of change intents, per spec section 4.4.
package synccompute

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/syftbox-sh/syftbox/internal/aclspec"
	"github.com/syftbox-sh/syftbox/internal/fsscan"
)

// ChangeKind is the verdict synccompute reaches for one path.
type ChangeKind string

const (
	ChangePull         ChangeKind = "pull"
	ChangePush         ChangeKind = "push"
	ChangeDeleteLocal  ChangeKind = "delete_local"
	ChangeDeleteRemote ChangeKind = "delete_remote"
	ChangeConflictPush ChangeKind = "conflict_push"
	ChangeConflictPull ChangeKind = "conflict_pull"
	ChangeNoop         ChangeKind = "noop"
)

// Side identifies which replica holds the newer version of a path.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
	SideNone   Side = ""
)

// FileChangeInfo is one entry of the change list synccompute produces: the
// path, the verdict, which side is newer (when relevant), that side's
// modification time and size, used to prioritize the sync queue.
type FileChangeInfo struct {
	Path         string
	Kind         ChangeKind
	NewerSide    Side
	NewerModTime time.Time
	Size         int64
	IsPermFile   bool

	// Priority orders the resulting queue item: permission files always
	// sort before data files; within a class, ascending by size.
	Priority int64
}

const (
	classPermission int64 = 0
	classData       int64 = 1 << 40
)

// Compute diffs local against remote metadata for a single datasite and
// returns the ordered list of changes. self is the identity of the peer
// running the computation (used to decide push-vs-delete-local for
// locally-only paths the caller does not own).
func Compute(self string, local, remote []fsscan.FileMetadata) []FileChangeInfo {
	localByPath := indexByPath(local)
	remoteByPath := indexByPath(remote)

	paths := make(map[string]struct{}, len(local)+len(remote))
	for p := range localByPath {
		paths[p] = struct{}{}
	}
	for p := range remoteByPath {
		paths[p] = struct{}{}
	}

	changes := make([]FileChangeInfo, 0, len(paths))
	for p := range paths {
		l, hasLocal := localByPath[p]
		r, hasRemote := remoteByPath[p]
		changes = append(changes, computeOne(self, p, l, hasLocal, r, hasRemote))
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Priority != changes[j].Priority {
			return changes[i].Priority < changes[j].Priority
		}
		return changes[i].Path < changes[j].Path
	})

	return changes
}

func computeOne(self, path string, l fsscan.FileMetadata, hasLocal bool, r fsscan.FileMetadata, hasRemote bool) FileChangeInfo {
	isPerm := filepath.Base(path) == aclspec.FileName
	owner := datasiteOwner(path)

	base := FileChangeInfo{Path: path, IsPermFile: isPerm}
	base.Priority = priorityClass(isPerm)

	switch {
	case !hasLocal && hasRemote:
		base.Kind = ChangePull
		base.NewerSide = SideRemote
		base.NewerModTime = r.LastModified
		base.Size = r.FileSize

	case hasLocal && !hasRemote:
		if owner == self {
			base.Kind = ChangePush
			base.NewerSide = SideLocal
		} else {
			base.Kind = ChangeDeleteLocal
			base.NewerSide = SideNone
		}
		base.NewerModTime = l.LastModified
		base.Size = l.FileSize

	case l.Hash == r.Hash:
		base.Kind = ChangeNoop
		base.Size = l.FileSize

	default:
		base.Size = maxInt64(l.FileSize, r.FileSize)
		side := resolveConflict(l, r)
		base.NewerSide = side
		if side == SideLocal {
			base.Kind = ChangeConflictPush
			base.NewerModTime = l.LastModified
		} else {
			base.Kind = ChangeConflictPull
			base.NewerModTime = r.LastModified
		}
	}

	base.Priority += base.Size
	return base
}

// resolveConflict applies spec section 4.4's conflict rule: the strictly
// greater last_modified wins; ties break by lexicographic hash
// comparison, which is stable and never a no-op when hashes differ.
func resolveConflict(l, r fsscan.FileMetadata) Side {
	if l.LastModified.After(r.LastModified) {
		return SideLocal
	}
	if r.LastModified.After(l.LastModified) {
		return SideRemote
	}
	if l.Hash > r.Hash {
		return SideLocal
	}
	return SideRemote
}

func priorityClass(isPerm bool) int64 {
	if isPerm {
		return classPermission
	}
	return classData
}

func datasiteOwner(path string) string {
	if idx := indexOfSlash(path); idx >= 0 {
		return path[:idx]
	}
	return path
}

func indexOfSlash(s string) int {
	for i, c := range s {
		if c == '/' {
			return i
		}
	}
	return -1
}

func indexByPath(files []fsscan.FileMetadata) map[string]fsscan.FileMetadata {
	m := make(map[string]fsscan.FileMetadata, len(files))
	for _, f := range files {
		m[f.Path] = f
	}
	return m
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
