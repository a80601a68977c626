package synccompute

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syftbox-sh/syftbox/internal/fsscan"
)

func meta(path, hash string, size int64, t time.Time) fsscan.FileMetadata {
	return fsscan.FileMetadata{Path: path, Hash: hash, FileSize: size, LastModified: t}
}

func TestCompute_PullWhenAbsentLocally(t *testing.T) {
	remote := []fsscan.FileMetadata{meta("alice@x/a.txt", "H1", 5, time.Unix(100, 0))}
	changes := Compute("alice@x", nil, remote)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangePull, changes[0].Kind)
}

func TestCompute_PushWhenOwnerAndAbsentRemotely(t *testing.T) {
	local := []fsscan.FileMetadata{meta("alice@x/a.txt", "H1", 5, time.Unix(100, 0))}
	changes := Compute("alice@x", local, nil)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangePush, changes[0].Kind)
}

func TestCompute_DeleteLocalWhenNotOwnerAndAbsentRemotely(t *testing.T) {
	local := []fsscan.FileMetadata{meta("alice@x/a.txt", "H1", 5, time.Unix(100, 0))}
	changes := Compute("bob@y", local, nil)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeDeleteLocal, changes[0].Kind)
}

func TestCompute_NoopWhenSameHash(t *testing.T) {
	local := []fsscan.FileMetadata{meta("alice@x/a.txt", "H1", 5, time.Unix(100, 0))}
	remote := []fsscan.FileMetadata{meta("alice@x/a.txt", "H1", 5, time.Unix(200, 0))}
	changes := Compute("alice@x", local, remote)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeNoop, changes[0].Kind)
}

func TestCompute_ConflictDeterminism(t *testing.T) {
	local := []fsscan.FileMetadata{meta("alice@x/b.txt", "HLOCAL", 9, time.Unix(200, 0))}
	remote := []fsscan.FileMetadata{meta("alice@x/b.txt", "HREMOTE", 9, time.Unix(100, 0))}

	changes := Compute("alice@x", local, remote)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeConflictPush, changes[0].Kind)
	assert.Equal(t, SideLocal, changes[0].NewerSide)

	// swapping local and remote inputs swaps the verdict
	swapped := Compute("alice@x", remote, local)
	require.Len(t, swapped, 1)
	assert.Equal(t, ChangeConflictPull, swapped[0].Kind)
	assert.Equal(t, SideRemote, swapped[0].NewerSide)
}

func TestCompute_ConflictTieBreaksOnHash(t *testing.T) {
	same := time.Unix(100, 0)
	local := []fsscan.FileMetadata{meta("alice@x/c.txt", "ZZZ", 1, same)}
	remote := []fsscan.FileMetadata{meta("alice@x/c.txt", "AAA", 1, same)}

	changes := Compute("alice@x", local, remote)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeConflictPush, changes[0].Kind, "higher hash wins the tie")
}

func TestCompute_PermissionFilesOrderedBeforeDataFiles(t *testing.T) {
	local := []fsscan.FileMetadata{
		meta("alice@x/a.txt", "H1", 100, time.Unix(1, 0)),
		meta("alice@x/syft.pub.yaml", "H2", 9999, time.Unix(1, 0)),
	}
	changes := Compute("alice@x", local, nil)
	require.Len(t, changes, 2)
	assert.True(t, changes[0].IsPermFile)
	assert.False(t, changes[1].IsPermFile)
}

func TestCompute_AscendingSizeWithinClass(t *testing.T) {
	local := []fsscan.FileMetadata{
		meta("alice@x/big.txt", "H1", 5000, time.Unix(1, 0)),
		meta("alice@x/small.txt", "H2", 10, time.Unix(1, 0)),
	}
	changes := Compute("alice@x", local, nil)
	require.Len(t, changes, 2)
	assert.Equal(t, "alice@x/small.txt", changes[0].Path)
	assert.Equal(t, "alice@x/big.txt", changes[1].Path)
}
