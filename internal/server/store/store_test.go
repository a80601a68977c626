package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syftbox-sh/syftbox/internal/aclspec"
	"github.com/syftbox-sh/syftbox/internal/db"
	"github.com/syftbox-sh/syftbox/internal/fsscan"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	sqliteDB, err := db.NewSqliteDb(db.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteDB.Close() })

	s, err := New(context.Background(), sqliteDB)
	require.NoError(t, err)
	return s
}

func TestSaveAndGetFileMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := fsscan.FileMetadata{Path: "alice@example.com/a.txt", Hash: "H1", Signature: "sig", FileSize: 5, LastModified: time.Unix(100, 0).UTC()}
	require.NoError(t, s.SaveFileMetadata(ctx, m))

	got, err := s.GetFileMetadata(ctx, m.Path)
	require.NoError(t, err)
	assert.Equal(t, m.Hash, got.Hash)

	m.Hash = "H2"
	require.NoError(t, s.SaveFileMetadata(ctx, m))
	got, err = s.GetFileMetadata(ctx, m.Path)
	require.NoError(t, err)
	assert.Equal(t, "H2", got.Hash, "save upserts by path")
}

func TestDeleteFileMetadata_RequiresExactlyOneRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.DeleteFileMetadata(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveFileMetadata(ctx, fsscan.FileMetadata{Path: "p", Hash: "h", LastModified: time.Now().UTC()}))
	require.NoError(t, s.DeleteFileMetadata(ctx, "p"))
}

func TestListDatasites_DistinctFirstSegment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"alice@x/a.txt", "alice@x/b.txt", "bob@y/c.txt"} {
		require.NoError(t, s.SaveFileMetadata(ctx, fsscan.FileMetadata{Path: p, Hash: "h", LastModified: time.Now().UTC()}))
	}

	sites, err := s.ListDatasites(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice@x", "bob@y"}, sites)
}

func TestMoveWithTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	fromAbs := filepath.Join(dir, "old.txt")
	toAbs := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(fromAbs, []byte("hello"), 0o644))

	meta := fsscan.FileMetadata{Path: "alice@x/new.txt", Hash: "H1", FileSize: 5, LastModified: time.Now().UTC()}
	require.NoError(t, s.MoveWithTransaction(ctx, fromAbs, toAbs, meta))

	_, err := os.Stat(toAbs)
	require.NoError(t, err)
	_, err = os.Stat(fromAbs)
	assert.True(t, os.IsNotExist(err))

	got, err := s.GetFileMetadata(ctx, meta.Path)
	require.NoError(t, err)
	assert.Equal(t, meta.Hash, got.Hash)
}

func TestReplaceRulesAndLoadAllRuleSets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFileMetadata(ctx, fsscan.FileMetadata{Path: "alice@x/shared/doc.txt", Hash: "h", LastModified: time.Now().UTC()}))

	allow := true
	rules := []aclspec.Rule{
		{Path: "shared/**", User: "bob@example.com", Permissions: []aclspec.PermissionKind{aclspec.PermissionRead}, Allow: &allow, Priority: 0},
	}
	require.NoError(t, s.ReplaceRules(ctx, "alice@x", 1, rules))

	ruleSets, err := s.LoadAllRuleSets(ctx)
	require.NoError(t, err)
	require.Len(t, ruleSets, 1)
	assert.Equal(t, "alice@x", ruleSets[0].Dir)
	require.Len(t, ruleSets[0].Rules, 1)
	assert.Equal(t, "bob@example.com", ruleSets[0].Rules[0].User)

	// replacing again with zero rules clears them
	require.NoError(t, s.ReplaceRules(ctx, "alice@x", 1, nil))
	ruleSets, err = s.LoadAllRuleSets(ctx)
	require.NoError(t, err)
	assert.Empty(t, ruleSets)
}
