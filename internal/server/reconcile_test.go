package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syftbox-sh/syftbox/internal/acl"
	"github.com/syftbox-sh/syftbox/internal/aclspec"
	"github.com/syftbox-sh/syftbox/internal/db"
	"github.com/syftbox-sh/syftbox/internal/fsscan"
	"github.com/syftbox-sh/syftbox/internal/server/store"
)

func TestDepthOf(t *testing.T) {
	assert.Equal(t, 0, depthOf(""))
	assert.Equal(t, 1, depthOf("alice@example.com"))
	assert.Equal(t, 2, depthOf("alice@example.com/public"))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	sqliteDB, err := db.NewSqliteDb(db.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteDB.Close() })
	st, err := store.New(context.Background(), sqliteDB)
	require.NoError(t, err)
	return st
}

func TestMigrateLegacyPermissions(t *testing.T) {
	root := t.TempDir()
	userDir := filepath.Join(root, "alice@example.com")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	legacyPath := filepath.Join(userDir, aclspec.LegacyFileName)
	require.NoError(t, os.WriteFile(legacyPath, []byte("alice@example.com: rw\n"), 0o644))

	require.NoError(t, migrateLegacyPermissions(root))

	_, err := os.Stat(legacyPath)
	assert.True(t, os.IsNotExist(err), "legacy file should be renamed away")

	migrated := legacyPath + ".migrated"
	_, err = os.Stat(migrated)
	assert.NoError(t, err, "legacy file should survive renamed as .migrated")
}

func TestLoadRuleSets(t *testing.T) {
	root := t.TempDir()
	userDir := filepath.Join(root, "alice@example.com")
	require.NoError(t, os.MkdirAll(userDir, 0o755))

	rs := aclspec.NewRuleSet("alice@example.com", 1, aclspec.Rule{
		Path:        "**",
		User:        aclspec.WildcardUser,
		Permissions: []aclspec.PermissionKind{aclspec.PermissionRead},
	})
	b, err := rs.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(userDir, aclspec.FileName), b, 0o644))

	st := newTestStore(t)
	engine := acl.New(0)
	require.NoError(t, loadRuleSets(context.Background(), root, st, engine))

	assert.True(t, engine.CanAccess("bob@example.com", "alice@example.com/shared.txt", aclspec.PermissionRead))

	ruleSets, err := st.LoadAllRuleSets(context.Background())
	require.NoError(t, err)
	require.Len(t, ruleSets, 1)
	assert.Equal(t, "alice@example.com", ruleSets[0].Dir)
}

func TestReconcileSnapshot(t *testing.T) {
	root := t.TempDir()
	userDir := filepath.Join(root, "alice@example.com")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "a.txt"), []byte("hello"), 0o644))

	st := newTestStore(t)
	ctx := context.Background()

	// A stale row for a file that no longer exists on disk.
	require.NoError(t, st.SaveFileMetadata(ctx, fsscan.FileMetadata{Path: "alice@example.com/gone.txt", Hash: "stale"}))

	ignore, err := fsscan.LoadIgnore(root)
	require.NoError(t, err)

	require.NoError(t, reconcileSnapshot(ctx, root, st, ignore))

	_, err = st.GetFileMetadata(ctx, "alice@example.com/gone.txt")
	assert.ErrorIs(t, err, store.ErrNotFound, "stale row should be dropped")

	meta, err := st.GetFileMetadata(ctx, "alice@example.com/a.txt")
	require.NoError(t, err, "on-disk file should now be known")
	assert.NotEmpty(t, meta.Hash)
}
