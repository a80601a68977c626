package fsscan

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func sortedPaths(files []FileMetadata) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	sort.Strings(paths)
	return paths
}

func TestScan_IsDeterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "alice@example.com/a.txt", "hello")
	writeFile(t, root, "alice@example.com/dir/b.txt", "world")

	r1, err := Scan(context.Background(), root, nil, nil)
	require.NoError(t, err)
	r2, err := Scan(context.Background(), root, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, sortedPaths(r1.Files), sortedPaths(r2.Files))
	for _, f1 := range r1.Files {
		for _, f2 := range r2.Files {
			if f1.Path == f2.Path {
				assert.Equal(t, f1.Hash, f2.Hash)
				assert.Equal(t, f1.Signature, f2.Signature)
			}
		}
	}
}

func TestScan_SkipsIgnoredPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "alice@example.com/a.txt", "hello")
	writeFile(t, root, "alice@example.com/.DS_Store", "junk")
	writeFile(t, root, "alice@example.com/old.syftperm.migrated", "junk")

	ignore, err := LoadIgnore(root)
	require.NoError(t, err)

	res, err := Scan(context.Background(), root, ignore.AsFunc(), nil)
	require.NoError(t, err)

	paths := sortedPaths(res.Files)
	assert.Equal(t, []string{"alice@example.com/a.txt"}, paths)
}

func TestScan_NeverIgnoresPermissionFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "alice@example.com/syft.pub.yaml", "rules: []\n")

	ignore, err := LoadIgnore(root)
	require.NoError(t, err)
	assert.False(t, ignore.Match("alice@example.com/syft.pub.yaml", false))
}
