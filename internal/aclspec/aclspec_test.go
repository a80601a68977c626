package aclspec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AssignsPriorityByPosition(t *testing.T) {
	body := strings.NewReader(`
rules:
  - path: "**/*.txt"
    user: "*"
    permissions: ["read"]
  - path: "secret/**"
    user: "bob@example.com"
    permissions: ["read", "write"]
    allow: false
    terminal: true
`)
	rs, err := Parse("alice@example.com", 1, body)
	require.NoError(t, err)
	require.Len(t, rs.Rules, 2)
	assert.Equal(t, 0, rs.Rules[0].Priority)
	assert.Equal(t, 1, rs.Rules[1].Priority)
	assert.True(t, rs.Rules[0].IsAllow())
	assert.False(t, rs.Rules[1].IsAllow())
	assert.True(t, rs.Rules[1].Terminal)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	body := strings.NewReader(`
rules:
  - path: "**"
    user: "*"
    permissions: ["read"]
    bogus: true
`)
	_, err := Parse("d", 0, body)
	require.Error(t, err)
}

func TestRuleValidate_RejectsDoubleStarAfterUserToken(t *testing.T) {
	r := Rule{Path: "{useremail}/**", User: "*", Permissions: []PermissionKind{PermissionRead}}
	require.Error(t, r.Validate())
}

func TestRuleValidate_RejectsInvalidEmail(t *testing.T) {
	r := Rule{Path: "**", User: "not-an-email", Permissions: []PermissionKind{PermissionRead}}
	require.Error(t, r.Validate())
}

func TestRuleValidate_RejectsUnknownPermissionKind(t *testing.T) {
	r := Rule{Path: "**", User: "*", Permissions: []PermissionKind{"execute"}}
	require.Error(t, r.Validate())
}

func TestRuleSet_SaveAndParseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rs := NewRuleSet(dir, 1, Rule{
		Path:        "**",
		User:        "alice@example.com",
		Permissions: []PermissionKind{PermissionRead, PermissionWrite},
	})
	require.NoError(t, rs.Save())

	got, err := ParseFile(dir, 1, filepath.Join(dir, FileName))
	require.NoError(t, err)
	require.Len(t, got.Rules, 1)
	assert.Equal(t, "alice@example.com", got.Rules[0].User)
}

func TestMigrateLegacyFile(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, LegacyFileName)
	require.NoError(t, os.WriteFile(legacyPath, []byte(`{
		"read": ["alice@example.com", "bob@example.com"],
		"write": ["alice@example.com"],
		"terminal": true
	}`), 0o644))

	rs, err := MigrateLegacyFile(dir, 0, legacyPath)
	require.NoError(t, err)
	require.Len(t, rs.Rules, 2)

	_, err = os.Stat(legacyPath)
	require.True(t, os.IsNotExist(err), "legacy file must be renamed away, not left in place")
	_, err = os.Stat(legacyPath + ".migrated")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, FileName))
	require.NoError(t, err)

	for _, r := range rs.Rules {
		if r.User == "alice@example.com" {
			assert.ElementsMatch(t, []PermissionKind{PermissionRead, PermissionWrite}, r.Permissions)
		}
		if r.User == "bob@example.com" {
			assert.ElementsMatch(t, []PermissionKind{PermissionRead}, r.Permissions)
		}
		assert.True(t, r.Terminal)
	}
}
