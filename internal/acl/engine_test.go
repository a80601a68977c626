package acl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syftbox-sh/syftbox/internal/aclspec"
)

func mustRule(t *testing.T, path, user string, allow bool, terminal bool, kinds ...aclspec.PermissionKind) aclspec.Rule {
	t.Helper()
	a := allow
	return aclspec.Rule{Path: path, User: user, Permissions: kinds, Allow: &a, Terminal: terminal}
}

func TestEngine_OwnerAlwaysHasAllPermissions(t *testing.T) {
	e := New(64)
	got := e.Evaluate("alice@example.com", "alice@example.com/private/secret.txt")
	assert.True(t, got.Read && got.Create && got.Write && got.Admin)
}

func TestEngine_NoRuleDeniesByDefault(t *testing.T) {
	e := New(64)
	got := e.Evaluate("bob@example.com", "alice@example.com/private/secret.txt")
	assert.False(t, got.Read || got.Write || got.Create || got.Admin)
}

func TestEngine_DeeperRuleOverridesShallower(t *testing.T) {
	e := New(64)
	e.Put(aclspec.NewRuleSet("alice@example.com", 1,
		mustRule(t, "**", "bob@example.com", false, false, aclspec.PermissionRead),
	))
	e.Put(aclspec.NewRuleSet("alice@example.com/shared", 2,
		mustRule(t, "**", "bob@example.com", true, false, aclspec.PermissionRead),
	))

	got := e.Evaluate("bob@example.com", "alice@example.com/shared/doc.txt")
	assert.True(t, got.Read)
}

func TestEngine_TerminalLatchesPermission(t *testing.T) {
	e := New(64)
	e.Put(aclspec.NewRuleSet("alice@example.com", 1,
		mustRule(t, "**", "bob@example.com", true, true, aclspec.PermissionRead),
	))
	e.Put(aclspec.NewRuleSet("alice@example.com/shared", 2,
		mustRule(t, "**", "bob@example.com", false, false, aclspec.PermissionRead),
	))

	got := e.Evaluate("bob@example.com", "alice@example.com/shared/doc.txt")
	assert.True(t, got.Read, "terminal rule in ancestor must not be overridden")
}

func TestEngine_DisallowRevokesOnlyNamedKinds(t *testing.T) {
	e := New(64)
	e.Put(aclspec.NewRuleSet("alice@example.com", 1,
		mustRule(t, "**", "bob@example.com", true, false, aclspec.PermissionRead, aclspec.PermissionWrite),
	))
	e.Put(aclspec.NewRuleSet("alice@example.com/shared", 2,
		mustRule(t, "**", "bob@example.com", false, false, aclspec.PermissionWrite),
	))

	got := e.Evaluate("bob@example.com", "alice@example.com/shared/doc.txt")
	assert.True(t, got.Read)
	assert.False(t, got.Write)
}

func TestEngine_AdminImpliesAllFour(t *testing.T) {
	e := New(64)
	e.Put(aclspec.NewRuleSet("alice@example.com", 1,
		mustRule(t, "**", "bob@example.com", true, false, aclspec.PermissionAdmin),
	))

	got := e.Evaluate("bob@example.com", "alice@example.com/anything.txt")
	assert.True(t, got.Read && got.Create && got.Write && got.Admin)
}

func TestEngine_RemoveDropsRuleSet(t *testing.T) {
	e := New(64)
	rs := aclspec.NewRuleSet("alice@example.com", 1,
		mustRule(t, "**", "bob@example.com", true, false, aclspec.PermissionRead),
	)
	e.Put(rs)
	require.True(t, e.Evaluate("bob@example.com", "alice@example.com/x.txt").Read)

	e.Remove("alice@example.com")
	require.False(t, e.Evaluate("bob@example.com", "alice@example.com/x.txt").Read)
}

func TestAncestorDirs(t *testing.T) {
	assert.Equal(t, []string{"", "alice@example.com", "alice@example.com/a", "alice@example.com/a/b"},
		ancestorDirs("alice@example.com/a/b/file.txt"))
}
