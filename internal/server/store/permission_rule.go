package store

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/syftbox-sh/syftbox/internal/aclspec"
)

type permissionRuleRow struct {
	ID            int64  `db:"id"`
	PermfileDir   string `db:"permfile_dir"`
	PermfileDepth int    `db:"permfile_depth"`
	Priority      int    `db:"priority"`
	PathPattern   string `db:"path_pattern"`
	User          string `db:"user"`
	CanRead       bool   `db:"can_read"`
	CanCreate     bool   `db:"can_create"`
	CanWrite      bool   `db:"can_write"`
	Admin         bool   `db:"admin"`
	Disallow      bool   `db:"disallow"`
	Terminal      bool   `db:"terminal"`
}

// ReplaceRules implements spec section 4.7's permission-table maintenance:
// on every create/modify/delete of a permission file, its existing rows
// are deleted, the freshly parsed rules are inserted, and the
// rule_file_link rows for files under dir are rebuilt. Passing a nil or
// empty ruleSet (a deleted permission file) only clears the rows.
func (s *Store) ReplaceRules(ctx context.Context, dir string, depth int, rules []aclspec.Rule) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace rules for %s: begin: %w", dir, err)
	}
	defer tx.Rollback()

	var existingIDs []int64
	if err := tx.SelectContext(ctx, &existingIDs, `SELECT id FROM permission_rule WHERE permfile_dir = ?`, dir); err != nil {
		return fmt.Errorf("replace rules for %s: select existing: %w", dir, err)
	}
	for _, id := range existingIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rule_file_link WHERE rule_id = ?`, id); err != nil {
			return fmt.Errorf("replace rules for %s: clear links: %w", dir, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM permission_rule WHERE permfile_dir = ?`, dir); err != nil {
		return fmt.Errorf("replace rules for %s: clear rules: %w", dir, err)
	}

	var filePaths []string
	if err := tx.SelectContext(ctx, &filePaths, `SELECT path FROM file_metadata WHERE path LIKE ?`, dir+"%"); err != nil {
		return fmt.Errorf("replace rules for %s: list files: %w", dir, err)
	}

	for _, rule := range rules {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO permission_rule
				(permfile_dir, permfile_depth, priority, path_pattern, user,
				 can_read, can_create, can_write, admin, disallow, terminal)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, dir, depth, rule.Priority, rule.Path, rule.User,
			rule.HasKind(aclspec.PermissionRead), rule.HasKind(aclspec.PermissionCreate),
			rule.HasKind(aclspec.PermissionWrite), rule.HasKind(aclspec.PermissionAdmin),
			!rule.IsAllow(), rule.Terminal)
		if err != nil {
			return fmt.Errorf("replace rules for %s: insert rule: %w", dir, err)
		}
		ruleID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("replace rules for %s: last insert id: %w", dir, err)
		}

		wildcardPattern := rule.ResolvedPattern("*")
		for _, fp := range filePaths {
			rel, ok := relativePath(dir, fp)
			if !ok {
				continue
			}
			matched, _ := doublestar.Match(wildcardPattern, rel)
			if !matched {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO rule_file_link (rule_id, file_path) VALUES (?, ?)`, ruleID, fp); err != nil {
				return fmt.Errorf("replace rules for %s: insert link: %w", dir, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace rules for %s: commit: %w", dir, err)
	}
	return nil
}

func relativePath(dir, path string) (string, bool) {
	if dir == "" {
		return path, true
	}
	if len(path) <= len(dir) || path[:len(dir)] != dir || path[len(dir)] != '/' {
		return "", false
	}
	return path[len(dir)+1:], true
}

// LoadAllRuleSets reconstructs every permission file's rule set from the
// compiled rows, for a server rebuilding its in-memory acl.Engine at
// startup.
func (s *Store) LoadAllRuleSets(ctx context.Context) ([]*aclspec.RuleSet, error) {
	var rows []permissionRuleRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, permfile_dir, permfile_depth, priority, path_pattern, user, can_read, can_create, can_write, admin, disallow, terminal FROM permission_rule ORDER BY permfile_dir, priority`); err != nil {
		return nil, fmt.Errorf("load rule sets: %w", err)
	}

	byDir := map[string]*aclspec.RuleSet{}
	order := []string{}
	for _, r := range rows {
		rs, ok := byDir[r.PermfileDir]
		if !ok {
			rs = &aclspec.RuleSet{Dir: r.PermfileDir, Depth: r.PermfileDepth}
			byDir[r.PermfileDir] = rs
			order = append(order, r.PermfileDir)
		}
		allow := !r.Disallow
		var kinds []aclspec.PermissionKind
		if r.CanRead {
			kinds = append(kinds, aclspec.PermissionRead)
		}
		if r.CanCreate {
			kinds = append(kinds, aclspec.PermissionCreate)
		}
		if r.CanWrite {
			kinds = append(kinds, aclspec.PermissionWrite)
		}
		if r.Admin {
			kinds = append(kinds, aclspec.PermissionAdmin)
		}
		rs.Rules = append(rs.Rules, aclspec.Rule{
			Path:        r.PathPattern,
			User:        r.User,
			Permissions: kinds,
			Allow:       &allow,
			Terminal:    r.Terminal,
			Priority:    r.Priority,
		})
	}

	out := make([]*aclspec.RuleSet, 0, len(order))
	for _, dir := range order {
		out = append(out, byDir[dir])
	}
	return out, nil
}
