package aclspec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// legacyDocument is the pre-YAML "_.syftperm" format: a JSON object mapping
// permission name to the list of emails granted it, plus an optional
// terminal flag carried over verbatim to every rule the file produces.
type legacyDocument struct {
	Read     []string `json:"read"`
	Create   []string `json:"create"`
	Write    []string `json:"write"`
	Admin    []string `json:"admin"`
	Terminal bool     `json:"terminal"`
}

// MigrateLegacyFile converts a legacy "_.syftperm" JSON file at legacyPath
// into the current YAML rule-set format, written to dir/FileName. The
// legacy file is never deleted: it is renamed to "<name>.migrated" so the
// migration is auditable and idempotent (a renamed file is not
// rediscovered on the next startup scan).
func MigrateLegacyFile(dir string, depth int, legacyPath string) (*RuleSet, error) {
	raw, err := os.ReadFile(legacyPath)
	if err != nil {
		return nil, fmt.Errorf("read legacy permission file %s: %w", legacyPath, err)
	}

	var doc legacyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse legacy permission file %s: %w", legacyPath, err)
	}

	byEmail := map[string]mapset.Set[PermissionKind]{}
	grant := func(kind PermissionKind, emails []string) {
		for _, e := range emails {
			if byEmail[e] == nil {
				byEmail[e] = mapset.NewSet[PermissionKind]()
			}
			byEmail[e].Add(kind)
		}
	}
	grant(PermissionRead, doc.Read)
	grant(PermissionCreate, doc.Create)
	grant(PermissionWrite, doc.Write)
	grant(PermissionAdmin, doc.Admin)

	emails := make([]string, 0, len(byEmail))
	for e := range byEmail {
		emails = append(emails, e)
	}
	sort.Strings(emails)

	rules := make([]Rule, 0, len(emails))
	for _, e := range emails {
		kinds := byEmail[e]
		perms := make([]PermissionKind, 0, kinds.Cardinality())
		for _, k := range AllPermissionKinds {
			if kinds.Contains(k) {
				perms = append(perms, k)
			}
		}
		rules = append(rules, Rule{
			Path:        "**",
			User:        e,
			Permissions: perms,
			Terminal:    doc.Terminal,
		})
	}

	rs := NewRuleSet(dir, depth, rules...)
	if err := rs.Save(); err != nil {
		return nil, fmt.Errorf("write migrated permission file for %s: %w", dir, err)
	}

	migratedPath := legacyPath + ".migrated"
	if err := os.Rename(legacyPath, migratedPath); err != nil {
		return nil, fmt.Errorf("rename legacy permission file %s: %w", legacyPath, err)
	}

	return rs, nil
}

// IsLegacyPermissionFile reports whether name is the legacy permission
// file name for a directory.
func IsLegacyPermissionFile(name string) bool {
	return filepath.Base(name) == LegacyFileName
}
