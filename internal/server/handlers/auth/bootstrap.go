package auth

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/syftbox-sh/syftbox/internal/aclspec"
	"github.com/syftbox-sh/syftbox/internal/utils"
)

// bootstrapDatasiteRoot creates a freshly registered user's datasite root
// and public/ subtree under the server's snapshot root, each with a
// default permission file, mirroring the client's own first-run default
// (owner-only root, public-read public/ subtree). Returns the rule sets
// created so the caller can install them into the ACL engine and store
// without waiting for the next startup reconcile.
func bootstrapDatasiteRoot(snapshotRoot, email string) ([]*aclspec.RuleSet, error) {
	userDir := filepath.Join(snapshotRoot, email)
	publicDir := filepath.Join(userDir, "public")

	if err := os.MkdirAll(publicDir, 0o755); err != nil {
		return nil, fmt.Errorf("create datasite dirs: %w", err)
	}

	var ruleSets []*aclspec.RuleSet

	rootPermFile := filepath.Join(userDir, aclspec.FileName)
	if !utils.FileExists(rootPermFile) {
		root := aclspec.NewRuleSet(email, 1)
		if err := writeRuleSet(root, rootPermFile); err != nil {
			return nil, fmt.Errorf("write root permission file: %w", err)
		}
		ruleSets = append(ruleSets, root)
	}

	publicPermFile := filepath.Join(publicDir, aclspec.FileName)
	if !utils.FileExists(publicPermFile) {
		public := aclspec.NewRuleSet(email+"/public", 2, aclspec.PublicReadRule())
		if err := writeRuleSet(public, publicPermFile); err != nil {
			return nil, fmt.Errorf("write public permission file: %w", err)
		}
		ruleSets = append(ruleSets, public)
	}

	return ruleSets, nil
}

func writeRuleSet(rs *aclspec.RuleSet, path string) error {
	b, err := rs.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
