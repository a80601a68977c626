package aclspec

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// document is the on-disk shape of a permission file.
type document struct {
	Rules []Rule `yaml:"rules"`
}

// RuleSet is a parsed permission file together with the directory it
// governs and that directory's depth (path-segment count from the
// datasites root), used to order rules across files during evaluation.
type RuleSet struct {
	Dir   string
	Depth int
	Rules []Rule
}

// Parse decodes a permission file body. Unknown keys are rejected eagerly,
// as are rules that fail Rule.Validate. Priority is assigned as the rule's
// position in the file.
func Parse(dir string, depth int, r io.Reader) (*RuleSet, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return &RuleSet{Dir: dir, Depth: depth}, nil
		}
		return nil, fmt.Errorf("parse %s: %w", filepath.Join(dir, FileName), err)
	}

	for i := range doc.Rules {
		doc.Rules[i].Priority = i
		if err := doc.Rules[i].Validate(); err != nil {
			return nil, fmt.Errorf("parse %s: rule %d: %w", filepath.Join(dir, FileName), i, err)
		}
	}

	return &RuleSet{Dir: dir, Depth: depth, Rules: doc.Rules}, nil
}

// ParseFile reads and parses the permission file at path, whose owning
// directory is dir at the given depth.
func ParseFile(dir string, depth int, path string) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(dir, depth, f)
}

// Marshal renders the rule set back to its YAML wire form.
func (rs *RuleSet) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(document{Rules: rs.Rules}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the rule set to its permission file under Dir.
func (rs *RuleSet) Save() error {
	b, err := rs.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(rs.Dir, FileName), b, 0o644)
}

// NewRuleSet builds a rule set for dir/depth from already-validated rules,
// assigning priority by position.
func NewRuleSet(dir string, depth int, rules ...Rule) *RuleSet {
	for i := range rules {
		rules[i].Priority = i
	}
	return &RuleSet{Dir: dir, Depth: depth, Rules: rules}
}

// PublicReadRule grants read to everyone, used for a datasite's public/
// subtree default.
func PublicReadRule() Rule {
	return Rule{
		Path:        "**",
		User:        WildcardUser,
		Permissions: []PermissionKind{PermissionRead},
	}
}
