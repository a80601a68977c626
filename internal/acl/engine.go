// Package acl evaluates permission rules compiled from aclspec.RuleSet
// documents. The same Engine type is used by the client (to gate local
// reads of other datasites) and by the server (to gate every sync
// endpoint), so their notions of "may user U do O on path P" never drift
// apart.
package acl

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/syftbox-sh/syftbox/internal/aclspec"
)

// Computed is the result of evaluating every applicable rule for a
// (user, path) pair: four booleans plus, internally, which of them have
// been latched by a terminal rule so later rules cannot change them.
type Computed struct {
	Read, Create, Write, Admin bool

	readTerminal, createTerminal, writeTerminal, adminTerminal bool
}

func (c *Computed) get(kind aclspec.PermissionKind) (value, terminal bool) {
	switch kind {
	case aclspec.PermissionRead:
		return c.Read, c.readTerminal
	case aclspec.PermissionCreate:
		return c.Create, c.createTerminal
	case aclspec.PermissionWrite:
		return c.Write, c.writeTerminal
	case aclspec.PermissionAdmin:
		return c.Admin, c.adminTerminal
	}
	return false, false
}

func (c *Computed) set(kind aclspec.PermissionKind, value bool, terminal bool) {
	switch kind {
	case aclspec.PermissionRead:
		c.Read, c.readTerminal = value, c.readTerminal || terminal
	case aclspec.PermissionCreate:
		c.Create, c.createTerminal = value, c.createTerminal || terminal
	case aclspec.PermissionWrite:
		c.Write, c.writeTerminal = value, c.writeTerminal || terminal
	case aclspec.PermissionAdmin:
		c.Admin, c.adminTerminal = value, c.adminTerminal || terminal
	}
}

// Allows reports whether kind is granted in this computed result.
func (c *Computed) Allows(kind aclspec.PermissionKind) bool {
	v, _ := c.get(kind)
	return v
}

// Engine holds every currently-known rule set, indexed by the directory it
// governs, and evaluates permission queries against them.
type Engine struct {
	mu    sync.RWMutex
	rules map[string]*aclspec.RuleSet
	cache *lru.Cache[string, Computed]
}

// New builds an Engine with an LRU cache of the given size holding
// computed results per (user, path) pair (set 0 to disable caching).
func New(cacheSize int) *Engine {
	e := &Engine{rules: make(map[string]*aclspec.RuleSet)}
	if cacheSize > 0 {
		c, _ := lru.New[string, Computed](cacheSize)
		e.cache = c
	}
	return e
}

// Put installs or replaces the rule set governing rs.Dir.
func (e *Engine) Put(rs *aclspec.RuleSet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[normDir(rs.Dir)] = rs
	e.invalidate()
}

// Remove drops the rule set for dir, e.g. because its permission file was
// deleted.
func (e *Engine) Remove(dir string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, normDir(dir))
	e.invalidate()
}

func (e *Engine) invalidate() {
	if e.cache != nil {
		e.cache.Purge()
	}
}

func normDir(dir string) string {
	return strings.Trim(strings.TrimSpace(dir), "/")
}

// ancestorDirs returns the ancestor directories of filePath, shallowest
// first, including the datasite root ("") and filePath's own directory.
func ancestorDirs(filePath string) []string {
	dir := filePath
	if idx := strings.LastIndex(filePath, "/"); idx >= 0 {
		dir = filePath[:idx]
	} else {
		dir = ""
	}
	dir = normDir(dir)

	if dir == "" {
		return []string{""}
	}

	segments := strings.Split(dir, "/")
	dirs := make([]string, 0, len(segments)+1)
	dirs = append(dirs, "")
	acc := ""
	for _, s := range segments {
		if acc == "" {
			acc = s
		} else {
			acc = acc + "/" + s
		}
		dirs = append(dirs, acc)
	}
	return dirs
}

// Owner returns the datasite owner of filePath: its first path segment.
func Owner(filePath string) string {
	filePath = normDir(filePath)
	if idx := strings.Index(filePath, "/"); idx >= 0 {
		return filePath[:idx]
	}
	return filePath
}

// Evaluate computes the four-boolean permission result for user on
// filePath, folding every applicable rule from every ancestor directory's
// rule set, shallowest directory first and ascending priority within a
// file, per the terminal-latch rule. The datasite owner and anyone with
// admin always get all four permissions.
func (e *Engine) Evaluate(user, filePath string) Computed {
	filePath = normDir(filePath)

	if strings.EqualFold(Owner(filePath), user) {
		return Computed{Read: true, Create: true, Write: true, Admin: true}
	}

	cacheKey := user + "\x00" + filePath
	if e.cache != nil {
		if v, ok := e.cache.Get(cacheKey); ok {
			return v
		}
	}

	e.mu.RLock()
	var computed Computed
	for _, dir := range ancestorDirs(filePath) {
		rs, ok := e.rules[dir]
		if !ok {
			continue
		}
		for _, rule := range rs.Rules {
			if !rule.MatchesUser(user) {
				continue
			}
			pattern := rule.ResolvedPattern(user)
			if !matchGlob(dir, pattern, filePath) {
				continue
			}
			for _, kind := range rule.Permissions {
				_, terminal := computed.get(kind)
				if terminal {
					continue
				}
				computed.set(kind, rule.IsAllow(), rule.Terminal)
			}
		}
	}
	e.mu.RUnlock()

	if computed.Admin {
		computed = Computed{Read: true, Create: true, Write: true, Admin: true}
	}

	if e.cache != nil {
		e.cache.Add(cacheKey, computed)
	}
	return computed
}

// CanAccess is a convenience wrapper around Evaluate for a single
// permission kind.
func (e *Engine) CanAccess(user, filePath string, kind aclspec.PermissionKind) bool {
	return e.Evaluate(user, filePath).Allows(kind)
}

// RuleSets returns every currently loaded rule set, for callers that need
// to rebuild a server-side compiled-rule table.
func (e *Engine) RuleSets() []*aclspec.RuleSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*aclspec.RuleSet, 0, len(e.rules))
	for _, rs := range e.rules {
		out = append(out, rs)
	}
	return out
}
