package server

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/syftbox-sh/syftbox/internal/acl"
	"github.com/syftbox-sh/syftbox/internal/fsscan"
	"github.com/syftbox-sh/syftbox/internal/server/auth"
	"github.com/syftbox-sh/syftbox/internal/server/email"
	"github.com/syftbox-sh/syftbox/internal/server/snapshot"
	"github.com/syftbox-sh/syftbox/internal/server/store"
)

// aclCacheSize bounds acl.Engine's in-memory cache of computed
// permissions per (user, path) pair, mirroring the teacher's
// acl_cache.go sizing.
const aclCacheSize = 4096

// Services wires every server-side component spec section 4 describes:
// the metadata store, the permission engine shared with the client's
// evaluator, the snapshot folder, auth, and email.
type Services struct {
	Store    *store.Store
	ACL      *acl.Engine
	Snapshot *snapshot.Snapshot
	Auth     *auth.AuthService
	Email    email.Service

	ignore *fsscan.Ignore
}

// NewServices opens the metadata store against db and builds every other
// component around config.
func NewServices(config *Config, db *sqlx.DB) (*Services, error) {
	st, err := store.New(context.Background(), db)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	snapshotRoot := config.SnapshotRoot()
	if err := os.MkdirAll(snapshotRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot root: %w", err)
	}

	ignore, err := fsscan.LoadIgnore(snapshotRoot)
	if err != nil {
		return nil, fmt.Errorf("load ignore rules: %w", err)
	}

	emailSvc := email.NewSMTPService(config.Email)
	authSvc := auth.NewAuthService(config.Auth, emailSvc)

	return &Services{
		Store:    st,
		ACL:      acl.New(aclCacheSize),
		Snapshot: snapshot.New(snapshotRoot),
		Auth:     authSvc,
		Email:    emailSvc,
		ignore:   ignore,
	}, nil
}

// Start runs the startup recovery spec sections 4.7 and 4.8 require:
// migrate legacy permission files, compile every permission file into
// the ACL engine and the store's rule table, then reconcile the
// metadata store against whatever is actually on disk.
func (s *Services) Start(ctx context.Context) error {
	root := s.Snapshot.Root()

	if err := migrateLegacyPermissions(root); err != nil {
		return fmt.Errorf("migrate legacy permissions: %w", err)
	}
	if err := loadRuleSets(ctx, root, s.Store, s.ACL); err != nil {
		return fmt.Errorf("load rule sets: %w", err)
	}
	if err := reconcileSnapshot(ctx, root, s.Store, s.ignore); err != nil {
		return fmt.Errorf("reconcile snapshot: %w", err)
	}
	return nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	return s.Store.DB().Close()
}
