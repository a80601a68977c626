// Package datasite wires one user's workspace, transport client, and
// sync scheduler into the single long-running process the client
// command starts (spec sections 4.1 and 4.9).
package datasite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/syftbox-sh/syftbox/internal/client/config"
	"github.com/syftbox-sh/syftbox/internal/client/scheduler"
	"github.com/syftbox-sh/syftbox/internal/transport"
	"github.com/syftbox-sh/syftbox/internal/utils"
	"github.com/syftbox-sh/syftbox/internal/version"
	"github.com/syftbox-sh/syftbox/internal/workspace"
)

// ErrNoRefreshToken is returned by Start when the config has no refresh
// token to exchange for an access token.
var ErrNoRefreshToken = errors.New("no refresh token found, please login again")

// Datasite owns one user's workspace and drives its sync lifecycle.
type Datasite struct {
	id        string
	config    *config.Config
	workspace *workspace.Workspace
	transport *transport.Client
	scheduler *scheduler.Scheduler

	mu          sync.RWMutex
	accessToken string
}

// New validates config, builds the workspace and transport client, and
// wires the scheduler. It writes nothing to disk (it only reads the
// workspace ignore file) and does not contact the server; call Start
// for that.
func New(cfg *config.Config) (*Datasite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	ws, err := workspace.New(cfg.DataDir, cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}

	d := &Datasite{
		id:          utils.TokenHex(3),
		config:      cfg,
		workspace:   ws,
		accessToken: cfg.AccessToken,
	}

	d.transport = transport.New(transport.Config{
		BaseURL:       cfg.ServerURL,
		Email:         cfg.Email,
		ClientVersion: version.Version,
		Token:         d.currentAccessToken,
	})

	sched, err := scheduler.New(ws, d.transport, cfg.EffectiveSyncInterval())
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	d.scheduler = sched

	return d, nil
}

// Start prepares the on-disk workspace, authenticates with the server,
// and runs the sync scheduler until ctx is canceled.
func (d *Datasite) Start(ctx context.Context) error {
	slog.Info("datasite start", "id", d.id, "config", d.config)

	if err := d.workspace.Setup(); err != nil {
		return fmt.Errorf("setup datasite: %w", err)
	}

	if err := d.config.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if err := d.authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	slog.Info("authenticated", "user", d.config.Email)

	return d.scheduler.Start(ctx)
}

// Stop releases the scheduler's filesystem watcher and the workspace
// lock.
func (d *Datasite) Stop() {
	d.scheduler.Stop()
	if err := d.workspace.Unlock(); err != nil {
		slog.Error("datasite stop", "error", err)
	}
	slog.Info("datasite stopped", "id", d.id)
}

func (d *Datasite) GetConfig() *config.Config {
	return d.config
}

func (d *Datasite) GetWorkspace() *workspace.Workspace {
	return d.workspace
}

func (d *Datasite) GetTransport() *transport.Client {
	return d.transport
}

func (d *Datasite) GetScheduler() *scheduler.Scheduler {
	return d.scheduler
}

// authenticate exchanges the configured refresh token for an access
// token pair, persisting the (possibly rotated) refresh token.
func (d *Datasite) authenticate(ctx context.Context) error {
	if d.config.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	pair, err := d.transport.Refresh(ctx, d.config.RefreshToken)
	if err != nil {
		return err
	}

	d.setAccessToken(pair.AccessToken)
	d.updateRefreshToken(pair.RefreshToken)
	return nil
}

func (d *Datasite) setAccessToken(token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accessToken = token
}

func (d *Datasite) currentAccessToken() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.accessToken
}

func (d *Datasite) updateRefreshToken(refreshToken string) {
	if refreshToken == "" || refreshToken == d.config.RefreshToken {
		return
	}

	d.config.RefreshToken = refreshToken
	if err := d.config.Save(); err != nil {
		slog.Error("save config", "error", err)
	}
}
