package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/syftbox-sh/syftbox/internal/db"
)

const shutdownTimeout = 10 * time.Second

// Server is the matching server's process: an HTTP API in front of the
// metadata store and snapshot folder spec section 4 describes.
type Server struct {
	config     *Config
	httpServer *http.Server
	db         *sqlx.DB
	svc        *Services
}

// New opens the metadata store at config.DbPath and builds the HTTP
// handler, but does not start serving requests. Call Start for that.
func New(config *Config) (*Server, error) {
	sqliteDb, err := db.NewSqliteDb(
		db.WithPath(config.DbPath()),
		db.WithMaxOpenConns(runtime.NumCPU()),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	services, err := NewServices(config, sqliteDb)
	if err != nil {
		return nil, fmt.Errorf("initialize services: %w", err)
	}

	return &Server{
		config: config,
		db:     sqliteDb,
		svc:    services,
		httpServer: &http.Server{
			Addr:           config.HTTP.Addr,
			Handler:        SetupRoutes(config, services),
			MaxHeaderBytes: 1 << 20,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}

// Start reconciles the metadata store against disk, then serves HTTP
// until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("syftbox server start", "addr", s.config.HTTP.Addr)

	if err := s.svc.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	go db.RunCheckpointLoop(ctx, s.db, db.DefaultCheckpointInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.runHTTPServer()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Stop(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			return err
		}
		<-errCh
		slog.Info("syftbox server stop")
		return nil
	}
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs error

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("http server shutdown: %w", err))
	}
	slog.Info("http server stopped")

	if err := s.svc.Shutdown(shutdownCtx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("stop services: %w", err))
	}
	slog.Info("services stopped")

	return errs
}

func (s *Server) runHTTPServer() error {
	if s.config.HTTP.CertFile != "" {
		slog.Info("server start https", "addr", s.config.HTTP.Addr, "cert", s.config.HTTP.CertFile)
		return s.httpServer.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.httpServer.ListenAndServe()
}
