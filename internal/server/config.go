package server

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/syftbox-sh/syftbox/internal/server/auth"
	"github.com/syftbox-sh/syftbox/internal/server/email"
	"github.com/syftbox-sh/syftbox/internal/utils"
)

const DefaultAddr = "127.0.0.1:8080"

// Config is the server's top-level configuration, unmarshaled by viper
// from a YAML file, SYFTBOX_-prefixed env vars, and CLI flags.
type Config struct {
	DataDir string      `mapstructure:"data_dir"`
	HTTP    *HTTPConfig `mapstructure:"http"`
	Auth    *auth.Config `mapstructure:"auth"`
	Email   *email.Config `mapstructure:"email"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	Domain   string `mapstructure:"domain"`
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	var err error
	c.DataDir, err = utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("data_dir: %w", err)
	}

	if c.HTTP == nil {
		c.HTTP = &HTTPConfig{Addr: DefaultAddr}
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if (c.HTTP.CertFile == "") != (c.HTTP.KeyFile == "") {
		return fmt.Errorf("http: cert_file and key_file must both be set or both be empty")
	}

	if c.Auth == nil {
		c.Auth = &auth.Config{}
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if c.Email == nil {
		c.Email = &email.Config{}
	}
	if err := c.Email.Validate(); err != nil {
		return fmt.Errorf("email: %w", err)
	}

	return nil
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("data_dir", c.DataDir),
		slog.Group("http",
			slog.String("addr", c.HTTP.Addr),
			slog.Bool("tls", c.HTTP.CertFile != ""),
			slog.String("domain", c.HTTP.Domain),
		),
		slog.Any("auth", c.Auth),
		slog.Any("email", c.Email),
	)
}

// DbPath is the metadata store's on-disk location, under DataDir.
func (c *Config) DbPath() string {
	return filepath.Join(c.DataDir, "syftbox.db")
}

// SnapshotRoot is the authoritative file-bytes replica's root directory.
func (c *Config) SnapshotRoot() string {
	return filepath.Join(c.DataDir, "datasites")
}

// LogDir is the server's log output directory.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}
