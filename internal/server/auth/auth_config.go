package auth

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/syftbox-sh/syftbox/internal/utils"
)

type Config struct {
	Enabled            bool          `mapstructure:"enabled"`
	TokenIssuer        string        `mapstructure:"token_issuer"`
	EmailAddr          string        `mapstructure:"email_addr"`
	RefreshTokenSecret string        `mapstructure:"refresh_token_secret"`
	RefreshTokenExpiry time.Duration `mapstructure:"refresh_token_expiry"`
	AccessTokenSecret  string        `mapstructure:"access_token_secret"`
	AccessTokenExpiry  time.Duration `mapstructure:"access_token_expiry"`
	EmailOTPLength     int           `mapstructure:"email_otp_length"`
	EmailOTPExpiry     time.Duration `mapstructure:"email_otp_expiry"`

	// EmailOTPResendInterval throttles repeat /auth/request_email_token
	// calls for the same address, independent of the route-level rate
	// limiter in internal/server/middlewares (that one is per-IP; this
	// one is per-email, so two datasites behind the same NAT don't
	// starve each other's resend budget). Zero disables throttling.
	EmailOTPResendInterval time.Duration `mapstructure:"email_otp_resend_interval"`
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", c.Enabled),
		slog.String("token_issuer", c.TokenIssuer),
		slog.String("email_addr", c.EmailAddr),
		slog.Bool("refresh_token_secret", c.RefreshTokenSecret != ""),
		slog.Duration("refresh_token_expiry", c.RefreshTokenExpiry),
		slog.Bool("access_token_secret", c.AccessTokenSecret != ""),
		slog.Duration("access_token_expiry", c.AccessTokenExpiry),
		slog.Int("email_otp_length", c.EmailOTPLength),
		slog.Duration("email_otp_expiry", c.EmailOTPExpiry),
		slog.Duration("email_otp_resend_interval", c.EmailOTPResendInterval),
	)
}

// Validate enforces the invariants AuthService needs to issue tokens and
// send OTP mail. Disabled auth (local dev, single-user mode) skips all
// of it.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if err := utils.ValidateURL(c.TokenIssuer); err != nil {
		return fmt.Errorf("invalid token_issuer: %w", err)
	}
	if c.RefreshTokenSecret == "" {
		return fmt.Errorf("refresh_token_secret is required")
	}
	if c.AccessTokenSecret == "" {
		return fmt.Errorf("access_token_secret is required")
	}
	if c.EmailOTPLength < 6 {
		return fmt.Errorf("email_otp_length must be at least 6")
	}
	if err := utils.ValidateEmail(c.EmailAddr); err != nil {
		return fmt.Errorf("invalid sender email: %w", err)
	}

	return nil
}
