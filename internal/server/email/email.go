// Package email sends the one-time verification codes the auth service
// issues (spec section 6). Notification email is explicitly out of
// scope per spec section 1; this package exists only to back that
// narrow auth flow, via plain SMTP rather than a hosted provider.
package email

import "context"

// EmailInfo is the message the auth service asks a Service to deliver.
type EmailInfo struct {
	FromName  string
	FromEmail string
	ToName    string
	ToEmail   string
	Subject   string
	HTMLBody  string
}

// Service sends verification emails. IsEnabled lets callers skip sending
// (and fall back to logging the code) when email delivery isn't
// configured, matching auth.AuthService.SendOTP.
type Service interface {
	IsEnabled() bool
	Send(ctx context.Context, info *EmailInfo) error
}
