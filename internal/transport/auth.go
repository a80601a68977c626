package transport

import (
	"context"
	"fmt"

	"github.com/syftbox-sh/syftbox/internal/apierr"
)

type emailBody struct {
	Email string `json:"email"`
}

// RequestEmailToken asks the (external) auth service to email a one-time
// token to email. Out of scope beyond this interface per spec section 1.
func (c *Client) RequestEmailToken(ctx context.Context, email string) error {
	var envelope apierr.Error
	resp, err := c.req(ctx).SetBody(emailBody{Email: email}).SetErrorResult(&envelope).Post("/auth/request_email_token")
	if err != nil {
		return fmt.Errorf("request_email_token: %w", err)
	}
	if resp.IsErrorState() {
		return asError(resp, &envelope)
	}
	return nil
}

type validateEmailTokenRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// TokenPair is an access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ValidateEmailToken exchanges a one-time email token for an access and
// refresh token pair.
func (c *Client) ValidateEmailToken(ctx context.Context, email, token string) (*TokenPair, error) {
	var out TokenPair
	var envelope apierr.Error
	resp, err := c.req(ctx).SetBody(validateEmailTokenRequest{Email: email, Token: token}).
		SetSuccessResult(&out).SetErrorResult(&envelope).Post("/auth/validate_email_token")
	if err != nil {
		return nil, fmt.Errorf("validate_email_token: %w", err)
	}
	if resp.IsErrorState() {
		return nil, asError(resp, &envelope)
	}
	return &out, nil
}

// WhoamiResponse identifies the caller of the current bearer token.
type WhoamiResponse struct {
	Email string `json:"email"`
}

// Whoami resolves the identity behind the current bearer token.
func (c *Client) Whoami(ctx context.Context) (*WhoamiResponse, error) {
	var out WhoamiResponse
	var envelope apierr.Error
	resp, err := c.req(ctx).SetSuccessResult(&out).SetErrorResult(&envelope).Post("/auth/whoami")
	if err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}
	if resp.IsErrorState() {
		return nil, asError(resp, &envelope)
	}
	return &out, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new access/refresh pair (POST
// /auth/refresh), used to recover from an expired access token per spec
// section 7's "Auth expired" policy.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var out TokenPair
	var envelope apierr.Error
	resp, err := c.req(ctx).SetBody(refreshRequest{RefreshToken: refreshToken}).
		SetSuccessResult(&out).SetErrorResult(&envelope).Post("/auth/refresh")
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if resp.IsErrorState() {
		return nil, asError(resp, &envelope)
	}
	return &out, nil
}

// Register records email and creates its datasite root server-side.
func (c *Client) Register(ctx context.Context, email string) error {
	var envelope apierr.Error
	resp, err := c.req(ctx).SetBody(emailBody{Email: email}).SetErrorResult(&envelope).Post("/auth/register")
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if resp.IsErrorState() {
		return asError(resp, &envelope)
	}
	return nil
}
