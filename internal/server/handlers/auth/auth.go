// Package auth implements the /auth/* endpoints spec section 6 defines:
// email OTP issuance/exchange, refresh, whoami, and datasite
// registration.
package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/syftbox-sh/syftbox/internal/acl"
	"github.com/syftbox-sh/syftbox/internal/apierr"
	"github.com/syftbox-sh/syftbox/internal/server/auth"
	"github.com/syftbox-sh/syftbox/internal/server/httpx"
	"github.com/syftbox-sh/syftbox/internal/server/middlewares"
	"github.com/syftbox-sh/syftbox/internal/server/store"
	"github.com/syftbox-sh/syftbox/internal/utils"
)

type Handler struct {
	auth  *auth.AuthService
	store *store.Store
	acl   *acl.Engine
	root  string
}

func New(authService *auth.AuthService, st *store.Store, engine *acl.Engine, snapshotRoot string) *Handler {
	return &Handler{auth: authService, store: st, acl: engine, root: snapshotRoot}
}

type emailBody struct {
	Email string `json:"email"`
}

// RequestEmailToken issues a one-time code to email (POST
// /auth/request_email_token).
func (h *Handler) RequestEmailToken(ctx *gin.Context) {
	var body emailBody
	if err := ctx.ShouldBindJSON(&body); err != nil || !utils.IsValidEmail(body.Email) {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid email")
		return
	}

	if err := h.auth.SendOTP(ctx, body.Email); err != nil {
		httpx.AbortWithError(ctx, apierr.Wrap(apierr.BadRequest, err))
		return
	}

	ctx.Status(http.StatusOK)
}

type validateEmailTokenRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ValidateEmailToken exchanges a one-time code for an access/refresh
// token pair (POST /auth/validate_email_token).
func (h *Handler) ValidateEmailToken(ctx *gin.Context) {
	var body validateEmailTokenRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid request body")
		return
	}

	access, refresh, err := h.auth.GenerateTokensPair(ctx, body.Email, body.Token)
	if err != nil {
		httpx.AbortWithError(ctx, apierr.Wrap(apierr.Unauthorized, err))
		return
	}

	ctx.JSON(http.StatusOK, tokenPairResponse{AccessToken: access, RefreshToken: refresh})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new pair (POST /auth/refresh).
func (h *Handler) Refresh(ctx *gin.Context) {
	var body refreshRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid request body")
		return
	}

	access, refresh, err := h.auth.RefreshToken(ctx, body.RefreshToken)
	if err != nil {
		httpx.AbortWithError(ctx, apierr.Wrap(apierr.Unauthorized, err))
		return
	}

	ctx.JSON(http.StatusOK, tokenPairResponse{AccessToken: access, RefreshToken: refresh})
}

// Whoami resolves the identity behind the current bearer token (POST
// /auth/whoami).
func (h *Handler) Whoami(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"email": ctx.GetString(middlewares.CtxUser)})
}

// Register records email as a known datasite owner and bootstraps its
// datasite root (POST /auth/register; spec section 9's supplemented
// registration flow).
func (h *Handler) Register(ctx *gin.Context) {
	var body emailBody
	if err := ctx.ShouldBindJSON(&body); err != nil || !utils.IsValidEmail(body.Email) {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid email")
		return
	}

	if err := h.store.RegisterUser(ctx, body.Email); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			httpx.AbortWithKind(ctx, apierr.AlreadyExists, "%s already registered", body.Email)
			return
		}
		httpx.AbortWithError(ctx, fmt.Errorf("register %s: %w", body.Email, err))
		return
	}

	ruleSets, err := bootstrapDatasiteRoot(h.root, body.Email)
	if err != nil {
		httpx.AbortWithError(ctx, fmt.Errorf("bootstrap datasite %s: %w", body.Email, err))
		return
	}
	for _, rs := range ruleSets {
		h.acl.Put(rs)
		if err := h.store.ReplaceRules(ctx, rs.Dir, rs.Depth, rs.Rules); err != nil {
			httpx.AbortWithError(ctx, fmt.Errorf("install rules for %s: %w", rs.Dir, err))
			return
		}
	}

	ctx.Status(http.StatusCreated)
}
