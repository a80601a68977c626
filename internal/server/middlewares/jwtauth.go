package middlewares

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/syftbox-sh/syftbox/internal/apierr"
	"github.com/syftbox-sh/syftbox/internal/server/auth"
	"github.com/syftbox-sh/syftbox/internal/server/httpx"
	"github.com/syftbox-sh/syftbox/internal/utils"
)

const (
	bearerPrefix = "Bearer "
	authHeader   = "Authorization"
	// CtxUser is the gin context key every handler reads the caller's
	// resolved email from.
	CtxUser = "user"
)

// JWTAuth validates the bearer access token on every request and sets
// the caller's email in the gin context. With auth disabled (local dev,
// tests) it trusts a "user" query parameter instead, mirroring the
// client's x-syft-from convention.
func JWTAuth(authService *auth.AuthService) gin.HandlerFunc {
	if !authService.IsEnabled() {
		slog.Info("auth middleware disabled")

		return func(ctx *gin.Context) {
			user := ctx.Query("user")
			if user == "" {
				user = ctx.GetHeader("x-syft-from")
			}

			if !utils.IsValidEmail(user) {
				httpx.AbortWithKind(ctx, apierr.Unauthorized, "invalid or missing user")
				return
			}
			ctx.Set(CtxUser, user)
			ctx.Next()
		}
	}

	slog.Info("auth middleware enabled")

	return func(ctx *gin.Context) {
		authHeaderValue := ctx.GetHeader(authHeader)
		if authHeaderValue == "" {
			httpx.AbortWithKind(ctx, apierr.Unauthorized, "authorization header required")
			return
		}

		if !strings.HasPrefix(authHeaderValue, bearerPrefix) {
			httpx.AbortWithKind(ctx, apierr.Unauthorized, "bearer token required")
			return
		}

		tokenString := strings.TrimPrefix(authHeaderValue, bearerPrefix)
		if tokenString == "" {
			httpx.AbortWithKind(ctx, apierr.Unauthorized, "token missing")
			return
		}

		claims, err := authService.ValidateAccessToken(ctx, tokenString)
		if err != nil {
			httpx.AbortWithError(ctx, apierr.Wrap(apierr.Unauthorized, fmt.Errorf("validate access token: %w", err)))
			return
		}

		ctx.Set(CtxUser, claims.Subject)
		ctx.Next()
	}
}
