package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authh "github.com/syftbox-sh/syftbox/internal/server/handlers/auth"
	synch "github.com/syftbox-sh/syftbox/internal/server/handlers/sync"
	"github.com/syftbox-sh/syftbox/internal/server/middlewares"
	"github.com/syftbox-sh/syftbox/internal/version"
)

// SetupRoutes wires gin's router with the shared middlewares and every
// /auth/* and /sync/* route spec section 6 defines.
func SetupRoutes(cfg *Config, svc *Services) http.Handler {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.Logger())
	r.Use(middlewares.CORS())
	r.Use(middlewares.GZIP())
	if cfg.HTTP.CertFile != "" {
		r.Use(middlewares.HSTS())
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Detailed()})
	})

	authHandler := authh.New(svc.Auth, svc.Store, svc.ACL, svc.Snapshot.Root())
	syncHandler := synch.New(svc.Store, svc.ACL, svc.Snapshot)

	authGroup := r.Group("/auth")
	authGroup.Use(middlewares.RateLimiter("20-M"))
	{
		authGroup.POST("/request_email_token", authHandler.RequestEmailToken)
		authGroup.POST("/validate_email_token", authHandler.ValidateEmailToken)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/whoami", middlewares.JWTAuth(svc.Auth), authHandler.Whoami)
	}

	syncGroup := r.Group("/sync")
	syncGroup.Use(middlewares.RateLimiter("300-M"))
	syncGroup.Use(middlewares.JWTAuth(svc.Auth))
	{
		syncGroup.POST("/datasite_states", syncHandler.DatasiteStates)
		syncGroup.POST("/dir_state", syncHandler.DirState)
		syncGroup.POST("/get_metadata", syncHandler.GetMetadata)
		syncGroup.POST("/get_diff", syncHandler.GetDiff)
		syncGroup.POST("/apply_diff", syncHandler.ApplyDiff)
		syncGroup.POST("/create", syncHandler.Create)
		syncGroup.POST("/delete", syncHandler.Delete)
		syncGroup.POST("/download", syncHandler.Download)
		syncGroup.POST("/download_bulk", syncHandler.DownloadBulk)
	}

	return r
}
