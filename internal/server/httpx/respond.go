// Package httpx renders apierr errors onto a gin response the way spec
// section 6 defines the wire error envelope, shared by every handler and
// middleware package under internal/server.
package httpx

import (
	"github.com/gin-gonic/gin"

	"github.com/syftbox-sh/syftbox/internal/apierr"
)

// AbortWithError aborts ctx and writes err as the {error_kind, message}
// JSON envelope, mapping err to apierr.Internal if it isn't already an
// *apierr.Error.
func AbortWithError(ctx *gin.Context, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		apiErr = apierr.Wrap(apierr.Internal, err)
	}
	ctx.Abort()
	ctx.Error(apiErr)
	ctx.PureJSON(apiErr.ErrorKind.StatusCode(), apiErr)
}

// AbortWithKind is a convenience for handlers constructing the error
// inline rather than receiving one from a lower layer.
func AbortWithKind(ctx *gin.Context, kind apierr.Kind, format string, args ...any) {
	AbortWithError(ctx, apierr.New(kind, format, args...))
}
