package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"

	"github.com/syftbox-sh/syftbox/internal/apierr"
	"github.com/syftbox-sh/syftbox/internal/server/httpx"
)

var rateLimitStore = memory.NewStore()

// RateLimiter throttles requests per client IP at formattedRate (e.g.
// "10-M" for 10/minute), used on /auth/* and /sync/* per spec section 5.
func RateLimiter(formattedRate string) gin.HandlerFunc {
	rate, err := limiter.NewRateFromFormatted(formattedRate)
	if err != nil {
		panic(err)
	}
	lim := limiter.New(rateLimitStore, rate)
	return mgin.NewMiddleware(
		lim,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			httpx.AbortWithKind(c, apierr.BadRequest, "rate limit exceeded")
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			httpx.AbortWithError(c, err)
		}),
	)
}
