package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Options configures NewRouter. Zero values disable the optional parts.
type Options struct {
	Logger zerolog.Logger
	CORS   CORSConfig
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Health backs GET /healthz; nil always reports ok.
	Health func(ctx context.Context) error
	// Clock computes expires_in; defaults to time.Now.
	Clock func() time.Time
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(svc Service, opts Options) *gin.Engine {
	h := NewHandler(svc, opts.Clock)

	r := gin.New()
	r.Use(RequestID(), Recovery(opts.Logger), RequestLogger(opts.Logger), CORS(opts.CORS))

	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/refresh", h.Refresh)

	authed := r.Group("/", RequireAccount(svc))
	authed.GET("/me", h.Me)
	authed.PUT("/me", h.UpdateMe)
	authed.POST("/logout", h.Logout)

	r.GET("/healthz", healthHandler(opts.Health))
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	return r
}

func healthHandler(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
