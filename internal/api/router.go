package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signal-leaderboard/internal/observability"
	"signal-leaderboard/internal/storage"
)

// StatusFunc reports service state for /status.
type StatusFunc func() interface{}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Stores *storage.Stores
	Status StatusFunc // optional
	Logger *zap.Logger
}

// NewRouter builds the gin engine with every read-only route.
func NewRouter(opts RouterOptions) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/metrics", gin.WrapH(observability.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/status", func(c *gin.Context) {
		if opts.Status == nil {
			c.JSON(http.StatusOK, gin.H{"status": "running"})
			return
		}
		c.JSON(http.StatusOK, opts.Status())
	})

	h := NewHandler(opts.Stores, logger)
	v := r.Group("/api")
	{
		v.GET("/leaderboard", h.Leaderboard)
		v.GET("/strategies/:id", h.Strategy)
		v.GET("/strategies/:id/stats", h.Stats)
		v.GET("/strategies/:id/segments", h.Segments)
		v.GET("/strategies/:id/snapshots", h.Snapshots)
		v.GET("/strategies/:id/position", h.Position)
	}
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
