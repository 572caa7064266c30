package v1

import (
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(handler *handler.Handler, l logger.Logger, telemetryEnabled bool) *gin.Engine {
	r := gin.New()

	if z, ok := l.(interface{ Desugar() *zap.Logger }); ok {
		r.Use(ginzap.RecoveryWithZap(z.Desugar(), true))
	} else {
		r.Use(gin.Recovery())
	}

	if telemetryEnabled {
		r.Use(telemetry.GinMiddleware())
	}

	r.Use(ginZapLogger(l))

	// tiles are served as stored, they are often compressed already
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/tile/"})))

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.GET("/healthz", handler.Healthz)
	v1.GET("/build", handler.BuildStatus)
	v1.GET("/tile/:tileset/:z/:x/:y", handler.Tile)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// ginZapLogger logs every request and puts l into the request context for
// handlers.
func ginZapLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), l))

		start := time.Now()

		c.Next()

		latency := time.Since(start)

		l.Debug("request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"latency", latency,
			"size", c.Writer.Size(),
		)
	}
}
