package api

import (
	"log/slog"
	"time"

	"configurator/internal/metrics"
	"configurator/internal/reference"
	"configurator/internal/workspace"

	"github.com/gin-gonic/gin"
)

// NewRouter собирает HTTP API поверх хранилища снимков.
func NewRouter(store *workspace.Store, catalog reference.Catalog, log *slog.Logger) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}
	reg := store.Registry()

	r := gin.New()
	r.Use(gin.Recovery(), metrics.Middleware(), requestLogger(log))
	r.GET("/metrics", metrics.Handler())

	apiGroup := r.Group("/api")
	{
		// схема
		apiGroup.GET("/meta", MetaListHandler(reg))
		apiGroup.GET("/meta/_lint", MetaLintHandler(reg))
		apiGroup.GET("/meta/:entity", MetaEntityHandler(reg))
		apiGroup.GET("/meta/:entity/path/:target", MetaPathHandler(reg))
		apiGroup.GET("/catalogs", CatalogListHandler(catalog))
		apiGroup.GET("/catalogs/:name", CatalogHandler(catalog))

		// снимки
		apiGroup.POST("/configs", ImportHandler(store))
		apiGroup.GET("/configs", ListHandler(store))
		apiGroup.GET("/configs/:id", GetHandler(store))
		apiGroup.DELETE("/configs/:id", DeleteHandler(store))
		apiGroup.GET("/configs/:id/export", ExportHandler(store))
		apiGroup.GET("/configs/:id/node", NodeHandler(store))
		apiGroup.GET("/configs/:id/children", ChildrenHandler(store))
		apiGroup.GET("/configs/:id/relations", RelationsHandler(store))
		apiGroup.GET("/configs/:id/usage", UsageHandler(store))
		apiGroup.GET("/configs/:id/search", SearchHandler(store))
		apiGroup.GET("/configs/:id/diff/:other", DiffHandler(store))
	}
	return r
}

func RunServer(addr string, r *gin.Engine) error {
	return r.Run(addr)
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
