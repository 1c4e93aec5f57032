package api

import (
	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/api/handler"
	"github.com/use-agent/shelfscan/api/middleware"
	"github.com/use-agent/shelfscan/config"
)

// Deps are the collaborators the routes serve. Cache and Pool may be nil.
type Deps struct {
	Scraper handler.ProductScraper
	Cache   handler.CacheStatus
	Pool    handler.PoolStats
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled)
//
// Health sits outside auth so monitoring probes always work.
func NewRouter(d Deps, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Server.Mode != gin.TestMode {
		r.Use(gin.Logger())
	}

	v1 := r.Group("/api/v1")

	// Health is outside auth.
	v1.GET("/health", handler.Health(d.Cache, d.Pool))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}

	protected.POST("/analyze", handler.Analyze(d.Scraper, cfg.Scraper.RequestTimeout))
	protected.DELETE("/cache", handler.Invalidate(d.Scraper))

	return r
}
