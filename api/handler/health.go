package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/models"
)

// CacheStatus reports the cache backend state. *cache.Store implements it.
type CacheStatus interface {
	Status(ctx context.Context) string
}

// PoolStats reports the proxy pool state. *proxypool.Pool implements it.
type PoolStats interface {
	Len() int
	Refills() int
}

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when the cache backend is unreachable or the proxy pool is
// enabled but empty. Both conditions still allow scraping.
func Health(cc CacheStatus, pool PoolStats) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := models.HealthResponse{Status: "healthy", Cache: "disabled"}

		if cc != nil {
			resp.Cache = cc.Status(c.Request.Context())
			if strings.HasSuffix(resp.Cache, ": unavailable") {
				resp.Status = "degraded"
			}
		}
		if pool != nil {
			resp.Proxy = models.ProxyHealth{
				Enabled:   true,
				Available: pool.Len(),
				Refills:   pool.Refills(),
			}
			if resp.Proxy.Available == 0 && resp.Proxy.Refills > 0 {
				resp.Status = "degraded"
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}
