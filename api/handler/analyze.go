package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/scraper"
)

// ProductScraper is the slice of *scraper.Scraper the handlers use.
type ProductScraper interface {
	Scrape(ctx context.Context, url string) (*scraper.Result, error)
	Invalidate(ctx context.Context, url string) bool
}

// Analyze returns a handler for POST /api/v1/analyze.
//
// Flow:
//  1. Bind and validate the request.
//  2. Drop the cached record when refresh is set.
//  3. Run the pipeline under the request timeout.
//  4. Respond with the record and whether it came from the cache.
func Analyze(sc ProductScraper, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.AnalyzeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		ctx := c.Request.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		// ── 2. Refresh ──────────────────────────────────────────────
		if req.Refresh {
			sc.Invalidate(ctx, req.URL)
		}

		// ── 3. Scrape ───────────────────────────────────────────────
		res, err := sc.Scrape(ctx, req.URL)
		if err != nil {
			respondError(c, req.URL, err)
			return
		}

		// ── 4. Respond ──────────────────────────────────────────────
		status := "miss"
		if res.CacheHit {
			status = "hit"
		}
		c.Header("X-Request-ID", res.RequestID)
		rec := res.Record
		c.JSON(http.StatusOK, models.AnalyzeResponse{
			Success:     true,
			Product:     &rec,
			CacheStatus: status,
		})
	}
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, url string, err error) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, url, "internal error", err)
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.AnalyzeResponse{
		Success: false,
		Error:   scrapeErr.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeFetch:
		return http.StatusBadGateway // 502
	case models.ErrCodeParse:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
