package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/models"
)

// Invalidate returns a handler for DELETE /api/v1/cache?url=...
func Invalidate(sc ProductScraper) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.InvalidateRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.AnalyzeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		removed := sc.Invalidate(c.Request.Context(), req.URL)
		c.JSON(http.StatusOK, models.InvalidateResponse{
			Success: true,
			URL:     req.URL,
			Removed: removed,
		})
	}
}
