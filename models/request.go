package models

// AnalyzeRequest is the payload for POST /api/v1/analyze.
type AnalyzeRequest struct {
	// URL is the product page to scrape. Required, absolute.
	URL string `json:"url" binding:"required,url"`

	// Refresh drops any cached record for URL before scraping.
	Refresh bool `json:"refresh,omitempty"`
}

// InvalidateRequest is bound from the query string of DELETE /api/v1/cache.
type InvalidateRequest struct {
	URL string `form:"url" binding:"required,url"`
}
