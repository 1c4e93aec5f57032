package models

// AnalyzeResponse is the response for POST /api/v1/analyze.
type AnalyzeResponse struct {
	Success bool `json:"success"`

	// Product is populated only when Success is true.
	Product *ProductRecord `json:"product,omitempty"`

	// CacheStatus is "hit" when the record came from the cache, "miss" otherwise.
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// InvalidateResponse is the response for DELETE /api/v1/cache.
type InvalidateResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Removed bool   `json:"removed"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status string      `json:"status"`
	Cache  string      `json:"cache"`
	Proxy  ProxyHealth `json:"proxy"`
}

// ProxyHealth reports the proxy pool state.
type ProxyHealth struct {
	Enabled   bool `json:"enabled"`
	Available int  `json:"available"`
	Refills   int  `json:"refills"`
}
