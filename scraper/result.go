package scraper

import "github.com/use-agent/shelfscan/models"

// Result is one completed scrape.
type Result struct {
	Record models.ProductRecord

	// CacheHit is true when Record was served from the cache and no fetch
	// was made.
	CacheHit bool

	// Engine names the strategy that fetched the page ("http" or
	// "browser"); empty on a cache hit.
	Engine string

	// Attempts is the number of fetch attempts made.
	Attempts int

	RequestID string
}
