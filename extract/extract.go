// Package extract recovers product facts from a parsed product page.
//
// Each field is resolved by its own short-circuiting cascade: site overrides
// from the registry first, then generic markup heuristics, then full-page
// text patterns, then the field's sentinel. Extraction never fails; a field
// that cannot be found keeps its sentinel.
package extract

import (
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/sites"
)

// Extractor applies the field cascades. It is safe for concurrent use.
type Extractor struct {
	sites  *sites.Registry
	logger *slog.Logger
}

// New creates an Extractor. A nil registry disables site overrides.
func New(registry *sites.Registry, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{sites: registry, logger: logger}
}

// Extract builds a ProductRecord from one document snapshot.
func (e *Extractor) Extract(doc *goquery.Document, sourceURL string) models.ProductRecord {
	rec := models.EmptyProduct()
	if doc == nil {
		return rec
	}

	site, _ := e.sites.Lookup(sourceURL)
	p := newPage(doc, sourceURL, site)

	rec.Brand = p.brand()
	rec.Materials = p.materials()
	rec.Price = p.price()
	rec.Images = p.images()
	rec.Description = p.description()
	rec.Title = p.title()
	rec.ManufacturingLocation = p.manufacturingLocation()

	siteName := ""
	if site != nil {
		siteName = site.Name
	}
	e.logger.Debug("extracted product",
		"url", sourceURL,
		"site", siteName,
		"title", rec.Title,
		"price", rec.Price,
		"images", len(rec.Images),
	)
	return rec
}
