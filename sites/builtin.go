package sites

// Zara's product pages render their facts client-side and label them with
// data-qa-label attributes.
var Zara = Site{
	Name:    "zara",
	Domains: []string{"zara.com"},
	Title: []string{
		"h1.product-detail-info__header-name",
		"h1.product-detail-info__name",
		`h1[data-qa-label="product-name"]`,
		"h1.product-name",
		"h1",
	},
	Materials: []string{
		`div[data-qa-label="composition"]`,
		"div.product-detail-info__composition",
		"div.product-detail-composition",
		"div.composition",
		"div.product-detail-info__description",
	},
	Price: []string{
		`span[data-qa-label="price"]`,
		"span.product-detail-info__price",
		"span.product-detail-price",
		"span.price",
	},
	Description: []string{
		`div[data-qa-label="description"]`,
		"div.product-detail-info__description",
		"div.product-detail-description",
		"div.description",
	},
	WaitSelectors: []string{
		`h1[data-qa-label="product-name"]`,
		`div[data-qa-label="composition"]`,
		`span[data-qa-label="price"]`,
	},
}

// Default returns a registry with the built-in sites.
func Default() *Registry {
	r := NewRegistry()
	if err := r.Register(Zara); err != nil {
		panic(err)
	}
	return r
}
