package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/sites"
)

func mustDoc(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"Price: $129.99", 129.99, true},
		{"$1,299", 1299.0, true},
		{"$1,299.50", 1299.5, true},
		{"29.95 EUR", 29.95, true},
		{"  USD 45 ", 45, true},
		{"Sold out", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePrice(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestScanMaterials(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"percentages win over bare keywords", "60% cotton, 40% polyester", "60% cotton, 40% polyester"},
		{"bare keywords", "Soft linen and silk blend", "linen, silk"},
		{"mixed", "Shell: 100% wool. Lining: viscose", "100% wool, viscose"},
		{"unknown fabric percentage ignored", "95% unobtainium", ""},
		{"word boundary", "silky finish", ""},
		{"uppercase input", "80% COTTON 20% ELASTANE", "80% cotton, 20% elastane"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScanMaterials(tt.in))
		})
	}
}

func TestMatchOrigin(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"Made in Portugal.", "Portugal", true},
		{"made in   Sri Lanka\nCare: hand wash", "Sri Lanka", true},
		{"Country of Origin: Vietnam", "Vietnam", true},
		{"Manufactured in Italy, 2024", "Italy", true},
		{"Designed in Spain", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := MatchOrigin(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDomainBrand(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.zara.com/us/en/shirt.html", "Zara"},
		{"https://shop.example.co.uk/p/1", "Example"},
		{"https://everlane.com/products/tee", "Everlane"},
		{"::bad", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, domainBrand(tt.url))
		})
	}
}

func TestExtractSentinels(t *testing.T) {
	ex := New(nil, nil)
	rec := ex.Extract(mustDoc(t, `<html><head></head><body></body></html>`), "https://example.com/item")

	assert.Equal(t, models.UnknownTitle, rec.Title)
	assert.Equal(t, "Example", rec.Brand)
	assert.Equal(t, models.UnknownValue, rec.Materials)
	assert.Equal(t, models.UnknownPrice, rec.Price)
	assert.NotNil(t, rec.Images)
	assert.Empty(t, rec.Images)
	assert.Equal(t, models.NoDescription, rec.Description)
	assert.Equal(t, models.UnknownValue, rec.ManufacturingLocation)
}

func TestExtractGenericPage(t *testing.T) {
	const body = `<html><head>
<meta property="og:title" content="  Classic   Oxford Shirt ">
<meta property="og:site_name" content="Everlane">
<meta property="og:description" content="A crisp shirt.">
<meta property="og:image" content="/img/main.jpg">
</head><body>
<h1 class="product-title">Ignored because meta wins</h1>
<div class="product-price">$1,299.00</div>
<div class="product-details">Fabric: 60% cotton, 40% polyester</div>
<div class="gallery"><img src="/img/a.jpg"><img data-src="/img/b.jpg"><img src="/img/a.jpg"></div>
<p class="origin-note">Made in Portugal</p>
</body></html>`

	rec := New(nil, nil).Extract(mustDoc(t, body), "https://everlane.com/products/oxford")

	assert.Equal(t, "Classic Oxford Shirt", rec.Title)
	assert.Equal(t, "Everlane", rec.Brand)
	assert.Equal(t, "A crisp shirt.", rec.Description)
	assert.InDelta(t, 1299.0, rec.Price, 1e-9)
	assert.Equal(t, "60% cotton, 40% polyester", rec.Materials)
	assert.Equal(t, "Portugal", rec.ManufacturingLocation)
	assert.Equal(t, []string{
		"https://everlane.com/img/a.jpg",
		"https://everlane.com/img/b.jpg",
		"https://everlane.com/img/main.jpg",
	}, rec.Images)
}

func TestExtractSiteOverridesWin(t *testing.T) {
	const body = `<html><head><meta property="og:title" content="Generic Title"></head><body>
<h1 data-qa-label="product-name">Linen Blend Shirt</h1>
<span class="old-price">$99.00</span>
<span data-qa-label="price">45.90 USD</span>
<div data-qa-label="composition">OUTER SHELL 55% linen 45% cotton</div>
</body></html>`

	rec := New(sites.Default(), nil).Extract(mustDoc(t, body), "https://www.zara.com/us/en/linen-shirt-p0123.html")

	assert.Equal(t, "Linen Blend Shirt", rec.Title)
	assert.InDelta(t, 45.90, rec.Price, 1e-9)
	assert.Equal(t, "OUTER SHELL 55% linen 45% cotton", rec.Materials)
	assert.Equal(t, "Zara", rec.Brand)
}

func TestExtractWithoutSiteUsesGenericPrice(t *testing.T) {
	const body = `<html><body>
<span class="old-price">$99.00</span>
<span data-qa-label="price">45.90 USD</span>
</body></html>`

	rec := New(sites.Default(), nil).Extract(mustDoc(t, body), "https://shop.example.com/p/1")
	assert.InDelta(t, 99.0, rec.Price, 1e-9)
}

func TestExtractMetaPriceAndTextFallbacks(t *testing.T) {
	t.Run("meta content", func(t *testing.T) {
		body := `<html><head><meta property="product:price:amount" content="19.50"></head><body></body></html>`
		rec := New(nil, nil).Extract(mustDoc(t, body), "https://example.com/")
		assert.InDelta(t, 19.5, rec.Price, 1e-9)
	})

	t.Run("page text pattern", func(t *testing.T) {
		body := `<html><body><p>Now only</p><p>Price: $24.99 while stocks last</p></body></html>`
		rec := New(nil, nil).Extract(mustDoc(t, body), "https://example.com/")
		assert.InDelta(t, 24.99, rec.Price, 1e-9)
	})

	t.Run("page text thousands separator", func(t *testing.T) {
		for body, want := range map[string]float64{
			`<html><body><p>Only $1,299 today</p></body></html>`:         1299,
			`<html><body><p>Now $12,450.50 in store</p></body></html>`:   12450.5,
			`<html><body><p>Total 2,000 USD incl. tax</p></body></html>`: 2000,
		} {
			rec := New(nil, nil).Extract(mustDoc(t, body), "https://example.com/")
			assert.InDelta(t, want, rec.Price, 1e-9, body)
		}
	})
}

func TestExtractMaterialsFromPageText(t *testing.T) {
	body := `<html><body><p>Knitted from 100% cashmere.</p><p>Trim in leather.</p></body></html>`
	rec := New(nil, nil).Extract(mustDoc(t, body), "https://example.com/")
	assert.Equal(t, "100% cashmere, leather", rec.Materials)
}

func TestExtractIsDeterministic(t *testing.T) {
	body := `<html><body><div class="swiper"><img src="z.jpg"><img src="a.jpg"><img src="m.jpg"></div></body></html>`
	ex := New(nil, nil)
	first := ex.Extract(mustDoc(t, body), "https://example.com/p/")
	second := ex.Extract(mustDoc(t, body), "https://example.com/p/")
	assert.Equal(t, first, second)
	assert.Equal(t, []string{
		"https://example.com/p/a.jpg",
		"https://example.com/p/m.jpg",
		"https://example.com/p/z.jpg",
	}, first.Images)
}
