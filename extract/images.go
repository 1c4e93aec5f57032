package extract

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var imageSelectors = []string{
	`[itemprop="image"]`,
	`[class*="product-image"]`,
	`[class*="main-image"]`,
	`[id*="product-image"]`,
	`[id*="main-image"]`,
	`img[class*="product"]`,
	`img[class*="main"]`,
	"[data-image]",
}

var gallerySelectors = []string{
	`[class*="gallery"]`,
	`[class*="carousel"]`,
	`[class*="slider"]`,
	`[class*="swiper"]`,
}

// images collects candidate product images as absolute, deduplicated URLs.
// The result is sorted so that equal pages produce equal records.
func (p *page) images() []string {
	base, err := url.Parse(p.sourceURL)
	if err != nil {
		return []string{}
	}

	seen := make(map[string]struct{})
	add := func(src string) {
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		resolved, err := base.Parse(src)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		seen[resolved.String()] = struct{}{}
	}

	if og, ok := p.metaContent("og:image"); ok {
		add(og)
	}

	for _, sel := range imageSelectors {
		p.doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if goquery.NodeName(s) == "img" {
				add(imgSource(s))
				return
			}
			if src, ok := s.Attr("data-image"); ok {
				add(src)
			}
		})
	}

	// Only the first container of each gallery kind is used.
	for _, sel := range gallerySelectors {
		gallery := p.doc.Find(sel).First()
		gallery.Find("img").Each(func(_ int, img *goquery.Selection) {
			add(imgSource(img))
		})
	}

	images := make([]string, 0, len(seen))
	for u := range seen {
		images = append(images, u)
	}
	sort.Strings(images)
	return images
}

func imgSource(img *goquery.Selection) string {
	if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" && !strings.HasPrefix(src, "data:") {
		return src
	}
	src, _ := img.Attr("data-src")
	return src
}
