// Package cleaner renders fetched product pages as Markdown for inspection.
package cleaner

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// Renderer converts page HTML to Markdown. It is safe for concurrent use.
type Renderer struct {
	conv *converter.Converter
}

// NewRenderer returns a Renderer with the base, commonmark and table plugins.
// Size and composition tables keep their structure with minimal padding.
func NewRenderer() *Renderer {
	return &Renderer{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// Markdown strips page chrome from html and converts the rest. Relative links
// and image sources resolve against pageURL.
func (r *Renderer) Markdown(html, pageURL string) (string, error) {
	html = StripChrome(html)
	domain := ""
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		domain = u.Scheme + "://" + u.Host
	}
	md, err := r.conv.ConvertString(html, converter.WithDomain(domain))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

// Truncate returns the first n runes of s. n <= 0 returns s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
