package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/shelfscan/models"
)

// fabricVocabulary is scanned in this order.
var fabricVocabulary = []string{
	"cotton", "wool", "polyester", "rayon", "linen",
	"silk", "acrylic", "nylon", "spandex", "elastane",
	"viscose", "modal", "lyocell", "cashmere", "leather",
	"suede", "denim", "jersey", "fleece", "velvet",
}

var (
	percentPattern = regexp.MustCompile(`(\d+)%\s*([a-z]+)`)

	fabricSet      = make(map[string]struct{}, len(fabricVocabulary))
	fabricPatterns = make(map[string]*regexp.Regexp, len(fabricVocabulary))
)

func init() {
	for _, f := range fabricVocabulary {
		fabricSet[f] = struct{}{}
		fabricPatterns[f] = regexp.MustCompile(`\b` + f + `\b`)
	}
}

var materialSelectors = []string{
	`[class*="material"]`,
	`[class*="fabric"]`,
	`[class*="composition"]`,
	`[id*="material"]`,
	`[id*="fabric"]`,
	`[id*="composition"]`,
	`[itemprop="material"]`,
	`[class*="product-details"]`,
	`[class*="product-info"]`,
	`[class*="specifications"]`,
	"table.specifications",
	"div.product-details",
	"div.product-info",
	"div.product-specs",
	"div.product-description",
}

func (p *page) materials() string {
	if p.site != nil {
		if t, ok := p.firstSiteText(p.site.Materials); ok {
			return t
		}
	}

	var found materialSet
	for _, sel := range materialSelectors {
		p.doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			found.scan(selectionText(s))
		})
	}
	if found.empty() {
		found.scan(p.fullText())
	}
	if found.empty() {
		return models.UnknownValue
	}
	return found.String()
}

// ScanMaterials runs the percentage and keyword passes over text and returns
// the distinct matches joined by ", ", or "" when nothing matched.
func ScanMaterials(text string) string {
	var m materialSet
	m.scan(text)
	return m.String()
}

// materialSet keeps distinct matches in discovery order.
type materialSet struct {
	entries []string
	seen    map[string]struct{}
}

func (m *materialSet) empty() bool { return len(m.entries) == 0 }

func (m *materialSet) String() string { return strings.Join(m.entries, ", ") }

func (m *materialSet) add(entry string) {
	if m.seen == nil {
		m.seen = make(map[string]struct{})
	}
	if _, ok := m.seen[entry]; ok {
		return
	}
	m.seen[entry] = struct{}{}
	m.entries = append(m.entries, entry)
}

// covers reports whether fabric already appears in any recorded entry.
func (m *materialSet) covers(fabric string) bool {
	for _, e := range m.entries {
		if strings.Contains(e, fabric) {
			return true
		}
	}
	return false
}

// scan adds "NN% fabric" matches first, then bare fabrics not yet covered.
func (m *materialSet) scan(text string) {
	text = strings.ToLower(text)
	for _, match := range percentPattern.FindAllStringSubmatch(text, -1) {
		if _, ok := fabricSet[match[2]]; ok {
			m.add(match[1] + "% " + match[2])
		}
	}
	for _, f := range fabricVocabulary {
		if fabricPatterns[f].MatchString(text) && !m.covers(f) {
			m.add(f)
		}
	}
}
