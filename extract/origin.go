package extract

import (
	"regexp"
	"strings"

	"github.com/use-agent/shelfscan/models"
)

// originPatterns capture the place name after a provenance phrase. The
// capture stops at punctuation and line breaks.
var originPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Made in[ \t]+([A-Za-z \t]+)`),
	regexp.MustCompile(`(?i)Manufactured in[ \t]+([A-Za-z \t]+)`),
	regexp.MustCompile(`(?i)Produced in[ \t]+([A-Za-z \t]+)`),
	regexp.MustCompile(`(?i)Country of Origin:[ \t]*([A-Za-z \t]+)`),
	regexp.MustCompile(`(?i)Origin:[ \t]*([A-Za-z \t]+)`),
}

var originSelectors = []string{
	`[class*="origin"]`,
	`[class*="manufacturing"]`,
	`[class*="production"]`,
	`[id*="origin"]`,
	`[id*="manufacturing"]`,
	`[id*="production"]`,
}

func (p *page) manufacturingLocation() string {
	for _, sel := range originSelectors {
		elem := p.doc.Find(sel).First()
		if elem.Length() == 0 {
			continue
		}
		if loc, ok := MatchOrigin(selectionText(elem)); ok {
			return loc
		}
	}
	if loc, ok := MatchOrigin(p.fullText()); ok {
		return loc
	}
	return models.UnknownValue
}

// MatchOrigin returns the first provenance capture in text.
func MatchOrigin(text string) (string, bool) {
	for _, re := range originPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if loc := normalize(m[1]); loc != "" {
			return strings.TrimSpace(loc), true
		}
	}
	return "", false
}
