package engine

import (
	"math/rand/v2"
	"strings"
)

// defaultUserAgent is sent by the HTTP strategy.
const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// browserHeaders is the request header set of a desktop Chrome navigation
// arriving from a search result.
var browserHeaders = map[string]string{
	"User-Agent":                defaultUserAgent,
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Accept-Encoding":           "identity",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "cross-site",
	"Sec-Fetch-User":            "?1",
	"Sec-Ch-Ua":                 `"Google Chrome";v="123", "Not:A-Brand";v="8", "Chromium";v="123"`,
	"Sec-Ch-Ua-Mobile":          "?0",
	"Sec-Ch-Ua-Platform":        `"macOS"`,
	"Cache-Control":             "max-age=0",
	"DNT":                       "1",
	"Referer":                   "https://www.google.com/",
}

// userAgents is the pool the browser strategy draws from.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// RandomUserAgent picks one realistic desktop user agent.
func RandomUserAgent() string {
	return userAgents[rand.IntN(len(userAgents))]
}

// softBlockMarkers identify a meta-refresh interstitial. Matching is a
// substring heuristic on the lowercased body, so an unrelated mention of the
// tag also trips it.
var softBlockMarkers = []string{
	`meta http-equiv="refresh"`,
	`meta http-equiv='refresh'`,
}

// IsSoftBlock reports whether body looks like a meta-refresh block page.
func IsSoftBlock(body string) bool {
	lower := strings.ToLower(body)
	for _, m := range softBlockMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
