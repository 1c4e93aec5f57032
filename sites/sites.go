// Package sites holds per-retailer extraction overrides. A Site names the
// hosts it applies to and the selectors that should be tried before the
// generic cascades, plus the selectors a rendered page must show before its
// HTML is captured.
package sites

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Site is the declarative description of one retailer.
type Site struct {
	Name string

	// Domains are registrable domains; a host matches when it equals a
	// domain or is a subdomain of it.
	Domains []string

	Title       []string
	Materials   []string
	Price       []string
	Description []string

	// WaitSelectors are awaited (non-fatally) by the browser strategy.
	WaitSelectors []string
}

// Selector is a compiled CSS selector that keeps its source text.
type Selector struct {
	raw string
	sel cascadia.Sel
}

func (s Selector) String() string { return s.raw }

// QueryAll returns every node under root matching the selector, in document order.
func (s Selector) QueryAll(root *html.Node) []*html.Node {
	return cascadia.QueryAll(root, s.sel)
}

// Profile is a Site with compiled selectors.
type Profile struct {
	Name          string
	Domains       []string
	Title         []Selector
	Materials     []Selector
	Price         []Selector
	Description   []Selector
	WaitSelectors []string
}

// Matches reports whether host belongs to the profile.
func (p *Profile) Matches(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, d := range p.Domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Registry resolves a page URL to its site profile.
type Registry struct {
	mu       sync.RWMutex
	profiles []*Profile
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register compiles site and adds it. Every selector must parse.
func (r *Registry) Register(site Site) error {
	if site.Name == "" {
		return fmt.Errorf("sites: register: empty name")
	}
	if len(site.Domains) == 0 {
		return fmt.Errorf("sites: register %s: no domains", site.Name)
	}

	p := &Profile{Name: site.Name, WaitSelectors: append([]string(nil), site.WaitSelectors...)}
	for _, d := range site.Domains {
		p.Domains = append(p.Domains, strings.ToLower(d))
	}

	var err error
	if p.Title, err = compileAll(site.Name, site.Title); err != nil {
		return err
	}
	if p.Materials, err = compileAll(site.Name, site.Materials); err != nil {
		return err
	}
	if p.Price, err = compileAll(site.Name, site.Price); err != nil {
		return err
	}
	if p.Description, err = compileAll(site.Name, site.Description); err != nil {
		return err
	}
	if _, err = compileAll(site.Name, site.WaitSelectors); err != nil {
		return err
	}

	r.mu.Lock()
	r.profiles = append(r.profiles, p)
	r.mu.Unlock()
	return nil
}

// Lookup returns the first registered profile whose domains cover the host
// of rawURL.
func (r *Registry) Lookup(rawURL string) (*Profile, bool) {
	if r == nil {
		return nil, false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.profiles {
		if p.Matches(u.Hostname()) {
			return p, true
		}
	}
	return nil, false
}

// Names lists registered site names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.profiles))
	for _, p := range r.profiles {
		names = append(names, p.Name)
	}
	return names
}

func compileAll(site string, raw []string) ([]Selector, error) {
	out := make([]Selector, 0, len(raw))
	for _, s := range raw {
		sel, err := cascadia.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("sites: %s: selector %q: %w", site, s, err)
		}
		out = append(out, Selector{raw: s, sel: sel})
	}
	return out, nil
}
