package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// closeGrace bounds teardown when Open itself fails.
const closeGrace = 10 * time.Second

// session is one page in its own incognito context.
type session struct {
	owner     *Browser
	contextID proto.BrowserBrowserContextID
	page      *rod.Page
	router    *rod.HijackRouter

	closeOnce sync.Once
	closeErr  error
}

func (s *session) Navigate(ctx context.Context, url string) error {
	return s.page.Context(ctx).Navigate(url)
}

// WaitLoad waits for the window load event.
func (s *session) WaitLoad(ctx context.Context) error {
	return s.page.Context(ctx).WaitLoad()
}

// WaitSelector blocks until selector matches an element or ctx ends.
func (s *session) WaitSelector(ctx context.Context, selector string) error {
	_, err := s.page.Context(ctx).Element(selector)
	return err
}

func (s *session) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// Close stops interception, closes the page and disposes the browser
// context. Only the first call does any work.
func (s *session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.router != nil {
			if err := s.router.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop hijack: %w", err))
			}
		}
		if s.page != nil {
			if err := s.page.Context(ctx).Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		if err := (proto.TargetDisposeBrowserContext{BrowserContextID: s.contextID}).Call(s.owner.browser.Context(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("dispose context: %w", err))
		}
		s.owner.sessions.Add(-1)
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
