package engine

import (
	"context"
	"log/slog"

	"github.com/use-agent/shelfscan/models"
)

// Fetcher selects between the fetch strategies. The lightweight strategy
// always runs first; the fallback runs only when it fails.
type Fetcher struct {
	primary  Engine
	fallback Engine
	logger   *slog.Logger
}

// NewFetcher creates a Fetcher. fallback may be nil, in which case a
// primary failure is final.
func NewFetcher(primary, fallback Engine, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{primary: primary, fallback: fallback, logger: logger}
}

// Fetch returns the first successful result. When every strategy fails it
// returns a *models.FetchError carrying each strategy's reason in order.
func (f *Fetcher) Fetch(ctx context.Context, url, proxy string) (*FetchResult, error) {
	req := &FetchRequest{URL: url, Proxy: proxy}
	fetchErr := &models.FetchError{URL: url}

	for _, eng := range []Engine{f.primary, f.fallback} {
		if eng == nil {
			continue
		}
		f.logger.Debug("engine starting", "engine", eng.Name(), "url", url, "proxy", proxy)

		result, err := eng.Fetch(ctx, req)
		if err == nil {
			f.logger.Info("page fetched", "engine", result.EngineName, "url", url, "bytes", len(result.HTML))
			return result, nil
		}

		f.logger.Info("engine failed", "engine", eng.Name(), "url", url, "error", err)
		fetchErr.Attempts = append(fetchErr.Attempts, models.Attempt{Strategy: eng.Name(), Err: err})
	}

	return nil, fetchErr
}
