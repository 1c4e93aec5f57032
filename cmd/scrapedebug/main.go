// Command scrapedebug fetches one product page through the strategy selector,
// bypassing cache and proxy pool, and prints the extracted record.
//
//	scrapedebug [-browser=false] [-proxy addr] [-dump 2000] <url>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/shelfscan/app"
	"github.com/use-agent/shelfscan/cleaner"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/extract"
)

func main() {
	useBrowser := flag.Bool("browser", true, "enable the browser fallback")
	proxy := flag.String("proxy", "", "proxy address for the fetch")
	dump := flag.Int("dump", 0, "print the first N characters of the page as Markdown")
	timeout := flag.Duration("timeout", 3*time.Minute, "overall timeout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: scrapedebug [flags] <url>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	pageURL := flag.Arg(0)

	if err := run(pageURL, *useBrowser, *proxy, *dump, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(pageURL string, useBrowser bool, proxy string, dump int, timeout time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Browser.Enabled = useBrowser
	cfg.Cache.Backend = "none"
	cfg.Proxy.Enabled = false
	cfg.Log.Format = "text"

	logger := app.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	res, err := a.Fetcher.Fetch(ctx, pageURL, proxy)
	if err != nil {
		return err
	}
	slog.Info("fetched", "engine", res.EngineName, "bytes", len(res.HTML), "elapsed", time.Since(start).Round(time.Millisecond))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	rec := extract.New(a.Sites, logger).Extract(doc, pageURL)

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if dump > 0 {
		md, err := cleaner.NewRenderer().Markdown(res.HTML, pageURL)
		if err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		fmt.Println("\n--- page (markdown) ---")
		fmt.Println(cleaner.Truncate(md, dump))
	}
	return nil
}
