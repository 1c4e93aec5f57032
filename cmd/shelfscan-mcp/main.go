package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/shelfscan/app"
	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/models"
)

// productScraper is the slice of *scraper.Scraper the tool uses.
type productScraper interface {
	ScrapeProduct(ctx context.Context, url string) (models.ProductRecord, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol.
	logger := app.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		slog.Error("failed to initialise pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	s := newServer(a.Scraper, cfg.Scraper.RequestTimeout)
	if err := server.ServeStdio(s); err != nil {
		slog.Error("MCP server error", "error", err)
	}
}

func newServer(sc productScraper, timeout time.Duration) *server.MCPServer {
	s := server.NewMCPServer(
		"shelfscan",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	tool := mcp.NewTool("scrape_product",
		mcp.WithDescription("Scrape a retail product page and return its title, brand, price, materials, description, images and manufacturing location as JSON. Results are cached for 24 hours."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute URL of the product page"),
		),
	)
	s.AddTool(tool, handleScrapeProduct(sc, timeout))
	return s
}

func handleScrapeProduct(sc productScraper, timeout time.Duration) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		rec, err := sc.ScrapeProduct(ctx, url)
		if err != nil {
			return mcp.NewToolResultError(describeError(err)), nil
		}

		body, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode record: %v", err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

func describeError(err error) string {
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		return err.Error()
	}
	if se.Err == nil {
		return fmt.Sprintf("[%s] %s", se.Code, se.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", se.Code, se.Message, se.Err)
}
