// Package crawler reads the remote directory index and downloads its files.
package crawler

import (
	"context"
	"fmt"

	"blsdata/internal/models"
	"blsdata/internal/retry"
)

// Client lists and downloads the files of one remote directory.
type Client struct {
	scraper *Scraper
	baseURL string
}

// NewClient creates a client for the directory at baseURL.
func NewClient(baseURL string, scraper *Scraper) *Client {
	return &Client{
		scraper: scraper,
		baseURL: baseURL,
	}
}

// ListDirectory fetches and parses the directory index.
func (c *Client) ListDirectory(ctx context.Context) ([]models.ListingEntry, error) {
	content, err := c.scraper.Fetch(ctx, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch directory index: %w", err)
	}

	entries, err := ParseIndex(c.baseURL, content)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to parse directory index: %w", err))
	}

	return entries, nil
}

// Download returns the content of one listed file.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	return c.scraper.Fetch(ctx, url)
}
