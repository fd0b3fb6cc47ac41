// Package zotero imports PDF attachments from a Zotero library through the
// Zotero Web API, feeding them into the regular ingest pipeline.
package zotero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/httpclient"
)

const pageSize = 100

// Item is one Zotero library entry as returned by the items endpoint.
type Item struct {
	Key  string   `json:"key"`
	Data ItemData `json:"data"`
}

// ItemData is the payload section of an item.
type ItemData struct {
	ItemType    string `json:"itemType"`
	Title       string `json:"title"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// Client talks to the Zotero Web API v3 for a single user library.
type Client struct {
	cfg    *config.ZoteroConfig
	client *httpclient.Client
}

// NewClient creates a client from the Zotero configuration.
func NewClient(cfg *config.ZoteroConfig) *Client {
	return &Client{cfg: cfg, client: httpclient.New()}
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Zotero-API-Key", c.cfg.APIKey)
	req.Header.Set("Zotero-API-Version", "3")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zotero request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("zotero API error (status %d): %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

// ListAttachments pages through all attachment items in the library.
func (c *Client) ListAttachments(ctx context.Context) ([]Item, error) {
	var items []Item
	start := 0
	for {
		query := url.Values{
			"itemType": {"attachment"},
			"start":    {strconv.Itoa(start)},
			"limit":    {strconv.Itoa(pageSize)},
		}
		resp, err := c.get(ctx, "/users/"+c.cfg.UserID+"/items", query)
		if err != nil {
			return nil, err
		}

		var page []Item
		err = json.NewDecoder(resp.Body).Decode(&page)
		total, _ := strconv.Atoi(resp.Header.Get("Total-Results"))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse zotero items: %w", err)
		}

		items = append(items, page...)
		start += len(page)
		if len(page) == 0 || start >= total {
			return items, nil
		}
	}
}

// DownloadAttachment fetches the attachment file into dir and returns the
// local path.
func (c *Client) DownloadAttachment(ctx context.Context, key, filename, dir string) (string, error) {
	resp, err := c.get(ctx, "/users/"+c.cfg.UserID+"/items/"+key+"/file", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	path := filepath.Join(dir, filepath.Base(filename))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to download attachment %s: %w", key, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return path, nil
}
