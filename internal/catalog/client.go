package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fortuna/matatena/internal/metrics"
	"github.com/go-resty/resty/v2"
)

const (
	// BaseURL is the BGG XML API 2 root
	BaseURL = "https://boardgamegeek.com/xmlapi2"

	// DetailBatchSize is the most ids BGG accepts in one thing request
	DetailBatchSize = 20

	defaultTimeout = 30 * time.Second
)

// Config controls how the client reaches the BGG XML API.
type Config struct {
	BaseURL   string
	UserAgent string
	APIKey    string
	Timeout   time.Duration
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
}

// Client handles BGG XML API requests
type Client struct {
	baseURL string
	http    *resty.Client
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// New creates a BGG client. BGG rejects requests without a custom
// User-Agent, so one is always set.
func New(cfg Config) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/xml")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger.With(slog.String("component", "catalog")),
		metrics: cfg.Metrics,
	}
}

// FetchOwnedItems fetches the owned, non-expansion games of a user.
//
// Returns ErrRetryLater when BGG answers 202, ErrNoSuchUser when BGG
// reports an unknown username, and *UpstreamError for everything else
// that is not a readable 200.
func (c *Client) FetchOwnedItems(ctx context.Context, username string) ([]OwnedItem, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrNoSuchUser
	}

	status, body, err := c.get(ctx, "collection", map[string]string{
		"username":       username,
		"own":            "1",
		"stats":          "1",
		"excludesubtype": "boardgameexpansion",
	})
	if err != nil {
		c.metrics.CatalogRequest("collection", "error")
		return nil, &UpstreamError{Op: "collection", Err: err}
	}

	switch status {
	case http.StatusAccepted:
		c.metrics.CatalogRequest("collection", "retry_later")
		c.logger.InfoContext(ctx, "collection queued by bgg", slog.String("username", username))
		return nil, ErrRetryLater
	case http.StatusOK:
	default:
		c.metrics.CatalogRequest("collection", "error")
		c.logger.WarnContext(ctx, "collection request failed",
			slog.String("username", username),
			slog.Int("status", status),
			slog.String("body", snippet(body)))
		return nil, &UpstreamError{Op: "collection", StatusCode: status}
	}

	doc, err := decodeXML(body)
	if err != nil {
		c.metrics.CatalogRequest("collection", "error")
		return nil, &UpstreamError{Op: "collection", Err: err}
	}

	if _, ok := doc["errors"]; ok {
		c.metrics.CatalogRequest("collection", "no_such_user")
		return nil, ErrNoSuchUser
	}

	items, err := ParseOwnedItems(doc)
	if err != nil {
		c.metrics.CatalogRequest("collection", "error")
		return nil, &UpstreamError{Op: "collection", Err: err}
	}

	c.metrics.CatalogRequest("collection", "ok")
	c.logger.DebugContext(ctx, "fetched collection", slog.String("username", username), slog.Int("items", len(items)))
	return items, nil
}

// FetchItemDetails fetches thing details in batches of DetailBatchSize.
// A failed batch is logged and its items are left out; nothing is retried.
func (c *Client) FetchItemDetails(ctx context.Context, ids []string) []CatalogItem {
	var all []CatalogItem

	for start := 0; start < len(ids); start += DetailBatchSize {
		end := start + DetailBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		items, err := c.fetchThings(ctx, batch)
		if err != nil {
			c.metrics.CatalogRequest("thing", "error")
			c.logger.WarnContext(ctx, "thing batch failed",
				slog.Int("offset", start),
				slog.Int("size", len(batch)),
				slog.Any("err", err))
			continue
		}
		c.metrics.CatalogRequest("thing", "ok")
		all = append(all, items...)
	}

	return all
}

func (c *Client) fetchThings(ctx context.Context, ids []string) ([]CatalogItem, error) {
	status, body, err := c.get(ctx, "thing", map[string]string{
		"id":    strings.Join(ids, ","),
		"stats": "1",
	})
	if err != nil {
		return nil, &UpstreamError{Op: "thing", Err: err}
	}
	if status != http.StatusOK {
		return nil, &UpstreamError{Op: "thing", StatusCode: status, Err: fmt.Errorf("body: %s", snippet(body))}
	}

	doc, err := decodeXML(body)
	if err != nil {
		return nil, &UpstreamError{Op: "thing", Err: err}
	}
	return ParseThings(doc), nil
}

// ParseOwnedItems extracts owned items from a decoded collection document.
func ParseOwnedItems(doc map[string]interface{}) ([]OwnedItem, error) {
	root, ok := doc["items"]
	if !ok {
		return nil, fmt.Errorf("collection response missing <items> root")
	}

	rootMap, _ := root.(map[string]interface{})
	entries := Maps(rootMap["item"])

	items := make([]OwnedItem, 0, len(entries))
	for _, entry := range entries {
		id := Attr(entry, "objectid")
		if id == "" {
			continue
		}
		items = append(items, OwnedItem{
			ID:   id,
			Name: Text(Head(entry["name"])),
		})
	}
	return items, nil
}

// ParseThings extracts detail items from a decoded thing document.
func ParseThings(doc map[string]interface{}) []CatalogItem {
	rootMap, _ := doc["items"].(map[string]interface{})
	entries := Maps(rootMap["item"])

	items := make([]CatalogItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, CatalogItem(entry))
	}
	return items
}

// get performs one GET against the API and returns status and body
func (c *Client) get(ctx context.Context, endpoint string, params map[string]string) (int, []byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(c.baseURL + "/" + endpoint)
	if err != nil {
		return 0, nil, err
	}
	return res.StatusCode(), res.Body(), nil
}

func snippet(body []byte) string {
	return string(body[:min(len(body), 200)])
}
