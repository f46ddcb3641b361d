package describe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fortuna/matatena/internal/metrics"
	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// SiteBaseURL serves one HTML page per game at /boardgame/{id}
	SiteBaseURL = "https://boardgamegeek.com"

	defaultTimeout   = 5 * time.Second
	defaultCacheSize = 500
)

// ErrNoDescription means the page loaded but carried no description metadata.
var ErrNoDescription = errors.New("describe: page has no description")

// SharedCache is a second memo level shared between processes.
type SharedCache interface {
	LookupDescription(ctx context.Context, id string) (string, bool, error)
	StoreDescription(ctx context.Context, id, value string) error
}

// Config controls how descriptions are fetched and memoised.
type Config struct {
	SiteBaseURL string
	UserAgent   string
	APIKey      string
	Timeout     time.Duration
	CacheSize   int
	Shared      SharedCache
	Logger      *slog.Logger
	Metrics     *metrics.Recorder
}

// Enricher fetches the short description of a game from its BGG page.
// It is safe for concurrent use. Results live in an LRU for the lifetime
// of the Enricher; two racing callers may both fetch the same page.
type Enricher struct {
	baseURL string
	http    *resty.Client
	memo    *lru.Cache[string, string]
	shared  SharedCache
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// New creates an Enricher
func New(cfg Config) (*Enricher, error) {
	baseURL := strings.TrimSuffix(cfg.SiteBaseURL, "/")
	if baseURL == "" {
		baseURL = SiteBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	memo, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating description memo: %w", err)
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", cfg.UserAgent)
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	return &Enricher{
		baseURL: baseURL,
		http:    httpClient,
		memo:    memo,
		shared:  cfg.Shared,
		logger:  logger.With(slog.String("component", "describe")),
		metrics: cfg.Metrics,
	}, nil
}

// FetchDescription returns the description of game id.
// ErrNoDescription is returned when the page has none; any other error
// is a fetch failure and is not memoised.
func (e *Enricher) FetchDescription(ctx context.Context, id string) (string, error) {
	if v, ok := e.memo.Get(id); ok {
		e.metrics.Enrichment("memo_hit")
		return result(v)
	}

	if e.shared != nil {
		v, found, err := e.shared.LookupDescription(ctx, id)
		switch {
		case err != nil:
			e.logger.DebugContext(ctx, "shared cache lookup failed", slog.String("id", id), slog.Any("err", err))
		case found:
			e.memo.Add(id, v)
			e.metrics.Enrichment("memo_hit")
			return result(v)
		}
	}

	doc, err := e.fetchPage(ctx, id)
	if err != nil {
		e.metrics.Enrichment("failed")
		return "", err
	}

	desc := ExtractDescription(doc)
	e.memo.Add(id, desc)
	if e.shared != nil {
		if err := e.shared.StoreDescription(ctx, id, desc); err != nil {
			e.logger.DebugContext(ctx, "shared cache store failed", slog.String("id", id), slog.Any("err", err))
		}
	}

	if desc == "" {
		e.metrics.Enrichment("no_description")
	} else {
		e.metrics.Enrichment("fetched")
	}
	return result(desc)
}

func (e *Enricher) fetchPage(ctx context.Context, id string) (*goquery.Document, error) {
	url := fmt.Sprintf("%s/boardgame/%s", e.baseURL, id)

	res, err := e.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ExtractDescription returns the standard meta description, falling back
// to the Open Graph description. "" when neither is present.
func ExtractDescription(doc *goquery.Document) string {
	selectors := []string{
		`meta[name="description"]`,
		`meta[property="og:description"]`,
	}
	for _, sel := range selectors {
		content, ok := doc.Find(sel).First().Attr("content")
		if ok && strings.TrimSpace(content) != "" {
			return strings.TrimSpace(content)
		}
	}
	return ""
}

func result(v string) (string, error) {
	if v == "" {
		return "", ErrNoDescription
	}
	return v, nil
}
