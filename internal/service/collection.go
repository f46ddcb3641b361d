package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fortuna/matatena/internal/catalog"
	"github.com/fortuna/matatena/internal/store"
)

// DefaultPerPage is the grid size of one collection page
const DefaultPerPage = 24

// ErrEmptyCollection means the user exists but owns no games
var ErrEmptyCollection = errors.New("collection is empty")

// Catalog is the part of the BGG client the service needs
type Catalog interface {
	FetchOwnedItems(ctx context.Context, username string) ([]catalog.OwnedItem, error)
	FetchItemDetails(ctx context.Context, ids []string) []catalog.CatalogItem
}

// Reconciler resolves raw catalog items into cached game records
type Reconciler interface {
	Reconcile(ctx context.Context, raw []catalog.CatalogItem) []store.GameRecord
}

// PageView is one rendered page of a user's collection
type PageView struct {
	Username   string             `json:"username"`
	Games      []store.GameRecord `json:"games"`
	Page       int                `json:"page"`
	TotalPages int                `json:"total_pages"`
	TotalItems int                `json:"total_items"`
}

// HasPrev reports whether a previous page exists
func (v *PageView) HasPrev() bool { return v.Page > 1 }

// HasNext reports whether a following page exists
func (v *PageView) HasNext() bool { return v.Page < v.TotalPages }

// WarmResult summarizes a full-collection reconciliation
type WarmResult struct {
	Owned    int
	Resolved int
}

// CollectionService turns a BGG username into game records
type CollectionService struct {
	catalog    Catalog
	reconciler Reconciler
	perPage    int
	logger     *slog.Logger
}

// NewCollectionService creates a new collection service
func NewCollectionService(cat Catalog, rec Reconciler, perPage int, logger *slog.Logger) *CollectionService {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CollectionService{
		catalog:    cat,
		reconciler: rec,
		perPage:    perPage,
		logger:     logger.With(slog.String("component", "collection")),
	}
}

// PerPage returns the configured page size
func (s *CollectionService) PerPage() int {
	return s.perPage
}

// Page resolves one page of the user's collection. Catalog errors are
// returned wrapped so callers can match them with errors.Is.
func (s *CollectionService) Page(ctx context.Context, username string, page int) (*PageView, error) {
	owned, err := s.owned(ctx, username)
	if err != nil {
		return nil, err
	}

	p := Paginate(owned, page, s.perPage)
	games := s.resolve(ctx, idsOf(p.Items))

	s.logger.DebugContext(ctx, "collection page resolved",
		slog.String("username", username),
		slog.Int("page", p.Number),
		slog.Int("games", len(games)))

	return &PageView{
		Username:   username,
		Games:      games,
		Page:       p.Number,
		TotalPages: p.TotalPages,
		TotalItems: p.TotalItems,
	}, nil
}

// Export resolves the games to put in a PDF deck. Explicitly selected ids
// are used as-is without fetching the collection; otherwise, or when all
// is set, every owned game is exported.
func (s *CollectionService) Export(ctx context.Context, username string, ids []string, all bool) ([]store.GameRecord, error) {
	if all || len(ids) == 0 {
		owned, err := s.owned(ctx, username)
		if err != nil {
			return nil, err
		}
		ids = idsOf(owned)
	}

	games := s.resolve(ctx, ids)
	s.logger.InfoContext(ctx, "export resolved",
		slog.String("username", username),
		slog.Int("requested", len(ids)),
		slog.Int("games", len(games)))
	return games, nil
}

// Warm reconciles the user's whole collection so later page views are
// served from the cache.
func (s *CollectionService) Warm(ctx context.Context, username string) (*WarmResult, error) {
	owned, err := s.owned(ctx, username)
	if err != nil {
		return nil, err
	}

	games := s.resolve(ctx, idsOf(owned))
	return &WarmResult{Owned: len(owned), Resolved: len(games)}, nil
}

// Count returns how many games the user owns
func (s *CollectionService) Count(ctx context.Context, username string) (int, error) {
	owned, err := s.owned(ctx, username)
	if err != nil {
		return 0, err
	}
	return len(owned), nil
}

func (s *CollectionService) owned(ctx context.Context, username string) ([]catalog.OwnedItem, error) {
	owned, err := s.catalog.FetchOwnedItems(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("fetching collection for %q: %w", username, err)
	}
	if len(owned) == 0 {
		return nil, ErrEmptyCollection
	}
	return owned, nil
}

func (s *CollectionService) resolve(ctx context.Context, ids []string) []store.GameRecord {
	if len(ids) == 0 {
		return []store.GameRecord{}
	}
	details := s.catalog.FetchItemDetails(ctx, ids)
	return s.reconciler.Reconcile(ctx, details)
}

func idsOf(items []catalog.OwnedItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}
