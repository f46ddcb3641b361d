package reconciliation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fortuna/matatena/internal/catalog"
	"github.com/fortuna/matatena/internal/describe"
	"github.com/fortuna/matatena/internal/metrics"
	"github.com/fortuna/matatena/internal/store"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent description fetches
const DefaultWorkers = 20

// GameStore is the cache the engine reconciles against
type GameStore interface {
	ExistingGames(ctx context.Context, ids []string) ([]store.GameRecord, error)
	BeginBatch(ctx context.Context) (store.Batch, error)
}

// Describer resolves the description of one game
type Describer interface {
	FetchDescription(ctx context.Context, id string) (string, error)
}

// Config wires the engine to its store and enricher
type Config struct {
	Store     GameStore
	Describer Describer
	Workers   int
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
}

// Stats tracks reconciliation statistics
type Stats struct {
	Reconciliations    int       `json:"reconciliations"`
	CacheHits          int       `json:"cache_hits"`
	CacheMisses        int       `json:"cache_misses"`
	EnrichFailures     int       `json:"enrich_failures"`
	PersistFailures    int       `json:"persist_failures"`
	LastReconciliation time.Time `json:"last_reconciliation"`
}

// Engine splits requested games into cached and missing, resolves the
// missing ones and writes them back to the cache.
type Engine struct {
	store     GameStore
	describer Describer
	workers   int
	logger    *slog.Logger
	metrics   *metrics.Recorder

	mu    sync.Mutex
	stats Stats
}

// NewEngine creates a new reconciliation engine
func NewEngine(cfg Config) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		store:     cfg.Store,
		describer: cfg.Describer,
		workers:   workers,
		logger:    logger.With(slog.String("component", "reconciliation")),
		metrics:   cfg.Metrics,
	}
}

// Reconcile returns one GameRecord per distinct item id: cached rows first,
// then newly resolved ones in input order. Newly resolved records are
// returned even when they could not be persisted.
func (e *Engine) Reconcile(ctx context.Context, raw []catalog.CatalogItem) []store.GameRecord {
	items := dedupe(raw)
	if len(items) == 0 {
		return []store.GameRecord{}
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID()
	}

	cached := e.lookup(ctx, ids)

	hits := make([]store.GameRecord, 0, len(cached))
	var missing []catalog.CatalogItem
	for _, item := range items {
		if record, ok := cached[item.ID()]; ok {
			hits = append(hits, record)
			continue
		}
		missing = append(missing, item)
	}

	e.metrics.CacheHits(len(hits))
	e.metrics.CacheMisses(len(missing))
	e.logger.DebugContext(ctx, "reconciling games",
		slog.Int("requested", len(items)),
		slog.Int("cached", len(hits)),
		slog.Int("missing", len(missing)))

	resolved, enrichFailures, persistFailures := e.resolve(ctx, missing)

	e.mu.Lock()
	e.stats.Reconciliations++
	e.stats.CacheHits += len(hits)
	e.stats.CacheMisses += len(missing)
	e.stats.EnrichFailures += enrichFailures
	e.stats.PersistFailures += persistFailures
	e.stats.LastReconciliation = time.Now()
	e.mu.Unlock()

	return append(hits, resolved...)
}

// Stats returns a snapshot of reconciliation statistics
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// lookup returns cached rows by id. A failed lookup counts as all missing.
func (e *Engine) lookup(ctx context.Context, ids []string) map[string]store.GameRecord {
	existing, err := e.store.ExistingGames(ctx, ids)
	if err != nil {
		e.logger.ErrorContext(ctx, "cache lookup failed, resolving all games", slog.Any("err", err))
		return nil
	}

	cached := make(map[string]store.GameRecord, len(existing))
	for _, record := range existing {
		cached[record.ID] = record
	}
	return cached
}

// resolve normalizes and enriches the missing items, persisting each one
// as soon as its description is known. Enrichment is not cancelled with
// the caller; each fetch is bounded by the enricher's own timeout.
func (e *Engine) resolve(ctx context.Context, missing []catalog.CatalogItem) ([]store.GameRecord, int, int) {
	if len(missing) == 0 {
		return nil, 0, 0
	}

	records := make([]store.GameRecord, len(missing))
	for i, item := range missing {
		records[i] = Normalize(item)
	}

	detached := context.WithoutCancel(ctx)

	batch, err := e.store.BeginBatch(detached)
	if err != nil {
		e.logger.ErrorContext(ctx, "cannot open insert batch, games will not be cached", slog.Any("err", err))
		batch = nil
	}

	done := make(chan int, len(records))
	var enrichFailures int
	var failMu sync.Mutex

	go func() {
		g := new(errgroup.Group)
		g.SetLimit(e.workers)
		for i := range records {
			g.Go(func() error {
				desc, err := e.describer.FetchDescription(detached, records[i].ID)
				switch {
				case err == nil && desc != "":
					records[i].Description = &desc
				case err != nil && !errors.Is(err, describe.ErrNoDescription):
					failMu.Lock()
					enrichFailures++
					failMu.Unlock()
					e.logger.WarnContext(ctx, "description fetch failed",
						slog.String("id", records[i].ID),
						slog.Any("err", err))
				}
				done <- i
				return nil
			})
		}
		_ = g.Wait()
		close(done)
	}()

	persistFailures := 0
	for i := range done {
		if batch == nil {
			continue
		}
		if err := batch.Insert(detached, records[i]); err != nil {
			persistFailures++
			e.metrics.PersistFailure()
			e.logger.WarnContext(ctx, "failed to cache game",
				slog.String("id", records[i].ID),
				slog.Any("err", err))
		}
	}

	if batch != nil {
		if err := batch.Commit(); err != nil {
			persistFailures = len(records)
			e.metrics.PersistFailure()
			e.logger.ErrorContext(ctx, "commit failed, rolling back", slog.Any("err", err))
			if rbErr := batch.Rollback(); rbErr != nil {
				e.logger.ErrorContext(ctx, "rollback failed", slog.Any("err", rbErr))
			}
		}
	}

	failMu.Lock()
	defer failMu.Unlock()
	return records, enrichFailures, persistFailures
}

// dedupe drops items without an id and repeated ids, keeping the first
// occurrence in input order.
func dedupe(raw []catalog.CatalogItem) []catalog.CatalogItem {
	seen := make(map[string]struct{}, len(raw))
	items := make([]catalog.CatalogItem, 0, len(raw))
	for _, item := range raw {
		id := item.ID()
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		items = append(items, item)
	}
	return items
}
