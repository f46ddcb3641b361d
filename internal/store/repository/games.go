package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fortuna/matatena/internal/store"
	"github.com/lib/pq"
)

const gameColumns = `bgg_id, name, image, thumbnail, description, year_published,
	min_players, max_players, playing_time, average_weight, designers, artists`

// GameRepository handles cached game rows
type GameRepository struct {
	db *store.Database
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *store.Database) *GameRepository {
	return &GameRepository{db: db}
}

// ExistingGames returns the cached rows for the given BGG ids.
// Ids with no row are simply absent from the result.
func (r *GameRepository) ExistingGames(ctx context.Context, ids []string) ([]store.GameRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + gameColumns + ` FROM games WHERE bgg_id = ANY($1)`

	rows, err := r.db.DB().QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying games: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

// GetByID finds a cached game by its BGG id
func (r *GameRepository) GetByID(ctx context.Context, id string) (*store.GameRecord, error) {
	games, err := r.ExistingGames(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, fmt.Errorf("game not found: %s", id)
	}
	return &games[0], nil
}

// BeginBatch opens a transaction for inserting newly resolved games
func (r *GameRepository) BeginBatch(ctx context.Context) (store.Batch, error) {
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning game batch: %w", err)
	}
	return &GameBatch{tx: tx}, nil
}

// GameBatch inserts games inside one transaction. Every insert runs in
// its own savepoint so a failed row does not abort the transaction.
type GameBatch struct {
	tx       *sql.Tx
	inserted int
}

// Insert writes a game unless a row with the same BGG id already exists
func (b *GameBatch) Insert(ctx context.Context, g store.GameRecord) error {
	if _, err := b.tx.ExecContext(ctx, "SAVEPOINT game_insert"); err != nil {
		return fmt.Errorf("creating savepoint: %w", err)
	}

	query := `
		INSERT INTO games (` + gameColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (bgg_id) DO NOTHING
	`
	_, err := b.tx.ExecContext(ctx, query,
		g.ID, g.Name, nullString(g.Image), nullString(g.Thumbnail), g.Description,
		nullString(g.YearPublished), nullString(g.MinPlayers), nullString(g.MaxPlayers), nullString(g.PlayingTime),
		g.AverageWeight, pq.Array(nonNil(g.Designers)), pq.Array(nonNil(g.Artists)),
	)
	if err != nil {
		if _, rbErr := b.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT game_insert"); rbErr != nil {
			return fmt.Errorf("inserting game %s: %w (savepoint rollback: %v)", g.ID, err, rbErr)
		}
		return fmt.Errorf("inserting game %s: %w", g.ID, err)
	}

	if _, err := b.tx.ExecContext(ctx, "RELEASE SAVEPOINT game_insert"); err != nil {
		return fmt.Errorf("releasing savepoint: %w", err)
	}
	b.inserted++
	return nil
}

// Inserted is the number of successful inserts so far
func (b *GameBatch) Inserted() int {
	return b.inserted
}

// Commit commits the batch
func (b *GameBatch) Commit() error {
	return b.tx.Commit()
}

// Rollback discards the batch
func (b *GameBatch) Rollback() error {
	return b.tx.Rollback()
}

func scanGames(rows *sql.Rows) ([]store.GameRecord, error) {
	var games []store.GameRecord
	for rows.Next() {
		var (
			g                                   store.GameRecord
			image, thumbnail, description       sql.NullString
			year, minPlayers, maxPlayers, playT sql.NullString
			weight                              sql.NullFloat64
			designers, artists                  pq.StringArray
		)
		err := rows.Scan(
			&g.ID, &g.Name, &image, &thumbnail, &description, &year,
			&minPlayers, &maxPlayers, &playT, &weight, &designers, &artists,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}

		g.Image = image.String
		g.Thumbnail = thumbnail.String
		if description.Valid {
			text := description.String
			g.Description = &text
		}
		g.YearPublished = year.String
		g.MinPlayers = minPlayers.String
		g.MaxPlayers = maxPlayers.String
		g.PlayingTime = playT.String
		g.AverageWeight = weight.Float64
		g.Designers = nonNil([]string(designers))
		g.Artists = nonNil([]string(artists))

		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating games: %w", err)
	}
	return games, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
