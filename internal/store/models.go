package store

import "context"

// GameRecord is the flattened form of one game, used both as the cached
// row and as the display record. ID is the BGG identifier.
type GameRecord struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Image         string   `json:"image,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	Description   *string  `json:"description"`
	YearPublished string   `json:"year_published"`
	MinPlayers    string   `json:"min_players"`
	MaxPlayers    string   `json:"max_players"`
	PlayingTime   string   `json:"playing_time"`
	AverageWeight float64  `json:"average_weight"`
	Designers     []string `json:"designers"`
	Artists       []string `json:"artists"`
}

// HasDescription reports whether enrichment produced a description
func (g GameRecord) HasDescription() bool {
	return g.Description != nil && *g.Description != ""
}

// DescriptionText returns the description or "" (for templates)
func (g GameRecord) DescriptionText() string {
	if g.Description == nil {
		return ""
	}
	return *g.Description
}

// Batch collects inserts for one reconciliation pass and commits them once.
// A failed Insert leaves the batch usable for the remaining records.
type Batch interface {
	Insert(ctx context.Context, game GameRecord) error
	Commit() error
	Rollback() error
}
