package reconciliation

import (
	"strconv"

	"github.com/fortuna/matatena/internal/catalog"
	"github.com/fortuna/matatena/internal/store"
)

// Link types that map onto GameRecord roles. Every other link type
// (categories, mechanics, publishers...) is ignored.
const (
	LinkDesigner = "boardgamedesigner"
	LinkArtist   = "boardgameartist"
)

// Normalize flattens one raw thing item into a GameRecord without a
// description. Missing scalar fields become "".
func Normalize(item catalog.CatalogItem) store.GameRecord {
	m := map[string]interface{}(item)

	record := store.GameRecord{
		ID:            item.ID(),
		Name:          catalog.Attr(catalog.First(m["name"]), "value"),
		Image:         catalog.Text(catalog.Head(m["image"])),
		Thumbnail:     catalog.Text(catalog.Head(m["thumbnail"])),
		YearPublished: catalog.Value(m, "yearpublished"),
		MinPlayers:    catalog.Value(m, "minplayers"),
		MaxPlayers:    catalog.Value(m, "maxplayers"),
		PlayingTime:   catalog.Value(m, "playingtime"),
		AverageWeight: averageWeight(m),
		Designers:     []string{},
		Artists:       []string{},
	}

	for _, link := range catalog.Maps(m["link"]) {
		switch catalog.Attr(link, "type") {
		case LinkDesigner:
			record.Designers = append(record.Designers, catalog.Attr(link, "value"))
		case LinkArtist:
			record.Artists = append(record.Artists, catalog.Attr(link, "value"))
		}
	}

	return record
}

func averageWeight(m map[string]interface{}) float64 {
	raw := catalog.Attr(catalog.Path(m, "statistics", "ratings", "averageweight"), "value")
	if raw == "" {
		return 0
	}
	weight, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return weight
}
