package game

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Taxonomy is one value of a classification axis (genre, mechanic, ...).
// All axes share the same shape, so they share one type and table-driven
// queries against a whitelist of tables.
type Taxonomy struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type TaxonomyNew struct {
	Name string `json:"name" validate:"required,max=100"`
}

type Kind string

const (
	KindPublisher   Kind = "publisher"
	KindGenre       Kind = "genre"
	KindMechanic    Kind = "mechanic"
	KindType        Kind = "type"
	KindPlayerCount Kind = "player-count"
	KindAgeGroup    Kind = "age-group"
	KindDifficulty  Kind = "difficulty"
	KindDuration    Kind = "duration"
)

var taxonomyTables = map[Kind]struct {
	table string
	idCol string
}{
	KindPublisher:   {"publishers", "publisher_id"},
	KindGenre:       {"genres", "genre_id"},
	KindMechanic:    {"mechanics", "mechanic_id"},
	KindType:        {"game_types", "type_id"},
	KindPlayerCount: {"player_counts", "player_count_id"},
	KindAgeGroup:    {"age_groups", "age_group_id"},
	KindDifficulty:  {"difficulty_levels", "difficulty_id"},
	KindDuration:    {"durations", "duration_id"},
}

func CreateTaxonomy(ctx context.Context, db sqlx.ExtContext, kind Kind, t Taxonomy) error {
	tbl, ok := taxonomyTables[kind]
	if !ok {
		return fmt.Errorf("unknown taxonomy kind %q", kind)
	}

	q := fmt.Sprintf(`INSERT INTO %s (%s, name) VALUES ($1, $2)`, tbl.table, tbl.idCol)
	if _, err := db.ExecContext(ctx, q, t.ID, t.Name); err != nil {
		return fmt.Errorf("inserting %s: %w", kind, err)
	}
	return nil
}

func FetchTaxonomies(ctx context.Context, db sqlx.ExtContext, kind Kind) ([]Taxonomy, error) {
	tbl, ok := taxonomyTables[kind]
	if !ok {
		return nil, fmt.Errorf("unknown taxonomy kind %q", kind)
	}

	q := fmt.Sprintf(`SELECT %s AS id, name FROM %s ORDER BY name`, tbl.idCol, tbl.table)

	ts := []Taxonomy{}
	if err := sqlx.SelectContext(ctx, db, &ts, q); err != nil {
		return nil, fmt.Errorf("selecting %s values: %w", kind, err)
	}
	return ts, nil
}

func fetchGameTaxonomies(ctx context.Context, db sqlx.ExtContext, gameID string, join string, kind Kind) ([]Taxonomy, error) {
	tbl := taxonomyTables[kind]

	q := fmt.Sprintf(`
	SELECT t.%s AS id, t.name
	FROM %s AS t
	JOIN %s AS j ON j.%s = t.%s
	WHERE j.game_id = $1
	ORDER BY t.name`, tbl.idCol, tbl.table, join, tbl.idCol, tbl.idCol)

	ts := []Taxonomy{}
	if err := sqlx.SelectContext(ctx, db, &ts, q, gameID); err != nil {
		return nil, fmt.Errorf("selecting game %s values: %w", kind, err)
	}
	return ts, nil
}
