package game

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

func Create(ctx context.Context, tx sqlx.ExtContext, g Game, genreIDs, mechanicIDs, typeIDs []string) error {
	const q = `
	INSERT INTO games
		(game_id, title, description, rules_summary, release_year, price, discount_price,
		 stock, publisher_id, player_count_id, age_group_id, difficulty_id, duration_id,
		 created_at, updated_at)
	VALUES
		(:game_id, :title, :description, :rules_summary, :release_year, :price, :discount_price,
		 :stock, :publisher_id, :player_count_id, :age_group_id, :difficulty_id, :duration_id,
		 :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, q, g); err != nil {
		return fmt.Errorf("inserting game: %w", err)
	}

	links := []struct {
		table string
		col   string
		ids   []string
	}{
		{"games_genres", "genre_id", genreIDs},
		{"games_mechanics", "mechanic_id", mechanicIDs},
		{"games_types", "type_id", typeIDs},
	}

	for _, l := range links {
		for _, id := range l.ids {
			q := fmt.Sprintf(`INSERT INTO %s (game_id, %s) VALUES ($1, $2)`, l.table, l.col)
			if _, err := tx.ExecContext(ctx, q, g.ID, id); err != nil {
				return fmt.Errorf("linking game to %s[%s]: %w", l.col, id, err)
			}
		}
	}

	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, g Game) error {
	const q = `
	UPDATE games SET
		title = :title,
		description = :description,
		rules_summary = :rules_summary,
		release_year = :release_year,
		price = :price,
		discount_price = :discount_price,
		stock = :stock,
		updated_at = :updated_at,
		version = version + 1
	WHERE game_id = :game_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, g); err != nil {
		return fmt.Errorf("updating game[%s]: %w", g.ID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Game, error) {
	const q = `
	SELECT g.*, COALESCE(AVG(r.rating), 0) AS rating
	FROM games AS g
	LEFT JOIN reviews AS r ON r.game_id = g.game_id
	WHERE g.game_id = $1
	GROUP BY g.game_id`

	var g Game
	if err := sqlx.GetContext(ctx, db, &g, q, id); err != nil {
		return Game{}, fmt.Errorf("selecting game[%s]: %w", id, err)
	}
	return g, nil
}

func FetchDetails(ctx context.Context, db sqlx.ExtContext, id string) (GameDetails, error) {
	g, err := Fetch(ctx, db, id)
	if err != nil {
		return GameDetails{}, err
	}

	genres, err := fetchGameTaxonomies(ctx, db, id, "games_genres", KindGenre)
	if err != nil {
		return GameDetails{}, err
	}
	mechanics, err := fetchGameTaxonomies(ctx, db, id, "games_mechanics", KindMechanic)
	if err != nil {
		return GameDetails{}, err
	}
	types, err := fetchGameTaxonomies(ctx, db, id, "games_types", KindType)
	if err != nil {
		return GameDetails{}, err
	}
	images, err := FetchImages(ctx, db, id)
	if err != nil {
		return GameDetails{}, err
	}

	return GameDetails{
		Game:      g,
		Genres:    genres,
		Mechanics: mechanics,
		Types:     types,
		Images:    images,
	}, nil
}

// Filter narrows and orders the catalog listing. Zero values mean "no
// constraint".
type Filter struct {
	Search        string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	GenreIDs      []string
	MechanicIDs   []string
	TypeIDs       []string
	PlayerCountID string
	AgeGroupID    string
	DifficultyID  string
	DurationID    string
	OrderBy       string
}

var orderings = map[string]string{
	"":                "g.created_at DESC",
	"created_at":      "g.created_at ASC",
	"-created_at":     "g.created_at DESC",
	"discount_price":  "g.discount_price ASC",
	"-discount_price": "g.discount_price DESC",
	"rating":          "rating ASC",
	"-rating":         "rating DESC",
}

func (f Filter) Validate() error {
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		return fmt.Errorf("min_price cannot be less than 0")
	}
	if f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		return fmt.Errorf("max_price cannot be less than 0")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return fmt.Errorf("min_price cannot be greater than max_price")
	}
	if _, ok := orderings[f.OrderBy]; !ok {
		return fmt.Errorf("unknown ordering %q", f.OrderBy)
	}
	return nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext, f Filter) ([]Game, error) {
	var (
		where []string
		args  []interface{}
	)

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		where = append(where, fmt.Sprintf("(g.title ILIKE %s OR g.description ILIKE %s)", p, p))
	}
	if f.MinPrice != nil {
		where = append(where, fmt.Sprintf("g.discount_price >= %s", arg(*f.MinPrice)))
	}
	if f.MaxPrice != nil {
		where = append(where, fmt.Sprintf("g.discount_price <= %s", arg(*f.MaxPrice)))
	}
	if len(f.GenreIDs) > 0 {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM games_genres AS x WHERE x.game_id = g.game_id AND x.genre_id = ANY(%s))",
			arg(pq.Array(f.GenreIDs))))
	}
	if len(f.MechanicIDs) > 0 {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM games_mechanics AS x WHERE x.game_id = g.game_id AND x.mechanic_id = ANY(%s))",
			arg(pq.Array(f.MechanicIDs))))
	}
	if len(f.TypeIDs) > 0 {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM games_types AS x WHERE x.game_id = g.game_id AND x.type_id = ANY(%s))",
			arg(pq.Array(f.TypeIDs))))
	}
	if f.PlayerCountID != "" {
		where = append(where, fmt.Sprintf("g.player_count_id = %s", arg(f.PlayerCountID)))
	}
	if f.AgeGroupID != "" {
		where = append(where, fmt.Sprintf("g.age_group_id = %s", arg(f.AgeGroupID)))
	}
	if f.DifficultyID != "" {
		where = append(where, fmt.Sprintf("g.difficulty_id = %s", arg(f.DifficultyID)))
	}
	if f.DurationID != "" {
		where = append(where, fmt.Sprintf("g.duration_id = %s", arg(f.DurationID)))
	}

	q := `
	SELECT g.*, COALESCE(AVG(r.rating), 0) AS rating
	FROM games AS g
	LEFT JOIN reviews AS r ON r.game_id = g.game_id`

	if len(where) > 0 {
		q += "\n\tWHERE " + strings.Join(where, " AND ")
	}

	q += "\n\tGROUP BY g.game_id"
	q += "\n\tORDER BY " + orderings[f.OrderBy]

	games := []Game{}
	if err := sqlx.SelectContext(ctx, db, &games, q, args...); err != nil {
		return nil, fmt.Errorf("selecting games: %w", err)
	}
	return games, nil
}

// DecrementStock reduces stock by qty, flooring at zero: a paid order is
// always fulfilled even if a concurrent sale drained the shelf first.
func DecrementStock(ctx context.Context, tx sqlx.ExtContext, id string, qty int) error {
	const q = `
	UPDATE games
	SET stock = GREATEST(stock - $2, 0), updated_at = $3
	WHERE game_id = $1`

	if _, err := tx.ExecContext(ctx, q, id, qty, time.Now().UTC()); err != nil {
		return fmt.Errorf("decrementing stock of game[%s]: %w", id, err)
	}
	return nil
}

func CreateImage(ctx context.Context, db sqlx.ExtContext, imageID, gameID, url string) error {
	const q = `INSERT INTO images (image_id, game_id, url) VALUES ($1, $2, $3)`

	if _, err := db.ExecContext(ctx, q, imageID, gameID, url); err != nil {
		return fmt.Errorf("inserting image for game[%s]: %w", gameID, err)
	}
	return nil
}

func FetchImages(ctx context.Context, db sqlx.ExtContext, gameID string) ([]string, error) {
	const q = `SELECT url FROM images WHERE game_id = $1 ORDER BY url`

	urls := []string{}
	if err := sqlx.SelectContext(ctx, db, &urls, q, gameID); err != nil {
		return nil, fmt.Errorf("selecting images of game[%s]: %w", gameID, err)
	}
	return urls, nil
}
