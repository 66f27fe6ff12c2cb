package game

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type Review struct {
	ID        string          `json:"id" db:"review_id"`
	GameID    string          `json:"gameId" db:"game_id"`
	UserID    string          `json:"userId" db:"user_id"`
	Rating    decimal.Decimal `json:"rating" db:"rating"`
	Comment   string          `json:"comment" db:"comment"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

type ReviewNew struct {
	Rating  decimal.Decimal `json:"rating"`
	Comment string          `json:"comment"`
}

func (rn ReviewNew) Validate() error {
	if rn.Rating.IsNegative() || rn.Rating.GreaterThan(decimal.NewFromInt(5)) {
		return fmt.Errorf("rating must be between 0 and 5")
	}
	return nil
}

func CreateReview(ctx context.Context, db sqlx.ExtContext, rv Review) error {
	const q = `
	INSERT INTO reviews (review_id, game_id, user_id, rating, comment, created_at)
	VALUES (:review_id, :game_id, :user_id, :rating, :comment, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, rv); err != nil {
		return fmt.Errorf("inserting review: %w", err)
	}
	return nil
}

func FetchReviews(ctx context.Context, db sqlx.ExtContext, gameID string) ([]Review, error) {
	const q = `SELECT * FROM reviews WHERE game_id = $1 ORDER BY created_at DESC`

	rvs := []Review{}
	if err := sqlx.SelectContext(ctx, db, &rvs, q, gameID); err != nil {
		return nil, fmt.Errorf("selecting reviews of game[%s]: %w", gameID, err)
	}
	return rvs, nil
}
