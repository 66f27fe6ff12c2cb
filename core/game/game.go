package game

import (
	"time"

	"github.com/shopspring/decimal"
)

type Game struct {
	ID            string          `json:"id" db:"game_id"`
	Title         string          `json:"title" db:"title"`
	Description   string          `json:"description" db:"description"`
	RulesSummary  string          `json:"rulesSummary" db:"rules_summary"`
	ReleaseYear   int             `json:"releaseYear" db:"release_year"`
	Price         decimal.Decimal `json:"price" db:"price"`
	DiscountPrice decimal.Decimal `json:"discountPrice" db:"discount_price"`
	Stock         int             `json:"stock" db:"stock"`
	PublisherID   string          `json:"publisherId" db:"publisher_id"`
	PlayerCountID string          `json:"playerCountId" db:"player_count_id"`
	AgeGroupID    string          `json:"ageGroupId" db:"age_group_id"`
	DifficultyID  string          `json:"difficultyId" db:"difficulty_id"`
	DurationID    string          `json:"durationId" db:"duration_id"`
	Rating        decimal.Decimal `json:"rating" db:"rating"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
	Version       int             `json:"-" db:"version"`
}

type GameNew struct {
	Title         string          `json:"title" validate:"required"`
	Description   string          `json:"description"`
	RulesSummary  string          `json:"rulesSummary"`
	ReleaseYear   int             `json:"releaseYear" validate:"required,gte=1900,lte=2100"`
	Price         decimal.Decimal `json:"price"`
	DiscountPrice decimal.Decimal `json:"discountPrice"`
	Stock         int             `json:"stock" validate:"gte=0"`
	PublisherID   string          `json:"publisherId" validate:"required,uuid"`
	PlayerCountID string          `json:"playerCountId" validate:"required,uuid"`
	AgeGroupID    string          `json:"ageGroupId" validate:"required,uuid"`
	DifficultyID  string          `json:"difficultyId" validate:"required,uuid"`
	DurationID    string          `json:"durationId" validate:"required,uuid"`
	GenreIDs      []string        `json:"genreIds" validate:"dive,uuid"`
	MechanicIDs   []string        `json:"mechanicIds" validate:"dive,uuid"`
	TypeIDs       []string        `json:"typeIds" validate:"dive,uuid"`
}

type GameUp struct {
	Title         *string          `json:"title"`
	Description   *string          `json:"description"`
	RulesSummary  *string          `json:"rulesSummary"`
	ReleaseYear   *int             `json:"releaseYear" validate:"omitempty,gte=1900,lte=2100"`
	Price         *decimal.Decimal `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discountPrice"`
	Stock         *int             `json:"stock" validate:"omitempty,gte=0"`
}

// GameDetails is the show-endpoint shape: the game plus its many-to-many
// taxonomies and image URLs.
type GameDetails struct {
	Game
	Genres    []Taxonomy `json:"genres"`
	Mechanics []Taxonomy `json:"mechanics"`
	Types     []Taxonomy `json:"types"`
	Images    []string   `json:"images"`
}
