package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Cart belongs to exactly one identity: an authenticated user or an
// anonymous session token. Total and TotalQuantity are derived from the
// line items and recomputed on every mutation, never patched in place.
type Cart struct {
	ID            string          `json:"id" db:"cart_id"`
	UserID        *string         `json:"userId,omitempty" db:"user_id"`
	SessionToken  *string         `json:"sessionToken,omitempty" db:"session_token"`
	Total         decimal.Decimal `json:"total" db:"total"`
	TotalQuantity int             `json:"totalQuantity" db:"total_quantity"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

type Item struct {
	ID        string    `json:"id" db:"item_id"`
	CartID    string    `json:"-" db:"cart_id"`
	GameID    string    `json:"gameId" db:"game_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ItemDetails is an Item joined with the catalog columns cart logic needs.
// Price and stock come from the catalog at read time, so the line total
// always reflects the current price.
type ItemDetails struct {
	Item
	Title     string          `json:"title" db:"title"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Stock     int             `json:"stock" db:"stock"`
	LineTotal decimal.Decimal `json:"lineTotal" db:"line_total"`
}

type ItemNew struct {
	GameID   string `json:"gameId" validate:"required,uuid"`
	Quantity int    `json:"quantity"`
}

type ItemUp struct {
	Quantity int `json:"quantity"`
}

type CartMerge struct {
	OldSessionID string `json:"oldSessionId" validate:"required"`
}

// Identity is the explicit cart owner, threaded through every operation.
// Exactly one of the two fields is set.
type Identity struct {
	UserID string
	Token  string
}

var (
	ErrQuantityNotPositive = errors.New("quantity must be greater than 0")
	ErrDuplicateItem       = errors.New("this game is already in the cart")
	ErrNoCart              = errors.New("this user does not have a cart")
)

// StockError rejects a quantity above what the catalog can sell.
type StockError struct {
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("quantity cannot exceed available stock (%d)", e.Available)
}

// Totals recomputes the derived cart totals from the current line items.
// With no items it yields (0, 0).
func Totals(items []ItemDetails) (total decimal.Decimal, quantity int) {
	total = decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		quantity += it.Quantity
	}
	return total, quantity
}

// reconcile computes the merge outcome per game id. Games present in both
// carts get the summed quantity capped at the current stock: the merge
// never creates backorder, and quantity beyond stock is dropped without an
// error. Guest-only items are moved to the user cart untouched.
func reconcile(userItems, guestItems []ItemDetails) (updates, moves []ItemDetails) {
	byGame := make(map[string]ItemDetails, len(userItems))
	for _, it := range userItems {
		byGame[it.GameID] = it
	}

	for _, g := range guestItems {
		u, ok := byGame[g.GameID]
		if !ok {
			moves = append(moves, g)
			continue
		}

		merged := u.Quantity + g.Quantity
		if merged > u.Stock {
			merged = u.Stock
		}
		u.Quantity = merged
		updates = append(updates, u)
	}

	return updates, moves
}
