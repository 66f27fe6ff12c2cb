package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func create(ctx context.Context, db sqlx.ExtContext, c Cart) error {
	const q = `
	INSERT INTO carts (cart_id, user_id, session_token, total, total_quantity, created_at, updated_at)
	VALUES (:cart_id, :user_id, :session_token, :total, :total_quantity, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting cart: %w", err)
	}
	return nil
}

func fetchByUser(ctx context.Context, db sqlx.ExtContext, userID string) (Cart, error) {
	const q = `SELECT * FROM carts WHERE user_id = $1`

	var c Cart
	if err := sqlx.GetContext(ctx, db, &c, q, userID); err != nil {
		return Cart{}, fmt.Errorf("selecting cart of user[%s]: %w", userID, err)
	}
	return c, nil
}

func fetchBySession(ctx context.Context, db sqlx.ExtContext, token string) (Cart, error) {
	const q = `SELECT * FROM carts WHERE session_token = $1 AND user_id IS NULL`

	var c Cart
	if err := sqlx.GetContext(ctx, db, &c, q, token); err != nil {
		return Cart{}, fmt.Errorf("selecting session cart: %w", err)
	}
	return c, nil
}

// lockCart takes the row lock that serializes concurrent mutations of the
// same cart for the duration of the transaction.
func lockCart(ctx context.Context, tx sqlx.ExtContext, cartID string) error {
	const q = `SELECT cart_id FROM carts WHERE cart_id = $1 FOR UPDATE`

	var id string
	if err := sqlx.GetContext(ctx, tx, &id, q, cartID); err != nil {
		return fmt.Errorf("locking cart[%s]: %w", cartID, err)
	}
	return nil
}

// lockGuestCart locks the guest cart by its session token, returning it
// only while it is still unowned.
func lockGuestCart(ctx context.Context, tx sqlx.ExtContext, token string) (Cart, error) {
	const q = `SELECT * FROM carts WHERE session_token = $1 AND user_id IS NULL FOR UPDATE`

	var c Cart
	if err := sqlx.GetContext(ctx, tx, &c, q, token); err != nil {
		return Cart{}, fmt.Errorf("locking guest cart: %w", err)
	}
	return c, nil
}

func deleteCart(ctx context.Context, db sqlx.ExtContext, cartID string) error {
	const q = `DELETE FROM carts WHERE cart_id = $1`

	if _, err := db.ExecContext(ctx, q, cartID); err != nil {
		return fmt.Errorf("deleting cart[%s]: %w", cartID, err)
	}
	return nil
}

func updateTotals(ctx context.Context, db sqlx.ExtContext, cartID string, total decimal.Decimal, quantity int, now time.Time) error {
	const q = `
	UPDATE carts SET total = $2, total_quantity = $3, updated_at = $4
	WHERE cart_id = $1`

	if _, err := db.ExecContext(ctx, q, cartID, total, quantity, now); err != nil {
		return fmt.Errorf("updating totals of cart[%s]: %w", cartID, err)
	}
	return nil
}

// FetchItems returns the cart's line items joined with current catalog
// price and stock.
func FetchItems(ctx context.Context, db sqlx.ExtContext, cartID string) ([]ItemDetails, error) {
	const q = `
	SELECT ci.*, g.title, g.price, g.stock, g.price * ci.quantity AS line_total
	FROM cart_items AS ci
	JOIN games AS g ON g.game_id = ci.game_id
	WHERE ci.cart_id = $1
	ORDER BY ci.created_at`

	items := []ItemDetails{}
	if err := sqlx.SelectContext(ctx, db, &items, q, cartID); err != nil {
		return nil, fmt.Errorf("selecting items of cart[%s]: %w", cartID, err)
	}
	return items, nil
}

func fetchItem(ctx context.Context, db sqlx.ExtContext, cartID, itemID string) (ItemDetails, error) {
	const q = `
	SELECT ci.*, g.title, g.price, g.stock, g.price * ci.quantity AS line_total
	FROM cart_items AS ci
	JOIN games AS g ON g.game_id = ci.game_id
	WHERE ci.cart_id = $1 AND ci.item_id = $2`

	var it ItemDetails
	if err := sqlx.GetContext(ctx, db, &it, q, cartID, itemID); err != nil {
		return ItemDetails{}, fmt.Errorf("selecting item[%s] of cart[%s]: %w", itemID, cartID, err)
	}
	return it, nil
}

func createItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO cart_items (item_id, cart_id, game_id, quantity, created_at, updated_at)
	VALUES (:item_id, :cart_id, :game_id, :quantity, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting cart item: %w", err)
	}
	return nil
}

func updateItemQuantity(ctx context.Context, db sqlx.ExtContext, itemID string, quantity int, now time.Time) error {
	const q = `UPDATE cart_items SET quantity = $2, updated_at = $3 WHERE item_id = $1`

	if _, err := db.ExecContext(ctx, q, itemID, quantity, now); err != nil {
		return fmt.Errorf("updating quantity of item[%s]: %w", itemID, err)
	}
	return nil
}

func deleteItem(ctx context.Context, db sqlx.ExtContext, itemID string) error {
	const q = `DELETE FROM cart_items WHERE item_id = $1`

	if _, err := db.ExecContext(ctx, q, itemID); err != nil {
		return fmt.Errorf("deleting item[%s]: %w", itemID, err)
	}
	return nil
}

// reparentItem moves a guest line item onto the user cart: an ownership
// transfer instead of a delete/insert pair.
func reparentItem(ctx context.Context, db sqlx.ExtContext, itemID, newCartID string, now time.Time) error {
	const q = `UPDATE cart_items SET cart_id = $2, updated_at = $3 WHERE item_id = $1`

	if _, err := db.ExecContext(ctx, q, itemID, newCartID, now); err != nil {
		return fmt.Errorf("moving item[%s] to cart[%s]: %w", itemID, newCartID, err)
	}
	return nil
}

// Delete removes the user's cart and, through the cascade, its items.
// Used by order fulfillment after a successful payment.
func Delete(ctx context.Context, db sqlx.ExtContext, userID string) error {
	const q = `DELETE FROM carts WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("deleting cart of user[%s]: %w", userID, err)
	}
	return nil
}
