package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akozhevina/tabletop-shop/core/game"
	"github.com/akozhevina/tabletop-shop/database"
	"github.com/akozhevina/tabletop-shop/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Resolve returns the single cart owned by the identity, creating it when
// absent. When the find-or-create races a concurrent request into a unique
// violation, the lookup is retried once: somebody else just created it.
func Resolve(ctx context.Context, db *sqlx.DB, idn Identity) (Cart, error) {
	if idn.UserID == "" && idn.Token == "" {
		return Cart{}, errors.New("cart identity has neither user nor session token")
	}

	c, err := Find(ctx, db, idn)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Cart{}, err
	}

	now := time.Now().UTC()
	c = Cart{
		ID:        validate.GenerateID(),
		Total:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if idn.UserID != "" {
		c.UserID = &idn.UserID
	} else {
		c.SessionToken = &idn.Token
	}

	if err := create(ctx, db, c); err != nil {
		if database.IsUniqueViolation(err, "") {
			return Find(ctx, db, idn)
		}
		return Cart{}, err
	}
	return c, nil
}

// Find looks the identity's cart up without creating one.
func Find(ctx context.Context, db sqlx.ExtContext, idn Identity) (Cart, error) {
	if idn.UserID != "" {
		return fetchByUser(ctx, db, idn.UserID)
	}
	return fetchBySession(ctx, db, idn.Token)
}

// AddItem inserts a new line item. A game already present in the cart is a
// conflict: callers update the existing item instead.
func AddItem(ctx context.Context, db *sqlx.DB, c Cart, in ItemNew) (ItemDetails, error) {
	if in.Quantity <= 0 {
		return ItemDetails{}, ErrQuantityNotPositive
	}

	var details ItemDetails

	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := lockCart(ctx, tx, c.ID); err != nil {
			return err
		}

		g, err := game.Fetch(ctx, tx, in.GameID)
		if err != nil {
			return err
		}

		if in.Quantity > g.Stock {
			return &StockError{Available: g.Stock}
		}

		now := time.Now().UTC()
		it := Item{
			ID:        validate.GenerateID(),
			CartID:    c.ID,
			GameID:    in.GameID,
			Quantity:  in.Quantity,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := createItem(ctx, tx, it); err != nil {
			if database.IsUniqueViolation(err, "cart_items_cart_game_key") {
				return ErrDuplicateItem
			}
			return err
		}

		if err := recompute(ctx, tx, c.ID, now); err != nil {
			return err
		}

		details, err = fetchItem(ctx, tx, c.ID, it.ID)
		return err
	})
	if err != nil {
		return ItemDetails{}, err
	}
	return details, nil
}

// UpdateItem sets a new quantity, validated against the stock read inside
// the same transaction. Quantity zero removes the item; removed reports
// which of the two happened.
func UpdateItem(ctx context.Context, db *sqlx.DB, c Cart, itemID string, quantity int) (details ItemDetails, removed bool, err error) {
	if quantity < 0 {
		return ItemDetails{}, false, ErrQuantityNotPositive
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := lockCart(ctx, tx, c.ID); err != nil {
			return err
		}

		it, err := fetchItem(ctx, tx, c.ID, itemID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		if quantity == 0 {
			removed = true
			if err := deleteItem(ctx, tx, it.ID); err != nil {
				return err
			}
			return recompute(ctx, tx, c.ID, now)
		}

		if quantity > it.Stock {
			return &StockError{Available: it.Stock}
		}

		if err := updateItemQuantity(ctx, tx, it.ID, quantity, now); err != nil {
			return err
		}
		if err := recompute(ctx, tx, c.ID, now); err != nil {
			return err
		}

		details, err = fetchItem(ctx, tx, c.ID, it.ID)
		return err
	})
	if err != nil {
		return ItemDetails{}, false, err
	}
	return details, removed, nil
}

func RemoveItem(ctx context.Context, db *sqlx.DB, c Cart, itemID string) error {
	return database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := lockCart(ctx, tx, c.ID); err != nil {
			return err
		}

		it, err := fetchItem(ctx, tx, c.ID, itemID)
		if err != nil {
			return err
		}

		if err := deleteItem(ctx, tx, it.ID); err != nil {
			return err
		}

		return recompute(ctx, tx, c.ID, time.Now().UTC())
	})
}

// Clear destroys the identity's cart entirely. The cascade removes the
// line items.
func Clear(ctx context.Context, db *sqlx.DB, idn Identity) error {
	c, err := Find(ctx, db, idn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoCart
		}
		return err
	}

	return deleteCart(ctx, db, c.ID)
}

// Merge folds the guest cart identified by oldToken into the user's cart.
// Runs as one transaction holding both cart locks (user first; every merge
// locks in this order, so two merges cannot deadlock): overlapping games
// are capped at stock, the rest re-parented, the guest cart deleted and
// the user cart totals recomputed. A token whose cart is gone yields
// sql.ErrNoRows: merging is deliberately not idempotent.
func Merge(ctx context.Context, db *sqlx.DB, userID string, oldToken string) (Cart, error) {
	userCart, err := Resolve(ctx, db, Identity{UserID: userID})
	if err != nil {
		return Cart{}, fmt.Errorf("resolving user cart: %w", err)
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := lockCart(ctx, tx, userCart.ID); err != nil {
			return err
		}

		guestCart, err := lockGuestCart(ctx, tx, oldToken)
		if err != nil {
			return err
		}

		userItems, err := FetchItems(ctx, tx, userCart.ID)
		if err != nil {
			return err
		}
		guestItems, err := FetchItems(ctx, tx, guestCart.ID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		updates, moves := reconcile(userItems, guestItems)
		for _, u := range updates {
			if err := updateItemQuantity(ctx, tx, u.ID, u.Quantity, now); err != nil {
				return err
			}
		}
		for _, m := range moves {
			if err := reparentItem(ctx, tx, m.ID, userCart.ID, now); err != nil {
				return err
			}
		}

		// Guest duplicates of updated games go away with the cart.
		if err := deleteCart(ctx, tx, guestCart.ID); err != nil {
			return err
		}

		return recompute(ctx, tx, userCart.ID, now)
	})
	if err != nil {
		return Cart{}, err
	}

	return fetchByUser(ctx, db, userID)
}

// recompute persists totals derived from the cart's current line items.
// Always called inside the same transaction as the item mutation, so a
// stale total is never observable.
func recompute(ctx context.Context, tx sqlx.ExtContext, cartID string, now time.Time) error {
	items, err := FetchItems(ctx, tx, cartID)
	if err != nil {
		return err
	}

	total, quantity := Totals(items)
	return updateTotals(ctx, tx, cartID, total, quantity, now)
}
