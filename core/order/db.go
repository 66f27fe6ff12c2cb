package order

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, o Order) error {
	const q = `
	INSERT INTO orders (order_id, user_id, provider_id, status, created_at, updated_at)
	VALUES (:order_id, :user_id, :provider_id, :status, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, o); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO order_items (order_id, game_id, quantity, price, created_at)
	VALUES (:order_id, :game_id, :quantity, :price, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting order item: %w", err)
	}
	return nil
}

func CreateShipment(ctx context.Context, db sqlx.ExtContext, s Shipment) error {
	const q = `
	INSERT INTO shipments (shipment_id, order_id, state, city, address, zipcode, created_at)
	VALUES (:shipment_id, :order_id, :state, :city, :address, :zipcode, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, s); err != nil {
		return fmt.Errorf("inserting shipment: %w", err)
	}
	return nil
}

func FetchByProviderID(ctx context.Context, db sqlx.ExtContext, providerID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE provider_id = $1`

	var o Order
	if err := sqlx.GetContext(ctx, db, &o, q, providerID); err != nil {
		return Order{}, fmt.Errorf("selecting order bound to payment[%s]: %w", providerID, err)
	}
	return o, nil
}

func FetchByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Order, error) {
	const q = `SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	orders := []Order{}
	if err := sqlx.SelectContext(ctx, db, &orders, q, userID); err != nil {
		return nil, fmt.Errorf("selecting orders of user[%s]: %w", userID, err)
	}
	return orders, nil
}

func FetchItems(ctx context.Context, db sqlx.ExtContext, orderID string) ([]Item, error) {
	const q = `SELECT * FROM order_items WHERE order_id = $1 ORDER BY created_at`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, db, &items, q, orderID); err != nil {
		return nil, fmt.Errorf("selecting items of order[%s]: %w", orderID, err)
	}
	return items, nil
}

func UpdateStatus(ctx context.Context, db sqlx.ExtContext, up StatusUp) error {
	const q = `UPDATE orders SET status = :status, updated_at = :updated_at WHERE order_id = :order_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, up); err != nil {
		return fmt.Errorf("updating status of order[%s]: %w", up.ID, err)
	}
	return nil
}
