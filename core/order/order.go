package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	Pending Status = "pending"
	Success Status = "success"
	Expired Status = "expired"
)

type Order struct {
	ID         string    `json:"id" db:"order_id"`
	UserID     string    `json:"userId" db:"user_id"`
	ProviderID string    `json:"providerId" db:"provider_id"`
	Status     Status    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

type StatusUp struct {
	ID        string    `db:"order_id"`
	Status    Status    `db:"status"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Item captures quantity and unit price at checkout time: order history
// must not drift when the catalog price changes later.
type Item struct {
	OrderID   string          `json:"orderId" db:"order_id"`
	GameID    string          `json:"gameId" db:"game_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

type Shipment struct {
	ID        string    `json:"id" db:"shipment_id"`
	OrderID   string    `json:"orderId" db:"order_id"`
	State     string    `json:"state" db:"state"`
	City      string    `json:"city" db:"city"`
	Address   string    `json:"address" db:"address"`
	Zipcode   string    `json:"zipcode" db:"zipcode"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type ShipmentNew struct {
	State   string `json:"state" validate:"required,max=100"`
	City    string `json:"city" validate:"required,max=100"`
	Address string `json:"address" validate:"required,max=100"`
	Zipcode string `json:"zipcode" validate:"required,uszip"`
}

// CheckoutNew is the body of both checkout endpoints.
type CheckoutNew struct {
	Shipment ShipmentNew `json:"shipment"`
}

// PaidEvent is published to the broker once a payment is captured.
type PaidEvent struct {
	OrderID string          `json:"orderId"`
	UserID  string          `json:"userId"`
	Total   decimal.Decimal `json:"total"`
	PaidAt  time.Time       `json:"paidAt"`
}
