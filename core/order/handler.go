package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/akozhevina/tabletop-shop/api/background"
	"github.com/akozhevina/tabletop-shop/api/web"
	"github.com/akozhevina/tabletop-shop/api/weberr"
	"github.com/akozhevina/tabletop-shop/config"
	"github.com/akozhevina/tabletop-shop/core/cart"
	"github.com/akozhevina/tabletop-shop/core/claims"
	"github.com/akozhevina/tabletop-shop/core/game"
	"github.com/akozhevina/tabletop-shop/database"
	"github.com/akozhevina/tabletop-shop/event"
	"github.com/akozhevina/tabletop-shop/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/plutov/paypal/v4"
)

// checkout returns the items of the user's cart, priced for payment.
func checkout(ctx context.Context, db *sqlx.DB, userID string) ([]cart.ItemDetails, error) {
	c, err := cart.Find(ctx, db, cart.Identity{UserID: userID})
	if err != nil {
		// A user without a cart row simply has nothing to buy.
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding user cart: %w", err)
	}

	items, err := cart.FetchItems(ctx, db, c.ID)
	if err != nil {
		return nil, fmt.Errorf("fetching cart items: %w", err)
	}

	return items, nil
}

func prepare(ctx context.Context, db *sqlx.DB, userID string, providerID string, items []cart.ItemDetails, sn ShipmentNew) error {
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		now := time.Now().UTC()
		ord := Order{
			ID:         validate.GenerateID(),
			UserID:     userID,
			ProviderID: providerID,
			Status:     Pending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := Create(ctx, tx, ord); err != nil {
			return fmt.Errorf("creating order: %w", err)
		}

		for _, ci := range items {
			it := Item{
				OrderID:   ord.ID,
				GameID:    ci.GameID,
				Quantity:  ci.Quantity,
				Price:     ci.Price,
				CreatedAt: now,
			}

			if err := CreateItem(ctx, tx, it); err != nil {
				return fmt.Errorf("creating item: %w", err)
			}
		}

		ship := Shipment{
			ID:        validate.GenerateID(),
			OrderID:   ord.ID,
			State:     sn.State,
			City:      sn.City,
			Address:   sn.Address,
			Zipcode:   sn.Zipcode,
			CreatedAt: now,
		}

		if err := CreateShipment(ctx, tx, ship); err != nil {
			return fmt.Errorf("creating shipment: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("creating the order bound to payment[%s] for user[%s]: %w", providerID, userID, err)
	}
	return nil
}

// fulfill marks the order paid, takes the sold quantities out of stock and
// flushes the user's cart, all in one transaction.
func fulfill(ctx context.Context, db *sqlx.DB, providerID string) (Order, decimal.Decimal, error) {
	ord, err := FetchByProviderID(ctx, db, providerID)
	if err != nil {
		return Order{}, decimal.Zero, fmt.Errorf("fetching the order bound to payment[%s]: %w", providerID, err)
	}

	items, err := FetchItems(ctx, db, ord.ID)
	if err != nil {
		return Order{}, decimal.Zero, fmt.Errorf("fetching items of order[%s]: %w", ord.ID, err)
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		up := StatusUp{
			ID:        ord.ID,
			Status:    Success,
			UpdatedAt: time.Now().UTC(),
		}

		if err := UpdateStatus(ctx, tx, up); err != nil {
			return fmt.Errorf("updating status: %w", err)
		}

		for _, it := range items {
			if err := game.DecrementStock(ctx, tx, it.GameID, it.Quantity); err != nil {
				return fmt.Errorf("adjusting stock: %w", err)
			}
		}

		if err := cart.Delete(ctx, tx, ord.UserID); err != nil {
			return fmt.Errorf("flushing cart: %w", err)
		}

		return nil
	})

	if err != nil {
		return Order{}, decimal.Zero, fmt.Errorf("fulfilling the order[%s] bound to payment[%s]: %w", ord.ID, providerID, err)
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return ord, total, nil
}

func publishPaid(bg *background.Background, ev *event.Publisher, ord Order, total decimal.Decimal) {
	bg.Add(func() error {
		evt := PaidEvent{
			OrderID: ord.ID,
			UserID:  ord.UserID,
			Total:   total,
			PaidAt:  time.Now().UTC(),
		}
		return ev.Publish(context.Background(), "order.paid", evt)
	})
}

func decodeCheckout(w http.ResponseWriter, r *http.Request) (CheckoutNew, error) {
	var cn CheckoutNew
	if err := web.Decode(w, r, &cn); err != nil {
		return CheckoutNew{}, weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
	}
	if err := validate.Check(cn.Shipment); err != nil {
		return CheckoutNew{}, weberr.BadRequest(err)
	}
	return cn, nil
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orders, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching orders: %w", err)
		}

		return web.Respond(ctx, w, orders, http.StatusOK)
	}
}

func HandlePaypalCheckout(db *sqlx.DB, pp *paypal.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		cn, err := decodeCheckout(w, r)
		if err != nil {
			return err
		}

		items, err := checkout(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching details of cart items: %w", err)
		}

		if len(items) == 0 {
			err := errors.New("no items to checkout")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		tot := decimal.Zero
		ppItems := make([]paypal.Item, 0, len(items))
		for _, it := range items {
			ppItems = append(ppItems, paypal.Item{
				Quantity: strconv.Itoa(it.Quantity),
				Name:     it.Title,

				UnitAmount: &paypal.Money{
					Currency: "USD",
					Value:    it.Price.StringFixed(2),
				},
			})

			tot = tot.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}

		units := []paypal.PurchaseUnitRequest{{
			Items: ppItems,

			Amount: &paypal.PurchaseUnitAmount{
				Currency: "USD",
				Value:    tot.StringFixed(2),

				Breakdown: &paypal.PurchaseUnitAmountBreakdown{ItemTotal: &paypal.Money{
					Currency: "USD",
					Value:    tot.StringFixed(2),
				}},
			},
		}}

		app := &paypal.ApplicationContext{}

		ord, err := pp.CreateOrder(ctx, "CAPTURE", units, nil, app)
		if err != nil {
			return fmt.Errorf("creating paypal order: %w", err)
		}

		if err := prepare(ctx, db, clm.UserID, ord.ID, items, cn.Shipment); err != nil {
			return fmt.Errorf("creating the order on the database: %w", err)
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

func HandlePaypalCapture(db *sqlx.DB, pp *paypal.Client, bg *background.Background, ev *event.Publisher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		providerID := web.Param(r, "id")

		resp, err := pp.CaptureOrder(ctx, providerID, paypal.CaptureOrderRequest{})
		if err != nil {
			return fmt.Errorf("capturing paypal order[%s]: %w", providerID, err)
		}

		if resp.Status != "COMPLETED" {
			return fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", providerID, resp.Status)
		}

		ord, total, err := fulfill(ctx, db, providerID)
		if err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		publishPaid(bg, ev, ord, total)

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleStripeCheckout(db *sqlx.DB, strp *stripecl.API, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		cn, err := decodeCheckout(w, r)
		if err != nil {
			return err
		}

		items, err := checkout(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching details of cart items: %w", err)
		}

		if len(items) == 0 {
			err := errors.New("no items to checkout")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		li := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
		for _, it := range items {
			li = append(li, &stripe.CheckoutSessionLineItemParams{
				Quantity: stripe.Int64(int64(it.Quantity)),

				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String("usd"),
					TaxBehavior: stripe.String("inclusive"),
					UnitAmount:  stripe.Int64(it.Price.Mul(decimal.NewFromInt(100)).IntPart()),

					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(it.Title),
					},
				},
			})
		}

		params := &stripe.CheckoutSessionParams{
			SuccessURL: stripe.String(cfg.SuccessURL),
			CancelURL:  stripe.String(cfg.CancelURL),
			Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
			LineItems:  li,
		}

		s, err := strp.CheckoutSessions.New(params)
		if err != nil {
			return fmt.Errorf("creating stripe session: %w", err)
		}

		if err := prepare(ctx, db, clm.UserID, s.ID, items, cn.Shipment); err != nil {
			return fmt.Errorf("creating the order on the database: %w", err)
		}

		return web.Respond(ctx, w, s.URL, http.StatusOK)
	}
}

func HandleStripeCapture(db *sqlx.DB, cfg config.Stripe, bg *background.Background, ev *event.Publisher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		evt, err := webhook.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		if evt.Type != "checkout.session.completed" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		var session stripe.CheckoutSession
		if err = json.Unmarshal(evt.Data.Raw, &session); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
		}

		if session.Mode != stripe.CheckoutSessionModePayment {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		ord, total, err := fulfill(ctx, db, session.ID)
		if err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		publishPaid(bg, ev, ord, total)

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
