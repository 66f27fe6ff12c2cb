package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"testing"
	"time"

	"github.com/akozhevina/tabletop-shop/core/game"
	"github.com/akozhevina/tabletop-shop/core/order"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

type orderTest struct {
	*TestEnv
}

var shipment = order.CheckoutNew{
	Shipment: order.ShipmentNew{
		State:   "CA",
		City:    "Oakland",
		Address: "1 Main St",
		Zipcode: "94607",
	},
}

func TestOrder(t *testing.T) {
	env, err := NewTestEnv(t, "order_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ot := &orderTest{env}
	gt := &gameTest{env}
	rt := &cartTest{env}

	if err := env.Login(env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}
	g1 := gt.createGameOK(t, "River Run", "10.00", 5)
	g2 := gt.createGameOK(t, "Sky Farmers", "20.00", 5)
	if err := env.Logout(); err != nil {
		t.Fatal(err)
	}

	if err := env.Login(env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	defer env.Logout()

	// An empty cart cannot be checked out.
	w := env.do(t, http.MethodPost, "/orders/paypal", shipment, nil)
	if w.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("checking out an empty cart: status code %s, want 422", w.Status)
	}

	rt.createItemOK(t, g1.ID, 2)
	rt.createItemOK(t, g2.ID, 1)

	// A bad shipping address stops the checkout before any order exists.
	bad := shipment
	bad.Shipment.Zipcode = "not-a-zip"
	w = env.do(t, http.MethodPost, "/orders/paypal", bad, nil)
	if w.StatusCode != http.StatusBadRequest {
		t.Errorf("checking out with a bad zipcode: status code %s, want 400", w.Status)
	}

	env.Paypal.expectedLines = 2
	env.Paypal.expectedTotal = "40.00"
	ot.testPaypal(t)

	ot.checkFulfilled(t, g1.ID, 3, 1)

	rt.createItemOK(t, g1.ID, 1)

	env.Stripe.expectedLines = 1
	env.Stripe.expectedCents = 1000
	ot.testStripe(t)

	ot.checkFulfilled(t, g1.ID, 2, 2)
}

// checkFulfilled verifies the side effects of a captured payment: the stock
// went down, the cart is gone and the order shows up as successful.
func (ot *orderTest) checkFulfilled(t *testing.T, gameID string, wantStock int, wantOrders int) {
	t.Helper()

	g, err := game.Fetch(context.Background(), ot.DB, gameID)
	if err != nil {
		t.Fatalf("fetching game: %v", err)
	}
	if g.Stock != wantStock {
		t.Errorf("stock = %d, want %d", g.Stock, wantStock)
	}

	w := ot.do(t, http.MethodGet, "/cart", nil, nil)
	if w.StatusCode != http.StatusNotFound {
		t.Errorf("cart after fulfillment: status code %s, want 404", w.Status)
	}

	var orders []order.Order
	w = ot.do(t, http.MethodGet, "/orders", nil, &orders)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't list orders: status code %s", w.Status)
	}
	if len(orders) != wantOrders {
		t.Fatalf("got %d orders, want %d", len(orders), wantOrders)
	}
	for _, o := range orders {
		if o.Status != order.Success {
			t.Errorf("order %s has status %s, want %s", o.ID, o.Status, order.Success)
		}
	}
}

func (ot *orderTest) testPaypal(t *testing.T) {
	var ord paypal.Order
	w := ot.do(t, http.MethodPost, "/orders/paypal", shipment, &ord)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't create paypal order: status code %s", w.Status)
	}

	w = ot.do(t, http.MethodPost, "/orders/paypal/"+ord.ID+"/capture", nil, nil)
	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("can't capture paypal order: status code %s", w.Status)
	}
}

func (ot *orderTest) testStripe(t *testing.T) {
	r, err := http.NewRequest(http.MethodPost, ot.URL+"/orders/stripe", jsonBody(t, shipment))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := ot.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't create stripe order: status code %s", w.Status)
	}

	urlBytes, err := io.ReadAll(w.Body)
	if err != nil {
		t.Fatal(err)
	}

	var url string
	if err := json.Unmarshal(urlBytes, &url); err != nil {
		t.Fatal(err)
	}

	obj := map[string]any{
		"id":   path.Base(url),
		"mode": stripe.CheckoutSessionModePayment,
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatal(err)
	}

	evt := stripe.Event{
		APIVersion: "2022-11-15",
		Type:       "checkout.session.completed",
		Data: &stripe.EventData{
			Raw: json.RawMessage(raw),
		},
	}

	b, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   b,
		Secret:    ot.WebhookSecret,
		Timestamp: time.Now(),
	})

	r, err = http.NewRequest(http.MethodPost, ot.URL+"/orders/stripe/capture", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Stripe-Signature", signed.Header)

	w, err = ot.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("can't trigger stripe webhook: status code %s", w.Status)
	}
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		t.Fatalf("encoding body: %v", err)
	}
	return &buf
}
