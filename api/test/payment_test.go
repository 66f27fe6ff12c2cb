package test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/akozhevina/tabletop-shop/api/web"
	"github.com/gorilla/mux"
	"github.com/plutov/paypal/v4"
)

type mockPaypal struct {
	expectedLines int
	expectedTotal string
}

func (m *mockPaypal) handle() http.Handler {
	token := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   32000,
		}
		web.Respond(context.Background(), w, resp, 200)
	})

	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var pu struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&pu); err != nil {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if len(pu.Units) != 1 {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if len(pu.Units[0].Items) != m.expectedLines {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if pu.Units[0].Amount.Value != m.expectedTotal {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		randID := fmt.Sprintf("paypal-%d", rand.Intn(300))
		ord := paypal.Order{ID: randID}
		web.Respond(context.Background(), w, ord, 200)
	})

	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ord := paypal.Order{ID: mux.Vars(r)["id"], Status: "COMPLETED"}
		web.Respond(context.Background(), w, ord, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/oauth2/token", token).Methods("POST")
	r.Handle("/v2/checkout/orders", checkout).Methods("POST")
	r.Handle("/v2/checkout/orders/{id}/capture", capture).Methods("POST")
	return r
}

type mockStripe struct {
	expectedLines int
	expectedCents int64
}

func (m *mockStripe) handle() http.Handler {
	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		// The stripe client posts line items as indexed form fields.
		n := 0
		var tot int64
		for i := 0; ; i++ {
			prefix := fmt.Sprintf("line_items[%d]", i)

			qtyStr := r.PostForm.Get(prefix + "[quantity]")
			if qtyStr == "" {
				break
			}
			qty, err := strconv.ParseInt(qtyStr, 10, 0)
			if err != nil {
				web.Respond(context.Background(), w, nil, 400)
				return
			}

			amount, err := strconv.ParseInt(r.PostForm.Get(prefix+"[price_data][unit_amount]"), 10, 0)
			if err != nil {
				web.Respond(context.Background(), w, nil, 400)
				return
			}

			tot += amount * qty
			n += 1
		}

		if n != m.expectedLines || tot != m.expectedCents {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		randID := fmt.Sprintf("stripe-%d", rand.Intn(300))
		sess := map[string]any{"id": randID, "url": "http://stripe.test/pay/" + randID}
		web.Respond(context.Background(), w, sess, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/checkout/sessions", checkout).Methods("POST")
	return r
}
