package test

import (
	"net/http"
	"testing"

	"github.com/akozhevina/tabletop-shop/core/cart"
	"github.com/shopspring/decimal"
)

type cartTest struct {
	*TestEnv
}

type cartView struct {
	cart.Cart
	Items []cart.ItemDetails `json:"items"`
}

func (rt *cartTest) createItemOK(t *testing.T, gameID string, quantity int) cart.ItemDetails {
	t.Helper()

	var details cart.ItemDetails
	w := rt.do(t, http.MethodPost, "/cart/items", cart.ItemNew{GameID: gameID, Quantity: quantity}, &details)
	if w.StatusCode != http.StatusCreated {
		t.Fatalf("can't add game %s to cart: status code %s", gameID, w.Status)
	}
	return details
}

func (rt *cartTest) showCartOK(t *testing.T) cartView {
	t.Helper()

	var view cartView
	w := rt.do(t, http.MethodGet, "/cart", nil, &view)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't show cart: status code %s", w.Status)
	}
	return view
}

func (rt *cartTest) checkTotals(t *testing.T, view cartView, total string, quantity int) {
	t.Helper()

	if want := decimal.RequireFromString(total); !view.Total.Equal(want) {
		t.Errorf("cart total = %s, want %s", view.Total, want)
	}
	if view.TotalQuantity != quantity {
		t.Errorf("cart quantity = %d, want %d", view.TotalQuantity, quantity)
	}
}

func TestGuestCart(t *testing.T) {
	env, err := NewTestEnv(t, "guest_cart_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	gt := &gameTest{env}
	rt := &cartTest{env}

	if err := env.Login(env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}
	g1 := gt.createGameOK(t, "Harbor Masters", "10.00", 5)
	g2 := gt.createGameOK(t, "Cave Crawlers", "7.50", 2)
	if err := env.Logout(); err != nil {
		t.Fatal(err)
	}

	// Before anything is added there is no cart row.
	w := env.do(t, http.MethodGet, "/cart", nil, nil)
	if w.StatusCode != http.StatusNotFound {
		t.Fatalf("empty guest cart: status code %s, want 404", w.Status)
	}

	it1 := rt.createItemOK(t, g1.ID, 2)
	rt.createItemOK(t, g2.ID, 1)

	view := rt.showCartOK(t)
	if view.SessionToken == nil || *view.SessionToken == "" {
		t.Error("guest cart has no session token")
	}
	if view.UserID != nil {
		t.Errorf("guest cart has user id %s", *view.UserID)
	}
	if len(view.Items) != 2 {
		t.Fatalf("cart has %d items, want 2", len(view.Items))
	}
	rt.checkTotals(t, view, "27.50", 3)

	// Adding the same game twice is a conflict.
	w = env.do(t, http.MethodPost, "/cart/items", cart.ItemNew{GameID: g1.ID, Quantity: 1}, nil)
	if w.StatusCode != http.StatusConflict {
		t.Errorf("adding a duplicate game: status code %s, want 409", w.Status)
	}

	// Quantities above stock are rejected and report what is available.
	var stockErr struct {
		Error     string `json:"error"`
		Available int    `json:"available"`
	}
	w = env.do(t, http.MethodPatch, "/cart/items/"+it1.ID, cart.ItemUp{Quantity: 9}, &stockErr)
	if w.StatusCode != http.StatusBadRequest {
		t.Fatalf("updating above stock: status code %s, want 400", w.Status)
	}
	if stockErr.Available != 5 {
		t.Errorf("available = %d, want 5", stockErr.Available)
	}

	var updated cart.ItemDetails
	w = env.do(t, http.MethodPatch, "/cart/items/"+it1.ID, cart.ItemUp{Quantity: 4}, &updated)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't update item: status code %s", w.Status)
	}
	if updated.Quantity != 4 {
		t.Errorf("quantity = %d, want 4", updated.Quantity)
	}
	rt.checkTotals(t, rt.showCartOK(t), "47.50", 5)

	// Quantity zero removes the line entirely.
	w = env.do(t, http.MethodPatch, "/cart/items/"+it1.ID, cart.ItemUp{Quantity: 0}, nil)
	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("setting quantity to zero: status code %s, want 204", w.Status)
	}
	view = rt.showCartOK(t)
	if len(view.Items) != 1 {
		t.Fatalf("cart has %d items after removal, want 1", len(view.Items))
	}
	rt.checkTotals(t, view, "7.50", 1)

	w = env.do(t, http.MethodDelete, "/cart", nil, nil)
	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("can't clear cart: status code %s", w.Status)
	}

	w = env.do(t, http.MethodDelete, "/cart", nil, nil)
	if w.StatusCode != http.StatusBadRequest {
		t.Errorf("clearing a missing cart: status code %s, want 400", w.Status)
	}
}

func TestCartMerge(t *testing.T) {
	env, err := NewTestEnv(t, "cart_merge_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	gt := &gameTest{env}
	rt := &cartTest{env}

	if err := env.Login(env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}
	g1 := gt.createGameOK(t, "Kingdom of Sand", "10.00", 3)
	g2 := gt.createGameOK(t, "Night Train", "20.00", 8)
	if err := env.Logout(); err != nil {
		t.Fatal(err)
	}

	// The user already owns a cart from an earlier visit.
	if err := env.Login(env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	rt.createItemOK(t, g1.ID, 2)
	if err := env.Logout(); err != nil {
		t.Fatal(err)
	}

	// Shopping continues anonymously with an overlapping game.
	rt.createItemOK(t, g1.ID, 2)
	rt.createItemOK(t, g2.ID, 1)

	guestView := rt.showCartOK(t)
	if guestView.SessionToken == nil {
		t.Fatal("guest cart has no session token")
	}
	guestToken := *guestView.SessionToken

	if err := env.Login(env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	defer env.Logout()

	// Before the merge the user sees only their own cart.
	view := rt.showCartOK(t)
	if len(view.Items) != 1 {
		t.Fatalf("user cart has %d items before merge, want 1", len(view.Items))
	}
	rt.checkTotals(t, view, "20.00", 2)

	w := env.do(t, http.MethodPost, "/cart/merge", cart.CartMerge{OldSessionID: guestToken}, nil)
	if w.StatusCode != http.StatusOK {
		t.Fatalf("can't merge carts: status code %s", w.Status)
	}

	// The overlap sums to 4 but stock caps it at 3; the guest-only game
	// moves over untouched.
	view = rt.showCartOK(t)
	if view.UserID == nil || *view.UserID != env.UserID {
		t.Error("merged cart does not belong to the user")
	}
	if len(view.Items) != 2 {
		t.Fatalf("merged cart has %d items, want 2", len(view.Items))
	}
	for _, it := range view.Items {
		switch it.GameID {
		case g1.ID:
			if it.Quantity != 3 {
				t.Errorf("overlap quantity = %d, want the stock cap 3", it.Quantity)
			}
		case g2.ID:
			if it.Quantity != 1 {
				t.Errorf("moved quantity = %d, want 1", it.Quantity)
			}
		default:
			t.Errorf("unexpected game %s in merged cart", it.GameID)
		}
	}
	rt.checkTotals(t, view, "50.00", 4)

	// The guest cart is gone, so replaying the merge fails.
	w = env.do(t, http.MethodPost, "/cart/merge", cart.CartMerge{OldSessionID: guestToken}, nil)
	if w.StatusCode != http.StatusNotFound {
		t.Errorf("replaying the merge: status code %s, want 404", w.Status)
	}
}

func TestCartMergeRequiresLogin(t *testing.T) {
	env, err := NewTestEnv(t, "cart_merge_auth_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	w := env.do(t, http.MethodPost, "/cart/merge", cart.CartMerge{OldSessionID: "sometoken"}, nil)
	if w.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous merge: status code %s, want 401", w.Status)
	}
}

func TestCartItemValidation(t *testing.T) {
	env, err := NewTestEnv(t, "cart_validation_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	gt := &gameTest{env}

	if err := env.Login(env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}
	g := gt.createGameOK(t, "Lone Lighthouse", "12.00", 1)
	if err := env.Logout(); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodPost, "/cart/items", cart.ItemNew{GameID: g.ID, Quantity: 0}, nil)
	if w.StatusCode != http.StatusBadRequest {
		t.Errorf("adding zero quantity: status code %s, want 400", w.Status)
	}

	w = env.do(t, http.MethodPost, "/cart/items", cart.ItemNew{GameID: g.ID, Quantity: -2}, nil)
	if w.StatusCode != http.StatusBadRequest {
		t.Errorf("adding negative quantity: status code %s, want 400", w.Status)
	}

	var stockErr struct {
		Error     string `json:"error"`
		Available int    `json:"available"`
	}
	w = env.do(t, http.MethodPost, "/cart/items", cart.ItemNew{GameID: g.ID, Quantity: 2}, &stockErr)
	if w.StatusCode != http.StatusBadRequest {
		t.Fatalf("adding above stock: status code %s, want 400", w.Status)
	}
	if stockErr.Available != 1 {
		t.Errorf("available = %d, want 1", stockErr.Available)
	}

	items := []cart.ItemDetails{}
	w = env.do(t, http.MethodGet, "/cart/items", nil, &items)
	if w.StatusCode != http.StatusOK {
		t.Errorf("listing items without a cart: status code %s, want 200", w.Status)
	}
}
