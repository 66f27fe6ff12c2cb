package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/akozhevina/tabletop-shop/api/web"
	"github.com/akozhevina/tabletop-shop/api/weberr"
	"github.com/akozhevina/tabletop-shop/core/claims"
	"github.com/akozhevina/tabletop-shop/validate"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
)

// CartView is the cart plus its line items. The session token is part of
// the payload so a guest client can hold on to it and pass it to the merge
// endpoint after logging in.
type CartView struct {
	Cart
	Items []ItemDetails `json:"items"`
}

func HandleShow(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		idn, err := ResolveIdentity(ctx, session)
		if err != nil {
			return err
		}

		c, err := Find(ctx, db, idn)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("finding cart: %w", err)
		}

		items, err := FetchItems(ctx, db, c.ID)
		if err != nil {
			return fmt.Errorf("fetching cart items: %w", err)
		}

		return web.Respond(ctx, w, CartView{Cart: c, Items: items}, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		idn, err := ResolveIdentity(ctx, session)
		if err != nil {
			return err
		}

		if err := Clear(ctx, db, idn); err != nil {
			if errors.Is(err, ErrNoCart) {
				return weberr.BadRequest(ErrNoCart)
			}
			return fmt.Errorf("clearing cart: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleListItems(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		idn, err := ResolveIdentity(ctx, session)
		if err != nil {
			return err
		}

		c, err := Find(ctx, db, idn)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return web.Respond(ctx, w, []ItemDetails{}, http.StatusOK)
			}
			return fmt.Errorf("finding cart: %w", err)
		}

		items, err := FetchItems(ctx, db, c.ID)
		if err != nil {
			return fmt.Errorf("fetching cart items: %w", err)
		}

		return web.Respond(ctx, w, items, http.StatusOK)
	}
}

func HandleCreateItem(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.BadRequest(err)
		}

		idn, err := ResolveIdentity(ctx, session)
		if err != nil {
			return err
		}

		// The cart row comes to life on the first added item.
		c, err := Resolve(ctx, db, idn)
		if err != nil {
			return fmt.Errorf("resolving cart: %w", err)
		}

		details, err := AddItem(ctx, db, c, in)
		if err != nil {
			return toWebErr(err)
		}

		return web.Respond(ctx, w, details, http.StatusCreated)
	}
}

func HandleUpdateItem(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		itemID := web.Param(r, "id")
		if err := validate.CheckID(itemID); err != nil {
			return weberr.BadRequest(err)
		}

		var in ItemUp
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		idn, err := ResolveIdentity(ctx, session)
		if err != nil {
			return err
		}

		c, err := Find(ctx, db, idn)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("finding cart: %w", err)
		}

		details, removed, err := UpdateItem(ctx, db, c, itemID, in.Quantity)
		if err != nil {
			return toWebErr(err)
		}

		if removed {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}
		return web.Respond(ctx, w, details, http.StatusOK)
	}
}

func HandleDeleteItem(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		itemID := web.Param(r, "id")
		if err := validate.CheckID(itemID); err != nil {
			return weberr.BadRequest(err)
		}

		idn, err := ResolveIdentity(ctx, session)
		if err != nil {
			return err
		}

		c, err := Find(ctx, db, idn)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("finding cart: %w", err)
		}

		if err := RemoveItem(ctx, db, c, itemID); err != nil {
			return toWebErr(err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleMerge(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in CartMerge
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.BadRequest(err)
		}

		if _, err := Merge(ctx, db, clm.UserID, in.OldSessionID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(errors.New("guest cart not found"))
			}
			return fmt.Errorf("merging carts: %w", err)
		}

		detail := struct {
			Detail string `json:"detail"`
		}{"merged"}
		return web.Respond(ctx, w, detail, http.StatusOK)
	}
}

func toWebErr(err error) error {
	var serr *StockError
	switch {
	case errors.Is(err, ErrQuantityNotPositive):
		return weberr.BadRequest(ErrQuantityNotPositive)
	case errors.Is(err, ErrDuplicateItem):
		return weberr.Conflict(ErrDuplicateItem)
	case errors.Is(err, sql.ErrNoRows):
		return weberr.NotFound(err)
	case errors.As(err, &serr):
		body := struct {
			Error     string `json:"error"`
			Available int    `json:"available"`
		}{serr.Error(), serr.Available}
		return weberr.Wrap(&weberr.RequestError{Err: err},
			weberr.WithResponse(&body, http.StatusBadRequest),
			weberr.WithFields(map[string]interface{}{"available": serr.Available}),
		)
	}
	return err
}
