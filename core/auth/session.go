package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/akozhevina/tabletop-shop/api/web"
	"github.com/akozhevina/tabletop-shop/api/weberr"
	"github.com/akozhevina/tabletop-shop/core/claims"
	"github.com/alexedwards/scs/v2"
)

const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// LoadAndSave bridges the scs http middleware into the web.Middleware chain.
// It must be the outermost middleware so every handler sees the session.
func LoadAndSave(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var err error

			hf := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				err = handler(r.Context(), w, r)
			})

			session.LoadAndSave(hf).ServeHTTP(w, r)
			return err
		}
		return h
	}
	return m
}

// LoadClaims populates claims from the session when a user is logged in
// and passes anonymous requests through untouched. Cart endpoints use it:
// they serve both identities.
func LoadClaims(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if userID := session.GetString(ctx, userIDKey); userID != "" {
				ctx = claims.Set(ctx, claims.Claims{
					UserID: userID,
					Role:   session.GetString(ctx, roleKey),
				})
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Authenticate populates claims from the session and rejects anonymous
// requests.
func Authenticate(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			userID := session.GetString(ctx, userIDKey)
			if userID == "" {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			ctx = claims.Set(ctx, claims.Claims{
				UserID: userID,
				Role:   session.GetString(ctx, roleKey),
			})

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func Admin(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			userID := session.GetString(ctx, userIDKey)
			if userID == "" {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			role := session.GetString(ctx, roleKey)
			if role != claims.RoleAdmin {
				return weberr.NotAuthorized(errors.New("user is not an admin"))
			}

			ctx = claims.Set(ctx, claims.Claims{UserID: userID, Role: role})

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
