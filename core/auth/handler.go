package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akozhevina/tabletop-shop/api/web"
	"github.com/akozhevina/tabletop-shop/api/weberr"
	"github.com/akozhevina/tabletop-shop/core/cart"
	"github.com/akozhevina/tabletop-shop/core/claims"
	"github.com/akozhevina/tabletop-shop/core/user"
	"github.com/akozhevina/tabletop-shop/database"
	"github.com/akozhevina/tabletop-shop/validate"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

func HandleSignup(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var us user.UserSignup
		if err := web.Decode(w, r, &us); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(us); err != nil {
			return weberr.BadRequest(err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(us.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}

		now := time.Now().UTC()
		u := user.User{
			ID:           validate.GenerateID(),
			Name:         us.Name,
			Email:        us.Email,
			Role:         claims.RoleUser,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := user.Create(ctx, db, u); err != nil {
			if database.IsUniqueViolation(err, "") {
				return weberr.Conflict(errors.New("a user with this email already exists"))
			}
			return fmt.Errorf("creating user: %w", err)
		}

		return web.Respond(ctx, w, u, http.StatusCreated)
	}
}

// HandleLogin verifies credentials and rotates the session. The session
// token changes on login, which is why clients holding a guest cart pass
// their old cart token to the merge endpoint afterwards.
func HandleLogin(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var ul user.UserLogin
		if err := web.Decode(w, r, &ul); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(ul); err != nil {
			return weberr.BadRequest(err)
		}

		u, err := user.FetchByEmail(ctx, db, ul.Email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotAuthorized(errors.New("invalid credentials"))
			}
			return fmt.Errorf("fetching user by email: %w", err)
		}

		if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(ul.Password)); err != nil {
			return weberr.NotAuthorized(errors.New("invalid credentials"))
		}

		if err := login(ctx, session, u); err != nil {
			return err
		}

		return web.Respond(ctx, w, u, http.StatusOK)
	}
}

func HandleLogout(session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := session.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func login(ctx context.Context, session *scs.SessionManager, u user.User) error {
	if err := session.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}

	// The authenticated user is the cart identity from here on.
	session.Remove(ctx, cart.SessionTokenKey)

	session.Put(ctx, userIDKey, u.ID)
	session.Put(ctx, roleKey, u.Role)
	return nil
}
