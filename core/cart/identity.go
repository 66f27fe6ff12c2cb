package cart

import (
	"context"
	"fmt"

	"github.com/akozhevina/tabletop-shop/core/claims"
	"github.com/akozhevina/tabletop-shop/random"
	"github.com/alexedwards/scs/v2"
)

// SessionTokenKey is where the anonymous cart token lives inside the
// server-side session.
const SessionTokenKey = "cart_token"

const sessionTokenLength = 43

// ResolveIdentity builds the explicit cart identity for a request: the
// authenticated user when present, otherwise the session's anonymous cart
// token. A session without a token gets one minted here, so this call
// mutates the session and is not a plain lookup.
func ResolveIdentity(ctx context.Context, session *scs.SessionManager) (Identity, error) {
	if clm, err := claims.Get(ctx); err == nil {
		return Identity{UserID: clm.UserID}, nil
	}

	token := session.GetString(ctx, SessionTokenKey)
	if token == "" {
		t, err := random.StringSecure(sessionTokenLength)
		if err != nil {
			return Identity{}, fmt.Errorf("minting cart session token: %w", err)
		}
		session.Put(ctx, SessionTokenKey, t)
		token = t
	}

	return Identity{Token: token}, nil
}
