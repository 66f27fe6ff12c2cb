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
	"github.com/akozhevina/tabletop-shop/core/claims"
	"github.com/akozhevina/tabletop-shop/core/user"
	"github.com/akozhevina/tabletop-shop/random"
	"github.com/akozhevina/tabletop-shop/validate"
	"github.com/alexedwards/scs/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

const oauthStateKey = "oauth_state"

type ProviderConfig struct {
	Name        string
	Client      string
	Secret      string
	URL         string
	RedirectURL string
}

type Provider struct {
	name     string
	verifier *oidc.IDTokenVerifier
	conf     *oauth2.Config
}

// MakeProviders discovers the configured OIDC issuers.
func MakeProviders(ctx context.Context, cfgs []ProviderConfig) (map[string]Provider, error) {
	provs := make(map[string]Provider, len(cfgs))

	for _, cfg := range cfgs {
		p, err := oidc.NewProvider(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("discovering provider %q: %w", cfg.Name, err)
		}

		provs[cfg.Name] = Provider{
			name:     cfg.Name,
			verifier: p.Verifier(&oidc.Config{ClientID: cfg.Client}),
			conf: &oauth2.Config{
				ClientID:     cfg.Client,
				ClientSecret: cfg.Secret,
				Endpoint:     p.Endpoint(),
				RedirectURL:  cfg.RedirectURL,
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			},
		}
	}

	return provs, nil
}

func HandleOauthLogin(session *scs.SessionManager, provs map[string]Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prov, ok := provs[web.Param(r, "provider")]
		if !ok {
			return weberr.NotFound(fmt.Errorf("unknown oauth provider %q", web.Param(r, "provider")))
		}

		state, err := random.StringSecure(32)
		if err != nil {
			return fmt.Errorf("generating oauth state: %w", err)
		}
		session.Put(ctx, oauthStateKey, state)

		http.Redirect(w, r, prov.conf.AuthCodeURL(state), http.StatusTemporaryRedirect)
		return nil
	}
}

func HandleOauthCallback(db *sqlx.DB, session *scs.SessionManager, provs map[string]Provider, redirectURL string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prov, ok := provs[web.Param(r, "provider")]
		if !ok {
			return weberr.NotFound(fmt.Errorf("unknown oauth provider %q", web.Param(r, "provider")))
		}

		state := session.PopString(ctx, oauthStateKey)
		if state == "" || state != web.Query(r, "state") {
			return weberr.BadRequest(errors.New("oauth state mismatch"))
		}

		tok, err := prov.conf.Exchange(ctx, web.Query(r, "code"))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("exchanging oauth code: %w", err))
		}

		rawID, ok := tok.Extra("id_token").(string)
		if !ok {
			return weberr.BadRequest(errors.New("oauth token response misses id_token"))
		}

		idToken, err := prov.verifier.Verify(ctx, rawID)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("verifying id token: %w", err))
		}

		var profile struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := idToken.Claims(&profile); err != nil {
			return fmt.Errorf("decoding id token claims: %w", err)
		}

		u, err := fetchOrCreate(ctx, db, profile.Email, profile.Name)
		if err != nil {
			return fmt.Errorf("resolving oauth user: %w", err)
		}

		if err := login(ctx, session, u); err != nil {
			return err
		}

		http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
		return nil
	}
}

func fetchOrCreate(ctx context.Context, db *sqlx.DB, email string, name string) (user.User, error) {
	u, err := user.FetchByEmail(ctx, db, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return user.User{}, err
	}

	// Unusable password: oauth accounts only ever log in via the provider.
	pass, err := random.StringSecure(32)
	if err != nil {
		return user.User{}, fmt.Errorf("generating placeholder password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hashing placeholder password: %w", err)
	}

	now := time.Now().UTC()
	u = user.User{
		ID:           validate.GenerateID(),
		Name:         name,
		Email:        email,
		Role:         claims.RoleUser,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := user.Create(ctx, db, u); err != nil {
		return user.User{}, err
	}
	return u, nil
}
