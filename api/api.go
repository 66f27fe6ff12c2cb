package api

import (
	"context"
	"net/http"

	"github.com/akozhevina/tabletop-shop/api/background"
	"github.com/akozhevina/tabletop-shop/api/middleware"
	"github.com/akozhevina/tabletop-shop/api/web"
	"github.com/akozhevina/tabletop-shop/cache"
	"github.com/akozhevina/tabletop-shop/config"
	"github.com/akozhevina/tabletop-shop/core/auth"
	"github.com/akozhevina/tabletop-shop/core/cart"
	"github.com/akozhevina/tabletop-shop/core/game"
	"github.com/akozhevina/tabletop-shop/core/order"
	"github.com/akozhevina/tabletop-shop/core/user"
	"github.com/akozhevina/tabletop-shop/event"
	"github.com/akozhevina/tabletop-shop/rate"
	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type APIConfig struct {
	CorsOrigin       string
	Log              logrus.FieldLogger
	DB               *sqlx.DB
	Session          *scs.SessionManager
	Background       *background.Background
	Cache            cache.Cache
	Events           *event.Publisher
	AuthLimiter      *rate.Limiter
	Paypal           *paypal.Client
	Stripe           *stripecl.API
	StripeCfg        config.Stripe
	Providers        map[string]auth.Provider
	LoginRedirectURL string
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	admin := auth.Admin(cfg.Session)
	anyone := auth.LoadClaims(cfg.Session)
	limited := middleware.RateLimit(cfg.AuthLimiter)

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session), limited)
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session), limited)
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/auth/oauth-login/{provider}", auth.HandleOauthLogin(cfg.Session, cfg.Providers))
	a.Handle(http.MethodGet, "/auth/oauth-callback/{provider}", auth.HandleOauthCallback(cfg.DB, cfg.Session, cfg.Providers, cfg.LoginRedirectURL))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)

	a.Handle(http.MethodGet, "/games", game.HandleList(cfg.DB))
	a.Handle(http.MethodGet, "/games/{id}", game.HandleShow(cfg.DB, cfg.Cache))
	a.Handle(http.MethodPost, "/games", game.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPut, "/games/{id}", game.HandleUpdate(cfg.DB, cfg.Cache), admin)
	a.Handle(http.MethodGet, "/games/{id}/images", game.HandleListImages(cfg.DB))
	a.Handle(http.MethodPost, "/games/{id}/images", game.HandleCreateImage(cfg.DB, cfg.Cache), admin)
	a.Handle(http.MethodGet, "/games/{id}/reviews", game.HandleListReviews(cfg.DB))
	a.Handle(http.MethodPost, "/games/{id}/reviews", game.HandleCreateReview(cfg.DB, cfg.Cache), authen)

	taxonomies := []struct {
		path string
		kind game.Kind
	}{
		{"/publishers", game.KindPublisher},
		{"/genres", game.KindGenre},
		{"/mechanics", game.KindMechanic},
		{"/types", game.KindType},
		{"/player-counts", game.KindPlayerCount},
		{"/age-groups", game.KindAgeGroup},
		{"/difficulties", game.KindDifficulty},
		{"/durations", game.KindDuration},
	}
	for _, t := range taxonomies {
		a.Handle(http.MethodGet, t.path, game.HandleListTaxonomy(cfg.DB, cfg.Cache, t.kind))
		a.Handle(http.MethodPost, t.path, game.HandleCreateTaxonomy(cfg.DB, cfg.Cache, t.kind), admin)
	}

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(cfg.DB, cfg.Session), anyone)
	a.Handle(http.MethodDelete, "/cart", cart.HandleDelete(cfg.DB, cfg.Session), anyone)
	a.Handle(http.MethodGet, "/cart/items", cart.HandleListItems(cfg.DB, cfg.Session), anyone)
	a.Handle(http.MethodPost, "/cart/items", cart.HandleCreateItem(cfg.DB, cfg.Session), anyone)
	a.Handle(http.MethodPatch, "/cart/items/{id}", cart.HandleUpdateItem(cfg.DB, cfg.Session), anyone)
	a.Handle(http.MethodDelete, "/cart/items/{id}", cart.HandleDeleteItem(cfg.DB, cfg.Session), anyone)
	a.Handle(http.MethodPost, "/cart/merge", cart.HandleMerge(cfg.DB), authen)

	a.Handle(http.MethodGet, "/orders", order.HandleList(cfg.DB), authen)
	a.Handle(http.MethodPost, "/orders/paypal", order.HandlePaypalCheckout(cfg.DB, cfg.Paypal), authen)
	a.Handle(http.MethodPost, "/orders/paypal/{id}/capture", order.HandlePaypalCapture(cfg.DB, cfg.Paypal, cfg.Background, cfg.Events), authen)
	a.Handle(http.MethodPost, "/orders/stripe", order.HandleStripeCheckout(cfg.DB, cfg.Stripe, cfg.StripeCfg), authen)
	a.Handle(http.MethodPost, "/orders/stripe/capture", order.HandleStripeCapture(cfg.DB, cfg.StripeCfg, cfg.Background, cfg.Events))

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
