package game

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/akozhevina/tabletop-shop/api/web"
	"github.com/akozhevina/tabletop-shop/api/weberr"
	"github.com/akozhevina/tabletop-shop/cache"
	"github.com/akozhevina/tabletop-shop/core/claims"
	"github.com/akozhevina/tabletop-shop/database"
	"github.com/akozhevina/tabletop-shop/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const cacheTTL = time.Minute

func cacheKeyGame(id string) string { return "game:" + id }

func cacheKeyTaxonomy(k Kind) string { return "taxonomy:" + string(k) }

func respondCached(ctx context.Context, w http.ResponseWriter, b []byte) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("cannot write cached response: %w", err)
	}
	return nil
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		f, err := parseFilter(r)
		if err != nil {
			return weberr.BadRequest(err)
		}

		games, err := FetchAll(ctx, db, f)
		if err != nil {
			return fmt.Errorf("fetching games: %w", err)
		}

		return web.Respond(ctx, w, games, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB, c cache.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		if b, err := c.Get(ctx, cacheKeyGame(id)); err == nil {
			return respondCached(ctx, w, b)
		}

		details, err := FetchDetails(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching game[%s]: %w", id, err)
		}

		if b, err := json.Marshal(details); err == nil {
			_ = c.Set(ctx, cacheKeyGame(id), b, cacheTTL)
		}

		return web.Respond(ctx, w, details, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var gn GameNew
		if err := web.Decode(w, r, &gn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(gn); err != nil {
			return weberr.BadRequest(err)
		}
		if gn.Price.IsNegative() || gn.Price.IsZero() {
			return weberr.BadRequest(errors.New("price must be greater than 0"))
		}

		// The discount price defaults to the full price.
		discount := gn.DiscountPrice
		if discount.IsZero() {
			discount = gn.Price
		}
		if discount.IsNegative() || discount.GreaterThan(gn.Price) {
			return weberr.BadRequest(errors.New("discount price must be between 0 and price"))
		}

		now := time.Now().UTC()
		g := Game{
			ID:            validate.GenerateID(),
			Title:         gn.Title,
			Description:   gn.Description,
			RulesSummary:  gn.RulesSummary,
			ReleaseYear:   gn.ReleaseYear,
			Price:         gn.Price,
			DiscountPrice: discount,
			Stock:         gn.Stock,
			PublisherID:   gn.PublisherID,
			PlayerCountID: gn.PlayerCountID,
			AgeGroupID:    gn.AgeGroupID,
			DifficultyID:  gn.DifficultyID,
			DurationID:    gn.DurationID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err := database.Transaction(db, func(tx sqlx.ExtContext) error {
			return Create(ctx, tx, g, gn.GenreIDs, gn.MechanicIDs, gn.TypeIDs)
		})
		if err != nil {
			return fmt.Errorf("creating game: %w", err)
		}

		return web.Respond(ctx, w, g, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB, c cache.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		var gu GameUp
		if err := web.Decode(w, r, &gu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(gu); err != nil {
			return weberr.BadRequest(err)
		}

		g, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching game[%s]: %w", id, err)
		}

		if gu.Title != nil {
			g.Title = *gu.Title
		}
		if gu.Description != nil {
			g.Description = *gu.Description
		}
		if gu.RulesSummary != nil {
			g.RulesSummary = *gu.RulesSummary
		}
		if gu.ReleaseYear != nil {
			g.ReleaseYear = *gu.ReleaseYear
		}
		if gu.Price != nil {
			if gu.Price.IsNegative() || gu.Price.IsZero() {
				return weberr.BadRequest(errors.New("price must be greater than 0"))
			}
			g.Price = *gu.Price
		}
		if gu.DiscountPrice != nil {
			if gu.DiscountPrice.IsNegative() || gu.DiscountPrice.GreaterThan(g.Price) {
				return weberr.BadRequest(errors.New("discount price must be between 0 and price"))
			}
			g.DiscountPrice = *gu.DiscountPrice
		}
		if gu.Stock != nil {
			g.Stock = *gu.Stock
		}
		g.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, g); err != nil {
			return fmt.Errorf("updating game[%s]: %w", id, err)
		}

		_ = c.Delete(ctx, cacheKeyGame(id))

		return web.Respond(ctx, w, g, http.StatusOK)
	}
}

func HandleCreateImage(db *sqlx.DB, c cache.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		gameID := web.Param(r, "id")
		if err := validate.CheckID(gameID); err != nil {
			return weberr.BadRequest(err)
		}

		var in struct {
			URL string `json:"url" validate:"required,url"`
		}
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(in); err != nil {
			return weberr.BadRequest(err)
		}

		if _, err := Fetch(ctx, db, gameID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching game[%s]: %w", gameID, err)
		}

		if err := CreateImage(ctx, db, validate.GenerateID(), gameID, in.URL); err != nil {
			return fmt.Errorf("creating image: %w", err)
		}

		_ = c.Delete(ctx, cacheKeyGame(gameID))

		return web.Respond(ctx, w, nil, http.StatusCreated)
	}
}

func HandleListImages(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		gameID := web.Param(r, "id")
		if err := validate.CheckID(gameID); err != nil {
			return weberr.BadRequest(err)
		}

		urls, err := FetchImages(ctx, db, gameID)
		if err != nil {
			return fmt.Errorf("fetching images: %w", err)
		}

		return web.Respond(ctx, w, urls, http.StatusOK)
	}
}

func HandleListReviews(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		gameID := web.Param(r, "id")
		if err := validate.CheckID(gameID); err != nil {
			return weberr.BadRequest(err)
		}

		rvs, err := FetchReviews(ctx, db, gameID)
		if err != nil {
			return fmt.Errorf("fetching reviews: %w", err)
		}

		return web.Respond(ctx, w, rvs, http.StatusOK)
	}
}

func HandleCreateReview(db *sqlx.DB, c cache.Cache) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		gameID := web.Param(r, "id")
		if err := validate.CheckID(gameID); err != nil {
			return weberr.BadRequest(err)
		}

		var rn ReviewNew
		if err := web.Decode(w, r, &rn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := rn.Validate(); err != nil {
			return weberr.BadRequest(err)
		}

		if _, err := Fetch(ctx, db, gameID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching game[%s]: %w", gameID, err)
		}

		rv := Review{
			ID:        validate.GenerateID(),
			GameID:    gameID,
			UserID:    clm.UserID,
			Rating:    rn.Rating,
			Comment:   rn.Comment,
			CreatedAt: time.Now().UTC(),
		}

		if err := CreateReview(ctx, db, rv); err != nil {
			return fmt.Errorf("creating review: %w", err)
		}

		// The average rating is denormalized into cached game payloads.
		_ = c.Delete(ctx, cacheKeyGame(gameID))

		return web.Respond(ctx, w, rv, http.StatusCreated)
	}
}

func HandleListTaxonomy(db *sqlx.DB, c cache.Cache, kind Kind) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if b, err := c.Get(ctx, cacheKeyTaxonomy(kind)); err == nil {
			return respondCached(ctx, w, b)
		}

		ts, err := FetchTaxonomies(ctx, db, kind)
		if err != nil {
			return fmt.Errorf("fetching %s values: %w", kind, err)
		}

		if b, err := json.Marshal(ts); err == nil {
			_ = c.Set(ctx, cacheKeyTaxonomy(kind), b, cacheTTL)
		}

		return web.Respond(ctx, w, ts, http.StatusOK)
	}
}

func HandleCreateTaxonomy(db *sqlx.DB, c cache.Cache, kind Kind) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var tn TaxonomyNew
		if err := web.Decode(w, r, &tn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(tn); err != nil {
			return weberr.BadRequest(err)
		}

		t := Taxonomy{ID: validate.GenerateID(), Name: tn.Name}
		if err := CreateTaxonomy(ctx, db, kind, t); err != nil {
			if database.IsUniqueViolation(err, "") {
				return weberr.Conflict(fmt.Errorf("%s %q already exists", kind, tn.Name))
			}
			return fmt.Errorf("creating %s: %w", kind, err)
		}

		_ = c.Delete(ctx, cacheKeyTaxonomy(kind))

		return web.Respond(ctx, w, t, http.StatusCreated)
	}
}

func parseFilter(r *http.Request) (Filter, error) {
	f := Filter{
		Search:        web.Query(r, "search"),
		PlayerCountID: web.Query(r, "player_count"),
		AgeGroupID:    web.Query(r, "age_group"),
		DifficultyID:  web.Query(r, "difficulty"),
		DurationID:    web.Query(r, "duration"),
		OrderBy:       web.Query(r, "ordering"),
	}

	if v := web.Query(r, "min_price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return Filter{}, fmt.Errorf("min_price is not a number")
		}
		f.MinPrice = &d
	}
	if v := web.Query(r, "max_price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return Filter{}, fmt.Errorf("max_price is not a number")
		}
		f.MaxPrice = &d
	}

	ids := func(v string) []string {
		if v == "" {
			return nil
		}
		return strings.Split(v, ",")
	}
	f.GenreIDs = ids(web.Query(r, "genre"))
	f.MechanicIDs = ids(web.Query(r, "mechanic"))
	f.TypeIDs = ids(web.Query(r, "type"))

	if err := f.Validate(); err != nil {
		return Filter{}, err
	}

	return f, nil
}
