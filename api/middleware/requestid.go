package middleware

import (
	"context"
	"net/http"

	"github.com/akozhevina/tabletop-shop/api/web"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-Id"

const requestIDLengthLimit = 128

type reqIDKeyCtx int

const reqIDKey reqIDKeyCtx = 1

// RequestID takes the id from the X-Request-Id header if the caller set one,
// otherwise generates it, and stores it in the context for the loggers.
func RequestID() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			} else if len(id) > requestIDLengthLimit {
				id = id[:requestIDLengthLimit]
			}
			ctx = context.WithValue(ctx, reqIDKey, id)

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func ContextRequestID(ctx context.Context) (reqID string) {
	id := ctx.Value(reqIDKey)
	if id != nil {
		reqID = id.(string)
	}
	return
}
