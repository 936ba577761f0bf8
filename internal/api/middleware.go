package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fastprodman/buzzledger/internal/auth"
)

// authenticate validates the Bearer token and puts the principal into the context.
func (h *HandlerProvider) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			h.writeError(w, http.StatusUnauthorized, "missing bearer token")

			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			h.writeError(w, http.StatusUnauthorized, "invalid authorization header")

			return
		}

		p, err := h.Auth.Verify(token)
		if err != nil {
			h.Logger.Warn("auth: invalid token",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			h.writeError(w, http.StatusUnauthorized, "invalid token")

			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

// requireRole must run after authenticate.
func (h *HandlerProvider) requireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !principal(r).Has(roles...) {
				h.writeError(w, http.StatusForbidden, auth.ErrForbidden.Error())

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// instrument records request duration by route pattern.
func (h *HandlerProvider) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = r.Method + " " + rctx.RoutePattern()
		}

		h.Metrics.ObserveRequest(route, time.Since(start))
	})
}
