package main

import (
	"context"
	"net/http"
	"time"

	"booklending/internal/acquisition"
	"booklending/internal/book"
	"booklending/internal/circulation"
	"booklending/internal/domain"
	"booklending/internal/httpx"
	"booklending/internal/user"
)

const maxBodyBytes = 1 << 20

type pinger interface {
	Ping(ctx context.Context) error
}

type handlers struct {
	books       *book.HTTPHandler
	users       *user.HTTPHandler
	circulation *circulation.HTTPHandler
	acquisition *acquisition.HTTPHandler
}

type routerConfig struct {
	jwtSecret   string
	corsOrigins []string
	enableHSTS  bool
	rateLimiter *httpx.RateLimitMiddleware
	db          pinger
}

func newRouter(cfg routerConfig, h handlers) http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
			defer cancel()
			if err := cfg.db.Ping(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	auth := httpx.AuthMiddleware(cfg.jwtSecret)
	admin := httpx.RequireRole(domain.RoleAdmin)
	protected := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, auth)
	}
	adminOnly := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, auth, admin)
	}

	router.Handle("GET /offices/{office}/books", protected(h.books.List))
	router.Handle("GET /offices/{office}/books/{isbn}", protected(h.books.GetByISBN))

	router.Handle("GET /me", protected(h.users.Me))
	router.Handle("GET /me/checkouts", protected(h.circulation.History))

	router.Handle("POST /copies/{id}/borrow", protected(h.circulation.Borrow))
	router.Handle("GET /copies/{id}/eligibility", protected(h.circulation.Eligibility))
	router.Handle("POST /copies/{id}/return", protected(h.circulation.Return))
	router.Handle("GET /offices/{office}/checkouts/overdue", adminOnly(h.circulation.Overdue))

	router.Handle("POST /requests", protected(h.acquisition.Create))
	router.Handle("GET /offices/{office}/requests", protected(h.acquisition.List))
	router.Handle("POST /requests/{id}/like", protected(h.acquisition.ToggleLike))
	router.Handle("PATCH /requests/{id}/status", adminOnly(h.acquisition.ChangeStatus))

	middlewares := []httpx.Middleware{
		httpx.RecoveryMiddleware,
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware,
		httpx.SecurityHeadersMiddleware(cfg.enableHSTS),
		httpx.CORSMiddleware(cfg.corsOrigins),
	}
	if cfg.rateLimiter != nil {
		middlewares = append(middlewares, cfg.rateLimiter.Middleware)
	}
	middlewares = append(middlewares, httpx.RequestSizeLimitMiddleware(maxBodyBytes))

	return httpx.Chain(router, middlewares...)
}
