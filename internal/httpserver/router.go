package httpserver

import (
	"net/http"

	"paperstock/internal/auth"
	"paperstock/internal/health"
	"paperstock/internal/httputil"
	"paperstock/internal/places"
	"paperstock/internal/trading"

	"github.com/go-chi/chi/v5"
)

type RouterDeps struct {
	AuthHandler    *auth.Handler
	TradingHandler *trading.Handler
	PlacesHandler  *places.Handler
	HealthHandler  *health.Handler
	AuthService    *auth.Service
	WSHandler      http.Handler
}

type authedHandler func(w http.ResponseWriter, r *http.Request, userID string)

func requireUser(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		h(w, r, userID)
	}
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware)

	r.Get("/health", d.HealthHandler.Ready)
	r.Get("/health/live", d.HealthHandler.Live)
	r.Get("/health/ready", d.HealthHandler.Ready)
	r.Get("/health/full", d.HealthHandler.Full)

	// Place-name lookup; public, JSON only.
	r.Get("/search", d.PlacesHandler.Search)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
		})
		r.Get("/quotes/ws", d.WSHandler.ServeHTTP)
		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))
			r.Get("/me", requireUser(d.AuthHandler.Me))
			r.Post("/password", requireUser(d.AuthHandler.ChangePassword))
			r.Get("/quote", requireUser(d.TradingHandler.Quote))
			r.Get("/portfolio", requireUser(d.TradingHandler.Portfolio))
			r.Get("/history", requireUser(d.TradingHandler.History))
			r.Post("/buy", requireUser(d.TradingHandler.Buy))
			r.Post("/sell", requireUser(d.TradingHandler.Sell))
			r.Post("/deposit", requireUser(d.TradingHandler.Deposit))
		})
	})
	return r
}
