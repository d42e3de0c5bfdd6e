package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paperstock/internal/auth"
	"paperstock/internal/config"
	"paperstock/internal/db"
	"paperstock/internal/health"
	"paperstock/internal/httpserver"
	"paperstock/internal/places"
	"paperstock/internal/quotes"
	"paperstock/internal/trading"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	startedAt := time.Now().UTC()
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	provider := quotes.NewHTTPProvider(cfg.QuoteURL, cfg.QuoteTimeout, cfg.QuoteCacheTTL)
	authSvc := auth.NewService(pool, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL, cfg.StartingCash)
	tradingSvc := trading.NewService(pool, provider, cfg.QuoteTimeout)
	placesSvc := places.NewService(pool)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:    auth.NewHandler(authSvc),
		TradingHandler: trading.NewHandler(tradingSvc),
		PlacesHandler:  places.NewHandler(placesSvc),
		HealthHandler:  health.NewHandler(pool, startedAt, cfg.HTTPAddr, cfg.QuoteURL, cfg.InternalToken),
		AuthService:    authSvc,
		WSHandler:      httpserver.NewQuoteStreamHandler(authSvc, provider, cfg.QuoteStreamInterval, cfg.WebSocketOrigin),
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	log.Printf("server listening on %s", cfg.HTTPAddr)
	log.Printf("health endpoint: http://localhost%s/health", cfg.HTTPAddr)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
