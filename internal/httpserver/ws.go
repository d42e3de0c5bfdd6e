package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"paperstock/internal/auth"
	"paperstock/internal/quotes"

	"github.com/gorilla/websocket"
)

// QuoteStreamHandler pushes current quotes for symbols the client has
// subscribed to. Prices come from the same provider the trade workflows
// use, so the stream sees the provider's cache.
type QuoteStreamHandler struct {
	authSvc  *auth.Service
	provider quotes.Provider
	interval time.Duration
	origin   string
	upgrader websocket.Upgrader
}

func NewQuoteStreamHandler(authSvc *auth.Service, provider quotes.Provider, interval time.Duration, origin string) *QuoteStreamHandler {
	return &QuoteStreamHandler{
		authSvc:  authSvc,
		provider: provider,
		interval: interval,
		origin:   origin,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) },
		},
	}
}

type wsControlMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

type wsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type wsQuotePayload struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Price  string `json:"price"`
	TS     int64  `json:"ts"`
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	reqOrigin := r.Header.Get("Origin")
	if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
		if strings.Contains(reqOrigin, "localhost") || strings.Contains(reqOrigin, "127.0.0.1") {
			return true
		}
	}
	return strings.EqualFold(reqOrigin, origin)
}

func (h *QuoteStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Browser WS cannot set headers, so the token rides a query param.
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	if _, err := h.authSvc.ParseToken(token); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var mu sync.Mutex
	subscribed := make(map[string]struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ctrl wsControlMessage
			if err := json.Unmarshal(payload, &ctrl); err != nil {
				continue
			}
			symbol := strings.ToUpper(strings.TrimSpace(ctrl.Symbol))
			if symbol == "" {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(ctrl.Type)) {
			case "subscribe":
				mu.Lock()
				subscribed[symbol] = struct{}{}
				mu.Unlock()
			case "unsubscribe":
				mu.Lock()
				delete(subscribed, symbol)
				mu.Unlock()
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mu.Lock()
			symbols := make([]string, 0, len(subscribed))
			for s := range subscribed {
				symbols = append(symbols, s)
			}
			mu.Unlock()
			for _, symbol := range symbols {
				ctx, cancel := context.WithTimeout(r.Context(), h.interval)
				quote, err := h.provider.Lookup(ctx, symbol)
				cancel()
				if err != nil {
					continue
				}
				evt := wsEvent{Type: "quote", Data: wsQuotePayload{
					Symbol: quote.Symbol,
					Name:   quote.Name,
					Price:  quote.Price.StringFixed(4),
					TS:     time.Now().UnixMilli(),
				}}
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			}
		case <-done:
			return
		}
	}
}
