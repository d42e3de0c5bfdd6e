package trading

import (
	"net/http"
	"time"

	"paperstock/internal/apperr"
	"paperstock/internal/httputil"

	"github.com/shopspring/decimal"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type buyRequest struct {
	Symbol string `json:"symbol"`
	Shares string `json:"shares"`
}

type sellRequest struct {
	Symbol string `json:"symbol"`
}

type depositRequest struct {
	Amount string `json:"amount"`
}

type quoteResponse struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Price  string `json:"price"`
}

type tradeResponse struct {
	Symbol string `json:"symbol"`
	Shares int64  `json:"shares"`
	Price  string `json:"price"`
	Amount string `json:"amount"`
	Cash   string `json:"cash"`
}

type sellResponse struct {
	Sold bool `json:"sold"`
	*tradeResponse
}

type positionResponse struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Shares int64  `json:"shares"`
	Price  string `json:"price"`
	Total  string `json:"total"`
}

type portfolioResponse struct {
	Cash      string             `json:"cash"`
	Positions []positionResponse `json:"positions"`
}

type historyEntryResponse struct {
	Kind         string  `json:"kind"`
	Timestamp    string  `json:"timestamp"`
	Symbol       string  `json:"symbol"`
	Shares       int64   `json:"shares"`
	Price        string  `json:"price"`
	CurrentPrice *string `json:"current_price"`
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request, userID string) {
	quote, err := h.svc.Quote(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		httputil.WriteJSON(w, apperr.HTTPStatus(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quoteResponse{
		Symbol: quote.Symbol,
		Name:   quote.Name,
		Price:  money(quote.Price),
	})
}

func (h *Handler) Buy(w http.ResponseWriter, r *http.Request, userID string) {
	var req buyRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.svc.Buy(r.Context(), userID, req.Symbol, req.Shares)
	if err != nil {
		httputil.WriteJSON(w, apperr.HTTPStatus(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tradeFromResult(res))
}

func (h *Handler) Sell(w http.ResponseWriter, r *http.Request, userID string) {
	var req sellRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.svc.Sell(r.Context(), userID, req.Symbol)
	if err != nil {
		httputil.WriteJSON(w, apperr.HTTPStatus(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	out := sellResponse{Sold: res.Sold}
	if res.Sold {
		tr := tradeFromResult(res.TradeResult)
		out.tradeResponse = &tr
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request, userID string) {
	var req depositRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	cash, err := h.svc.Deposit(r.Context(), userID, req.Amount)
	if err != nil {
		httputil.WriteJSON(w, apperr.HTTPStatus(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"cash": money(cash)})
}

func (h *Handler) Portfolio(w http.ResponseWriter, r *http.Request, userID string) {
	view, err := h.svc.Portfolio(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, apperr.HTTPStatus(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	out := portfolioResponse{
		Cash:      money(view.Cash),
		Positions: make([]positionResponse, 0, len(view.Positions)),
	}
	for _, p := range view.Positions {
		out.Positions = append(out.Positions, positionResponse{
			Symbol: p.Symbol,
			Name:   p.Name,
			Shares: p.Shares,
			Price:  money(p.Price),
			Total:  money(p.Total),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request, userID string) {
	entries, err := h.svc.History(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, apperr.HTTPStatus(err), httputil.ErrorResponse{Error: err.Error()})
		return
	}
	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		entry := historyEntryResponse{
			Kind:      string(e.Kind),
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Symbol:    e.Symbol,
			Shares:    e.Shares,
			Price:     money(e.Price),
		}
		if e.CurrentPrice != nil {
			current := money(*e.CurrentPrice)
			entry.CurrentPrice = &current
		}
		out = append(out, entry)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func tradeFromResult(res TradeResult) tradeResponse {
	return tradeResponse{
		Symbol: res.Symbol,
		Shares: res.Shares,
		Price:  money(res.Price),
		Amount: money(res.Amount),
		Cash:   money(res.Cash),
	}
}

// Prices and cash render with four decimal places everywhere.
func money(d decimal.Decimal) string {
	return d.StringFixed(4)
}
