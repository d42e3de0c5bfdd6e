package quotes

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Quote is a symbol's current name and price as reported by the lookup
// collaborator.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

var (
	// ErrNotFound means the collaborator answered and does not know the symbol.
	ErrNotFound = errors.New("symbol not found")
	// ErrUnavailable means the collaborator could not be reached in time.
	ErrUnavailable = errors.New("quote service unavailable")
)

// Provider resolves a symbol to its current quote. Lookup is the only
// unbounded external call in the system; implementations must honor the
// context deadline.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (Quote, error)
}
