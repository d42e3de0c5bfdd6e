package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type cachedQuote struct {
	quote   Quote
	fetched time.Time
}

// HTTPProvider talks to the quote service over HTTP and caches answers for
// a short TTL so portfolio and history views do not hammer it.
type HTTPProvider struct {
	baseURL string
	cli     *http.Client
	ttl     time.Duration

	mu    sync.RWMutex
	cache map[string]cachedQuote
}

func NewHTTPProvider(baseURL string, timeout, cacheTTL time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		cli:     &http.Client{Timeout: timeout},
		ttl:     cacheTTL,
		cache:   make(map[string]cachedQuote),
	}
}

type quoteResponse struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

func (p *HTTPProvider) Lookup(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Quote{}, ErrNotFound
	}

	p.mu.RLock()
	if c, ok := p.cache[symbol]; ok && time.Since(c.fetched) < p.ttl {
		p.mu.RUnlock()
		return c.quote, nil
	}
	p.mu.RUnlock()

	u := p.baseURL + "/quote?symbol=" + url.QueryEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.cli.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Quote{}, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return Quote{}, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}

	var raw quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if raw.Symbol == "" {
		raw.Symbol = symbol
	}
	if raw.Price.LessThanOrEqual(decimal.Zero) {
		return Quote{}, ErrNotFound
	}
	q := Quote{Symbol: strings.ToUpper(raw.Symbol), Name: raw.Name, Price: raw.Price}

	p.mu.Lock()
	p.cache[symbol] = cachedQuote{quote: q, fetched: time.Now()}
	p.mu.Unlock()

	return q, nil
}
