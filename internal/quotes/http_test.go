package quotes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "AAPL" {
			t.Errorf("symbol = %q, want AAPL", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"AAPL","name":"Apple Inc.","price":"187.4500"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, time.Minute)
	q, err := p.Lookup(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if q.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", q.Symbol)
	}
	if q.Name != "Apple Inc." {
		t.Errorf("Name = %q, want Apple Inc.", q.Name)
	}
	if q.Price.StringFixed(4) != "187.4500" {
		t.Errorf("Price = %s, want 187.4500", q.Price)
	}
}

func TestLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, time.Minute)
	if _, err := p.Lookup(context.Background(), "ZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLookupEmptySymbol(t *testing.T) {
	p := NewHTTPProvider("http://localhost:1", time.Second, time.Minute)
	if _, err := p.Lookup(context.Background(), "  "); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, time.Minute)
	if _, err := p.Lookup(context.Background(), "AAPL"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestLookupTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	p := NewHTTPProvider(srv.URL, 50*time.Millisecond, time.Minute)
	if _, err := p.Lookup(context.Background(), "AAPL"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestLookupRejectsNonPositivePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"FREE","name":"Free Stock","price":"0"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, time.Minute)
	if _, err := p.Lookup(context.Background(), "FREE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLookupCaches(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"symbol":"AAPL","name":"Apple Inc.","price":"187.45"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, time.Minute)
	for i := 0; i < 3; i++ {
		if _, err := p.Lookup(context.Background(), "AAPL"); err != nil {
			t.Fatalf("Lookup %d failed: %v", i, err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream hits = %d, want 1 (cached)", got)
	}
}

func TestLookupCacheExpires(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"symbol":"AAPL","name":"Apple Inc.","price":"187.45"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, 10*time.Millisecond)
	if _, err := p.Lookup(context.Background(), "AAPL"); err != nil {
		t.Fatalf("first Lookup failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := p.Lookup(context.Background(), "AAPL"); err != nil {
		t.Fatalf("second Lookup failed: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("upstream hits = %d, want 2 after TTL expiry", got)
	}
}
