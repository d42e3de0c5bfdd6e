package health

import (
	"context"
	"crypto/subtle"
	"net/http"
	"runtime"
	"strings"
	"time"

	"paperstock/internal/httputil"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Handler struct {
	pool        *pgxpool.Pool
	startedAt   time.Time
	httpAddr    string
	quoteURL    string
	internalTok string
}

func NewHandler(pool *pgxpool.Pool, startedAt time.Time, httpAddr, quoteURL, internalToken string) *Handler {
	start := startedAt.UTC()
	if start.IsZero() {
		start = time.Now().UTC()
	}
	return &Handler{
		pool:        pool,
		startedAt:   start,
		httpAddr:    strings.TrimSpace(httpAddr),
		quoteURL:    strings.TrimSpace(quoteURL),
		internalTok: strings.TrimSpace(internalToken),
	}
}

type liveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	UptimeSec int64  `json:"uptime_sec"`
}

type readinessResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	UptimeSec int64   `json:"uptime_sec"`
	Database  dbState `json:"database"`
}

type dbState struct {
	Reachable bool   `json:"reachable"`
	PingMs    int64  `json:"ping_ms"`
	Error     string `json:"error,omitempty"`
}

type fullResponse struct {
	readinessResponse
	App     appState  `json:"app"`
	Runtime goState   `json:"runtime"`
	Pool    poolState `json:"pool"`
}

type appState struct {
	HTTPAddr string `json:"http_addr"`
	QuoteURL string `json:"quote_url"`
}

type goState struct {
	GoVersion  string `json:"go_version"`
	Goroutines int    `json:"goroutines"`
	AllocBytes uint64 `json:"alloc_bytes"`
	NumGC      uint32 `json:"num_gc"`
}

type poolState struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

func (h *Handler) uptime(now time.Time) time.Duration {
	uptime := now.Sub(h.startedAt)
	if uptime < 0 {
		return 0
	}
	return uptime
}

func (h *Handler) pingDB(ctx context.Context) dbState {
	if h.pool == nil {
		return dbState{Error: "pool is not configured"}
	}
	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	err := h.pool.Ping(pingCtx)
	cancel()
	state := dbState{PingMs: time.Since(start).Milliseconds()}
	if err != nil {
		state.Error = err.Error()
	} else {
		state.Reachable = true
	}
	return state
}

// Live does not touch the database.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	httputil.WriteJSON(w, http.StatusOK, liveResponse{
		Status:    "ok",
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: int64(h.uptime(now).Seconds()),
	})
}

// Ready checks the database and returns 503 when it is not reachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	db := h.pingDB(r.Context())
	status := "ok"
	httpStatus := http.StatusOK
	if !db.Reachable {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, httpStatus, readinessResponse{
		Status:    status,
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: int64(h.uptime(now).Seconds()),
		Database:  db,
	})
}

// Full returns process diagnostics and is protected by X-Internal-Token.
func (h *Handler) Full(w http.ResponseWriter, r *http.Request) {
	if h.internalTok == "" {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{Error: "internal token is not configured"})
		return
	}
	provided := strings.TrimSpace(r.Header.Get("X-Internal-Token"))
	if len(provided) != len(h.internalTok) || subtle.ConstantTimeCompare([]byte(provided), []byte(h.internalTok)) != 1 {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid internal token"})
		return
	}

	now := time.Now().UTC()
	db := h.pingDB(r.Context())
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status := "ok"
	httpStatus := http.StatusOK
	if !db.Reachable {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}
	resp := fullResponse{
		readinessResponse: readinessResponse{
			Status:    status,
			Timestamp: now.Format(time.RFC3339),
			UptimeSec: int64(h.uptime(now).Seconds()),
			Database:  db,
		},
		App: appState{HTTPAddr: h.httpAddr, QuoteURL: h.quoteURL},
		Runtime: goState{
			GoVersion:  runtime.Version(),
			Goroutines: runtime.NumGoroutine(),
			AllocBytes: mem.Alloc,
			NumGC:      mem.NumGC,
		},
	}
	if h.pool != nil {
		stat := h.pool.Stat()
		resp.Pool = poolState{
			TotalConns:    stat.TotalConns(),
			IdleConns:     stat.IdleConns(),
			AcquiredConns: stat.AcquiredConns(),
			MaxConns:      stat.MaxConns(),
		}
	}
	httputil.WriteJSON(w, httpStatus, resp)
}
