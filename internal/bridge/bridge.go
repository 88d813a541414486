// Package bridge exposes the trace recorder to host tooling (browser
// automation, test harnesses) over a local HTTP endpoint: trace
// retrieval, export, deterministic id/session resets, and a websocket
// stream of live events.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roach88/c64u/internal/store"
	"github.com/roach88/c64u/internal/trace"
)

// streamBuffer is the per-subscriber event buffer. A subscriber that
// falls this far behind starts losing events rather than blocking the
// recorder.
const streamBuffer = 256

// Bridge serves the debug API for one recorder. A store is optional;
// when present, recorded events are also persisted per session.
type Bridge struct {
	rec    *trace.Recorder
	st     *store.Store
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu        sync.Mutex
	sessionID string
	subs      map[chan trace.TraceEvent]struct{}
}

// New creates a bridge for rec. st may be nil to disable persistence.
func New(rec *trace.Recorder, st *store.Store, logger *slog.Logger) *Bridge {
	b := &Bridge{
		rec:    rec,
		st:     st,
		logger: logger,
		subs:   make(map[chan trace.TraceEvent]struct{}),
	}
	b.sessionID = b.newSession(context.Background(), "")
	rec.SetObserver(b.observe)
	return b
}

// SessionID returns the current persistence session id.
func (b *Bridge) SessionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

// newSession allocates a session id and registers it with the store.
// UUIDv7 keeps ids time-ordered, so sessions list chronologically even
// across restarts.
func (b *Bridge) newSession(ctx context.Context, label string) string {
	id, err := uuid.NewV7()
	if err != nil {
		// v7 only fails when the entropy source does; fall back to v4.
		id = uuid.New()
	}
	sid := id.String()
	if b.st != nil {
		if err := b.st.BeginSession(ctx, sid, label, time.Now()); err != nil {
			b.logger.Error("begin session", "session", sid, "error", err)
		}
	}
	return sid
}

// observe fans a recorded event out to persistence and all live
// websocket subscribers. Runs outside the recorder lock.
func (b *Bridge) observe(ev trace.TraceEvent) {
	b.mu.Lock()
	sid := b.sessionID
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber too slow; drop rather than stall tracing.
		}
	}
	b.mu.Unlock()

	if b.st != nil {
		if err := b.st.AppendEvents(context.Background(), sid, []trace.TraceEvent{ev}); err != nil {
			b.logger.Error("persist trace event", "event", ev.ID, "error", err)
		}
	}
}

// Handler returns the bridge's HTTP routes.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/traces", b.handleGetTraces)
	mux.HandleFunc("POST /v1/traces:clear", b.handleClearTraces)
	mux.HandleFunc("GET /v1/traces:export", b.handleExportTraces)
	mux.HandleFunc("POST /v1/traces:resetIds", b.handleResetIDs)
	mux.HandleFunc("POST /v1/traces:resetSession", b.handleResetSession)
	mux.HandleFunc("GET /v1/traces/stream", b.handleStream)
	return mux
}

// Serve listens on addr until ctx is canceled. Intended for loopback
// addresses only; the bridge has no authentication.
func (b *Bridge) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bridge listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: b.Handler()}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	b.logger.Info("debug bridge listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("bridge shutdown: %w", err)
		}
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("bridge serve: %w", err)
	}
}

func (b *Bridge) handleGetTraces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.rec.Events())
}

func (b *Bridge) handleClearTraces(w http.ResponseWriter, r *http.Request) {
	b.rec.Clear()
	if b.st != nil {
		if err := b.st.ClearSession(r.Context(), b.SessionID()); err != nil {
			b.logger.Error("clear session", "error", err)
		}
	}
	b.logger.Info("traces cleared", "session", b.SessionID())
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

// resetRequest carries optional rebase points for the id counters.
// Omitted fields default to zero.
type resetRequest struct {
	EventStart       int64 `json:"eventStart"`
	CorrelationStart int64 `json:"correlationStart"`
}

func (b *Bridge) handleResetIDs(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeReset(w, r)
	if !ok {
		return
	}
	b.rec.ResetIDs(req.EventStart, req.CorrelationStart)
	b.logger.Info("trace ids reset", "eventStart", req.EventStart, "correlationStart", req.CorrelationStart)
	writeJSON(w, http.StatusOK, map[string]any{"reset": "ids"})
}

func (b *Bridge) handleResetSession(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeReset(w, r)
	if !ok {
		return
	}
	b.rec.ResetSession(req.EventStart, req.CorrelationStart)

	b.mu.Lock()
	b.sessionID = b.newSession(r.Context(), "")
	sid := b.sessionID
	b.mu.Unlock()

	b.logger.Info("trace session reset", "session", sid)
	writeJSON(w, http.StatusOK, map[string]any{"reset": "session", "sessionId": sid})
}

func decodeReset(w http.ResponseWriter, r *http.Request) (resetRequest, bool) {
	var req resetRequest
	if r.Body == nil || r.ContentLength == 0 {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid reset request: %v", err), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (b *Bridge) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	ch := make(chan trace.TraceEvent, streamBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}()

	// Reader goroutine: the client never sends data, but reading is how
	// close frames surface.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-ch:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
