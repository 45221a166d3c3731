package ports

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mattjoyce/saucer/internal/events"
)

// MaxPayloadBytes caps inbound request bodies.
const MaxPayloadBytes = 1 << 20

// Bridge exposes a Manager to a host process over HTTP:
//
//	POST /ports/{name}   deliver a JSON payload to an inbound port, signed
//	                     with SignatureHeader when the bridge has a secret
//	GET  /ports          list known ports
//	GET  /ports/events   SSE stream of outbound values
type Bridge[Msg any] struct {
	mgr       *Manager[Msg]
	hub       *events.Hub
	logger    *slog.Logger
	keepAlive time.Duration
	secret    []byte
	router    chi.Router
	unsub     func()
}

type acceptedResponse struct {
	ID     string `json:"id"`
	Port   string `json:"port"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// BridgeOption configures a Bridge.
type BridgeOption func(*bridgeOptions)

type bridgeOptions struct {
	secret    []byte
	keepAlive time.Duration
}

// WithSecret makes the bridge reject inbound posts whose SignatureHeader is
// not the HMAC-SHA256 of the body under secret.
func WithSecret(secret []byte) BridgeOption {
	return func(o *bridgeOptions) { o.secret = secret }
}

// WithKeepAlive sets the interval between SSE keep-alive comments.
func WithKeepAlive(d time.Duration) BridgeOption {
	return func(o *bridgeOptions) { o.keepAlive = d }
}

// NewBridge subscribes to every outbound port and returns the handler. Call
// Close to stop forwarding.
func NewBridge[Msg any](mgr *Manager[Msg], hub *events.Hub, logger *slog.Logger, opts ...BridgeOption) *Bridge[Msg] {
	o := bridgeOptions{keepAlive: 15 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if hub == nil {
		hub = events.NewHub(256)
	}
	if logger == nil {
		logger = mgr.logger
	}
	b := &Bridge[Msg]{mgr: mgr, hub: hub, logger: logger.With("component", "ports-bridge"), keepAlive: o.keepAlive, secret: o.secret}
	b.unsub = mgr.SubscribeAll(func(o Outbound) {
		if _, err := hub.Publish(o.Port, o.Value); err != nil {
			b.logger.Warn("outbound value not forwarded", "port", o.Port, "error", err)
		}
	})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ports", b.handleList)
	r.Get("/ports/events", b.handleEvents)
	r.Post("/ports/{name}", b.handleInbound)
	b.router = r
	return b
}

func (b *Bridge[Msg]) ServeHTTP(w http.ResponseWriter, r *http.Request) { b.router.ServeHTTP(w, r) }

// Close stops forwarding outbound values and ends open event streams.
func (b *Bridge[Msg]) Close() {
	b.unsub()
	b.hub.Close()
}

func (b *Bridge[Msg]) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, b.mgr.Ports())
}

func (b *Bridge[Msg]) handleInbound(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read body"})
		return
	}
	if len(body) > MaxPayloadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: fmt.Sprintf("payload exceeds %d bytes", MaxPayloadBytes)})
		return
	}
	if b.secret != nil {
		if err := verifySignature(body, r.Header.Get(SignatureHeader), b.secret); err != nil {
			b.logger.Warn("inbound rejected", "port", name, "error", err)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}
	}

	delivered, err := b.mgr.deliverJSON(name, body)
	switch {
	case errors.Is(err, ErrUnknownPort):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown port %q", name)})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case !delivered:
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "runtime is not accepting messages"})
		return
	}

	id := uuid.NewString()
	b.logger.Debug("inbound accepted", "port", name, "id", id)
	writeJSON(w, http.StatusAccepted, acceptedResponse{ID: id, Port: name, Status: "accepted"})
}

func (b *Bridge[Msg]) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Subscribe before replaying so nothing published in between is lost;
	// replayed ids are skipped on the live channel.
	ch, cancel := b.hub.Subscribe(128)
	defer cancel()

	lastID := parseLastEventID(r.Header.Get("Last-Event-ID"))
	for _, ev := range b.hub.SnapshotSince(lastID) {
		if err := writeSSE(w, ev); err != nil {
			return
		}
		lastID = ev.ID
	}
	flusher.Flush()

	keepAlive := time.NewTicker(b.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.ID <= lastID {
				continue
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseLastEventID(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeSSE(w io.Writer, ev events.Event) error {
	// Payloads are single-line JSON, so one data line suffices.
	_, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Topic, ev.Data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
