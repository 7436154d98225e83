package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	apierrors "github.com/narvanalabs/mocktraffic/internal/api/errors"
	"github.com/narvanalabs/mocktraffic/internal/models"
	"github.com/narvanalabs/mocktraffic/internal/traffic"
)

// DefaultPingInterval is how often the SSE stream sends a keep-alive event.
const DefaultPingInterval = 15 * time.Second

// StatsHandler serves generator statistics as a snapshot, an SSE stream or a
// websocket feed.
type StatsHandler struct {
	generator    *traffic.Generator
	logger       *slog.Logger
	pingInterval time.Duration
	upgrader     websocket.Upgrader
	closing      <-chan struct{}
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(generator *traffic.Generator, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		generator:    generator,
		logger:       logger,
		pingInterval: DefaultPingInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// CloseOn makes open streams end when ch is closed.
func (h *StatsHandler) CloseOn(ch <-chan struct{}) {
	h.closing = ch
}

// Get handles GET /v1/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteJSON(w, http.StatusOK, h.generator.Stats())
}

// Stream handles GET /v1/stats/stream. It emits a "connected" event, then a
// "stats" event per snapshot and a "ping" event on every ping interval.
func (h *StatsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeInternal(w, r, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	broker := h.generator.Broker()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	h.logger.Debug("stats stream started", "subscriber_id", sub.ID)
	h.sendEvent(w, flusher, "connected", map[string]string{"subscriber_id": sub.ID})
	if _, published := broker.Latest(); !published {
		h.sendEvent(w, flusher, "stats", h.generator.Stats())
	}

	pingTicker := time.NewTicker(h.pingInterval)
	defer pingTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("stats stream closed by client", "subscriber_id", sub.ID)
			return
		case <-h.closing:
			return
		case <-pingTicker.C:
			h.sendEvent(w, flusher, "ping", map[string]int64{"time": time.Now().Unix()})
		case snapshot, ok := <-sub.Ch:
			if !ok {
				return
			}
			h.sendEvent(w, flusher, "stats", snapshot)
		}
	}
}

// WebSocket handles GET /v1/stats/ws, writing one JSON text message per snapshot.
func (h *StatsHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()

	broker := h.generator.Broker()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	// Reads only detect the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if _, published := broker.Latest(); !published {
		if err := h.writeSnapshot(conn, h.generator.Stats()); err != nil {
			return
		}
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-h.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		case snapshot, ok := <-sub.Ch:
			if !ok {
				return
			}
			if err := h.writeSnapshot(conn, snapshot); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func (h *StatsHandler) writeSnapshot(conn *websocket.Conn, snapshot models.Stats) error {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(snapshot)
}

func (h *StatsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal event data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}
