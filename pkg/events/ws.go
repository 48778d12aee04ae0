package events

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local development tool, any origin is fine.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WSHandler serves the event stream over a WebSocket connection. Clients
// select topics with a comma-separated "topics" query parameter; no parameter
// subscribes to everything.
type WSHandler struct {
	broadcaster *Broadcaster
	log         *slog.Logger
}

// NewWSHandler creates a WSHandler backed by b.
func NewWSHandler(b *Broadcaster, log *slog.Logger) *WSHandler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &WSHandler{broadcaster: b, log: log}
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var topics []string
	if raw := r.URL.Query().Get("topics"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	sub, unsubscribe := h.broadcaster.Subscribe(topics...)
	h.log.Debug("event observer connected", "remote", r.RemoteAddr, "topics", topics)

	// Reader goroutine: we never expect client messages, but reading is
	// required to notice the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		unsubscribe()
		_ = conn.Close()
		h.log.Debug("event observer disconnected", "remote", r.RemoteAddr)
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
