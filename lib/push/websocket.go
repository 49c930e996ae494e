package push

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pthm/hxbus"
	"github.com/pthm/hxbus/internal/metrics"
)

// WebSocketPath is where the handler is mounted by default.
const WebSocketPath = "/_hxbus/ws"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// WebSocketHandler subscribes each browser connection to the group named
// by the "group" query parameter and forwards the events of every message
// as a text frame.
type WebSocketHandler struct {
	broker   Broker
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// HandlerOption configures a WebSocketHandler.
type HandlerOption func(*WebSocketHandler)

// WithLogger sets the handler logger.
func WithLogger(logger zerolog.Logger) HandlerOption {
	return func(h *WebSocketHandler) {
		h.logger = logger
	}
}

// WithCheckOrigin overrides the origin check of the upgrade. The default
// accepts same-origin requests only.
func WithCheckOrigin(fn func(r *http.Request) bool) HandlerOption {
	return func(h *WebSocketHandler) {
		h.upgrader.CheckOrigin = fn
	}
}

// NewWebSocketHandler creates a handler forwarding messages of broker.
func NewWebSocketHandler(broker Broker, opts ...HandlerOption) *WebSocketHandler {
	h := &WebSocketHandler{
		broker: broker,
		logger: zerolog.Nop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	if group == "" {
		group = hxbus.DefaultGroup
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	log := h.logger.With().Str("conn", id).Str("group", group).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := h.broker.Subscribe(ctx, group)
	if err != nil {
		log.Error().Err(err).Msg("subscribe failed")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeWait))
		return
	}
	log.Debug().Msg("websocket connected")

	// The client never sends data; reading processes control frames and
	// detects the close.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("websocket disconnected")
			return
		case m, ok := <-messages:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m.Events)); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				return
			}
			metrics.PushMessages.WithLabelValues("websocket", "out").Inc()
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// PublishHandler publishes the group and events form fields of a POST
// request to broker. Requests without the HX-Request header are refused.
func PublishHandler(broker Broker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		// CSRF protection: mutating methods require HX-Request header
		if !hxbus.IsHTMX(r) {
			http.Error(w, "Forbidden: HTMX request required", http.StatusForbidden)
			return
		}
		m := Message{Group: r.FormValue("group"), Events: r.FormValue("events")}
		if err := broker.Publish(r.Context(), m); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
