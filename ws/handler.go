// Package ws is the websocket transport in front of the coordination core.
// It owns nothing but framing, pumps and the handshake; every decision is
// delegated to the chat service.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "chat-core/errors"
	"chat-core/services"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// closeAuthFailure is the close code sent when the handshake credential is
// rejected, mirroring HTTP 401.
const closeAuthFailure = 4401

type HandlerConfig struct {
	// HandshakeTimeout bounds upgrade plus authentication; a connection that
	// has not reached the subscribed state by then is dropped.
	HandshakeTimeout time.Duration
	// SendBufferSize is the per-connection outbound queue length.
	SendBufferSize int
	// RateLimitEvents/RateLimitBurst bound inbound events per connection.
	RateLimitEvents float64
	RateLimitBurst  int
}

type Handler struct {
	log      *slog.Logger
	service  services.IChatService
	upgrader websocket.Upgrader
	config   HandlerConfig
}

func NewHandler(log *slog.Logger, service services.IChatService, config HandlerConfig) *Handler {
	return &Handler{
		log:     log,
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks belong to the fronting gateway.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		config: config,
	}
}

// ServeHTTP runs the connection lifecycle:
// upgrade, authenticate, subscribe, then pump until closed.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	credential := bearerCredential(r)
	if credential == "" {
		http.Error(w, "missing credential", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Upgrade failed", "error", err)
		return
	}

	// The handshake window covers credential verification and the initial
	// membership/backlog loads.
	ctx, cancel := context.WithTimeout(r.Context(), h.config.HandshakeTimeout)
	send := make(chan []byte, h.config.SendBufferSize)
	connection, user, err := h.service.Connect(ctx, credential, NewSink(send))
	cancel()
	if err != nil {
		h.log.Warn("Handshake rejected", "error", err)
		_ = conn.WriteMessage(websocket.TextMessage, encodeError(apperrors.MapToWireMessage(err)))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeAuthFailure, "authentication failed"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	limiter := rate.NewLimiter(rate.Limit(h.config.RateLimitEvents), h.config.RateLimitBurst)
	client := newClient(connection.ID, user, conn, h.service, send, limiter, h.log)

	go client.writePump()
	// readPump blocks until the connection dies and owns the cleanup.
	client.readPump(r.Context())
}

// bearerCredential extracts the handshake credential from the Authorization
// header, or from the token query parameter for browser clients that cannot
// set websocket headers.
func bearerCredential(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
