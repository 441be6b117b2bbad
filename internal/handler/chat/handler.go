package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/azerweys/panel/backend/internal/model/user"
	chatService "github.com/azerweys/panel/backend/internal/service/chat"
)

// Resolver finds the identity logged in on a request.
type Resolver interface {
	Resolve(r *http.Request) (user.Identity, bool)
}

// Options tunes connection liveness and limits.
type Options struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	// SendQueue is how many outbound frames may wait for a slow peer.
	SendQueue int
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 54 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 << 10
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 64
	}
	return o
}

// pongWait leaves a ping interval plus some slack for the pong to arrive.
func (o Options) pongWait() time.Duration {
	return o.PingInterval * 10 / 9
}

// Handler is the chat's WebSocket endpoint.
type Handler struct {
	chatSvc  *chatService.Service
	sessions Resolver
	upgrader websocket.Upgrader
	opts     Options
}

// New creates the chat handler.
func New(chatSvc *chatService.Service, sessions Resolver, opts Options) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		opts: opts.withDefaults(),
	}
}

// RegisterRoutes mounts the upgrade endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.sessions.Resolve(r)
	if !ok {
		h.reject(w, r)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("[chat] upgrade failed")
		return
	}
	sock := newSocket(conn, h.opts.WriteTimeout, h.opts.SendQueue)
	go sock.writePump()

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("user", identity.Username).Msg("[chat] connection handler panicked")
		}
	}()
	defer sock.Close()

	pongWait := h.opts.pongWait()
	conn.SetReadLimit(h.opts.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	rec, err := h.chatSvc.Join(ctx, sock, identity)
	if err != nil {
		log.Warn().Err(err).Str("user", identity.Username).Msg("[chat] join failed")
		return
	}
	defer h.chatSvc.Leave(rec)

	go h.pingLoop(ctx, sock)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn", rec.ID).Msg("[chat] read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		// Malformed frames and failed appends are reported by the service.
		_, _ = h.chatSvc.Receive(ctx, rec, payload)
	}
}

// reject drops an unauthenticated upgrade without writing a response.
func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	log.Warn().Str("remote", r.RemoteAddr).Msg("[chat] upgrade without session rejected")
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		log.Error().Err(err).Msg("[chat] hijack failed")
		return
	}
	_ = conn.Close()
}

func (h *Handler) pingLoop(ctx context.Context, sock *socket) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sock.ping(); err != nil {
				return
			}
		}
	}
}
