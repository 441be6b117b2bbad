package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/azerweys/panel/backend/internal/model/chat"
	"github.com/azerweys/panel/backend/internal/model/user"
)

// DefaultHistoryLimit is how many past messages a joining client receives.
const DefaultHistoryLimit = 50

// timestampLayout matches JavaScript's Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var ErrMalformed = errors.New("malformed chat frame")

// Log is the durable chat history.
type Log interface {
	Append(ctx context.Context, msg chat.Message) error
	ReadLast(ctx context.Context, n int) ([]chat.Message, error)
}

// Service joins connections to the chat, replays history and broadcasts
// accepted messages to every open connection.
type Service struct {
	log          Log
	registry     *Registry
	historyLimit int
	now          func() time.Time
	newID        func() string

	// publishMu orders appends with their fan-out, and joins with both, so
	// every connection sees messages in log order and exactly once.
	publishMu sync.Mutex
}

// Option customises a Service.
type Option func(*Service)

// WithHistoryLimit overrides DefaultHistoryLimit.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the chat to its log and registry.
func NewService(log Log, registry *Registry, opts ...Option) *Service {
	s := &Service{
		log:          log,
		registry:     registry,
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the connection registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Join registers conn for identity and sends it the history frame before any
// live message can reach it.
func (s *Service) Join(ctx context.Context, conn Conn, identity user.Identity) (Record, error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	rec, err := s.registry.Register(conn, identity)
	if err != nil {
		return Record{}, err
	}

	history, err := s.log.ReadLast(ctx, s.historyLimit)
	if err != nil {
		log.Error().Err(err).Str("user", identity.Username).Msg("[chat] read history failed")
		history = nil
	}
	if history == nil {
		history = []chat.Message{}
	}

	payload, err := json.Marshal(chat.Frame{Type: chat.FrameHistory, Data: history})
	if err != nil {
		s.registry.Unregister(rec.ID)
		return Record{}, fmt.Errorf("encode history: %w", err)
	}
	if err := conn.Send(payload); err != nil {
		s.registry.Unregister(rec.ID)
		return Record{}, fmt.Errorf("send history: %w", err)
	}

	log.Info().Str("conn", rec.ID).Str("user", identity.Username).Int("history", len(history)).Msgf("[chat] %s joined", identity.DisplayName)
	return rec, nil
}

// Leave unregisters a connection. Calling it twice is harmless.
func (s *Service) Leave(rec Record) {
	if s.registry.Unregister(rec.ID) {
		log.Info().Str("conn", rec.ID).Str("user", rec.Identity.Username).Msgf("[chat] %s left", rec.Identity.DisplayName)
	}
}

// Receive handles one inbound frame from rec. Malformed frames are dropped
// and reported as ErrMalformed; the connection stays usable either way.
func (s *Service) Receive(ctx context.Context, rec Record, payload []byte) (chat.Message, error) {
	text, err := parseInbound(payload)
	if err != nil {
		log.Warn().Str("conn", rec.ID).Bytes("payload", truncate(payload, 256)).Msg("[chat] dropping malformed frame")
		return chat.Message{}, err
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	msg := chat.Message{
		ID:        s.newID(),
		Sender:    rec.Identity.DisplayName,
		Role:      string(rec.Identity.Role),
		Text:      text,
		Timestamp: s.now().UTC().Format(timestampLayout),
	}

	if err := s.log.Append(ctx, msg); err != nil {
		log.Error().Err(err).Str("conn", rec.ID).Msg("[chat] append failed, message not broadcast")
		s.sendError(rec, "message could not be saved")
		return chat.Message{}, fmt.Errorf("append chat message: %w", err)
	}

	s.broadcast(chat.Frame{Type: chat.FrameMessage, Data: msg})
	return msg, nil
}

// Shutdown closes every joined connection.
func (s *Service) Shutdown() {
	n := s.registry.Drain()
	log.Info().Int("connections", n).Msg("[chat] registry drained")
}

func (s *Service) broadcast(frame chat.Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Msg("[chat] encode broadcast failed")
		return
	}

	s.registry.ForEachOpen(func(rec Record) {
		if err := rec.Conn.Send(payload); err != nil {
			log.Debug().Err(err).Str("conn", rec.ID).Msg("[chat] dropping connection after failed write")
			_ = rec.Conn.Close()
			s.registry.Unregister(rec.ID)
		}
	})
}

func (s *Service) sendError(rec Record, message string) {
	payload, err := json.Marshal(chat.Frame{Type: chat.FrameError, Data: map[string]string{"message": message}})
	if err != nil {
		return
	}
	if err := rec.Conn.Send(payload); err != nil {
		log.Debug().Err(err).Str("conn", rec.ID).Msg("[chat] write error frame failed")
	}
}

type inbound struct {
	Text *string `json:"text"`
}

func parseInbound(payload []byte) (string, error) {
	var in inbound
	if err := json.Unmarshal(payload, &in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if in.Text == nil || *in.Text == "" {
		return "", fmt.Errorf("%w: missing text", ErrMalformed)
	}
	return *in.Text, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
