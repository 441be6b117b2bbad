package chat

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errSocketClosed = errors.New("socket closed")
	errQueueFull    = errors.New("send queue full")
)

// socket is the chat's handle on one WebSocket. Send only queues the frame;
// writePump is the single writer gorilla/websocket allows, so a stalled peer
// holds up nobody but itself.
type socket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	send      chan []byte
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

func newSocket(conn *websocket.Conn, writeTimeout time.Duration, queueSize int) *socket {
	return &socket{
		conn:         conn,
		writeTimeout: writeTimeout,
		send:         make(chan []byte, queueSize),
		done:         make(chan struct{}),
	}
}

// Send queues one text frame. A peer whose queue is full is too slow to keep
// up and the socket is closed.
func (s *socket) Send(payload []byte) error {
	if s.closed.Load() {
		return errSocketClosed
	}
	select {
	case s.send <- payload:
		return nil
	default:
		_ = s.Close()
		return errQueueFull
	}
}

// writePump writes queued frames until the socket is closed or a write
// fails. Frames still queued at Close are flushed before the close frame.
func (s *socket) writePump() {
	defer s.conn.Close()

	for {
		select {
		case payload := <-s.send:
			if err := s.write(payload); err != nil {
				s.closed.Store(true)
				return
			}
		case <-s.done:
			for {
				select {
				case payload := <-s.send:
					if err := s.write(payload); err != nil {
						return
					}
				default:
					msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
					_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
					return
				}
			}
		}
	}
}

func (s *socket) write(payload []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *socket) ping() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout))
}

func (s *socket) Open() bool {
	return !s.closed.Load()
}

// Close stops accepting frames and tells writePump to say goodbye. It never
// blocks and is safe to call repeatedly.
func (s *socket) Close() error {
	s.closed.Store(true)
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
