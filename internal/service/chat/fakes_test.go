package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/azerweys/panel/backend/internal/model/chat"
)

type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	closed  atomic.Bool
	failing atomic.Bool
}

func (c *fakeConn) Send(payload []byte) error {
	if c.closed.Load() {
		return errors.New("closed")
	}
	if c.failing.Load() {
		return errors.New("broken pipe")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), payload...))
	return nil
}

func (c *fakeConn) Open() bool { return !c.closed.Load() }

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

type decodedFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *fakeConn) decoded(t *testing.T) []decodedFrame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]decodedFrame, 0, len(c.frames))
	for _, raw := range c.frames {
		var f decodedFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		out = append(out, f)
	}
	return out
}

// messages returns the live message frames received, in order.
func (c *fakeConn) messages(t *testing.T) []chat.Message {
	t.Helper()
	var out []chat.Message
	for _, f := range c.decoded(t) {
		if f.Type != chat.FrameMessage {
			continue
		}
		var m chat.Message
		require.NoError(t, json.Unmarshal(f.Data, &m))
		out = append(out, m)
	}
	return out
}

type memoryLog struct {
	mu       sync.Mutex
	messages []chat.Message
	err      error
}

func (l *memoryLog) Append(_ context.Context, msg chat.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.messages = append(l.messages, msg)
	return nil
}

func (l *memoryLog) ReadLast(_ context.Context, n int) ([]chat.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := len(l.messages) - n
	if start < 0 {
		start = 0
	}
	return append([]chat.Message(nil), l.messages[start:]...), nil
}

func (l *memoryLog) snapshot() []chat.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]chat.Message(nil), l.messages...)
}
