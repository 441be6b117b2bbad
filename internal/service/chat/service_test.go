package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/azerweys/panel/backend/internal/model/chat"
	"github.com/azerweys/panel/backend/internal/model/user"
)

var bob = user.Identity{Username: "bob", DisplayName: "Bob", Role: "agent"}

func newTestService(log Log) *Service {
	fixed := time.Date(2026, 10, 19, 9, 30, 0, 123000000, time.UTC)
	return NewService(log, NewRegistry(), WithClock(func() time.Time { return fixed }))
}

func TestJoin_SendsBoundedHistoryOldestFirst(t *testing.T) {
	req := require.New(t)
	log := &memoryLog{}
	for i := 1; i <= 75; i++ {
		log.messages = append(log.messages, chat.Message{ID: fmt.Sprint(i), Text: fmt.Sprintf("m%d", i)})
	}
	svc := newTestService(log)
	conn := &fakeConn{}

	_, err := svc.Join(context.Background(), conn, alice)
	req.NoError(err)

	frames := conn.decoded(t)
	req.Len(frames, 1)
	req.Equal(chat.FrameHistory, frames[0].Type)
	var history []chat.Message
	req.NoError(json.Unmarshal(frames[0].Data, &history))
	req.Len(history, DefaultHistoryLimit)
	req.Equal("26", history[0].ID)
	req.Equal("75", history[len(history)-1].ID)
}

func TestJoin_EmptyLogSendsEmptyArray(t *testing.T) {
	svc := newTestService(&memoryLog{})
	conn := &fakeConn{}
	_, err := svc.Join(context.Background(), conn, alice)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"history","data":[]}`, string(conn.frames[0]))
}

func TestJoin_FailedHistoryWriteUnregisters(t *testing.T) {
	svc := newTestService(&memoryLog{})
	conn := &fakeConn{}
	conn.failing.Store(true)

	_, err := svc.Join(context.Background(), conn, alice)
	require.Error(t, err)
	require.Zero(t, svc.Registry().Len())
}

func TestReceive_BroadcastsToEveryoneIncludingSender(t *testing.T) {
	req := require.New(t)
	log := &memoryLog{}
	svc := newTestService(log)
	ctx := context.Background()
	aliceConn, bobConn := &fakeConn{}, &fakeConn{}
	aliceRec, err := svc.Join(ctx, aliceConn, alice)
	req.NoError(err)
	_, err = svc.Join(ctx, bobConn, bob)
	req.NoError(err)

	msg, err := svc.Receive(ctx, aliceRec, []byte(`{"text":"hi"}`))
	req.NoError(err)
	req.Equal("Alice", msg.Sender)
	req.Equal("owner", msg.Role)
	req.Equal("hi", msg.Text)
	req.Equal("2026-10-19T09:30:00.123Z", msg.Timestamp)
	req.NotEmpty(msg.ID)

	req.Equal([]chat.Message{msg}, aliceConn.messages(t))
	req.Equal([]chat.Message{msg}, bobConn.messages(t))
	req.Equal([]chat.Message{msg}, log.snapshot())
}

func TestReceive_DropsMalformedFrames(t *testing.T) {
	for _, payload := range []string{`{"foo":"bar"}`, `not json`, `{"text":42}`, `"hi"`, `{"text":""}`, `null`} {
		t.Run(payload, func(t *testing.T) {
			req := require.New(t)
			log := &memoryLog{}
			svc := newTestService(log)
			conn := &fakeConn{}
			rec, err := svc.Join(context.Background(), conn, alice)
			req.NoError(err)

			_, err = svc.Receive(context.Background(), rec, []byte(payload))
			req.ErrorIs(err, ErrMalformed)
			req.Empty(log.snapshot())
			req.Len(conn.decoded(t), 1, "only the history frame")
			req.True(conn.Open())
			req.Equal(1, svc.Registry().Len())
		})
	}
}

func TestReceive_AppendFailureSkipsBroadcast(t *testing.T) {
	req := require.New(t)
	log := &memoryLog{}
	svc := newTestService(log)
	ctx := context.Background()
	aliceConn, bobConn := &fakeConn{}, &fakeConn{}
	aliceRec, _ := svc.Join(ctx, aliceConn, alice)
	_, _ = svc.Join(ctx, bobConn, bob)

	log.err = errors.New("disk full")
	_, err := svc.Receive(ctx, aliceRec, []byte(`{"text":"lost"}`))
	req.Error(err)

	aliceFrames := aliceConn.decoded(t)
	req.Len(aliceFrames, 2)
	req.Equal(chat.FrameError, aliceFrames[1].Type)
	req.Len(bobConn.decoded(t), 1, "other clients only saw history")
}

func TestReceive_ClosedConnectionIsSkippedAndRemoved(t *testing.T) {
	req := require.New(t)
	svc := newTestService(&memoryLog{})
	ctx := context.Background()
	aliceConn, bobConn, carolConn := &fakeConn{}, &fakeConn{}, &fakeConn{}
	aliceRec, _ := svc.Join(ctx, aliceConn, alice)
	_, _ = svc.Join(ctx, bobConn, bob)
	_, _ = svc.Join(ctx, carolConn, user.Identity{Username: "carol", DisplayName: "Carol", Role: "agent"})

	_ = bobConn.Close()
	carolConn.failing.Store(true)

	_, err := svc.Receive(ctx, aliceRec, []byte(`{"text":"first"}`))
	req.NoError(err)
	req.Len(aliceConn.messages(t), 1)
	req.False(carolConn.Open(), "failed writers are closed")
	req.Equal(2, svc.Registry().Len(), "carol removed, bob waits for its own unregister")

	_, err = svc.Receive(ctx, aliceRec, []byte(`{"text":"second"}`))
	req.NoError(err)
	req.Len(aliceConn.messages(t), 2)
	req.Empty(bobConn.messages(t))
}

func TestReceive_DeliveryOrderMatchesAppendOrder(t *testing.T) {
	req := require.New(t)
	log := &memoryLog{}
	svc := NewService(log, NewRegistry())
	ctx := context.Background()

	const senders, perSender = 8, 25
	conns := make([]*fakeConn, senders)
	recs := make([]Record, senders)
	for i := range conns {
		conns[i] = &fakeConn{}
		rec, err := svc.Join(ctx, conns[i], user.Identity{Username: fmt.Sprintf("u%d", i), DisplayName: fmt.Sprintf("U%d", i)})
		req.NoError(err)
		recs[i] = rec
	}

	var wg sync.WaitGroup
	for i := range recs {
		wg.Add(1)
		go func(rec Record) {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				_, _ = svc.Receive(ctx, rec, []byte(fmt.Sprintf(`{"text":"%s-%02d"}`, rec.Identity.Username, j)))
			}
		}(recs[i])
	}
	wg.Wait()

	appended := log.snapshot()
	req.Len(appended, senders*perSender)
	for _, c := range conns {
		req.Equal(appended, c.messages(t))
	}

	// Per-sender submission order is preserved in the log.
	last := map[string]string{}
	for _, m := range appended {
		req.Greater(m.Text, last[m.Sender])
		last[m.Sender] = m.Text
	}
}

func TestJoin_NoDuplicateOrGapWithConcurrentBroadcast(t *testing.T) {
	req := require.New(t)
	log := &memoryLog{}
	svc := NewService(log, NewRegistry())
	ctx := context.Background()
	sender, _ := svc.Join(ctx, &fakeConn{}, alice)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 40; i++ {
			_, _ = svc.Receive(ctx, sender, []byte(fmt.Sprintf(`{"text":"m%02d"}`, i)))
		}
	}()

	late := &fakeConn{}
	_, err := svc.Join(ctx, late, bob)
	req.NoError(err)
	<-done

	frames := late.decoded(t)
	var seen []chat.Message
	req.NoError(json.Unmarshal(frames[0].Data, &seen))
	seen = append(seen, late.messages(t)...)
	req.Equal(log.snapshot(), seen)
}

func TestShutdownDrainsRegistry(t *testing.T) {
	svc := newTestService(&memoryLog{})
	conn := &fakeConn{}
	_, _ = svc.Join(context.Background(), conn, alice)
	svc.Shutdown()
	require.Zero(t, svc.Registry().Len())
	require.False(t, conn.Open())
}
