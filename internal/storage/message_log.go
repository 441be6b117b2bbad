package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/azerweys/panel/backend/internal/model/chat"
)

var (
	chatPrefix   = []byte("chat:")
	chatSeqKey   = []byte("seq:chat")
	chatLastSeek = []byte("chat:\xff")
)

// MessageLog is the append-only chat history. Keys carry a zero padded
// sequence number so key order equals append order.
type MessageLog struct {
	db  *badger.DB
	mu  sync.Mutex
	seq *badger.Sequence
}

// NewMessageLog leases a sequence from db. Close releases it.
func NewMessageLog(db *badger.DB) (*MessageLog, error) {
	seq, err := db.GetSequence(chatSeqKey, 64)
	if err != nil {
		return nil, fmt.Errorf("chat sequence: %w", err)
	}
	return &MessageLog{db: db, seq: seq}, nil
}

// Append commits msg before returning.
func (l *MessageLog) Append(ctx context.Context, msg chat.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// The sequence and the write share one critical section so that a
	// lower number is never committed after a higher one.
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.seq.Next()
	if err != nil {
		return fmt.Errorf("next chat sequence: %w", err)
	}
	key := []byte(fmt.Sprintf("%s%020d", chatPrefix, n))
	return l.db.Update(func(txn *badger.Txn) error {
		return store(txn, key, msg)
	})
}

// ReadLast returns up to n most recent messages, oldest first.
func (l *MessageLog) ReadLast(ctx context.Context, n int) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return []chat.Message{}, nil
	}

	out := make([]chat.Message, 0, n)
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = chatPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(chatLastSeek); it.ValidForPrefix(chatPrefix) && len(out) < n; it.Next() {
			var msg chat.Message
			if err := it.Item().Value(func(val []byte) error {
				return decode(val, &msg)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close releases the unused part of the leased sequence.
func (l *MessageLog) Close() error {
	return l.seq.Release()
}
