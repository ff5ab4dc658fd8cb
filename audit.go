package usersvc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
)

// NoOpLedger discards every attempt.
type NoOpLedger struct{}

func (NoOpLedger) Append(context.Context, LoginAttempt) error { return nil }

// ChannelLedger publishes attempts to a buffered channel. Append blocks
// until the attempt is queued or ctx is done.
type ChannelLedger struct {
	attempts chan LoginAttempt
}

func NewChannelLedger(buffer int) *ChannelLedger {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelLedger{
		attempts: make(chan LoginAttempt, buffer),
	}
}

func (l *ChannelLedger) Append(ctx context.Context, attempt LoginAttempt) error {
	select {
	case l.attempts <- attempt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *ChannelLedger) Attempts() <-chan LoginAttempt {
	return l.attempts
}

// JSONWriterLedger writes one JSON object per line.
type JSONWriterLedger struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterLedger(w io.Writer) *JSONWriterLedger {
	return &JSONWriterLedger{
		writer: w,
	}
}

func (l *JSONWriterLedger) Append(_ context.Context, attempt LoginAttempt) error {
	if l == nil || l.writer == nil {
		return errors.New("ledger writer not configured")
	}
	data, err := json.Marshal(attempt)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err = l.writer.Write(data)
	return err
}

// MultiLedger appends to every ledger in order and stops at the first
// failure.
type MultiLedger []Ledger

func (m MultiLedger) Append(ctx context.Context, attempt LoginAttempt) error {
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.Append(ctx, attempt); err != nil {
			return err
		}
	}
	return nil
}
