// Package stream connects one producer goroutine to one consumer through a
// bounded channel with receiver-drop detection. The producer blocks when the
// buffer is full; once the consumer cancels, every further send fails so the
// producer can stop issuing upstream requests.
package stream

import (
	"context"
	"sync"

	"talent-trends/internal/domain"
)

type Stream struct {
	items chan domain.StreamItem
	done  chan struct{}

	closeOnce  sync.Once
	cancelOnce sync.Once
}

func New(capacity int) *Stream {
	return &Stream{
		items: make(chan domain.StreamItem, capacity),
		done:  make(chan struct{}),
	}
}

// Send delivers one item to the consumer, blocking while the buffer is
// full. It returns false when the consumer has cancelled or ctx ended,
// in which case the item was not delivered.
func (s *Stream) Send(ctx context.Context, item domain.StreamItem) bool {
	// A cancelled stream must never accept an item even when buffer
	// space is free.
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.items <- item:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close marks the producer side finished. The consumer sees the channel
// close after draining buffered items.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.items)
	})
}

// Cancel marks the consumer side gone. Subsequent sends fail immediately.
func (s *Stream) Cancel() {
	s.cancelOnce.Do(func() {
		close(s.done)
	})
}

// Items is the consumer's receive side.
func (s *Stream) Items() <-chan domain.StreamItem {
	return s.items
}
