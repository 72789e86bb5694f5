package comm

import (
	"context"
	"errors"
	"sync"
)

var errClosed = errors.New("comm: closed")

// mailbox queues delivered messages in arrival order and hands them to
// receivers by (source, tag) match.
type mailbox struct {
	mu     sync.Mutex
	queue  []Message
	notify chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{})}
}

func matches(m Message, src, tag int) bool {
	return (src == AnySource || m.Source == src) && (tag == AnyTag || m.Tag == tag)
}

func (b *mailbox) deliver(m Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	b.queue = append(b.queue, m)
	close(b.notify)
	b.notify = make(chan struct{})
	return nil
}

func (b *mailbox) take(ctx context.Context, src, tag int) (Message, error) {
	for {
		b.mu.Lock()
		for i, m := range b.queue {
			if matches(m, src, tag) {
				b.queue = append(b.queue[:i], b.queue[i+1:]...)
				b.mu.Unlock()
				return m, nil
			}
		}
		if b.closed {
			b.mu.Unlock()
			return Message{}, errClosed
		}
		wait := b.notify
		b.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

func (b *mailbox) probe(src, tag int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.queue {
		if matches(m, src, tag) {
			return true
		}
	}
	return false
}

func (b *mailbox) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}
