package comm

import (
	"context"

	"github.com/yndnr/pebbl-go/internal/core/domain"
)

// Wildcards for Recv and Probe.
const (
	AnySource = -1
	AnyTag    = -1
)

// ReservedTagBase is the first tag used by collectives. Application and
// protocol tags must be below it.
const ReservedTagBase = 1 << 24

// Message is a received message.
type Message struct {
	Source int
	Tag    int
	Data   []byte
}

// Stats counts messages moved by a Comm.
type Stats struct {
	Sent     int64
	Received int64
}

// Comm is one process's endpoint.
type Comm interface {
	Rank() int
	Size() int

	// Send delivers data to dst. It returns once the transport has accepted
	// the message. The caller may reuse data afterwards.
	Send(ctx context.Context, dst, tag int, data []byte) error

	// Isend starts a send and returns immediately.
	Isend(ctx context.Context, dst, tag int, data []byte) *Request

	// Recv blocks until a message matching src and tag arrives.
	Recv(ctx context.Context, src, tag int) (Message, error)

	// Probe reports whether a matching message is waiting.
	Probe(src, tag int) bool

	Stats() Stats
	Close() error
}

func checkRank(rank, size int) error {
	if rank < 0 || rank >= size {
		return domain.ErrInvalidRank.WithDetailsf("rank %d, size %d", rank, size)
	}
	return nil
}

// Request tracks a non-blocking send.
type Request struct {
	done chan struct{}
	err  error
}

func newRequest() *Request {
	return &Request{done: make(chan struct{})}
}

func completedRequest(err error) *Request {
	r := newRequest()
	r.complete(err)
	return r
}

func (r *Request) complete(err error) {
	r.err = err
	close(r.done)
}

// Test reports whether the send has completed, and its error if so.
func (r *Request) Test() (bool, error) {
	select {
	case <-r.done:
		return true, r.err
	default:
		return false, nil
	}
}

// Wait blocks until the send completes or ctx is done.
func (r *Request) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
