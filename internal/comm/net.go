package comm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/pkg/packbuf"
)

// DeliverProcedure is the RPC path every rank serves.
const DeliverProcedure = "/pebbl.comm.v1.Transport/Deliver"

// DefaultSendQueue is the per-peer outgoing queue length.
const DefaultSendQueue = 256

// NetConfig configures a NetComm.
type NetConfig struct {
	// Rank is this process's rank.
	Rank int

	// Peers holds the base URL of every rank, indexed by rank
	// (e.g. "http://10.0.0.5:7400").
	Peers []string

	// HTTPClient is used for outgoing RPCs. Defaults to http.DefaultClient.
	HTTPClient connect.HTTPClient

	// Timeout bounds a single delivery RPC. Zero means no limit beyond the
	// caller's context.
	Timeout time.Duration

	// SendQueue is the per-peer outgoing queue length.
	SendQueue int

	Logger *slog.Logger
}

type outgoing struct {
	ctx context.Context
	env []byte
	req *Request
}

// NetComm delivers messages with connect-go unary RPCs. Each peer has one
// sender goroutine draining an ordered queue, which keeps messages from one
// source in send order.
type NetComm struct {
	rank    int
	size    int
	box     *mailbox
	timeout time.Duration
	logger  *slog.Logger

	clients []*connect.Client[wrapperspb.BytesValue, emptypb.Empty]
	queues  []chan outgoing
	senders errgroup.Group

	// mu guards queues against Close; closing is closed first so a send
	// blocked on a full queue gives up.
	mu        sync.RWMutex
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once
	sent      atomic.Int64
	received  atomic.Int64
}

// NewNetComm creates the endpoint and starts its sender goroutines. Mount
// Handler on the HTTP server listening at Peers[Rank].
func NewNetComm(cfg NetConfig) (*NetComm, error) {
	if len(cfg.Peers) == 0 {
		return nil, fmt.Errorf("comm: no peers configured")
	}
	if err := checkRank(cfg.Rank, len(cfg.Peers)); err != nil {
		return nil, err
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = DefaultSendQueue
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("rank", cfg.Rank)

	n := &NetComm{
		rank:    cfg.Rank,
		size:    len(cfg.Peers),
		box:     newMailbox(),
		timeout: cfg.Timeout,
		logger:  logger,
		clients: make([]*connect.Client[wrapperspb.BytesValue, emptypb.Empty], len(cfg.Peers)),
		queues:  make([]chan outgoing, len(cfg.Peers)),
		closing: make(chan struct{}),
	}

	interceptors := connect.WithInterceptors(NewLoggingInterceptor(logger))
	for dst, base := range cfg.Peers {
		if dst == cfg.Rank {
			continue
		}
		url := strings.TrimSuffix(base, "/") + DeliverProcedure
		n.clients[dst] = connect.NewClient[wrapperspb.BytesValue, emptypb.Empty](cfg.HTTPClient, url, interceptors)
		q := make(chan outgoing, cfg.SendQueue)
		n.queues[dst] = q
		n.senders.Go(func() error {
			n.drain(dst, q)
			return nil
		})
	}
	return n, nil
}

// Handler returns the path and handler that receive messages for this rank.
func (n *NetComm) Handler() (string, http.Handler) {
	h := connect.NewUnaryHandler(
		DeliverProcedure,
		n.deliver,
		connect.WithInterceptors(NewLoggingInterceptor(n.logger)),
	)
	return DeliverProcedure, h
}

func (n *NetComm) deliver(
	ctx context.Context,
	req *connect.Request[wrapperspb.BytesValue],
) (*connect.Response[emptypb.Empty], error) {
	msg, err := decodeEnvelope(req.Msg.GetValue())
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := checkRank(msg.Source, n.size); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := n.box.deliver(msg); err != nil {
		return nil, connect.NewError(connect.CodeUnavailable, err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

func (n *NetComm) drain(dst int, q <-chan outgoing) {
	for out := range q {
		ctx := out.ctx
		var cancel context.CancelFunc = func() {}
		if n.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, n.timeout)
		}
		_, err := n.clients[dst].CallUnary(ctx, connect.NewRequest(wrapperspb.Bytes(out.env)))
		cancel()
		if err != nil {
			err = domain.ErrTransport.WithDetailsf("rank %d -> %d", n.rank, dst).WithCause(err)
		} else {
			n.sent.Add(1)
		}
		out.req.complete(err)
	}
}

func encodeEnvelope(src, tag int, data []byte) []byte {
	b := packbuf.New(12 + len(data))
	b.PutInt32(int32(src))
	b.PutInt32(int32(tag))
	b.PutBytes(data)
	return b.Bytes()
}

func decodeEnvelope(env []byte) (Message, error) {
	b := packbuf.FromBytes(env)
	src, err := b.ReadInt32()
	if err != nil {
		return Message{}, fmt.Errorf("comm: envelope source: %w", err)
	}
	tag, err := b.ReadInt32()
	if err != nil {
		return Message{}, fmt.Errorf("comm: envelope tag: %w", err)
	}
	data, err := b.ReadBytes()
	if err != nil {
		return Message{}, fmt.Errorf("comm: envelope data: %w", err)
	}
	return Message{Source: int(src), Tag: int(tag), Data: data}, nil
}

func (n *NetComm) Rank() int { return n.rank }
func (n *NetComm) Size() int { return n.size }

// Isend queues the message for dst's sender goroutine.
func (n *NetComm) Isend(ctx context.Context, dst, tag int, data []byte) *Request {
	if err := checkRank(dst, n.size); err != nil {
		return completedRequest(err)
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return completedRequest(errClosed)
	}
	if dst == n.rank {
		err := n.box.deliver(Message{Source: n.rank, Tag: tag, Data: append([]byte(nil), data...)})
		if err == nil {
			n.sent.Add(1)
		}
		return completedRequest(err)
	}
	req := newRequest()
	out := outgoing{ctx: context.WithoutCancel(ctx), env: encodeEnvelope(n.rank, tag, data), req: req}
	select {
	case n.queues[dst] <- out:
	case <-ctx.Done():
		req.complete(ctx.Err())
	case <-n.closing:
		req.complete(errClosed)
	}
	return req
}

// Send queues the message and waits for delivery.
func (n *NetComm) Send(ctx context.Context, dst, tag int, data []byte) error {
	return n.Isend(ctx, dst, tag, data).Wait(ctx)
}

func (n *NetComm) Recv(ctx context.Context, src, tag int) (Message, error) {
	if src != AnySource {
		if err := checkRank(src, n.size); err != nil {
			return Message{}, err
		}
	}
	m, err := n.box.take(ctx, src, tag)
	if err == nil {
		n.received.Add(1)
	}
	return m, err
}

func (n *NetComm) Probe(src, tag int) bool { return n.box.probe(src, tag) }

func (n *NetComm) Stats() Stats {
	return Stats{Sent: n.sent.Load(), Received: n.received.Load()}
}

// Close stops the sender goroutines after their queues drain and rejects
// further sends and deliveries.
func (n *NetComm) Close() error {
	n.closeOnce.Do(func() {
		close(n.closing)
		n.mu.Lock()
		n.closed = true
		for _, q := range n.queues {
			if q != nil {
				close(q)
			}
		}
		n.mu.Unlock()
		_ = n.senders.Wait()
		n.box.close()
	})
	return nil
}

var _ Comm = (*NetComm)(nil)

// IsClosed reports whether err came from a closed endpoint.
func IsClosed(err error) bool { return errors.Is(err, errClosed) }
