package comm

import (
	"context"
	"sync/atomic"
)

type localWorld struct {
	boxes []*mailbox
}

// localComm is one rank of an in-process world. Sends are eager: the
// message is queued at the destination before Send returns.
type localComm struct {
	rank     int
	world    *localWorld
	sent     atomic.Int64
	received atomic.Int64
}

// NewLocalWorld returns n connected in-process ranks.
func NewLocalWorld(n int) []Comm {
	w := &localWorld{boxes: make([]*mailbox, n)}
	for i := range w.boxes {
		w.boxes[i] = newMailbox()
	}
	comms := make([]Comm, n)
	for i := range comms {
		comms[i] = &localComm{rank: i, world: w}
	}
	return comms
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return len(c.world.boxes) }

func (c *localComm) Send(ctx context.Context, dst, tag int, data []byte) error {
	if err := checkRank(dst, c.Size()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := Message{Source: c.rank, Tag: tag, Data: append([]byte(nil), data...)}
	if err := c.world.boxes[dst].deliver(msg); err != nil {
		return err
	}
	c.sent.Add(1)
	return nil
}

func (c *localComm) Isend(ctx context.Context, dst, tag int, data []byte) *Request {
	return completedRequest(c.Send(ctx, dst, tag, data))
}

func (c *localComm) Recv(ctx context.Context, src, tag int) (Message, error) {
	if src != AnySource {
		if err := checkRank(src, c.Size()); err != nil {
			return Message{}, err
		}
	}
	m, err := c.world.boxes[c.rank].take(ctx, src, tag)
	if err == nil {
		c.received.Add(1)
	}
	return m, err
}

func (c *localComm) Probe(src, tag int) bool {
	return c.world.boxes[c.rank].probe(src, tag)
}

func (c *localComm) Stats() Stats {
	return Stats{Sent: c.sent.Load(), Received: c.received.Load()}
}

func (c *localComm) Close() error {
	c.world.boxes[c.rank].close()
	return nil
}
