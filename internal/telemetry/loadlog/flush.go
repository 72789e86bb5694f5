package loadlog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tinylib/msgp/msgp"

	"github.com/yndnr/pebbl-go/internal/comm"
	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/internal/telemetry/logger"
)

const collector = 0

// flushRing passes the token 0 -> 1 -> ... -> size-1 -> 0. Each rank
// appends after receiving it; rank 0 appends when the token comes back.
func (r *Ring) flushRing(ctx context.Context) error {
	rank, size := r.c.Rank(), r.c.Size()
	entries := r.take()
	if size == 1 {
		return r.appendEntries(entries)
	}
	next := (rank + 1) % size
	prev := (rank + size - 1) % size

	if rank == 0 {
		if err := r.sendToken(ctx, next); err != nil {
			return err
		}
		if _, err := r.c.Recv(ctx, prev, tagToken); err != nil {
			return fmt.Errorf("loadlog: token from %d: %w", prev, err)
		}
		return r.appendEntries(entries)
	}

	if _, err := r.c.Recv(ctx, prev, tagToken); err != nil {
		return fmt.Errorf("loadlog: token from %d: %w", prev, err)
	}
	writeErr := r.appendEntries(entries)
	// the token moves on even after a failed append
	return errors.Join(writeErr, r.sendToken(ctx, next))
}

// sendToken starts a non-blocking token send after confirming the
// previous one completed.
func (r *Ring) sendToken(ctx context.Context, dst int) error {
	if r.token != nil {
		done, err := r.token.Test()
		if !done {
			r.metrics.TokenWarnings.Inc()
			logger.For(ctx, r.log).Warn("previous load log token send still pending", "dst", dst)
			err = r.token.Wait(ctx)
		}
		if err != nil {
			return fmt.Errorf("loadlog: token to %d: %w", dst, err)
		}
	}
	r.token = r.c.Isend(ctx, dst, tagToken, nil)
	return nil
}

// flushDirect lets each rank append in rank order, one per barrier phase.
func (r *Ring) flushDirect(ctx context.Context) error {
	entries := r.take()
	var writeErr error
	for k := 0; k < r.c.Size(); k++ {
		if k == r.c.Rank() {
			writeErr = r.appendEntries(entries)
		}
		if err := comm.Barrier(ctx, r.c); err != nil {
			return errors.Join(writeErr, fmt.Errorf("loadlog: barrier: %w", err))
		}
	}
	return writeErr
}

func (r *Ring) flushCollector(ctx context.Context) error {
	entries := r.take()
	if r.c.Rank() != collector {
		return r.serveCollector(ctx, entries)
	}
	for src := 0; src < r.c.Size(); src++ {
		if src == collector {
			continue
		}
		offset, err := r.measureOffset(ctx, src)
		if err != nil {
			return err
		}
		if err := r.c.Send(ctx, src, tagEntries, nil); err != nil {
			return fmt.Errorf("loadlog: request entries from %d: %w", src, err)
		}
		m, err := r.c.Recv(ctx, src, tagEntries)
		if err != nil {
			return fmt.Errorf("loadlog: entries from %d: %w", src, err)
		}
		remote, err := decodeEntries(m.Data)
		if err != nil {
			return fmt.Errorf("loadlog: entries from %d: %w", src, err)
		}
		for i := range remote {
			remote[i].Time = remote[i].Time.Add(-offset)
		}
		entries = append(entries, remote...)
	}
	return r.appendEntries(entries)
}

// measureOffset estimates how far src's clock is ahead of ours. The
// round trip with the smallest delay wins.
func (r *Ring) measureOffset(ctx context.Context, src int) (time.Duration, error) {
	best := time.Duration(math.MaxInt64)
	var offset time.Duration
	for i := 0; i < r.cfg.Pings; i++ {
		t0 := r.cfg.Now()
		if err := r.c.Send(ctx, src, tagPing, nil); err != nil {
			return 0, fmt.Errorf("loadlog: ping %d: %w", src, err)
		}
		m, err := r.c.Recv(ctx, src, tagPong)
		if err != nil {
			return 0, fmt.Errorf("loadlog: pong from %d: %w", src, err)
		}
		t1 := r.cfg.Now()
		ns, _, err := msgp.ReadInt64Bytes(m.Data)
		if err != nil {
			return 0, fmt.Errorf("loadlog: pong from %d: %w", src, err)
		}
		rtt := t1.Sub(t0)
		if rtt < best {
			best = rtt
			offset = time.Unix(0, ns).Sub(t0.Add(rtt / 2))
		}
	}
	r.log.Debug("clock offset measured", "src", src, "offset", offset, "rtt", best)
	return offset, nil
}

// serveCollector answers pings until the collector asks for entries.
func (r *Ring) serveCollector(ctx context.Context, entries []Entry) error {
	for {
		m, err := r.c.Recv(ctx, collector, comm.AnyTag)
		if err != nil {
			return fmt.Errorf("loadlog: collector: %w", err)
		}
		switch m.Tag {
		case tagPing:
			now := msgp.AppendInt64(nil, r.cfg.Now().UnixNano())
			if err := r.c.Send(ctx, collector, tagPong, now); err != nil {
				return fmt.Errorf("loadlog: pong: %w", err)
			}
		case tagEntries:
			if err := r.c.Send(ctx, collector, tagEntries, encodeEntries(entries)); err != nil {
				return fmt.Errorf("loadlog: send entries: %w", err)
			}
			return nil
		default:
			return domain.ErrUnexpectedMessage.WithDetailsf("load log: tag %d from collector", m.Tag)
		}
	}
}

func encodeEntries(entries []Entry) []byte {
	b := msgp.AppendArrayHeader(nil, uint32(len(entries)))
	for _, e := range entries {
		b = msgp.AppendInt64(b, e.Time.UnixNano())
		b = msgp.AppendInt(b, e.Rank)
		b = e.Load.AppendPacked(b)
	}
	return b
}

func decodeEntries(b []byte) ([]Entry, error) {
	n, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, n)
	for i := uint32(0); i < n; i++ {
		var e Entry
		var ns int64
		if ns, b, err = msgp.ReadInt64Bytes(b); err != nil {
			return nil, err
		}
		if e.Rank, b, err = msgp.ReadIntBytes(b); err != nil {
			return nil, err
		}
		if e.Load, b, err = domain.UnpackLoad(b); err != nil {
			return nil, err
		}
		e.Time = time.Unix(0, ns)
		entries = append(entries, e)
	}
	return entries, nil
}
