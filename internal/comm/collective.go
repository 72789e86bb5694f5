package comm

import (
	"context"
	"encoding/binary"
	"fmt"
	"slices"
)

const (
	tagBarrierIn = ReservedTagBase + iota
	tagBarrierOut
	tagBcast
	tagGather
	tagReduce
)

// ReduceFunc combines two packed values. It must be associative; Reduce
// applies it in a fixed tree order so non-commutative operators still give
// a deterministic result.
type ReduceFunc func(a, b []byte) ([]byte, error)

// World returns the group of every rank of c.
func World(c Comm) []int {
	g := make([]int, c.Size())
	for i := range g {
		g[i] = i
	}
	return g
}

func position(c Comm, group []int, rank int) (int, error) {
	i := slices.Index(group, rank)
	if i < 0 {
		return 0, fmt.Errorf("comm: rank %d not in group %v", rank, group)
	}
	return i, nil
}

// Barrier returns once every rank of c has entered it.
func Barrier(ctx context.Context, c Comm) error {
	if c.Size() == 1 {
		return nil
	}
	if c.Rank() == 0 {
		for r := 1; r < c.Size(); r++ {
			if _, err := c.Recv(ctx, r, tagBarrierIn); err != nil {
				return fmt.Errorf("barrier: %w", err)
			}
		}
		for r := 1; r < c.Size(); r++ {
			if err := c.Send(ctx, r, tagBarrierOut, nil); err != nil {
				return fmt.Errorf("barrier: %w", err)
			}
		}
		return nil
	}
	if err := c.Send(ctx, 0, tagBarrierIn, nil); err != nil {
		return fmt.Errorf("barrier: %w", err)
	}
	if _, err := c.Recv(ctx, 0, tagBarrierOut); err != nil {
		return fmt.Errorf("barrier: %w", err)
	}
	return nil
}

// Bcast sends root's data to every member of group and returns it on all of
// them. Non-root callers pass nil.
func Bcast(ctx context.Context, c Comm, group []int, root int, data []byte) ([]byte, error) {
	if _, err := position(c, group, c.Rank()); err != nil {
		return nil, err
	}
	if c.Rank() != root {
		m, err := c.Recv(ctx, root, tagBcast)
		if err != nil {
			return nil, fmt.Errorf("bcast from %d: %w", root, err)
		}
		return m.Data, nil
	}
	for _, r := range group {
		if r == root {
			continue
		}
		if err := c.Send(ctx, r, tagBcast, data); err != nil {
			return nil, fmt.Errorf("bcast to %d: %w", r, err)
		}
	}
	return data, nil
}

// Gather collects one value from every member of group at root, in group
// order. Non-root callers get nil.
func Gather(ctx context.Context, c Comm, group []int, root int, data []byte) ([][]byte, error) {
	if _, err := position(c, group, c.Rank()); err != nil {
		return nil, err
	}
	if c.Rank() != root {
		if err := c.Send(ctx, root, tagGather, data); err != nil {
			return nil, fmt.Errorf("gather to %d: %w", root, err)
		}
		return nil, nil
	}
	out := make([][]byte, len(group))
	for i, r := range group {
		if r == root {
			out[i] = data
			continue
		}
		m, err := c.Recv(ctx, r, tagGather)
		if err != nil {
			return nil, fmt.Errorf("gather from %d: %w", r, err)
		}
		out[i] = m.Data
	}
	return out, nil
}

// Reduce combines every member's data with op along a binomial tree rooted
// at root. The result is returned at root; other callers get nil.
func Reduce(ctx context.Context, c Comm, group []int, root int, data []byte, op ReduceFunc) ([]byte, error) {
	me, err := position(c, group, c.Rank())
	if err != nil {
		return nil, err
	}
	rootPos, err := position(c, group, root)
	if err != nil {
		return nil, err
	}
	n := len(group)
	rel := (me - rootPos + n) % n
	acc := data
	for mask := 1; mask < n; mask <<= 1 {
		if rel&mask != 0 {
			parent := group[(rel-mask+rootPos)%n]
			if err := c.Send(ctx, parent, tagReduce, acc); err != nil {
				return nil, fmt.Errorf("reduce to %d: %w", parent, err)
			}
			return nil, nil
		}
		if rel+mask < n {
			child := group[(rel+mask+rootPos)%n]
			m, err := c.Recv(ctx, child, tagReduce)
			if err != nil {
				return nil, fmt.Errorf("reduce from %d: %w", child, err)
			}
			if acc, err = op(acc, m.Data); err != nil {
				return nil, fmt.Errorf("reduce op: %w", err)
			}
		}
	}
	return acc, nil
}

// Op is a built-in integer reduction.
type Op int

const (
	OpSum Op = iota
	OpMin
	OpMax
)

func (op Op) apply(a, b int64) int64 {
	switch op {
	case OpMin:
		return min(a, b)
	case OpMax:
		return max(a, b)
	default:
		return a + b
	}
}

func packInt64(v int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(v))
}

func unpackInt64(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("comm: int64 payload of %d bytes", len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// AllreduceInt64 combines v over every rank of c and returns the result on
// all of them.
func AllreduceInt64(ctx context.Context, c Comm, v int64, op Op) (int64, error) {
	world := World(c)
	reduced, err := Reduce(ctx, c, world, 0, packInt64(v), func(a, b []byte) ([]byte, error) {
		x, err := unpackInt64(a)
		if err != nil {
			return nil, err
		}
		y, err := unpackInt64(b)
		if err != nil {
			return nil, err
		}
		return packInt64(op.apply(x, y)), nil
	})
	if err != nil {
		return 0, err
	}
	out, err := Bcast(ctx, c, world, 0, reduced)
	if err != nil {
		return 0, err
	}
	return unpackInt64(out)
}

// BcastInt64 broadcasts root's v over every rank of c.
func BcastInt64(ctx context.Context, c Comm, root int, v int64) (int64, error) {
	var data []byte
	if c.Rank() == root {
		data = packInt64(v)
	}
	out, err := Bcast(ctx, c, World(c), root, data)
	if err != nil {
		return 0, err
	}
	return unpackInt64(out)
}
