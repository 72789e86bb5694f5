package domain

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

const loadFields = 5

// Load is the mergeable record of search statistics for one process, one
// cluster, or the whole run.
//
// Combine is associative and commutative with EmptyLoad as identity, so
// worker -> cluster -> global reduction gives the same result in any order.
type Load struct {
	Sense Sense
	// Pending is the number of subproblems waiting in pools.
	Pending int64
	// Bound is the best bound over all pending subproblems.
	Bound float64
	// Sent and Received count search messages.
	Sent     int64
	Received int64
}

// EmptyLoad returns the identity element for Combine.
func EmptyLoad(sense Sense) Load {
	return Load{Sense: sense, Bound: sense.Worst()}
}

// Combine merges o into a copy of l.
func (l Load) Combine(o Load) Load {
	return Load{
		Sense:    l.Sense,
		Pending:  l.Pending + o.Pending,
		Bound:    l.Sense.Best(l.Bound, o.Bound),
		Sent:     l.Sent + o.Sent,
		Received: l.Received + o.Received,
	}
}

// AddSubproblem accounts for one more pending subproblem with the given bound.
func (l *Load) AddSubproblem(bound float64) {
	l.Pending++
	l.Bound = l.Sense.Best(l.Bound, bound)
}

// AppendPacked appends the msgpack form of l to b.
func (l Load) AppendPacked(b []byte) []byte {
	b = msgp.AppendArrayHeader(b, loadFields)
	b = msgp.AppendInt8(b, int8(l.Sense))
	b = msgp.AppendInt64(b, l.Pending)
	b = msgp.AppendFloat64(b, l.Bound)
	b = msgp.AppendInt64(b, l.Sent)
	b = msgp.AppendInt64(b, l.Received)
	return b
}

// UnpackLoad decodes a Load written by AppendPacked and returns the rest of b.
func UnpackLoad(b []byte) (Load, []byte, error) {
	var l Load
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return l, b, err
	}
	if sz != loadFields {
		return l, b, fmt.Errorf("load: %d fields, want %d", sz, loadFields)
	}
	sense, b, err := msgp.ReadInt8Bytes(b)
	if err != nil {
		return l, b, err
	}
	l.Sense = Sense(sense)
	if l.Pending, b, err = msgp.ReadInt64Bytes(b); err != nil {
		return l, b, err
	}
	if l.Bound, b, err = msgp.ReadFloat64Bytes(b); err != nil {
		return l, b, err
	}
	if l.Sent, b, err = msgp.ReadInt64Bytes(b); err != nil {
		return l, b, err
	}
	if l.Received, b, err = msgp.ReadInt64Bytes(b); err != nil {
		return l, b, err
	}
	return l, b, nil
}

// CombinePacked is Combine over the packed representation. It is the
// reduction operator for the global load.
func CombinePacked(a, b []byte) ([]byte, error) {
	la, _, err := UnpackLoad(a)
	if err != nil {
		return nil, fmt.Errorf("load: unpack left: %w", err)
	}
	lb, _, err := UnpackLoad(b)
	if err != nil {
		return nil, fmt.Errorf("load: unpack right: %w", err)
	}
	return la.Combine(lb).AppendPacked(nil), nil
}
