// Package domaintest provides in-memory collaborators for tests of the
// checkpoint and restart code.
package domaintest

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/pkg/packbuf"
)

// Subproblem is a test subproblem. Padding inflates its serialized size.
type Subproblem struct {
	ID       int64
	BoundVal float64
	Padding  int
	recycled *atomic.Int64
}

// MarshalBinary implements domain.Subproblem.
func (s *Subproblem) MarshalBinary() ([]byte, error) {
	b := packbuf.New(20 + s.Padding)
	b.PutInt64(s.ID)
	b.PutFloat64(s.BoundVal)
	b.PutBytes(make([]byte, s.Padding))
	return b.Bytes(), nil
}

// Bound implements domain.Subproblem.
func (s *Subproblem) Bound() float64 { return s.BoundVal }

// CanFathom implements domain.Subproblem for minimization.
func (s *Subproblem) CanFathom(incumbent float64) bool { return s.BoundVal >= incumbent }

// Recycle implements domain.Subproblem.
func (s *Subproblem) Recycle() {
	if s.recycled != nil {
		s.recycled.Add(1)
	}
}

// Factory decodes test subproblems and counts recycles.
type Factory struct {
	Recycled atomic.Int64
}

// New returns a subproblem whose recycles are counted by f.
func (f *Factory) New(id int64, bound float64, padding int) *Subproblem {
	return &Subproblem{ID: id, BoundVal: bound, Padding: padding, recycled: &f.Recycled}
}

// DecodeSubproblem implements domain.SubproblemDecoder.
func (f *Factory) DecodeSubproblem(data []byte) (domain.Subproblem, error) {
	b := packbuf.FromBytes(data)
	id, err := b.ReadInt64()
	if err != nil {
		return nil, err
	}
	bound, err := b.ReadFloat64()
	if err != nil {
		return nil, err
	}
	pad, err := b.ReadBytes()
	if err != nil {
		return nil, err
	}
	return f.New(id, bound, len(pad)), nil
}

// Solution is a test solution.
type Solution struct {
	SerialNo int64
	Val      float64
	Tag      string
}

// MarshalBinary implements domain.Solution.
func (s *Solution) MarshalBinary() ([]byte, error) {
	b := packbuf.New(32)
	b.PutInt64(s.SerialNo)
	b.PutFloat64(s.Val)
	b.PutBytes([]byte(s.Tag))
	return b.Bytes(), nil
}

// Value implements domain.Solution.
func (s *Solution) Value() float64 { return s.Val }

// Serial implements domain.Solution.
func (s *Solution) Serial() int64 { return s.SerialNo }

// SetSerial implements domain.Solution.
func (s *Solution) SetSerial(serial int64) { s.SerialNo = serial }

// Owner implements domain.Solution.
func (s *Solution) Owner(numProcs int) int {
	return domain.HashOwner([]byte(s.Tag), numProcs)
}

// DecodeSolution decodes a Solution.
func DecodeSolution(data []byte) (domain.Solution, error) {
	b := packbuf.FromBytes(data)
	serial, err := b.ReadInt64()
	if err != nil {
		return nil, err
	}
	val, err := b.ReadFloat64()
	if err != nil {
		return nil, err
	}
	tag, err := b.ReadBytes()
	if err != nil {
		return nil, err
	}
	return &Solution{SerialNo: serial, Val: val, Tag: string(tag)}, nil
}

// Application is a test application whose global blob is a byte string.
type Application struct {
	mu     sync.Mutex
	Global []byte
	Merged [][]byte
}

// MarshalGlobal implements domain.Application.
func (a *Application) MarshalGlobal() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]byte(nil), a.Global...), nil
}

// UnmarshalGlobal implements domain.Application.
func (a *Application) UnmarshalGlobal(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Global = append([]byte(nil), data...)
	return nil
}

// MergeGlobal implements domain.Application.
func (a *Application) MergeGlobal(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(data) > 1<<20 {
		return fmt.Errorf("domaintest: blob too large")
	}
	a.Merged = append(a.Merged, append([]byte(nil), data...))
	return nil
}
