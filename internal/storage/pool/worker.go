package pool

import (
	"github.com/gammazero/deque"

	"github.com/yndnr/pebbl-go/internal/core/domain"
)

var _ domain.PoolAccess = (*WorkerPool)(nil)

// WorkerPool holds a worker's pending subproblems in insertion order.
//
// The search engine pops from the back (depth first) or the front (breadth
// first); checkpoints scan front to back so a restored pool keeps the
// original order.
type WorkerPool struct {
	sense domain.Sense
	q     deque.Deque[domain.Subproblem]
}

// NewWorkerPool returns an empty pool.
func NewWorkerPool(sense domain.Sense) *WorkerPool {
	return &WorkerPool{sense: sense}
}

// Size returns the number of pending subproblems.
func (p *WorkerPool) Size() int { return p.q.Len() }

// Insert appends sp.
func (p *WorkerPool) Insert(sp domain.Subproblem) { p.q.PushBack(sp) }

// Scan calls fn for each subproblem front to back until fn returns false.
func (p *WorkerPool) Scan(fn func(domain.Subproblem) bool) {
	for i := 0; i < p.q.Len(); i++ {
		if !fn(p.q.At(i)) {
			return
		}
	}
}

// PopBack removes and returns the newest subproblem.
func (p *WorkerPool) PopBack() (domain.Subproblem, bool) {
	if p.q.Len() == 0 {
		return nil, false
	}
	return p.q.PopBack(), true
}

// PopFront removes and returns the oldest subproblem.
func (p *WorkerPool) PopFront() (domain.Subproblem, bool) {
	if p.q.Len() == 0 {
		return nil, false
	}
	return p.q.PopFront(), true
}

// Clear recycles and removes every subproblem.
func (p *WorkerPool) Clear() {
	for p.q.Len() > 0 {
		p.q.PopFront().Recycle()
	}
}

// Load computes the pool's contribution to the process load from its
// current contents.
func (p *WorkerPool) Load() domain.Load {
	l := domain.EmptyLoad(p.sense)
	p.Scan(func(sp domain.Subproblem) bool {
		l.AddSubproblem(sp.Bound())
		return true
	})
	return l
}
