package pool

import (
	"github.com/google/btree"

	"github.com/yndnr/pebbl-go/internal/core/domain"
)

const btreeDegree = 16

// SolutionRepository keeps the best Capacity solutions ordered by value,
// best first. Ties are broken by serial.
type SolutionRepository struct {
	sense    domain.Sense
	capacity int
	tree     *btree.BTreeG[domain.Solution]
}

// NewSolutionRepository returns an empty repository. A capacity of zero or
// less means unbounded.
func NewSolutionRepository(sense domain.Sense, capacity int) *SolutionRepository {
	less := func(a, b domain.Solution) bool {
		if a.Value() != b.Value() {
			return sense.Better(a.Value(), b.Value())
		}
		return a.Serial() < b.Serial()
	}
	return &SolutionRepository{
		sense:    sense,
		capacity: capacity,
		tree:     btree.NewG(btreeDegree, less),
	}
}

// Add inserts sol. If the repository is over capacity the worst solution is
// dropped; Add reports whether sol itself was kept.
func (r *SolutionRepository) Add(sol domain.Solution) bool {
	r.tree.ReplaceOrInsert(sol)
	if r.capacity > 0 && r.tree.Len() > r.capacity {
		r.tree.DeleteMax()
		return r.tree.Has(sol)
	}
	return true
}

// Len returns the number of stored solutions.
func (r *SolutionRepository) Len() int { return r.tree.Len() }

// Capacity returns the configured bound.
func (r *SolutionRepository) Capacity() int { return r.capacity }

// Scan calls fn best first until fn returns false.
func (r *SolutionRepository) Scan(fn func(domain.Solution) bool) {
	r.tree.Ascend(fn)
}

// Best returns the best stored solution.
func (r *SolutionRepository) Best() (domain.Solution, bool) {
	return r.tree.Min()
}

// MaxSerial returns the largest serial in the repository, or -1 if empty.
func (r *SolutionRepository) MaxSerial() int64 {
	maxSerial := int64(-1)
	r.Scan(func(s domain.Solution) bool {
		maxSerial = max(maxSerial, s.Serial())
		return true
	})
	return maxSerial
}
