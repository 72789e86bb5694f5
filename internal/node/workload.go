package node

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/internal/core/service"
	"github.com/yndnr/pebbl-go/internal/storage/pool"
	"github.com/yndnr/pebbl-go/pkg/packbuf"
)

// Task is a subproblem of the synthetic search tree. Children are never
// better than their parent, and nodes at the depth limit are solutions.
type Task struct {
	ID    int64
	Depth int32
	Value float64
	sense domain.Sense
}

func (t *Task) MarshalBinary() ([]byte, error) {
	b := packbuf.New(20)
	b.PutInt64(t.ID)
	b.PutInt32(t.Depth)
	b.PutFloat64(t.Value)
	return b.Bytes(), nil
}

func (t *Task) Bound() float64 { return t.Value }

func (t *Task) CanFathom(incumbent float64) bool {
	return !t.sense.Better(t.Value, incumbent)
}

func (t *Task) Recycle() {}

// Leaf is a solution found at the depth limit.
type Leaf struct {
	SerialNo int64
	TaskID   int64
	Val      float64
}

func (l *Leaf) MarshalBinary() ([]byte, error) {
	b := packbuf.New(24)
	b.PutInt64(l.SerialNo)
	b.PutInt64(l.TaskID)
	b.PutFloat64(l.Val)
	return b.Bytes(), nil
}

func (l *Leaf) Value() float64         { return l.Val }
func (l *Leaf) Serial() int64          { return l.SerialNo }
func (l *Leaf) SetSerial(serial int64) { l.SerialNo = serial }
func (l *Leaf) Owner(numProcs int) int { return domain.HashOwner(l.idBytes(), numProcs) }

func (l *Leaf) idBytes() []byte {
	b := packbuf.New(8)
	b.PutInt64(l.TaskID)
	return b.Bytes()
}

// WorkloadConfig sizes a Workload.
type WorkloadConfig struct {
	Sense     domain.Sense
	Roots     int
	Depth     int
	Branching int
	Seed      int64
}

// Workload is the application side of the synthetic search. Its global
// blob is the number of tasks expanded so far; merging blobs adds them.
type Workload struct {
	cfg WorkloadConfig
	rng *rand.Rand

	mu       sync.Mutex
	expanded int64
}

// NewWorkload creates the workload for rank.
func NewWorkload(cfg WorkloadConfig, rank int) *Workload {
	return &Workload{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(rank))),
	}
}

// Expanded returns the number of tasks expanded, including those restored
// from a checkpoint blob.
func (w *Workload) Expanded() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expanded
}

func (w *Workload) MarshalGlobal() ([]byte, error) {
	b := packbuf.New(8)
	b.PutInt64(w.Expanded())
	return b.Bytes(), nil
}

func (w *Workload) UnmarshalGlobal(data []byte) error {
	n, err := packbuf.FromBytes(data).ReadInt64()
	if err != nil {
		return fmt.Errorf("workload blob: %w", err)
	}
	w.mu.Lock()
	w.expanded = n
	w.mu.Unlock()
	return nil
}

func (w *Workload) MergeGlobal(data []byte) error {
	n, err := packbuf.FromBytes(data).ReadInt64()
	if err != nil {
		return fmt.Errorf("workload blob: %w", err)
	}
	w.mu.Lock()
	w.expanded += n
	w.mu.Unlock()
	return nil
}

func (w *Workload) DecodeSubproblem(data []byte) (domain.Subproblem, error) {
	b := packbuf.FromBytes(data)
	t := &Task{sense: w.cfg.Sense}
	var err error
	if t.ID, err = b.ReadInt64(); err != nil {
		return nil, err
	}
	if t.Depth, err = b.ReadInt32(); err != nil {
		return nil, err
	}
	if t.Value, err = b.ReadFloat64(); err != nil {
		return nil, err
	}
	return t, nil
}

func (w *Workload) DecodeSolution(data []byte) (domain.Solution, error) {
	b := packbuf.FromBytes(data)
	l := &Leaf{}
	var err error
	if l.SerialNo, err = b.ReadInt64(); err != nil {
		return nil, err
	}
	if l.TaskID, err = b.ReadInt64(); err != nil {
		return nil, err
	}
	if l.Val, err = b.ReadFloat64(); err != nil {
		return nil, err
	}
	return l, nil
}

func (w *Workload) newID(p *service.Process) int64 {
	p.State.Counter++
	return p.State.Counter*int64(p.Comm.Size()) + int64(p.Rank())
}

// Seed inserts the root tasks of a fresh run.
func (w *Workload) Seed(p *service.Process) {
	for i := 0; i < w.cfg.Roots; i++ {
		p.Pool.Insert(&Task{ID: w.newID(p), Value: 0, sense: w.cfg.Sense})
	}
}

// Expand processes up to budget tasks from wp and returns how many it
// took off the pool.
func (w *Workload) Expand(p *service.Process, wp *pool.WorkerPool, budget int) int {
	n := 0
	for ; n < budget; n++ {
		sp, ok := wp.PopBack()
		if !ok {
			break
		}
		t := sp.(*Task)
		if t.CanFathom(p.State.Incumbent.Value) {
			t.Recycle()
			continue
		}
		w.mu.Lock()
		w.expanded++
		w.mu.Unlock()

		if int(t.Depth) >= w.cfg.Depth {
			w.solution(p, t)
			continue
		}
		for c := 0; c < w.cfg.Branching; c++ {
			step := w.rng.Float64()
			if w.cfg.Sense == domain.Maximize {
				step = -step
			}
			wp.Insert(&Task{ID: w.newID(p), Depth: t.Depth + 1, Value: t.Value + step, sense: w.cfg.Sense})
		}
	}
	return n
}

func (w *Workload) solution(p *service.Process, t *Task) {
	if w.cfg.Sense.Better(t.Value, p.State.Incumbent.Value) {
		leaf := &Leaf{TaskID: t.ID, Val: t.Value}
		p.State.Incumbent = domain.Incumbent{Value: t.Value, Owner: p.Rank(), Payload: leaf.idBytes()}
	}
	if p.Enumerating() {
		p.Repository.Add(&Leaf{SerialNo: p.State.NextSerial(), TaskID: t.ID, Val: t.Value})
	}
}
