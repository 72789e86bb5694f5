package pool

import (
	"testing"

	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/internal/core/domain/domaintest"
)

func TestWorkerPool_InsertScanPop(t *testing.T) {
	var f domaintest.Factory
	p := NewWorkerPool(domain.Minimize)
	for i := 0; i < 5; i++ {
		p.Insert(f.New(int64(i), float64(10-i), 0))
	}
	if p.Size() != 5 {
		t.Fatalf("Size = %d, want 5", p.Size())
	}

	var ids []int64
	p.Scan(func(sp domain.Subproblem) bool {
		ids = append(ids, sp.(*domaintest.Subproblem).ID)
		return len(ids) < 3
	})
	if len(ids) != 3 || ids[0] != 0 || ids[2] != 2 {
		t.Fatalf("Scan ids = %v, want [0 1 2]", ids)
	}

	back, ok := p.PopBack()
	if !ok || back.(*domaintest.Subproblem).ID != 4 {
		t.Fatalf("PopBack = %v, %v", back, ok)
	}
	front, ok := p.PopFront()
	if !ok || front.(*domaintest.Subproblem).ID != 0 {
		t.Fatalf("PopFront = %v, %v", front, ok)
	}

	l := p.Load()
	if l.Pending != 3 || l.Bound != 7 {
		t.Fatalf("Load = %+v, want pending 3 bound 7", l)
	}

	p.Clear()
	if p.Size() != 0 {
		t.Fatalf("Size after Clear = %d", p.Size())
	}
	if f.Recycled.Load() != 3 {
		t.Fatalf("Recycled = %d, want 3", f.Recycled.Load())
	}
	if _, ok := p.PopBack(); ok {
		t.Fatal("PopBack on empty pool reported ok")
	}
}

func TestWorkerPool_EmptyLoadIsIdentity(t *testing.T) {
	p := NewWorkerPool(domain.Maximize)
	if got, want := p.Load(), domain.EmptyLoad(domain.Maximize); got != want {
		t.Fatalf("Load = %+v, want %+v", got, want)
	}
}

func TestSolutionRepository_KeepsBest(t *testing.T) {
	r := NewSolutionRepository(domain.Minimize, 3)
	values := []float64{5, 1, 4, 2, 3}
	for i, v := range values {
		r.Add(&domaintest.Solution{SerialNo: int64(i), Val: v})
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}

	var got []float64
	r.Scan(func(s domain.Solution) bool {
		got = append(got, s.Value())
		return true
	})
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("values = %v, want [1 2 3]", got)
	}

	if kept := r.Add(&domaintest.Solution{SerialNo: 9, Val: 100}); kept {
		t.Fatal("Add of a worse-than-all solution reported kept")
	}
	best, ok := r.Best()
	if !ok || best.Value() != 1 {
		t.Fatalf("Best = %v, %v", best, ok)
	}
	if r.MaxSerial() != 4 {
		t.Fatalf("MaxSerial = %d, want 4", r.MaxSerial())
	}
}

func TestSolutionRepository_Unbounded(t *testing.T) {
	r := NewSolutionRepository(domain.Maximize, 0)
	for i := 0; i < 20; i++ {
		r.Add(&domaintest.Solution{SerialNo: int64(i), Val: float64(i % 4)})
	}
	if r.Len() != 20 {
		t.Fatalf("Len = %d, want 20", r.Len())
	}
	best, _ := r.Best()
	if best.Value() != 3 {
		t.Fatalf("Best value = %v, want 3", best.Value())
	}
	if NewSolutionRepository(domain.Minimize, 0).MaxSerial() != -1 {
		t.Fatal("MaxSerial of empty repository must be -1")
	}
}
