package service

import (
	"log/slog"
	"sync"

	"github.com/yndnr/pebbl-go/internal/comm"
	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/internal/storage/pool"
	"github.com/yndnr/pebbl-go/internal/telemetry/metric"
)

// Process is one rank's view of the run.
type Process struct {
	Comm     comm.Comm
	Topology domain.Topology
	Sense    domain.Sense

	// Pool holds this rank's pending subproblems. Non-workers keep it empty.
	Pool domain.PoolAccess

	// Repository is set when enumerating multiple solutions.
	Repository *pool.SolutionRepository

	App         domain.Application
	Subproblems domain.SubproblemDecoder
	Solutions   domain.SolutionDecoder

	State   *SearchState
	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Rank returns the process rank.
func (p *Process) Rank() int { return p.Comm.Rank() }

// Enumerating reports whether a solution repository is kept.
func (p *Process) Enumerating() bool { return p.Repository != nil }

func (p *Process) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default().With("rank", p.Rank())
	}
	return p.Logger
}

func (p *Process) metrics() *metric.Registry {
	return metric.Or(p.Metrics)
}

// LocalLoad computes this rank's load from its pool contents and message
// counters.
func (p *Process) LocalLoad() domain.Load {
	l := domain.EmptyLoad(p.Sense)
	if p.Pool != nil && p.Topology.IsWorker(p.Rank()) {
		p.Pool.Scan(func(sp domain.Subproblem) bool {
			l.AddSubproblem(sp.Bound())
			return true
		})
	}
	stats := p.Comm.Stats()
	l.Sent = stats.Sent - p.State.statsBase.Sent
	l.Received = stats.Received - p.State.statsBase.Received
	return l
}

// SearchState is the global search state replicated on every rank.
type SearchState struct {
	mu sync.Mutex

	Incumbent domain.Incumbent

	// Counter is the global subproblem id counter.
	Counter int64

	ClusterLoad domain.Load
	GlobalLoad  domain.Load

	rank       int
	size       int
	nextSerial int64
	statsBase  comm.Stats
}

// NewSearchState returns the state of a fresh run on rank of size.
func NewSearchState(sense domain.Sense, rank, size int) *SearchState {
	return &SearchState{
		Incumbent:   domain.NoIncumbent(sense),
		ClusterLoad: domain.EmptyLoad(sense),
		GlobalLoad:  domain.EmptyLoad(sense),
		rank:        rank,
		size:        size,
		nextSerial:  int64(rank),
	}
}

// NextSerial returns a fresh solution serial. Serials are striped by rank
// (serial mod size == rank) so no two processes hand out the same one.
func (s *SearchState) NextSerial() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.nextSerial
	s.nextSerial += int64(s.size)
	return v
}

// ReserveSerials moves the serial stripe past max.
func (s *SearchState) ReserveSerials(max int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextSerial > max {
		return
	}
	size := int64(s.size)
	next := max + 1
	if rem := (next - int64(s.rank)) % size; rem != 0 {
		next += size - rem
	}
	s.nextSerial = next
}

// ResetMessageCounters makes the current transport counters the new zero.
func (s *SearchState) ResetMessageCounters(c comm.Comm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsBase = c.Stats()
}
