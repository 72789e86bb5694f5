package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/yndnr/pebbl-go/internal/comm"
	"github.com/yndnr/pebbl-go/internal/comm/commtest"
	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/internal/core/domain/domaintest"
	"github.com/yndnr/pebbl-go/internal/storage/pool"
	"github.com/yndnr/pebbl-go/internal/telemetry/metric"
)

const problem = "knap"

type rankRig struct {
	proc    *Process
	pool    *pool.WorkerPool
	factory *domaintest.Factory
	app     *domaintest.Application
}

func newRig(c comm.Comm, topo domain.Topology, enumerate bool) *rankRig {
	f := &domaintest.Factory{}
	app := &domaintest.Application{}
	wp := pool.NewWorkerPool(domain.Minimize)
	p := &Process{
		Comm:        c,
		Topology:    topo,
		Sense:       domain.Minimize,
		Pool:        wp,
		App:         app,
		Subproblems: f,
		Solutions:   domain.SolutionDecoderFunc(domaintest.DecodeSolution),
		State:       NewSearchState(domain.Minimize, c.Rank(), c.Size()),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)).With("rank", c.Rank()),
		Metrics:     metric.NewRegistry(),
	}
	if enumerate {
		p.Repository = pool.NewSolutionRepository(domain.Minimize, 0)
	}
	return &rankRig{proc: p, pool: wp, factory: f, app: app}
}

func mustTopology(size, cluster int, hubsDontWork bool) domain.Topology {
	t, err := domain.NewTopology(size, cluster, hubsDontWork)
	if err != nil {
		panic(err)
	}
	return t
}

// runWorld runs fn on every rank of a fresh world of n ranks and returns
// the per-rank rigs.
func runWorld(n int, topo domain.Topology, enumerate bool, fn func(ctx context.Context, r *rankRig) error) ([]*rankRig, error) {
	rigs := make([]*rankRig, n)
	err := commtest.RunErr(n, func(ctx context.Context, c comm.Comm) error {
		r := newRig(c, topo, enumerate)
		rigs[c.Rank()] = r
		if err := fn(ctx, r); err != nil {
			return fmt.Errorf("rank %d: %w", c.Rank(), err)
		}
		return nil
	})
	return rigs, err
}

// writeOnce makes rank 0 start a checkpoint and every other rank wait for
// the signal.
func writeOnce(ctx context.Context, cc *CheckpointContext) (CheckpointResult, error) {
	if cc.proc.Rank() == cc.proc.Topology.LeaderHub() {
		return cc.WriteCheckpoint(ctx)
	}
	return cc.AwaitCheckpoint(ctx)
}

type fakeStopper struct {
	reasons []string
}

func (s *fakeStopper) Trigger(reason string) { s.reasons = append(s.reasons, reason) }
