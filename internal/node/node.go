package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/pebbl-go/internal/comm"
	"github.com/yndnr/pebbl-go/internal/config"
	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/internal/core/service"
	"github.com/yndnr/pebbl-go/internal/storage/pool"
	"github.com/yndnr/pebbl-go/internal/telemetry/loadlog"
	"github.com/yndnr/pebbl-go/internal/telemetry/logger"
	"github.com/yndnr/pebbl-go/internal/telemetry/metric"
	"github.com/yndnr/pebbl-go/pkg/packbuf"
)

// idlePoll is the pause between polls when this rank has no work.
const idlePoll = time.Millisecond

// Option configures a Node.
type Option func(*Node)

// WithComm uses c instead of building a transport from the config.
func WithComm(c comm.Comm) Option {
	return func(n *Node) { n.comm = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Node) { n.log = l }
}

// WithMetrics sets the metric registry.
func WithMetrics(r *metric.Registry) Option {
	return func(n *Node) { n.metrics = r }
}

// WithStopper is triggered when the run stops at a scheduled checkpoint.
func WithStopper(s service.Stopper) Option {
	return func(n *Node) { n.stopper = s }
}

// Node is one running process.
type Node struct {
	cfg     *config.Config
	comm    comm.Comm
	net     *comm.NetComm
	log     *slog.Logger
	metrics *metric.Registry
	stopper service.Stopper

	proc *service.Process
	pool *pool.WorkerPool
	work *Workload
}

// Result summarizes a run on this rank.
type Result struct {
	Restart     service.RestartResult
	Checkpoints int
	Last        int
	Aborted     bool
	Expanded    int64
	Incumbent   float64
}

// New builds a node from cfg. Without WithComm it joins the peers in
// cfg.Comm over the network, or runs alone when no peers are configured.
func New(cfg *config.Config, opts ...Option) (*Node, error) {
	n := &Node{cfg: cfg}
	for _, opt := range opts {
		opt(n)
	}
	if n.log == nil {
		n.log = slog.Default()
	}
	if n.comm == nil {
		if len(cfg.Comm.Peers) == 0 {
			n.comm = comm.NewLocalWorld(1)[0]
		} else {
			nc, err := comm.NewNetComm(comm.NetConfig{
				Rank:    cfg.Comm.Rank,
				Peers:   cfg.Comm.Peers,
				Timeout: cfg.Comm.Timeout,
				Logger:  n.log,
			})
			if err != nil {
				return nil, err
			}
			n.comm, n.net = nc, nc
		}
	}
	n.log = n.log.With("rank", n.comm.Rank())

	sense := cfg.Sense()
	topo, err := domain.NewTopology(n.comm.Size(), cfg.Topology.ClusterSize, cfg.Topology.HubsDontWork)
	if err != nil {
		return nil, err
	}
	n.pool = pool.NewWorkerPool(sense)
	n.work = NewWorkload(WorkloadConfig{
		Sense:     sense,
		Roots:     cfg.Workload.Roots,
		Depth:     cfg.Workload.Depth,
		Branching: cfg.Workload.Branching,
		Seed:      cfg.Workload.Seed,
	}, n.comm.Rank())

	n.proc = &service.Process{
		Comm:        n.comm,
		Topology:    topo,
		Sense:       sense,
		Pool:        n.pool,
		App:         n.work,
		Subproblems: n.work,
		Solutions:   n.work,
		State:       service.NewSearchState(sense, n.comm.Rank(), n.comm.Size()),
		Logger:      n.log,
		Metrics:     n.metrics,
	}
	if cfg.Problem.Enumerate {
		n.proc.Repository = pool.NewSolutionRepository(sense, cfg.Problem.RepositorySize)
	}
	return n, nil
}

// Handler returns the message endpoint to serve when the node uses the
// network transport.
func (n *Node) Handler() (string, http.Handler, bool) {
	if n.net == nil {
		return "", nil, false
	}
	path, h := n.net.Handler()
	return path, h, true
}

// Process exposes the process state.
func (n *Node) Process() *service.Process { return n.proc }

// Close releases the transport.
func (n *Node) Close() error { return n.comm.Close() }

// Run restarts or seeds the search and runs it to completion. Every rank
// must call Run.
func (n *Node) Run(ctx context.Context) (Result, error) {
	var res Result
	cfg := n.cfg
	p := n.proc
	rank := p.Rank()
	leader := p.Topology.LeaderHub()

	restart, err := service.NewRestartContext(p, service.RestartConfig{
		Dir:           cfg.Checkpoint.Dir,
		Problem:       cfg.Problem.Name,
		MaxProcesses:  cfg.Checkpoint.MaxProcesses,
		InitialBuffer: cfg.Checkpoint.InitialBuffer,
	}).Restart(ctx)
	if err != nil {
		return res, err
	}
	res.Restart = restart

	cc := service.NewCheckpointContext(p, service.CheckpointConfig{
		Dir:        cfg.Checkpoint.Dir,
		Problem:    cfg.Problem.Name,
		AbortAt:    cfg.Checkpoint.AbortAt,
		ReportRank: cfg.Checkpoint.ReportRank,
		Stopper:    n.stopper,
	})
	cc.Continue(restart)
	if !restart.Restored && p.Topology.IsWorker(rank) {
		n.work.Seed(p)
	}

	_, global, err := service.RestartSetLoads(ctx, p)
	if err != nil {
		return res, err
	}
	n.log.Info("search starting", "restored", restart.Restored, "pending", global.Pending, "bound", global.Bound)

	ring, err := n.openLoadLog(ctx)
	if err != nil {
		return res, err
	}
	defer func() {
		if ring != nil {
			_ = ring.Close(context.WithoutCancel(ctx))
		}
	}()

	last := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if p.Topology.IsWorker(rank) {
			n.work.Expand(p, n.pool, cfg.Workload.Budget)
		}
		if ring != nil {
			ring.Tick(p.LocalLoad)
		}

		var cres service.CheckpointResult
		took := false
		if rank == leader {
			if n.checkpointDue(last) {
				cres, err = cc.WriteCheckpoint(ctx)
				took = true
				last = time.Now()
			}
		} else {
			cres, took, err = cc.PollCheckpoint(ctx)
		}
		if err != nil {
			return res, err
		}
		if !took {
			if n.pool.Size() == 0 {
				time.Sleep(idlePoll)
			}
			continue
		}

		res.Checkpoints++
		res.Last = cres.Number
		cctx := logger.WithCheckpoint(ctx, cres.Number)
		if ring != nil {
			if err := ring.Flush(cctx); err != nil {
				return res, err
			}
		}
		if cres.Aborted {
			res.Aborted = true
			break
		}
		if err := n.syncIncumbent(cctx); err != nil {
			return res, err
		}
		pending, err := comm.AllreduceInt64(cctx, p.Comm, int64(n.pool.Size()), comm.OpSum)
		if err != nil {
			return res, fmt.Errorf("termination check: %w", err)
		}
		if pending == 0 {
			break
		}
	}

	res.Expanded = n.work.Expanded()
	res.Incumbent = p.State.Incumbent.Value
	n.log.Info("search stopped",
		"checkpoints", res.Checkpoints,
		"last_checkpoint", res.Last,
		"aborted", res.Aborted,
		"expanded", res.Expanded,
		"incumbent", res.Incumbent)
	return res, nil
}

// checkpointDue reports whether the leader should start a checkpoint. An
// idle leader checkpoints early so termination is noticed.
func (n *Node) checkpointDue(last time.Time) bool {
	interval := n.cfg.Checkpoint.Interval
	since := time.Since(last)
	if since >= interval {
		return true
	}
	return n.pool.Size() == 0 && since >= interval/10
}

func (n *Node) openLoadLog(ctx context.Context) (*loadlog.Ring, error) {
	lc := n.cfg.LoadLog
	if lc.Path == "" {
		return nil, nil
	}
	mode, err := loadlog.ParseMode(lc.Mode)
	if err != nil {
		return nil, err
	}
	ring, err := loadlog.New(ctx, n.comm, loadlog.Config{
		Path:     lc.Path,
		Mode:     mode,
		Interval: lc.Interval,
		Pings:    lc.Pings,
		Logger:   n.log,
		Metrics:  n.metrics,
	})
	if err != nil {
		return nil, err
	}
	n.log.Debug("load log open", "path", lc.Path, "mode", mode, "run", ring.RunID())
	return ring, nil
}

// syncIncumbent makes every rank agree on the best incumbent. Only the
// owner keeps the payload.
func (n *Node) syncIncumbent(ctx context.Context) error {
	p := n.proc
	sense := p.Sense
	world := comm.World(p.Comm)

	best, err := comm.Reduce(ctx, p.Comm, world, 0, packValue(p.State.Incumbent),
		func(a, b []byte) ([]byte, error) {
			va, oa, err := unpackValue(a)
			if err != nil {
				return nil, err
			}
			vb, ob, err := unpackValue(b)
			if err != nil {
				return nil, err
			}
			if sense.Better(vb, va) || (vb == va && ob >= 0 && (oa < 0 || ob < oa)) {
				return b, nil
			}
			return a, nil
		})
	if err != nil {
		return fmt.Errorf("incumbent reduce: %w", err)
	}
	if best, err = comm.Bcast(ctx, p.Comm, world, 0, best); err != nil {
		return fmt.Errorf("incumbent broadcast: %w", err)
	}
	value, owner, err := unpackValue(best)
	if err != nil {
		return errors.Join(domain.ErrUnexpectedMessage, err)
	}
	inc := domain.Incumbent{Value: value, Owner: owner}
	if owner == p.Rank() {
		inc.Payload = p.State.Incumbent.Payload
	}
	if inc.Value != p.State.Incumbent.Value || inc.Owner != p.State.Incumbent.Owner {
		logger.For(ctx, n.log).Debug("incumbent updated", "value", value, "owner", owner)
	}
	p.State.Incumbent = inc
	return nil
}

func packValue(inc domain.Incumbent) []byte {
	b := packbuf.New(12)
	b.PutFloat64(inc.Value)
	b.PutInt32(int32(inc.Owner))
	return b.Bytes()
}

func unpackValue(data []byte) (float64, int, error) {
	b := packbuf.FromBytes(data)
	v, err := b.ReadFloat64()
	if err != nil {
		return 0, 0, err
	}
	o, err := b.ReadInt32()
	if err != nil {
		return 0, 0, err
	}
	return v, int(o), nil
}
