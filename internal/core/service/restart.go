package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yndnr/pebbl-go/internal/comm"
	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/internal/storage/checkpoint"
)

const (
	strategyParallel    = "parallel"
	strategyReconfigure = "reconfigure"
)

// RestartConfig configures restarts.
type RestartConfig struct {
	Dir     string
	Problem string

	// MaxProcesses bounds process numbers found in file names during a
	// reconfigure scan. Zero means no bound.
	MaxProcesses int

	// InitialBuffer is the receive-buffer size every rank starts with.
	InitialBuffer int
}

// DefaultInitialBuffer is used when RestartConfig.InitialBuffer is zero.
const DefaultInitialBuffer = 4096

// RestartResult describes what one rank restored.
type RestartResult struct {
	// Restored is false when no checkpoint was found anywhere.
	Restored bool
	Strategy string
	Number   int
	Files    int

	Subproblems int
	Fathomed    int
	Solutions   int

	// Broadcasts counts broadcast messages received by a reconfigure leaf.
	Broadcasts int
	// Resizes counts buffer-resize messages sent (root) or applied (leaf).
	Resizes int
}

// RestartContext restores a run from checkpoint files.
type RestartContext struct {
	proc *Process
	cfg  RestartConfig
}

// NewRestartContext creates the restart state for proc.
func NewRestartContext(proc *Process, cfg RestartConfig) *RestartContext {
	if cfg.InitialBuffer <= 0 {
		cfg.InitialBuffer = DefaultInitialBuffer
	}
	return &RestartContext{proc: proc, cfg: cfg}
}

// Restart picks the strategy: rank 0 scans every file, and if the file
// count equals the current process count the run restarts in parallel,
// otherwise it is reconfigured.
func (r *RestartContext) Restart(ctx context.Context) (RestartResult, error) {
	p := r.proc
	var files int64
	if p.Rank() == 0 {
		res, err := checkpoint.Scan(r.cfg.Dir, r.cfg.Problem, checkpoint.AllProcesses, r.cfg.MaxProcesses)
		if err != nil {
			p.logger().Error("checkpoint scan failed", "error", err)
			return RestartResult{}, err
		}
		files = int64(res.Count)
	}
	files, err := comm.BcastInt64(ctx, p.Comm, 0, files)
	if err != nil {
		return RestartResult{}, fmt.Errorf("restart: %w", err)
	}
	switch {
	case files == 0:
		p.logger().Info("nothing to restart", "dir", r.cfg.Dir, "problem", r.cfg.Problem)
		return RestartResult{}, nil
	case int(files) == p.Comm.Size():
		return r.ParallelRestart(ctx)
	default:
		return r.ReconfigureRestart(ctx)
	}
}

// restore inserts a decoded subproblem into the pool, or recycles it when
// it can already be fathomed.
func (r *RestartContext) restore(data []byte, res *RestartResult) error {
	p := r.proc
	sp, err := p.Subproblems.DecodeSubproblem(data)
	if err != nil {
		return domain.ErrCheckpointIO.WithDetails("decode subproblem").WithCause(err)
	}
	if sp.CanFathom(p.State.Incumbent.Value) {
		sp.Recycle()
		res.Fathomed++
		return nil
	}
	p.Pool.Insert(sp)
	res.Subproblems++
	return nil
}

func (r *RestartContext) record(res RestartResult, log *slog.Logger) {
	m := r.proc.metrics()
	m.SubproblemsRestored.WithLabelValues(res.Strategy).Add(float64(res.Subproblems))
	m.SubproblemsFathomed.WithLabelValues(res.Strategy).Add(float64(res.Fathomed))
	m.SolutionsRestored.WithLabelValues(res.Strategy).Add(float64(res.Solutions))
	log.Info("restart complete",
		"strategy", res.Strategy,
		"subproblems", res.Subproblems,
		"fathomed", res.Fathomed,
		"solutions", res.Solutions,
		"broadcasts", res.Broadcasts,
		"resizes", res.Resizes)
}
