package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/pebbl-go/internal/comm"
	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/internal/storage/checkpoint"
	"github.com/yndnr/pebbl-go/internal/telemetry/logger"
	"github.com/yndnr/pebbl-go/pkg/packbuf"
)

// Stopper runs the clean shutdown path. shutdown.Handler implements it.
type Stopper interface {
	Trigger(reason string)
}

// CheckpointConfig configures checkpoint writing.
type CheckpointConfig struct {
	Dir     string
	Problem string

	// AbortAt stops the run right after checkpoint AbortAt completes.
	// Zero disables it.
	AbortAt int

	// ReportRank writes the abort flag file.
	ReportRank int

	// RunID identifies the run in the abort flag. A ULID is generated when
	// empty.
	RunID string

	// Stopper is triggered on a scheduled abort. May be nil.
	Stopper Stopper
}

// CheckpointResult describes one completed checkpoint on this rank.
type CheckpointResult struct {
	Number      int
	Path        string
	Bytes       int64
	Subproblems int
	Solutions   int

	// Aborted is set when the run stopped at this checkpoint as scheduled.
	Aborted  bool
	FlagPath string
}

// CheckpointContext owns the checkpoint-writing state of one rank.
type CheckpointContext struct {
	proc   *Process
	cfg    CheckpointConfig
	number int
	start  time.Time
	now    func() time.Time

	// staleFiles is the file count of the checkpoint restored by Continue.
	// Files of ranks at or above the world size are left over from a larger
	// run and are removed by rank 0 after the next checkpoint.
	staleFiles int

	// afterBarrier runs between the barrier and the stale-file deletion.
	afterBarrier func(number int) error
}

// NewCheckpointContext creates the checkpoint state for proc. The first
// checkpoint written is number 1, or one past a restored checkpoint passed
// to Continue.
func NewCheckpointContext(proc *Process, cfg CheckpointConfig) *CheckpointContext {
	if cfg.RunID == "" {
		cfg.RunID = ulid.Make().String()
	}
	return &CheckpointContext{
		proc:  proc,
		cfg:   cfg,
		start: time.Now(),
		now:   time.Now,
	}
}

// Number returns the last completed checkpoint number.
func (c *CheckpointContext) Number() int { return c.number }

// Continue resumes after res. Numbering continues from res.Number, and once
// the next checkpoint is valid the restored files this world no longer
// owns are removed.
func (c *CheckpointContext) Continue(res RestartResult) {
	if !res.Restored {
		return
	}
	c.number = res.Number
	c.staleFiles = res.Files
}

// RunID returns the run identifier.
func (c *CheckpointContext) RunID() string { return c.cfg.RunID }

// WriteCheckpoint writes this rank's file of the next checkpoint.
//
// The leader hub calls it to start a checkpoint; every other rank calls it
// through AwaitCheckpoint or PollCheckpoint once signalled. Hubs relay the
// signal to their workers and the leader hub to the other hubs. The call
// returns after a global barrier, when the checkpoint is valid on every
// rank, and after this rank's previous file has been removed.
func (c *CheckpointContext) WriteCheckpoint(ctx context.Context) (CheckpointResult, error) {
	return c.write(ctx, c.number+1)
}

// AwaitCheckpoint blocks until this rank is signalled to checkpoint and then
// writes it.
func (c *CheckpointContext) AwaitCheckpoint(ctx context.Context) (CheckpointResult, error) {
	p := c.proc
	m, err := p.Comm.Recv(ctx, c.signalSource(), tagCheckpointSignal)
	if err != nil {
		return CheckpointResult{}, fmt.Errorf("await checkpoint signal: %w", err)
	}
	number, err := c.signalNumber(m)
	if err != nil {
		return CheckpointResult{}, err
	}
	return c.write(ctx, number)
}

// PollCheckpoint writes a checkpoint if a signal is waiting. ok reports
// whether one was written.
func (c *CheckpointContext) PollCheckpoint(ctx context.Context) (res CheckpointResult, ok bool, err error) {
	if !c.proc.Comm.Probe(c.signalSource(), tagCheckpointSignal) {
		return CheckpointResult{}, false, nil
	}
	res, err = c.AwaitCheckpoint(ctx)
	return res, true, err
}

// signalSource returns the rank that signals this one.
func (c *CheckpointContext) signalSource() int {
	t := c.proc.Topology
	rank := c.proc.Rank()
	if t.IsHub(rank) {
		return t.LeaderHub()
	}
	return t.HubOf(rank)
}

func (c *CheckpointContext) signalNumber(m comm.Message) (int, error) {
	b := packbuf.FromBytes(m.Data)
	v, err := b.ReadInt32()
	if err != nil {
		return 0, domain.ErrUnexpectedMessage.WithDetailsf("checkpoint signal from %d", m.Source).WithCause(err)
	}
	number := int(v)
	if number != c.number+1 {
		c.proc.logger().Error("checkpoint signal out of sequence",
			"expected", c.number+1,
			"actual", number,
			"source", m.Source)
		return 0, domain.ErrCheckpointMismatch.WithDetailsf("rank %d: expected checkpoint %d, signalled %d",
			c.proc.Rank(), c.number+1, number)
	}
	return number, nil
}

func (c *CheckpointContext) signal(ctx context.Context, number int) error {
	p := c.proc
	t := p.Topology
	rank := p.Rank()
	if !t.IsHub(rank) {
		return nil
	}

	var targets []int
	if rank == t.LeaderHub() {
		for _, h := range t.Hubs() {
			if h != rank {
				targets = append(targets, h)
			}
		}
	}
	for _, w := range t.ClusterMembers(rank) {
		if w != rank {
			targets = append(targets, w)
		}
	}

	b := packbuf.New(4)
	b.PutInt32(int32(number))
	for _, dst := range targets {
		if err := p.Comm.Send(ctx, dst, tagCheckpointSignal, b.Bytes()); err != nil {
			return fmt.Errorf("signal checkpoint %d to %d: %w", number, dst, err)
		}
	}
	return nil
}

func (c *CheckpointContext) write(ctx context.Context, number int) (CheckpointResult, error) {
	p := c.proc
	ctx = logger.WithCheckpoint(ctx, number)
	log := logger.For(ctx, p.logger())
	began := time.Now()

	if err := c.signal(ctx, number); err != nil {
		return CheckpointResult{}, err
	}

	res, err := c.writeFile(number)
	if err != nil {
		log.Error("checkpoint write failed", "error", err)
		return CheckpointResult{}, err
	}

	if err := comm.Barrier(ctx, p.Comm); err != nil {
		return CheckpointResult{}, fmt.Errorf("checkpoint %d barrier: %w", number, err)
	}
	c.number = number

	if c.afterBarrier != nil {
		if err := c.afterBarrier(number); err != nil {
			return res, err
		}
	}
	c.removeStale(number - 1)
	c.removeOrphans(number - 1)

	m := p.metrics()
	m.CheckpointSeconds.Observe(time.Since(began).Seconds())
	m.CheckpointBytes.Add(float64(res.Bytes))
	m.CheckpointsWritten.Inc()
	m.SubproblemsWritten.Add(float64(res.Subproblems))
	log.Info("checkpoint written",
		"path", res.Path,
		"bytes", res.Bytes,
		"subproblems", res.Subproblems,
		"solutions", res.Solutions)

	if c.cfg.AbortAt > 0 && number == c.cfg.AbortAt {
		if err := c.abort(ctx, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (c *CheckpointContext) writeFile(number int) (CheckpointResult, error) {
	p := c.proc
	rank := p.Rank()
	res := CheckpointResult{Number: number}

	w, err := checkpoint.Create(c.cfg.Dir, c.cfg.Problem, number, rank)
	if err != nil {
		return res, err
	}

	inc := p.State.Incumbent
	w.Header(checkpoint.Header{
		Incumbent: inc.Value,
		Owner:     inc.Owner,
		Counter:   p.State.Counter,
		Payload:   inc.Payload,
	})

	blob, err := p.App.MarshalGlobal()
	if err != nil {
		w.Abort()
		return res, domain.ErrCheckpointIO.WithDetails("application blob").WithCause(err)
	}
	w.Blob(blob)

	n := 0
	if p.Pool != nil && p.Topology.IsWorker(rank) {
		n = p.Pool.Size()
	}
	if err := w.Section(n); err != nil {
		w.Abort()
		return res, err
	}
	if n > 0 {
		var scanErr error
		p.Pool.Scan(func(sp domain.Subproblem) bool {
			var data []byte
			if data, scanErr = sp.MarshalBinary(); scanErr != nil {
				scanErr = domain.ErrCheckpointIO.WithDetails("serialize subproblem").WithCause(scanErr)
				return false
			}
			scanErr = w.Record(data)
			return scanErr == nil
		})
		if scanErr != nil {
			w.Abort()
			return res, scanErr
		}
	}
	res.Subproblems = n

	n = 0
	if p.Enumerating() {
		n = p.Repository.Len()
	}
	if err := w.Section(n); err != nil {
		w.Abort()
		return res, err
	}
	if n > 0 {
		var scanErr error
		p.Repository.Scan(func(sol domain.Solution) bool {
			var data []byte
			if data, scanErr = sol.MarshalBinary(); scanErr != nil {
				scanErr = domain.ErrCheckpointIO.WithDetails("serialize solution").WithCause(scanErr)
				return false
			}
			scanErr = w.Record(data)
			return scanErr == nil
		})
		if scanErr != nil {
			w.Abort()
			return res, scanErr
		}
	}
	res.Solutions = n

	size, err := w.Commit()
	if err != nil {
		return res, err
	}
	res.Path = w.Path()
	res.Bytes = size
	return res, nil
}

// removeStale deletes this rank's file of checkpoint number. Failure is
// only a warning: the newer checkpoint is already valid.
func (c *CheckpointContext) removeStale(number int) {
	if number < 1 {
		return
	}
	c.remove(number, c.proc.Rank())
}

// removeOrphans deletes the files of checkpoint number written by ranks
// that no longer exist after a reconfigure onto fewer processes.
func (c *CheckpointContext) removeOrphans(number int) {
	files := c.staleFiles
	c.staleFiles = 0
	if number < 1 || c.proc.Rank() != 0 {
		return
	}
	for r := c.proc.Comm.Size(); r < files; r++ {
		c.remove(number, r)
	}
}

func (c *CheckpointContext) remove(number, rank int) {
	p := c.proc
	path := filepath.Join(c.cfg.Dir, checkpoint.FileName(c.cfg.Problem, number, rank))
	err := os.Remove(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		p.logger().Debug("no previous checkpoint file", "path", path)
	default:
		p.metrics().StaleDeleteFailures.Inc()
		p.logger().Warn("failed to remove previous checkpoint file", "path", path, "error", err)
	}
}

func (c *CheckpointContext) abort(ctx context.Context, res *CheckpointResult) error {
	p := c.proc
	var local int64
	if p.Pool != nil && p.Topology.IsWorker(p.Rank()) {
		local = int64(p.Pool.Size())
	}
	pending, err := comm.AllreduceInt64(ctx, p.Comm, local, comm.OpSum)
	if err != nil {
		return fmt.Errorf("abort at checkpoint %d: %w", res.Number, err)
	}

	if p.Rank() == c.cfg.ReportRank {
		path, err := checkpoint.WriteAbortFlag(c.cfg.Dir, checkpoint.AbortFlag{
			RunID:       c.cfg.RunID,
			Problem:     c.cfg.Problem,
			Number:      res.Number,
			WallSeconds: c.now().Sub(c.start).Seconds(),
			Pending:     pending,
		})
		if err != nil {
			return err
		}
		res.FlagPath = path
		p.logger().Info("stopping at scheduled checkpoint", "checkpoint", res.Number, "pending", pending, "flag", path)
	}

	if err := comm.Barrier(ctx, p.Comm); err != nil {
		return fmt.Errorf("abort at checkpoint %d: %w", res.Number, err)
	}
	res.Aborted = true
	if c.cfg.Stopper != nil {
		c.cfg.Stopper.Trigger(fmt.Sprintf("abort at checkpoint %d", res.Number))
	}
	return nil
}
