package service

import (
	"context"
	"fmt"

	"github.com/yndnr/pebbl-go/internal/comm"
	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/internal/storage/checkpoint"
	"github.com/yndnr/pebbl-go/internal/telemetry/logger"
)

// ParallelRestart restores a checkpoint written by the same number of
// processes. Every rank reads its own file.
func (r *RestartContext) ParallelRestart(ctx context.Context) (RestartResult, error) {
	p := r.proc
	rank := p.Rank()
	res := RestartResult{Strategy: strategyParallel}
	log := p.logger()

	scan, err := checkpoint.Scan(r.cfg.Dir, r.cfg.Problem, rank, p.Comm.Size())
	if err != nil {
		log.Error("checkpoint scan failed", "error", err)
		return res, err
	}

	minCount, maxCount, err := minMax(ctx, p.Comm, int64(scan.Count))
	if err != nil {
		return res, err
	}
	if minCount != maxCount {
		log.Error("checkpoint file count differs across processes", "min", minCount, "max", maxCount, "local", scan.Count)
		return res, domain.ErrFileCountMismatch.WithDetailsf("rank %d found %d, range across processes [%d, %d]",
			rank, scan.Count, minCount, maxCount)
	}
	if maxCount == 0 {
		log.Info("nothing to restart", "dir", r.cfg.Dir, "problem", r.cfg.Problem)
		return res, nil
	}

	minNumber, maxNumber, err := minMax(ctx, p.Comm, int64(scan.Number))
	if err != nil {
		return res, err
	}
	if minNumber != maxNumber {
		log.Error("checkpoint number differs across processes", "min", minNumber, "max", maxNumber, "local", scan.Number)
		return res, domain.ErrCheckpointMismatch.WithDetailsf("rank %d found checkpoint %d, range across processes [%d, %d]",
			rank, scan.Number, minNumber, maxNumber)
	}
	res.Number = scan.Number
	res.Files = p.Comm.Size()
	ctx = logger.WithCheckpoint(ctx, res.Number)
	log = logger.For(ctx, log)

	maxSerial, err := r.readOwn(scan.Files[0].Path, &res)
	if err != nil {
		log.Error("checkpoint read failed", "path", scan.Files[0].Path, "error", err)
		return res, err
	}

	globalMax, err := comm.AllreduceInt64(ctx, p.Comm, maxSerial, comm.OpMax)
	if err != nil {
		return res, fmt.Errorf("parallel restart: %w", err)
	}
	p.State.ReserveSerials(globalMax)

	if err := comm.Barrier(ctx, p.Comm); err != nil {
		return res, fmt.Errorf("parallel restart barrier: %w", err)
	}
	res.Restored = true
	r.record(res, log)
	return res, nil
}

// readOwn reads this rank's file into the pools and state. It returns the
// highest solution serial seen, or -1.
func (r *RestartContext) readOwn(path string, res *RestartResult) (int64, error) {
	p := r.proc
	rank := p.Rank()

	f, err := checkpoint.Open(path, rank)
	if err != nil {
		return -1, err
	}
	defer f.Close()

	h, err := f.Header()
	if err != nil {
		return -1, err
	}
	p.State.Incumbent = domain.Incumbent{Value: h.Incumbent, Owner: h.Owner}
	if h.Owner == rank {
		p.State.Incumbent.Payload = h.Payload
	}
	p.State.Counter = h.Counter

	blob, err := f.Blob()
	if err != nil {
		return -1, err
	}
	if err := p.App.UnmarshalGlobal(blob); err != nil {
		return -1, domain.ErrCheckpointIO.WithDetails("application blob").WithCause(err)
	}

	n, err := f.Section()
	if err != nil {
		return -1, err
	}
	if n > 0 && !p.Topology.IsWorker(rank) {
		return -1, domain.ErrNotWorker.WithDetailsf("rank %d: %d subproblems in %s", rank, n, path)
	}
	for i := 0; i < n; i++ {
		data, err := f.Record()
		if err != nil {
			return -1, err
		}
		if err := r.restore(data, res); err != nil {
			return -1, err
		}
	}

	n, err = f.Section()
	if err != nil {
		return -1, err
	}
	maxSerial := int64(-1)
	for i := 0; i < n; i++ {
		data, err := f.Record()
		if err != nil {
			return -1, err
		}
		if !p.Enumerating() {
			continue
		}
		sol, err := p.Solutions.DecodeSolution(data)
		if err != nil {
			return -1, domain.ErrCheckpointIO.WithDetails("decode solution").WithCause(err)
		}
		maxSerial = max(maxSerial, sol.Serial())
		if p.Repository.Add(sol) {
			res.Solutions++
		}
	}
	return maxSerial, nil
}

func minMax(ctx context.Context, c comm.Comm, v int64) (int64, int64, error) {
	lo, err := comm.AllreduceInt64(ctx, c, v, comm.OpMin)
	if err != nil {
		return 0, 0, fmt.Errorf("parallel restart: %w", err)
	}
	hi, err := comm.AllreduceInt64(ctx, c, v, comm.OpMax)
	if err != nil {
		return 0, 0, fmt.Errorf("parallel restart: %w", err)
	}
	return lo, hi, nil
}
