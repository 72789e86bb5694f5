package service

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/yndnr/pebbl-go/internal/comm"
	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/internal/storage/checkpoint"
	"github.com/yndnr/pebbl-go/internal/telemetry/logger"
	"github.com/yndnr/pebbl-go/pkg/packbuf"
)

const reconfigureRoot = 0

// ReconfigureRestart restores a checkpoint written by any number of
// processes. Rank 0 reads every file and hands subproblems and solutions
// to their new owners; the other ranks only receive.
func (r *RestartContext) ReconfigureRestart(ctx context.Context) (RestartResult, error) {
	if r.proc.Rank() == reconfigureRoot {
		return r.reconfigureRoot(ctx)
	}
	return r.reconfigureLeaf(ctx)
}

// workerCycle hands out worker ranks round-robin, reshuffling the order
// each time the list is exhausted.
type workerCycle struct {
	ranks []int
	next  int
	rng   *rand.Rand
}

func newWorkerCycle(ranks []int, rng *rand.Rand) *workerCycle {
	return &workerCycle{ranks: append([]int(nil), ranks...), rng: rng}
}

func (w *workerCycle) Next() int {
	if w.next == len(w.ranks) {
		w.rng.Shuffle(len(w.ranks), func(i, j int) {
			w.ranks[i], w.ranks[j] = w.ranks[j], w.ranks[i]
		})
		w.next = 0
	}
	r := w.ranks[w.next]
	w.next++
	return r
}

// bufferBook tracks the last receive-buffer size announced to each rank.
type bufferBook struct {
	sizes []int
}

func newBufferBook(n, initial int) *bufferBook {
	b := &bufferBook{sizes: make([]int, n)}
	for i := range b.sizes {
		b.sizes[i] = initial
	}
	return b
}

// need returns the size to announce to dst before sending a record of n
// bytes, or 0 if its buffer is already large enough.
func (b *bufferBook) need(dst, n int) int {
	if n <= b.sizes[dst] {
		return 0
	}
	b.sizes[dst] = n
	return n
}

func packIncumbent(value float64, owner int) []byte {
	b := packbuf.New(12)
	b.PutFloat64(value)
	b.PutInt32(int32(owner))
	return b.Bytes()
}

func unpackIncumbent(data []byte) (float64, int, error) {
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

func (r *RestartContext) reconfigureRoot(ctx context.Context) (RestartResult, error) {
	p := r.proc
	world := comm.World(p.Comm)
	res := RestartResult{Strategy: strategyReconfigure}
	log := p.logger()

	scan, scanErr := checkpoint.Scan(r.cfg.Dir, r.cfg.Problem, checkpoint.AllProcesses, r.cfg.MaxProcesses)
	if scanErr != nil {
		log.Error("checkpoint scan failed", "error", scanErr)
		// Leaves are told there is nothing to read before the error is
		// returned so they do not block.
		scan = checkpoint.ScanResult{}
	}
	if _, err := comm.BcastInt64(ctx, p.Comm, reconfigureRoot, int64(scan.Number)); err != nil {
		return res, fmt.Errorf("reconfigure restart: %w", err)
	}
	if _, err := comm.BcastInt64(ctx, p.Comm, reconfigureRoot, int64(scan.Count)); err != nil {
		return res, fmt.Errorf("reconfigure restart: %w", err)
	}
	if scanErr != nil {
		return res, scanErr
	}
	if scan.Count == 0 {
		log.Info("nothing to restart", "dir", r.cfg.Dir, "problem", r.cfg.Problem)
		return res, nil
	}
	res.Number = scan.Number
	res.Files = scan.Count
	ctx = logger.WithCheckpoint(ctx, res.Number)
	log = logger.For(ctx, log)

	workers := p.Topology.Workers()
	cycle := newWorkerCycle(workers, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	book := newBufferBook(p.Comm.Size(), r.cfg.InitialBuffer)
	maxCounter := int64(math.MinInt64)

	for i, file := range scan.Files {
		if err := r.distributeFile(ctx, file, i == 0, cycle, book, &maxCounter, &res); err != nil {
			log.Error("reconfigure restart failed", "file", file.Path, "error", err)
			return res, err
		}
		for _, dst := range world {
			if dst == reconfigureRoot {
				continue
			}
			if err := p.Comm.Send(ctx, dst, tagFileDone, nil); err != nil {
				return res, fmt.Errorf("reconfigure restart: done to %d: %w", dst, err)
			}
		}
	}

	p.State.Counter = maxCounter
	if _, err := comm.BcastInt64(ctx, p.Comm, reconfigureRoot, maxCounter); err != nil {
		return res, fmt.Errorf("reconfigure restart: %w", err)
	}
	if err := comm.Barrier(ctx, p.Comm); err != nil {
		return res, fmt.Errorf("reconfigure restart barrier: %w", err)
	}
	res.Restored = true
	r.record(res, log)
	return res, nil
}

func (r *RestartContext) distributeFile(
	ctx context.Context,
	file checkpoint.Entry,
	first bool,
	cycle *workerCycle,
	book *bufferBook,
	maxCounter *int64,
	res *RestartResult,
) error {
	p := r.proc
	world := comm.World(p.Comm)

	f, err := checkpoint.Open(file.Path, file.Rank)
	if err != nil {
		return err
	}
	defer f.Close()

	h, err := f.Header()
	if err != nil {
		return err
	}
	*maxCounter = max(*maxCounter, h.Counter)
	if first {
		owner := -1
		if h.Owner >= 0 {
			owner = reconfigureRoot
		}
		p.State.Incumbent = domain.Incumbent{Value: h.Incumbent, Owner: owner}
		if _, err := comm.Bcast(ctx, p.Comm, world, reconfigureRoot, packIncumbent(h.Incumbent, owner)); err != nil {
			return fmt.Errorf("broadcast incumbent: %w", err)
		}
	}
	if h.Owner == file.Rank {
		p.State.Incumbent.Payload = h.Payload
	}

	blob, err := f.Blob()
	if err != nil {
		return err
	}
	if _, err := comm.Bcast(ctx, p.Comm, world, reconfigureRoot, blob); err != nil {
		return fmt.Errorf("broadcast application blob: %w", err)
	}
	if err := p.App.MergeGlobal(blob); err != nil {
		return domain.ErrCheckpointIO.WithDetailsf("merge blob of %s", file.Path).WithCause(err)
	}

	n, err := f.Section()
	if err != nil {
		return err
	}
	if n > 0 && len(cycle.ranks) == 0 {
		return domain.ErrNotWorker.WithDetailsf("%d subproblems in %s and no workers", n, file.Path)
	}
	for i := 0; i < n; i++ {
		data, err := f.Record()
		if err != nil {
			return err
		}
		dst := cycle.Next()
		if dst == reconfigureRoot {
			if err := r.restore(data, res); err != nil {
				return err
			}
			continue
		}
		if err := r.forward(ctx, dst, tagSubproblem, data, book, res); err != nil {
			return err
		}
	}

	n, err = f.Section()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		data, err := f.Record()
		if err != nil {
			return err
		}
		if !p.Enumerating() {
			continue
		}
		sol, err := p.Solutions.DecodeSolution(data)
		if err != nil {
			return domain.ErrCheckpointIO.WithDetails("decode solution").WithCause(err)
		}
		owner := sol.Owner(p.Comm.Size())
		if owner < 0 || owner >= p.Comm.Size() {
			return domain.ErrInvalidRank.WithDetailsf("solution owner %d of %d processes", owner, p.Comm.Size())
		}
		if owner == reconfigureRoot {
			sol.SetSerial(p.State.NextSerial())
			if p.Repository.Add(sol) {
				res.Solutions++
			}
			continue
		}
		if err := r.forward(ctx, owner, tagSolution, data, book, res); err != nil {
			return err
		}
	}
	return nil
}

// forward sends one record to dst, first announcing a larger buffer when
// the record does not fit the size dst is known to have.
func (r *RestartContext) forward(ctx context.Context, dst, tag int, data []byte, book *bufferBook, res *RestartResult) error {
	p := r.proc
	if size := book.need(dst, len(data)); size > 0 {
		b := packbuf.New(8)
		b.PutInt64(int64(size))
		if err := p.Comm.Send(ctx, dst, tagResize, b.Bytes()); err != nil {
			return fmt.Errorf("resize %d: %w", dst, err)
		}
		p.metrics().ResizeMessages.Inc()
		res.Resizes++
	}
	if err := p.Comm.Send(ctx, dst, tag, data); err != nil {
		return fmt.Errorf("forward to %d: %w", dst, err)
	}
	return nil
}

func (r *RestartContext) reconfigureLeaf(ctx context.Context) (RestartResult, error) {
	p := r.proc
	rank := p.Rank()
	world := comm.World(p.Comm)
	res := RestartResult{Strategy: strategyReconfigure}
	log := p.logger()

	number, err := comm.BcastInt64(ctx, p.Comm, reconfigureRoot, 0)
	if err != nil {
		return res, fmt.Errorf("reconfigure restart: %w", err)
	}
	files, err := comm.BcastInt64(ctx, p.Comm, reconfigureRoot, 0)
	if err != nil {
		return res, fmt.Errorf("reconfigure restart: %w", err)
	}
	res.Broadcasts += 2
	if files == 0 {
		return res, nil
	}
	res.Number = int(number)
	res.Files = int(files)
	ctx = logger.WithCheckpoint(ctx, res.Number)
	log = logger.For(ctx, log)

	buf := packbuf.New(r.cfg.InitialBuffer)

	for i := 0; i < res.Files; i++ {
		if i == 0 {
			data, err := comm.Bcast(ctx, p.Comm, world, reconfigureRoot, nil)
			if err != nil {
				return res, fmt.Errorf("receive incumbent: %w", err)
			}
			value, owner, err := unpackIncumbent(data)
			if err != nil {
				return res, domain.ErrUnexpectedMessage.WithDetails("incumbent broadcast").WithCause(err)
			}
			p.State.Incumbent = domain.Incumbent{Value: value, Owner: owner}
			res.Broadcasts++
		}

		blob, err := comm.Bcast(ctx, p.Comm, world, reconfigureRoot, nil)
		if err != nil {
			return res, fmt.Errorf("receive application blob: %w", err)
		}
		res.Broadcasts++
		if err := p.App.MergeGlobal(blob); err != nil {
			return res, domain.ErrCheckpointIO.WithDetailsf("merge blob of file %d", i).WithCause(err)
		}

		if err := r.receiveFile(ctx, i, buf, &res); err != nil {
			log.Error("reconfigure restart failed", "file", i, "error", err)
			return res, err
		}
	}

	counter, err := comm.BcastInt64(ctx, p.Comm, reconfigureRoot, 0)
	if err != nil {
		return res, fmt.Errorf("reconfigure restart: %w", err)
	}
	res.Broadcasts++
	p.State.Counter = counter

	if err := comm.Barrier(ctx, p.Comm); err != nil {
		return res, fmt.Errorf("reconfigure restart barrier: %w", err)
	}
	res.Restored = true
	log.Debug("reconfigure leaf done", "rank", rank, "buffer", buf.Cap())
	r.record(res, log)
	return res, nil
}

// receiveFile applies the root's messages for one original file until its
// done marker arrives.
func (r *RestartContext) receiveFile(ctx context.Context, file int, buf *packbuf.Buffer, res *RestartResult) error {
	p := r.proc
	rank := p.Rank()
	for {
		m, err := p.Comm.Recv(ctx, reconfigureRoot, comm.AnyTag)
		if err != nil {
			return fmt.Errorf("file %d: %w", file, err)
		}
		switch m.Tag {
		case tagFileDone:
			return nil

		case tagResize:
			size, err := packbuf.FromBytes(m.Data).ReadInt64()
			if err != nil {
				return domain.ErrUnexpectedMessage.WithDetails("resize message").WithCause(err)
			}
			if err := buf.Resize(int(size)); err != nil {
				return domain.ErrBufferShrink.WithDetailsf("rank %d: buffer %d, asked %d", rank, buf.Cap(), size).WithCause(err)
			}
			res.Resizes++

		case tagSubproblem:
			if !p.Topology.IsWorker(rank) {
				return domain.ErrNotWorker.WithDetailsf("rank %d received a subproblem from file %d", rank, file)
			}
			if err := r.load(buf, m.Data); err != nil {
				return err
			}
			if err := r.restore(buf.Bytes(), res); err != nil {
				return err
			}

		case tagSolution:
			if err := r.load(buf, m.Data); err != nil {
				return err
			}
			if !p.Enumerating() {
				continue
			}
			sol, err := p.Solutions.DecodeSolution(buf.Bytes())
			if err != nil {
				return domain.ErrCheckpointIO.WithDetails("decode solution").WithCause(err)
			}
			sol.SetSerial(p.State.NextSerial())
			if p.Repository.Add(sol) {
				res.Solutions++
			}

		default:
			return domain.ErrUnexpectedMessage.WithDetailsf("rank %d: tag %d from %d during file %d", rank, m.Tag, m.Source, file)
		}
	}
}

func (r *RestartContext) load(buf *packbuf.Buffer, data []byte) error {
	if err := buf.Load(data); err != nil {
		return domain.ErrRecordTooLarge.WithDetailsf("rank %d: record %d bytes, buffer %d", r.proc.Rank(), len(data), buf.Cap()).WithCause(err)
	}
	return nil
}
