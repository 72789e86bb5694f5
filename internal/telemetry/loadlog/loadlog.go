// Package loadlog collects per-rank load samples and appends them to one
// log file shared by every rank.
//
// Three write paths exist. In ring mode (the default) a token circulates
// 0 -> 1 -> ... -> size-1 -> 0 and a rank appends only while it holds the
// token, so rank 0 appends last. In direct mode every rank appends in rank
// order between barriers. In collector mode rank 0 measures each rank's
// clock offset with ping/pong rounds, then receives and corrects every
// rank's samples and writes them itself.
package loadlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/pebbl-go/internal/comm"
	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/internal/telemetry/logger"
	"github.com/yndnr/pebbl-go/internal/telemetry/metric"
)

// Mode selects how buffered samples reach the shared file.
type Mode string

const (
	ModeRing      Mode = "ring"
	ModeDirect    Mode = "direct"
	ModeCollector Mode = "collector"
)

// ParseMode validates s. The empty string is ModeRing.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeRing:
		return ModeRing, nil
	case ModeDirect, ModeCollector:
		return Mode(s), nil
	}
	return "", fmt.Errorf("loadlog: unknown mode %q", s)
}

const (
	tagToken = 200 + iota
	tagPing
	tagPong
	tagEntries
)

// DefaultPings is the number of round trips used per clock offset.
const DefaultPings = 5

// Config configures a Ring.
type Config struct {
	Path string
	Mode Mode

	// Interval is the minimum time between two samples taken by Tick.
	// Zero samples on every Tick.
	Interval time.Duration

	// Pings is the number of ping/pong rounds per rank in collector mode.
	Pings int

	// Now is the clock samples are stamped with.
	Now func() time.Time

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Entry is one load sample.
type Entry struct {
	Time time.Time
	Rank int
	Load domain.Load
}

// Ring buffers samples for one rank and writes them out on Flush.
type Ring struct {
	c       comm.Comm
	cfg     Config
	runID   string
	limiter *rate.Limiter
	log     *slog.Logger
	metrics *metric.Registry

	mu      sync.Mutex
	entries []Entry
	token   *comm.Request
}

// New creates the ring on every rank. It is collective: rank 0 creates the
// log file, writes its header and broadcasts the run id.
func New(ctx context.Context, c comm.Comm, cfg Config) (*Ring, error) {
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	if cfg.Pings <= 0 {
		cfg.Pings = DefaultPings
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	r := &Ring{
		c:       c,
		cfg:     cfg,
		log:     log.With("component", "loadlog", "rank", c.Rank()),
		metrics: metric.Or(cfg.Metrics),
	}
	if cfg.Interval > 0 {
		r.limiter = rate.NewLimiter(rate.Every(cfg.Interval), 1)
	}

	var id []byte
	var createErr error
	if c.Rank() == 0 {
		run := ulid.Make().String()
		createErr = createLog(cfg.Path, header{RunID: run, Ranks: c.Size(), Mode: cfg.Mode, Started: cfg.Now()})
		if createErr == nil {
			id = []byte(run)
		}
	}
	id, err = comm.Bcast(ctx, c, comm.World(c), 0, id)
	if err != nil {
		return nil, fmt.Errorf("loadlog: %w", err)
	}
	if createErr != nil {
		return nil, createErr
	}
	if len(id) == 0 {
		return nil, fmt.Errorf("loadlog: rank 0 could not create %s", cfg.Path)
	}
	r.runID = string(id)
	return r, nil
}

// RunID identifies the run in the log header.
func (r *Ring) RunID() string { return r.runID }

// Record buffers one sample stamped with the current time.
func (r *Ring) Record(l domain.Load) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Time: r.cfg.Now(), Rank: r.c.Rank(), Load: l})
}

// Tick records sample() unless the previous sample is more recent than
// the configured interval. It reports whether a sample was taken.
func (r *Ring) Tick(sample func() domain.Load) bool {
	if r.limiter != nil && !r.limiter.AllowN(r.cfg.Now(), 1) {
		return false
	}
	r.Record(sample())
	return true
}

// Pending returns the number of buffered samples.
func (r *Ring) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Ring) take() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries
	r.entries = nil
	return e
}

// Flush writes every rank's buffered samples to the log. It is collective.
func (r *Ring) Flush(ctx context.Context) error {
	var err error
	switch r.cfg.Mode {
	case ModeDirect:
		err = r.flushDirect(ctx)
	case ModeCollector:
		err = r.flushCollector(ctx)
	default:
		err = r.flushRing(ctx)
	}
	if err != nil {
		logger.For(ctx, r.log).Error("load log flush failed", "mode", r.cfg.Mode, "error", err)
	}
	return err
}

// Close waits for an outstanding token send.
func (r *Ring) Close(ctx context.Context) error {
	if r.token == nil {
		return nil
	}
	err := r.token.Wait(ctx)
	r.token = nil
	return err
}

func (r *Ring) appendEntries(entries []Entry) error {
	f, err := os.OpenFile(r.cfg.Path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("loadlog: open %s: %w", r.cfg.Path, err)
	}
	if err := writeEntries(f, entries); err != nil {
		_ = f.Close()
		return fmt.Errorf("loadlog: append %s: %w", r.cfg.Path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("loadlog: close %s: %w", r.cfg.Path, err)
	}
	r.metrics.LoadLogRecords.Add(float64(len(entries)))
	return nil
}
