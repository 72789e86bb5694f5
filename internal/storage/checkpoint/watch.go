package checkpoint

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Generation is a checkpoint number whose files are all in place.
type Generation struct {
	Number int
	Ranks  []int
}

// Watcher reports completed checkpoint generations in a directory.
//
// With an expected process count a generation completes when that many
// files are present. Without one, a generation completes when a file of an
// older generation is removed, since writers delete their previous file
// only after every process has finished the new one. The first generation
// of a run is only reported with an expected count.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	problem  string
	expected int
	logger   *slog.Logger

	mu        sync.Mutex
	ranks     map[int]map[int]struct{}
	removed   map[int]bool
	reported  map[int]bool
	callbacks []func(Generation)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithExpected sets the number of files that make a generation complete.
func WithExpected(n int) WatcherOption {
	return func(w *Watcher) {
		w.expected = n
	}
}

// NewWatcher creates a watcher for problem's checkpoints in dir. Files
// already present are taken into account.
func NewWatcher(dir, problem string, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher:  fw,
		dir:      dir,
		problem:  problem,
		logger:   slog.Default(),
		ranks:    make(map[int]map[int]struct{}),
		removed:  make(map[int]bool),
		reported: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := fw.Add(dir); err != nil {
		fw.Close()
		w.logger.Error("failed to watch checkpoint directory", "path", dir, "error", err)
		return nil, err
	}
	gens, err := Generations(dir, problem)
	if err != nil {
		fw.Close()
		return nil, err
	}
	for number, ranks := range gens {
		for _, r := range ranks {
			w.add(number, r)
		}
	}
	return w, nil
}

// OnComplete registers a callback for completed generations.
func (w *Watcher) OnComplete(callback func(Generation)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Run processes events until ctx is done or the watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	w.logger.Info("checkpoint watcher started", "dir", w.dir, "problem", w.problem)

	w.mu.Lock()
	var ready []Generation
	for number := range w.ranks {
		if g, ok := w.completeLocked(number); ok {
			ready = append(ready, g)
		}
	}
	w.mu.Unlock()
	sort.Slice(ready, func(i, j int) bool { return ready[i].Number < ready[j].Number })
	for _, g := range ready {
		w.notify(g)
	}

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("checkpoint watcher error", "error", err)
			return err
		case <-ctx.Done():
			w.logger.Debug("checkpoint watcher stopped")
			return nil
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	number, rank, ok, err := MatchFileName(w.problem, filepath.Base(event.Name))
	if err != nil {
		w.logger.Warn("ignoring malformed checkpoint file", "file", event.Name, "error", err)
		return
	}
	if !ok {
		return
	}

	var g Generation
	var done bool
	w.mu.Lock()
	switch {
	case event.Has(fsnotify.Create):
		w.add(number, rank)
		g, done = w.completeLocked(number)
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if set := w.ranks[number]; set != nil {
			delete(set, rank)
		}
		w.removed[number] = true
		if w.expected <= 0 {
			g, done = w.completeLocked(number + 1)
		}
	}
	w.mu.Unlock()

	if done {
		w.notify(g)
	}
}

func (w *Watcher) add(number, rank int) {
	set := w.ranks[number]
	if set == nil {
		set = make(map[int]struct{})
		w.ranks[number] = set
	}
	set[rank] = struct{}{}
}

// completeLocked reports whether number just became complete.
func (w *Watcher) completeLocked(number int) (Generation, bool) {
	set := w.ranks[number]
	if len(set) == 0 || w.reported[number] {
		return Generation{}, false
	}
	if w.expected > 0 && len(set) < w.expected {
		return Generation{}, false
	}
	if w.expected <= 0 && !w.removed[number-1] {
		return Generation{}, false
	}
	w.reported[number] = true
	g := Generation{Number: number}
	for r := range set {
		g.Ranks = append(g.Ranks, r)
	}
	sort.Ints(g.Ranks)
	return g, true
}

func (w *Watcher) notify(g Generation) {
	w.logger.Info("checkpoint generation complete", "checkpoint", g.Number, "files", len(g.Ranks))
	w.mu.Lock()
	callbacks := slices.Clone(w.callbacks)
	w.mu.Unlock()
	for _, cb := range callbacks {
		cb(g)
	}
}
