// Package commtest runs multi-rank scenarios on an in-process world.
package commtest

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/pebbl-go/internal/comm"
)

// DefaultTimeout bounds a whole Run.
const DefaultTimeout = 10 * time.Second

// Run starts n ranks on a local world, calls fn once per rank in its own
// goroutine and fails the test if any rank returns an error.
func Run(t testing.TB, n int, fn func(ctx context.Context, c comm.Comm) error) {
	t.Helper()
	if err := RunErr(n, fn); err != nil {
		t.Fatalf("ranks: %v", err)
	}
}

// RunErr is Run without the test binding; it returns the first rank error.
func RunErr(n int, fn func(ctx context.Context, c comm.Comm) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	world := comm.NewLocalWorld(n)
	defer func() {
		for _, c := range world {
			_ = c.Close()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range world {
		g.Go(func() error {
			return fn(gctx, c)
		})
	}
	return g.Wait()
}
