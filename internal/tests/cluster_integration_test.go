package tests

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/yndnr/pebbl-go/internal/config"
	"github.com/yndnr/pebbl-go/internal/infra/shutdown"
	"github.com/yndnr/pebbl-go/internal/node"
	"github.com/yndnr/pebbl-go/internal/server/httpserver"
	"github.com/yndnr/pebbl-go/internal/storage/checkpoint"
	"github.com/yndnr/pebbl-go/internal/telemetry/loadlog"
	"github.com/yndnr/pebbl-go/internal/telemetry/metric"
)

// cluster is n processes, each behind its own HTTP listener.
type cluster struct {
	servers []*httptest.Server
	peers   []string
}

func newCluster(t *testing.T, n int) *cluster {
	t.Helper()
	c := &cluster{}
	for i := 0; i < n; i++ {
		srv := httptest.NewUnstartedServer(nil)
		c.servers = append(c.servers, srv)
		c.peers = append(c.peers, "http://"+srv.Listener.Addr().String())
		t.Cleanup(srv.Close)
	}
	return c
}

func baseConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.Problem.Name = "synthetic"
	cfg.Checkpoint.Dir = dir
	cfg.Checkpoint.Interval = 5 * time.Millisecond
	cfg.Topology.ClusterSize = 2
	cfg.Comm.Timeout = 5 * time.Second
	cfg.Workload.Roots = 2
	cfg.Workload.Depth = 8
	cfg.Workload.Budget = 8
	cfg.Workload.Seed = 7
	return cfg
}

// run starts every process of c with cfg and waits for all of them.
func (c *cluster) run(t *testing.T, cfg *config.Config, stoppers []*shutdown.Handler) []node.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	results := make([]node.Result, len(c.servers))
	nodes := make([]*node.Node, len(c.servers))
	for rank := range c.servers {
		rc := *cfg
		rc.Comm.Rank = rank
		rc.Comm.Peers = c.peers
		require.NoError(t, config.Verify(&rc))

		opts := []node.Option{node.WithLogger(logger), node.WithMetrics(metric.NewRegistry())}
		if stoppers != nil {
			opts = append(opts, node.WithStopper(stoppers[rank]))
		}
		nd, err := node.New(&rc, opts...)
		require.NoError(t, err)
		t.Cleanup(func() { _ = nd.Close() })
		nodes[rank] = nd

		path, h, ok := nd.Handler()
		require.True(t, ok)
		c.servers[rank].Config.Handler = httpserver.NewRouter(&httpserver.RouterConfig{
			Rank:          rank,
			Logger:        logger,
			TransportPath: path,
			Transport:     h,
		})
		if c.servers[rank].URL == "" {
			c.servers[rank].Start()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for rank, nd := range nodes {
		g.Go(func() error {
			res, err := nd.Run(gctx)
			results[rank] = res
			return err
		})
	}
	require.NoError(t, g.Wait())
	return results
}

func TestCluster_RunOverHTTP(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(dir)
	cfg.LoadLog.Path = filepath.Join(dir, "load.log")
	cfg.LoadLog.Mode = string(loadlog.ModeCollector)
	cfg.LoadLog.Interval = time.Millisecond
	cfg.LoadLog.Pings = 2

	results := newCluster(t, 4).run(t, cfg, nil)
	for rank, res := range results {
		require.False(t, res.Aborted, "rank %d", rank)
		require.Equal(t, results[0].Last, res.Last, "rank %d", rank)
		require.Equal(t, results[0].Incumbent, res.Incumbent, "rank %d", rank)
	}

	set, err := checkpoint.Scan(dir, cfg.Problem.Name, checkpoint.AllProcesses, 0)
	require.NoError(t, err)
	require.Equal(t, 4, set.Count)

	log, err := loadlog.ReadLog(cfg.LoadLog.Path)
	require.NoError(t, err)
	require.Equal(t, loadlog.ModeCollector, log.Mode)
	require.NotEmpty(t, log.Entries)
}

func TestCluster_AbortThenGrow(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(dir)
	cfg.Workload.Depth = 11
	cfg.Checkpoint.AbortAt = 1

	stoppers := make([]*shutdown.Handler, 3)
	for i := range stoppers {
		stoppers[i] = shutdown.NewHandler(time.Second)
	}
	first := newCluster(t, 3).run(t, cfg, stoppers)
	for rank, res := range first {
		require.True(t, res.Aborted, "rank %d", rank)
		select {
		case <-stoppers[rank].Done():
			t.Fatalf("rank %d: hooks ran before Wait", rank)
		default:
		}
		require.Equal(t, "abort at checkpoint 1", stoppers[rank].Reason())
	}
	_, err := checkpoint.ReadAbortFlag(filepath.Join(dir, checkpoint.AbortFlagName))
	require.NoError(t, err)

	cfg.Checkpoint.AbortAt = 0
	second := newCluster(t, 5).run(t, cfg, nil)
	for rank, res := range second {
		require.True(t, res.Restart.Restored, "rank %d", rank)
		require.Equal(t, "reconfigure", res.Restart.Strategy, "rank %d", rank)
		require.Equal(t, 3, res.Restart.Files, "rank %d", rank)
		require.False(t, res.Aborted, "rank %d", rank)
		require.Greater(t, res.Last, 1, "rank %d", rank)
	}

	set, err := checkpoint.Scan(dir, cfg.Problem.Name, checkpoint.AllProcesses, 0)
	require.NoError(t, err)
	require.Equal(t, 5, set.Count)
	require.Equal(t, second[0].Last, set.Number)
}

func TestCluster_Healthz(t *testing.T) {
	srv := httptest.NewServer(httpserver.NewRouter(&httpserver.RouterConfig{Rank: 1}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
