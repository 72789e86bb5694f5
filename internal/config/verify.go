package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yndnr/pebbl-go/internal/core/domain"
	"github.com/yndnr/pebbl-go/internal/telemetry/loadlog"
)

// Verify validates the configuration and returns every problem found.
func Verify(cfg *Config) error {
	return errors.Join(
		verifyProblem(&cfg.Problem),
		verifyCheckpoint(&cfg.Checkpoint),
		verifyTopology(&cfg.Topology),
		verifyComm(&cfg.Comm),
		verifyLoadLog(&cfg.LoadLog),
		verifyWorkload(&cfg.Workload),
		verifyLog(&cfg.Log),
	)
}

func verifyProblem(cfg *ProblemSection) error {
	if cfg.Name == "" {
		return errors.New("problem.name is required")
	}
	if strings.ContainsAny(cfg.Name, `/\`) {
		return fmt.Errorf("problem.name %q must not contain a path separator", cfg.Name)
	}
	if _, err := domain.ParseSense(cfg.Sense); err != nil {
		return fmt.Errorf("problem.sense: %w", err)
	}
	if cfg.RepositorySize < 0 {
		return errors.New("problem.repository_size must not be negative")
	}
	return nil
}

func verifyCheckpoint(cfg *CheckpointSection) error {
	if cfg.Dir == "" {
		return errors.New("checkpoint.dir is required")
	}
	if cfg.AbortAt < 0 {
		return errors.New("checkpoint.abort_at must not be negative")
	}
	if cfg.ReportRank < 0 {
		return errors.New("checkpoint.report_rank must not be negative")
	}
	if cfg.InitialBuffer < 1 {
		return errors.New("checkpoint.initial_buffer must be at least 1")
	}
	if cfg.MaxProcesses < 0 {
		return errors.New("checkpoint.max_processes must not be negative")
	}
	if cfg.Interval < 0 {
		return errors.New("checkpoint.interval must not be negative")
	}
	return nil
}

func verifyTopology(cfg *TopologySection) error {
	if cfg.ClusterSize < 1 {
		return errors.New("topology.cluster_size must be at least 1")
	}
	return nil
}

func verifyComm(cfg *CommSection) error {
	if len(cfg.Peers) == 0 {
		return nil
	}
	if cfg.Rank < 0 || cfg.Rank >= len(cfg.Peers) {
		return fmt.Errorf("comm.rank %d outside %d peers", cfg.Rank, len(cfg.Peers))
	}
	if cfg.Timeout < 0 {
		return errors.New("comm.timeout must not be negative")
	}
	return nil
}

func verifyLoadLog(cfg *LoadLogSection) error {
	if _, err := loadlog.ParseMode(cfg.Mode); err != nil {
		return fmt.Errorf("loadlog.mode: %w", err)
	}
	if cfg.Pings < 0 {
		return errors.New("loadlog.pings must not be negative")
	}
	return nil
}

func verifyWorkload(cfg *WorkloadSection) error {
	if cfg.Roots < 0 || cfg.Depth < 0 {
		return errors.New("workload.roots and workload.depth must not be negative")
	}
	if cfg.Branching < 1 || cfg.Budget < 1 {
		return errors.New("workload.branching and workload.budget must be at least 1")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not json or text", cfg.Format)
	}
	return nil
}

// Sense returns the parsed problem sense.
func (c *Config) Sense() domain.Sense {
	s, _ := domain.ParseSense(c.Problem.Sense)
	return s
}

// Size is the number of processes implied by the peer list, or 1.
func (c *Config) Size() int {
	return max(1, len(c.Comm.Peers))
}
