package config

import (
	"time"

	"github.com/yndnr/pebbl-go/internal/telemetry/loadlog"
)

// Default configuration values.
const (
	DefaultProblemName   = "pebbl"
	DefaultSense         = "minimize"
	DefaultCheckpointDir = "."
	DefaultInitialBuffer = 4096
	DefaultInterval      = time.Minute
	DefaultClusterSize   = 64
	DefaultCommTimeout   = 30 * time.Second
	DefaultLoadLogMode   = string(loadlog.ModeRing)
	DefaultLoadInterval  = time.Second

	DefaultRoots     = 4
	DefaultDepth     = 12
	DefaultBranching = 2
	DefaultBudget    = 64

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Problem: ProblemSection{
			Name:  DefaultProblemName,
			Sense: DefaultSense,
		},
		Checkpoint: CheckpointSection{
			Dir:           DefaultCheckpointDir,
			InitialBuffer: DefaultInitialBuffer,
			Interval:      DefaultInterval,
		},
		Topology: TopologySection{
			ClusterSize: DefaultClusterSize,
		},
		Comm: CommSection{
			Timeout: DefaultCommTimeout,
		},
		LoadLog: LoadLogSection{
			Mode:     DefaultLoadLogMode,
			Interval: DefaultLoadInterval,
			Pings:    loadlog.DefaultPings,
		},
		Workload: WorkloadSection{
			Roots:     DefaultRoots,
			Depth:     DefaultDepth,
			Branching: DefaultBranching,
			Budget:    DefaultBudget,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
