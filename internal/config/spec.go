package config

import "time"

// Config is the root configuration.
type Config struct {
	Problem    ProblemSection    `koanf:"problem"`
	Checkpoint CheckpointSection `koanf:"checkpoint"`
	Topology   TopologySection   `koanf:"topology"`
	Comm       CommSection       `koanf:"comm"`
	LoadLog    LoadLogSection    `koanf:"loadlog"`
	Workload   WorkloadSection   `koanf:"workload"`
	Log        LogSection        `koanf:"log"`
}

// ProblemSection names the problem instance.
type ProblemSection struct {
	// Name prefixes every checkpoint file.
	Name      string `koanf:"name"`
	Sense     string `koanf:"sense"`
	Enumerate bool   `koanf:"enumerate"`
	// RepositorySize bounds the solution repository; 0 is unbounded.
	RepositorySize int `koanf:"repository_size"`
}

// CheckpointSection configures checkpoint writing and restart.
type CheckpointSection struct {
	Dir string `koanf:"dir"`

	// AbortAt stops the run cleanly after checkpoint AbortAt is written.
	// Zero disables it.
	AbortAt int `koanf:"abort_at"`

	// ReportRank writes the abort flag file.
	ReportRank int `koanf:"report_rank"`

	// InitialBuffer is the reconfigure receive buffer in bytes.
	InitialBuffer int `koanf:"initial_buffer"`

	// MaxProcesses is the scan ceiling for reconfigure; 0 is no ceiling.
	MaxProcesses int `koanf:"max_processes"`

	// Interval is the time between checkpoints started by the leader.
	Interval time.Duration `koanf:"interval"`
}

// TopologySection configures the hub/worker layout.
type TopologySection struct {
	ClusterSize  int  `koanf:"cluster_size"`
	HubsDontWork bool `koanf:"hubs_dont_work"`
}

// CommSection configures the network transport. Peers lists one base URL
// per rank, in rank order.
type CommSection struct {
	Rank       int           `koanf:"rank"`
	Peers      []string      `koanf:"peers"`
	ListenAddr string        `koanf:"listen_addr"`
	Timeout    time.Duration `koanf:"timeout"`
}

// LoadLogSection configures the shared load log. An empty path disables it.
type LoadLogSection struct {
	Path     string        `koanf:"path"`
	Mode     string        `koanf:"mode"`
	Interval time.Duration `koanf:"interval"`
	Pings    int           `koanf:"pings"`
}

// WorkloadSection sizes the synthetic search run by pebbl-node.
type WorkloadSection struct {
	Roots     int   `koanf:"roots"`
	Depth     int   `koanf:"depth"`
	Branching int   `koanf:"branching"`
	Budget    int   `koanf:"budget"`
	Seed      int64 `koanf:"seed"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
