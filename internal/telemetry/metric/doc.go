// Package metric provides Prometheus metrics for checkpoint, restart and
// load-log activity.
//
// Each Registry owns a private prometheus.Registry so that several
// simulated ranks in one process do not collide. Global returns the
// process-wide instance served by Handler.
package metric
