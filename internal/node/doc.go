// Package node runs one pebbl process: it restarts from the newest
// checkpoint set if there is one, searches a synthetic branch-and-bound
// tree, checkpoints on a timer driven by the leader hub, feeds the shared
// load log and stops when every pool is empty or a scheduled abort fires.
//
// Incumbents are exchanged between processes at checkpoint boundaries.
package node
