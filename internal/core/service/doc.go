// Package service implements the checkpoint, restart and load
// reconstruction protocols run by every process of a search.
//
// A Process bundles the collaborators of one rank: its communicator,
// topology, pools and application callbacks. CheckpointContext and
// RestartContext hold the state of the two protocols so nothing lives in
// package-level variables.
package service
