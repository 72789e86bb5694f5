// Package main provides the entry point for pebbl-node.
//
// pebbl-node runs one process of a parallel search. Every process of a run
// is started with the same configuration file and its own rank:
//
//	pebbl-node --config run.yaml --rank 0
//	PEBBL_COMM_RANK=1 pebbl-node --config run.yaml
//
// Processes talk to each other over comm.peers and serve the message
// endpoint and /metrics on comm.listen_addr. A run restarts from the newest
// complete checkpoint set in checkpoint.dir; with checkpoint.abort_at set it
// stops cleanly after that checkpoint and leaves an abort flag file.
package main
