// Package comm provides message passing between the processes of a run.
//
// A Comm gives each process a rank in 0..Size()-1 and point-to-point Send,
// Isend, Recv and Probe. Receives match on (source, tag) with AnySource and
// AnyTag wildcards; messages from one source are received in the order they
// were sent.
//
// Collectives (Barrier, Bcast, Gather, Reduce, AllreduceInt64) are built on
// point-to-point messages with reserved tags and work over any transport.
// They run over an explicit rank group so cluster-scoped and hub-scoped
// operations need no sub-communicators.
//
// Two transports are provided: NewLocalWorld runs every rank in one process
// over channels; NewNetComm delivers messages with connect-go unary RPCs.
package comm
