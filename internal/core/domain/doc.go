// Package domain defines the core model of the checkpoint/restart subsystem.
//
// It has no IO dependencies. This package contains:
//
//   - Subproblem, Solution, Application: the narrow collaborator interfaces
//     the checkpoint and restart code depends on
//   - PoolAccess: the view of a subproblem pool used by the search engine
//   - Load: the mergeable search-statistics record (LoadObject)
//   - Topology: the hub/worker cluster layout
//   - Incumbent: the best known solution value and its owner
//   - Errors: coded domain errors
package domain
