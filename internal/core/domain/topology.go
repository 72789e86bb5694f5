package domain

import "fmt"

// Topology is the two-tier hub/worker layout of a run.
//
// Ranks are grouped into contiguous clusters of ClusterSize. The first rank
// of each cluster is its hub. A hub also works its own pool unless
// HubsDontWork is set and the cluster has other members.
type Topology struct {
	Size         int
	ClusterSize  int
	HubsDontWork bool
}

// NewTopology validates and returns a topology.
func NewTopology(size, clusterSize int, hubsDontWork bool) (Topology, error) {
	if size < 1 {
		return Topology{}, ErrInvalidRank.WithDetailsf("size %d", size)
	}
	if clusterSize < 1 {
		return Topology{}, fmt.Errorf("topology: cluster size %d", clusterSize)
	}
	if clusterSize > size {
		clusterSize = size
	}
	return Topology{Size: size, ClusterSize: clusterSize, HubsDontWork: hubsDontWork}, nil
}

// HubOf returns the hub of rank's cluster.
func (t Topology) HubOf(rank int) int {
	return (rank / t.ClusterSize) * t.ClusterSize
}

// IsHub reports whether rank is a hub.
func (t Topology) IsHub(rank int) bool {
	return rank%t.ClusterSize == 0
}

// ClusterMembers returns every rank in hub's cluster, hub first.
func (t Topology) ClusterMembers(hub int) []int {
	end := min(hub+t.ClusterSize, t.Size)
	members := make([]int, 0, end-hub)
	for r := hub; r < end; r++ {
		members = append(members, r)
	}
	return members
}

// IsWorker reports whether rank holds a worker pool.
func (t Topology) IsWorker(rank int) bool {
	if !t.IsHub(rank) || !t.HubsDontWork {
		return true
	}
	return len(t.ClusterMembers(rank)) == 1
}

// Hubs returns every hub rank in ascending order.
func (t Topology) Hubs() []int {
	hubs := make([]int, 0, t.NumClusters())
	for r := 0; r < t.Size; r += t.ClusterSize {
		hubs = append(hubs, r)
	}
	return hubs
}

// Workers returns every worker rank in ascending order.
func (t Topology) Workers() []int {
	workers := make([]int, 0, t.Size)
	for r := 0; r < t.Size; r++ {
		if t.IsWorker(r) {
			workers = append(workers, r)
		}
	}
	return workers
}

// NumClusters returns the number of clusters.
func (t Topology) NumClusters() int {
	return (t.Size + t.ClusterSize - 1) / t.ClusterSize
}

// LeaderHub returns the hub that roots global reductions and checkpoint
// signals.
func (t Topology) LeaderHub() int { return 0 }
