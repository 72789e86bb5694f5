package service

import (
	"context"
	"fmt"

	"github.com/yndnr/pebbl-go/internal/comm"
	"github.com/yndnr/pebbl-go/internal/core/domain"
)

// RestartSetLoads rebuilds the cluster and global loads from the current
// pool contents after a restart. Message counters start again from zero.
//
// Workers gather their loads at their hub, each hub combines and
// broadcasts its cluster load, the hubs reduce the cluster loads to the
// leader hub and the leader broadcasts the global load to every rank.
func RestartSetLoads(ctx context.Context, p *Process) (cluster, global domain.Load, err error) {
	t := p.Topology
	rank := p.Rank()
	hub := t.HubOf(rank)
	members := t.ClusterMembers(hub)

	p.State.ResetMessageCounters(p.Comm)
	local := domain.EmptyLoad(p.Sense)
	if t.IsWorker(rank) {
		local = p.LocalLoad()
	}

	gathered, err := comm.Gather(ctx, p.Comm, members, hub, local.AppendPacked(nil))
	if err != nil {
		return cluster, global, fmt.Errorf("cluster load gather: %w", err)
	}
	var packed []byte
	if rank == hub {
		sum := domain.EmptyLoad(p.Sense)
		for i, b := range gathered {
			l, _, err := domain.UnpackLoad(b)
			if err != nil {
				return cluster, global, fmt.Errorf("cluster load from %d: %w", members[i], err)
			}
			sum = sum.Combine(l)
		}
		packed = sum.AppendPacked(nil)
	}
	if packed, err = comm.Bcast(ctx, p.Comm, members, hub, packed); err != nil {
		return cluster, global, fmt.Errorf("cluster load broadcast: %w", err)
	}
	if cluster, _, err = domain.UnpackLoad(packed); err != nil {
		return cluster, global, fmt.Errorf("cluster load: %w", err)
	}

	var reduced []byte
	if t.IsHub(rank) {
		reduced, err = comm.Reduce(ctx, p.Comm, t.Hubs(), t.LeaderHub(), packed, domain.CombinePacked)
		if err != nil {
			return cluster, global, fmt.Errorf("global load reduce: %w", err)
		}
	}
	if reduced, err = comm.Bcast(ctx, p.Comm, comm.World(p.Comm), t.LeaderHub(), reduced); err != nil {
		return cluster, global, fmt.Errorf("global load broadcast: %w", err)
	}
	if global, _, err = domain.UnpackLoad(reduced); err != nil {
		return cluster, global, fmt.Errorf("global load: %w", err)
	}

	p.State.mu.Lock()
	p.State.ClusterLoad = cluster
	p.State.GlobalLoad = global
	p.State.mu.Unlock()
	return cluster, global, nil
}
