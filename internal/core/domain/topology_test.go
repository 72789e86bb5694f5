package domain

import (
	"reflect"
	"testing"
)

func TestTopology_Clusters(t *testing.T) {
	topo, err := NewTopology(7, 3, true)
	if err != nil {
		t.Fatalf("NewTopology: %v", err)
	}

	if got := topo.Hubs(); !reflect.DeepEqual(got, []int{0, 3, 6}) {
		t.Fatalf("Hubs = %v", got)
	}
	if got := topo.ClusterMembers(3); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Fatalf("ClusterMembers(3) = %v", got)
	}
	if got := topo.ClusterMembers(6); !reflect.DeepEqual(got, []int{6}) {
		t.Fatalf("ClusterMembers(6) = %v", got)
	}
	if topo.HubOf(5) != 3 {
		t.Fatalf("HubOf(5) = %d, want 3", topo.HubOf(5))
	}

	// Hubs of multi-member clusters do not work; a singleton hub does.
	if got := topo.Workers(); !reflect.DeepEqual(got, []int{1, 2, 4, 5, 6}) {
		t.Fatalf("Workers = %v", got)
	}
	if topo.NumClusters() != 3 {
		t.Fatalf("NumClusters = %d, want 3", topo.NumClusters())
	}
}

func TestTopology_HubsWork(t *testing.T) {
	topo, err := NewTopology(4, 2, false)
	if err != nil {
		t.Fatalf("NewTopology: %v", err)
	}
	if got := topo.Workers(); len(got) != 4 {
		t.Fatalf("Workers = %v, want all ranks", got)
	}
}

func TestTopology_ClampsClusterSize(t *testing.T) {
	topo, err := NewTopology(2, 8, false)
	if err != nil {
		t.Fatalf("NewTopology: %v", err)
	}
	if topo.ClusterSize != 2 || topo.NumClusters() != 1 {
		t.Fatalf("topology = %+v", topo)
	}
	if _, err := NewTopology(0, 1, false); err == nil {
		t.Fatal("NewTopology(0) = nil error")
	}
}

func TestHashOwner_InRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		data := []byte{byte(i), byte(i * 7)}
		owner := HashOwner(data, 6)
		if owner < 0 || owner >= 6 {
			t.Fatalf("HashOwner = %d, out of range", owner)
		}
		if owner != HashOwner(data, 6) {
			t.Fatal("HashOwner not stable")
		}
	}
	if HashOwner([]byte("x"), 1) != 0 {
		t.Fatal("HashOwner with one process must be 0")
	}
}

func TestHashOwner_IgnoresAlignment(t *testing.T) {
	buf := []byte("0123456789abcdefghijklmnopq")
	for off := 0; off < 4; off++ {
		for n := 1; n < 13; n++ {
			data := buf[off : off+n]
			want := HashOwner(append([]byte(nil), data...), 7)
			if got := HashOwner(data, 7); got != want {
				t.Fatalf("offset %d length %d: HashOwner = %d, copy gives %d", off, n, got, want)
			}
		}
	}
	if HashOwner(nil, 3) != HashOwner([]byte{}, 3) {
		t.Fatal("nil and empty keys hash differently")
	}
}
