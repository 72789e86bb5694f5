package domain

import "github.com/spaolacci/murmur3"

// HashOwner spreads solutions over numProcs processes by hashing their
// serialized form. Applications without a natural owner can return it from
// Solution.Owner.
func HashOwner(data []byte, numProcs int) int {
	if numProcs <= 1 {
		return 0
	}
	// The streaming hasher reads blocks through slice indexing; Sum32
	// walks raw pointers and trips the race detector's pointer checks.
	h := murmur3.New32()
	_, _ = h.Write(data)
	return int(h.Sum32() % uint32(numProcs))
}
