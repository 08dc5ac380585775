package hashdial

import "github.com/cespare/xxhash/v2"

// Hash64 places a byte string on the 64-bit keyspace. Implementations must be
// deterministic across calls, processes and machines (no per-process seeding)
// and should distribute inputs uniformly; every participant that shares a ring
// must use the same Hash64.
type Hash64 func(b []byte) uint64

// DefaultHash is the hash used by rings constructed with a nil Hash64.
func DefaultHash(b []byte) uint64 {
	return xxhash.Sum64(b)
}
