package hashdial

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// maxExactInt is the largest integer a float64 represents exactly. Range
// widths above it would lose precision during scaling.
const maxExactInt = 1<<53 - 1

// Dial makes deterministic hash-based decisions. The zero value (and New
// without options) uses an empty seed; decisions are then compatible across
// every process using this package, and with py-hashdial. The hashing scheme
// (SHA-256 over seed then key, first 8 bytes as a big-endian uint64) is part
// of the package's contract and will not change.
//
// Seeds separate orthogonal uses of the library. Filtering the output of a
// previous filtering step with the same seed is a no-op: every key kept the
// first time is kept the second time. A private seed also keeps untrusted
// input from being tailored against the hash.
type Dial struct {
	seed []byte
}

// Option configures a Dial.
type Option func(*Dial)

// WithSeed sets the seed hashed before every key.
func WithSeed(seed []byte) Option {
	return func(d *Dial) {
		d.seed = append([]byte(nil), seed...)
	}
}

// New creates a Dial.
func New(opts ...Option) *Dial {
	d := &Dial{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Sum64 hashes key onto the 64-bit keyspace. It satisfies Hash64, so a ring
// can be built on a Dial when seeded or py-hashdial-compatible placement is
// wanted instead of DefaultHash.
func (d *Dial) Sum64(key []byte) uint64 {
	h := sha256.New()
	h.Write(d.seed)
	h.Write(key)
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

// Float64 maps key uniformly onto [0, 1).
func (d *Dial) Float64(key []byte) float64 {
	return float64(d.Sum64(key)) / (1 << 64)
}

// Decide returns true for approximately the given probability of keys over a
// large set of unique keys, and always the same answer for the same key.
// Panics unless 0 <= probability <= 1.
func (d *Dial) Decide(key []byte, probability float64) bool {
	if probability < 0.0 {
		panic(fmt.Sprintf("hashdial: probability (%v) must be >= 0.0", probability))
	}
	if probability > 1.0 {
		panic(fmt.Sprintf("hashdial: probability (%v) must be <= 1.0", probability))
	}
	return d.Float64(key) < probability
}

// IntRange selects an integer in [start, stop) by hashing key. Panics if
// stop <= start or if the width exceeds 2^53-1.
func (d *Dial) IntRange(key []byte, start, stop int64) int64 {
	if stop <= start {
		panic(fmt.Sprintf("hashdial: stop (%d) must be > start (%d)", stop, start))
	}
	width := uint64(stop - start)
	if width > maxExactInt {
		panic(fmt.Sprintf("hashdial: stop-start must be <= %d", int64(maxExactInt)))
	}
	return start + int64(float64(width)*d.Float64(key))
}

// IntN selects an integer in [0, n) by hashing key.
func (d *Dial) IntN(key []byte, n int64) int64 {
	return d.IntRange(key, 0, n)
}

// Pick selects one element of seq by hashing key. A nil Dial uses the empty
// seed. Panics if seq is empty.
func Pick[T any](d *Dial, key []byte, seq []T) T {
	if len(seq) == 0 {
		panic("hashdial: non-empty sequence required")
	}
	if d == nil {
		d = defaultDial
	}
	return seq[d.IntN(key, int64(len(seq)))]
}

var defaultDial = New()

// Decide calls Dial.Decide with the empty seed.
func Decide(key []byte, probability float64) bool {
	return defaultDial.Decide(key, probability)
}

// IntRange calls Dial.IntRange with the empty seed.
func IntRange(key []byte, start, stop int64) int64 {
	return defaultDial.IntRange(key, start, stop)
}

// IntN calls Dial.IntN with the empty seed.
func IntN(key []byte, n int64) int64 {
	return defaultDial.IntN(key, n)
}

// Float64 calls Dial.Float64 with the empty seed.
func Float64(key []byte) float64 {
	return defaultDial.Float64(key)
}
