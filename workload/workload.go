// Package workload generates the int32 inputs the reducers are benchmarked
// and tested on.
package workload

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"golang.org/x/crypto/sha3"
)

// Generate returns n values drawn uniformly from [lo, hi). The values come
// from a SHAKE128 stream over seed, so the same seed always yields the same
// array on every platform.
func Generate(seed []byte, n int, lo, hi int32) ([]int32, error) {
	if n < 0 {
		return nil, fmt.Errorf("workload: negative length %d", n)
	}
	if hi <= lo {
		return nil, fmt.Errorf("workload: empty range [%d, %d)", lo, hi)
	}

	x := newStream(seed)
	span := uint32(int64(hi) - int64(lo))
	// 2^32 mod span. Words below it are rejected so that every residue
	// is equally likely.
	thresh := -span % span

	out := make([]int32, n)
	for i := range out {
		w := x.next()
		for w < thresh {
			w = x.next()
		}
		out[i] = int32(int64(lo) + int64(w%span))
	}
	return out, nil
}

// Sequence returns 1, 2, ..., n.
func Sequence(n int) []int32 {
	s := make([]int32, n)
	for i := range s {
		s[i] = int32(i + 1)
	}
	return s
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && bits.OnesCount(uint(n)) == 1
}

// FloorPowerOfTwo returns the largest power of two <= n, or 0 for n < 1.
func FloorPowerOfTwo(n int) int {
	if n < 1 {
		return 0
	}
	return 1 << (bits.Len(uint(n)) - 1)
}

// stream reads little-endian 32-bit words from a SHAKE128 XOF.
type stream struct {
	h   sha3.ShakeHash
	buf [168]byte // SHAKE128 rate
	pos int
}

func newStream(seed []byte) *stream {
	h := sha3.NewShake128()
	h.Write(seed)
	return &stream{h: h, pos: len(stream{}.buf)}
}

func (s *stream) next() uint32 {
	if s.pos+4 > len(s.buf) {
		s.h.Read(s.buf[:])
		s.pos = 0
	}
	w := binary.LittleEndian.Uint32(s.buf[s.pos:])
	s.pos += 4
	return w
}
