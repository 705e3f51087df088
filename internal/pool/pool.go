// Package pool recycles the byte buffers that hold re-wrapped single-frame
// GIF and WebP streams while they are decoded. Buffers are grouped by
// power-of-four size classes so one pool serves both tiny GIF frames and
// large lossless WebP frames.
package pool

import (
	"math/bits"
	"sync"
)

// Size classes. Requests above MaxPooled are allocated directly and never
// retained.
const (
	MinPooled = 4 << 10  // 4 KiB
	MaxPooled = 64 << 20 // 64 MiB
)

const numClasses = 8 // 4K, 16K, 64K, 256K, 1M, 4M, 16M, 64M

var classes [numClasses]sync.Pool

// class returns the size class index for a buffer of size bytes and the
// capacity buffers of that class are allocated with.
func class(size int) (int, int) {
	if size <= MinPooled {
		return 0, MinPooled
	}
	// Round up to the next power of four above MinPooled.
	n := (bits.Len(uint(size-1)) - 12 + 1) / 2
	return n, MinPooled << (2 * n)
}

// Get returns a buffer with len == size. Its contents are unspecified.
// Callers return it with Put when done.
func Get(size int) []byte {
	if size > MaxPooled {
		return make([]byte, size)
	}
	idx, capacity := class(size)
	if bp, ok := classes[idx].Get().(*[]byte); ok && cap(*bp) >= size {
		return (*bp)[:size]
	}
	return make([]byte, size, capacity)
}

// Put returns b to its size class. Buffers outside the pooled range are
// dropped.
func Put(b []byte) {
	c := cap(b)
	if c < MinPooled || c > MaxPooled {
		return
	}
	idx, capacity := class(c)
	if capacity > c {
		// Not allocated by Get; file it one class down so every buffer in
		// a class can serve any request of that class.
		idx--
	}
	if idx < 0 {
		return
	}
	b = b[:c]
	classes[idx].Put(&b)
}
