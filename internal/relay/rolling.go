package relay

import "sync"

// DefaultBufferDepth is how many recent chunks the server retains
const DefaultBufferDepth = 2

// RollingBuffer keeps the most recent audio chunks in arrival order. When
// full, a push evicts the oldest chunk. Safe for concurrent use.
type RollingBuffer struct {
	mu       sync.Mutex
	chunks   [][]byte
	capacity int
}

// NewRollingBuffer creates a buffer holding up to capacity chunks. A
// non-positive capacity falls back to the default depth.
func NewRollingBuffer(capacity int) *RollingBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferDepth
	}
	return &RollingBuffer{capacity: capacity}
}

// Push appends a chunk, evicting the oldest when the buffer is full. The
// buffer keeps a reference, not a copy; callers must not mutate the chunk
// after pushing.
func (b *RollingBuffer) Push(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, chunk)
	if len(b.chunks) > b.capacity {
		b.chunks = b.chunks[len(b.chunks)-b.capacity:]
	}
}

// Snapshot returns the buffered chunks oldest first. The returned slice is
// independent of the buffer, so later pushes do not affect it.
func (b *RollingBuffer) Snapshot() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([][]byte, len(b.chunks))
	copy(out, b.chunks)
	return out
}

// Len returns the number of buffered chunks
func (b *RollingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}
