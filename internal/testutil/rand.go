package testutil

import "sync"

// CountingReader is a deterministic io.Reader for key generation in tests.
// It yields the bytes seed, seed+1, seed+2, ... wrapping at 256.
//
// Thread-safety: safe for concurrent use.
type CountingReader struct {
	mu   sync.Mutex
	next byte
}

// NewCountingReader creates a reader starting at seed.
func NewCountingReader(seed byte) *CountingReader {
	return &CountingReader{next: seed}
}

// Read fills p and never fails.
func (r *CountingReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range p {
		p[i] = r.next
		r.next++
	}
	return len(p), nil
}
