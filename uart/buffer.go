package uart

import "sync"

// Buffer is the peripheral's inbound message buffer: an unbounded FIFO byte
// queue. Bytes are appended as writes arrive and removed only by Read.
type Buffer struct {
	mu   sync.Mutex
	data []byte
}

// Append queues bytes at the tail, preserving arrival order.
func (b *Buffer) Append(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Read removes and returns up to n bytes from the head. n <= 0 drains the
// whole buffer. The remainder stays queued in order.
func (b *Buffer) Read(n int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.data) {
		n = len(b.data)
	}
	out := make([]byte, n)
	copy(out, b.data[:n])
	b.data = b.data[n:]
	return out
}
