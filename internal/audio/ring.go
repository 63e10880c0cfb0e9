package audio

// Ring is a fixed-capacity ring buffer of interleaved PCM16 samples.
// When full, writes overwrite the oldest samples. Not safe for
// concurrent use; the Player serializes access.
type Ring struct {
	buf  []int16
	head int // index of the oldest sample
	size int // samples currently buffered
}

// NewRing returns a ring holding at most capacity samples.
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]int16, capacity)}
}

// Cap returns the ring capacity in samples.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of buffered samples.
func (r *Ring) Len() int { return r.size }

// Write appends samples, overwriting the oldest on overflow. It returns
// the number of samples dropped to make room.
func (r *Ring) Write(samples []int16) (dropped int) {
	if len(samples) > len(r.buf) {
		// Only the newest capacity-worth can survive anyway.
		dropped = len(samples) - len(r.buf)
		samples = samples[dropped:]
	}

	overflow := r.size + len(samples) - len(r.buf)
	if overflow > 0 {
		r.Drop(overflow)
		dropped += overflow
	}

	tail := (r.head + r.size) % len(r.buf)
	n := copy(r.buf[tail:], samples)
	copy(r.buf, samples[n:])
	r.size += len(samples)
	return dropped
}

// Read copies up to len(dst) of the oldest samples into dst and removes
// them, returning the count copied.
func (r *Ring) Read(dst []int16) int {
	n := len(dst)
	if n > r.size {
		n = r.size
	}
	first := copy(dst[:n], r.buf[r.head:])
	copy(dst[first:n], r.buf)
	r.head = (r.head + n) % len(r.buf)
	r.size -= n
	return n
}

// Drop discards up to n of the oldest samples, returning the count
// discarded.
func (r *Ring) Drop(n int) int {
	if n > r.size {
		n = r.size
	}
	r.head = (r.head + n) % len(r.buf)
	r.size -= n
	return n
}

// Reset empties the ring.
func (r *Ring) Reset() {
	r.head = 0
	r.size = 0
}
