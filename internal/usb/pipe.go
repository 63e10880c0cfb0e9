package usb

import (
	"sync"
	"time"
)

// Pipe is an in-memory Transport for tests. Incoming frames are queued
// with QueueFrame; outgoing writes are recorded and retrievable with
// Writes. Transfer faults are injected with FailNextRead and MarkGone.
type Pipe struct {
	mu         sync.Mutex
	incoming   []byte
	writes     [][]byte
	readFaults []error
	writeFault error
	gone       bool
	clearHalts int
}

// NewPipe returns an empty Pipe.
func NewPipe() *Pipe {
	return &Pipe{}
}

// QueueFrame appends bytes to the incoming stream.
func (p *Pipe) QueueFrame(frame []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.incoming = append(p.incoming, frame...)
}

// FailNextRead injects an error returned by the next Read call, ahead of
// any queued data. Multiple injected errors are returned in order.
func (p *Pipe) FailNextRead(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readFaults = append(p.readFaults, err)
}

// FailWrites makes all subsequent Write calls return err until cleared
// with FailWrites(nil).
func (p *Pipe) FailWrites(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeFault = err
}

// MarkGone simulates the device leaving the bus: all subsequent reads and
// writes return ErrDeviceGone.
func (p *Pipe) MarkGone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gone = true
}

// Writes returns a copy of all frames written so far.
func (p *Pipe) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	copy(out, p.writes)
	return out
}

// ClearHaltCount reports how many times ClearHaltIn was called.
func (p *Pipe) ClearHaltCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clearHalts
}

// Read returns queued bytes, an injected fault, or ErrTimeout when the
// stream is empty.
func (p *Pipe) Read(buf []byte, timeout time.Duration) (int, error) {
	p.mu.Lock()
	if p.gone {
		p.mu.Unlock()
		return 0, ErrDeviceGone
	}
	if len(p.readFaults) > 0 {
		err := p.readFaults[0]
		p.readFaults = p.readFaults[1:]
		p.mu.Unlock()
		return 0, err
	}
	if len(p.incoming) > 0 {
		n := copy(buf, p.incoming)
		p.incoming = p.incoming[n:]
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()

	// Empty stream: behave like a blocking endpoint so callers don't
	// spin. The real timeout is not honored to keep tests fast.
	time.Sleep(time.Millisecond)
	return 0, ErrTimeout
}

// Write records the frame.
func (p *Pipe) Write(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gone {
		return 0, ErrDeviceGone
	}
	if p.writeFault != nil {
		return 0, p.writeFault
	}
	frame := make([]byte, len(buf))
	copy(frame, buf)
	p.writes = append(p.writes, frame)
	return len(buf), nil
}

// ClearHaltIn records the halt-clear request.
func (p *Pipe) ClearHaltIn() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearHalts++
	return nil
}

// MaxPacketSize returns a typical bulk packet size.
func (p *Pipe) MaxPacketSize() int { return 512 }

// Close is a no-op.
func (p *Pipe) Close() error { return nil }
