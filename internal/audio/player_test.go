package audio

import (
	"testing"
	"time"

	"github.com/muurk/carlink/internal/config"
	"github.com/muurk/carlink/internal/protocol"
)

// testFormat keeps sample math easy: 1000 samples per second mono.
var testFormat = protocol.AudioFormat{SampleRate: 1000, Channels: 1, BitDepth: 16}

// testTuning derives thresholds of 10 (pre-buffer), 50 (ceiling), and
// 100 (capacity) samples under testFormat.
var testTuning = config.AudioConfig{
	PreBuffer:   10 * time.Millisecond,
	HardCeiling: 50 * time.Millisecond,
	Capacity:    100 * time.Millisecond,
}

func filled(n int, v int16) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestSilentBeforeConfigure(t *testing.T) {
	p := NewPlayer(testTuning)

	dst := filled(8, 7)
	if n := p.Pull(dst); n != 0 {
		t.Fatalf("Pull = %d, want 0", n)
	}
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("dst[%d] = %d, want silence", i, v)
		}
	}

	// Writes before Configure have no known format; they are dropped.
	p.Write(seq(0, 20))
	if got := p.Buffered(); got != 0 {
		t.Errorf("Buffered = %v, want 0", got)
	}
}

func TestPreBufferGate(t *testing.T) {
	p := NewPlayer(testTuning)
	p.Configure(testFormat)

	p.Write(seq(0, 9))
	dst := make([]int16, 4)
	if n := p.Pull(dst); n != 0 {
		t.Fatalf("Pull below pre-buffer = %d, want silence", n)
	}
	if !p.Buffering() {
		t.Fatal("gate opened below pre-buffer")
	}

	p.Write(seq(9, 1))
	if p.Buffering() {
		t.Fatal("gate still closed at pre-buffer")
	}
	if n := p.Pull(dst); n != 4 {
		t.Fatalf("Pull = %d, want 4", n)
	}
	for i, v := range dst {
		if v != int16(i) {
			t.Errorf("dst[%d] = %d, want %d (FIFO order)", i, v, i)
		}
	}
}

func TestUnderrunKeepsPlaying(t *testing.T) {
	p := NewPlayer(testTuning)
	p.Configure(testFormat)
	p.Write(seq(0, 10))

	dst := make([]int16, 8)
	if n := p.Pull(dst); n != 8 {
		t.Fatalf("Pull = %d, want 8", n)
	}

	// Two samples left: not enough for a block.
	if n := p.Pull(dst); n != 0 {
		t.Fatalf("Pull on dry buffer = %d, want silence", n)
	}
	if p.Underruns() != 1 {
		t.Fatalf("Underruns = %d, want 1", p.Underruns())
	}
	if p.Buffering() {
		t.Fatal("underrun closed the gate")
	}

	// Playback resumes on the next pull with data: 8 samples buffered
	// is below the 10-sample pre-buffer, and still plays.
	p.Write(seq(100, 6))
	if n := p.Pull(dst); n != 8 {
		t.Fatalf("Pull after refill = %d, want 8", n)
	}
	if dst[0] != 8 || dst[2] != 100 {
		t.Errorf("resumed block = [%d _ %d ...], want leftover 8 then 100", dst[0], dst[2])
	}
}

func TestGateFlipZerosUnderruns(t *testing.T) {
	p := NewPlayer(testTuning)
	p.Configure(testFormat)
	p.Write(seq(0, 10))

	dst := make([]int16, 8)
	p.Pull(dst)
	if n := p.Pull(dst); n != 0 {
		t.Fatalf("Pull on dry buffer = %d, want silence", n)
	}
	if p.Underruns() != 1 {
		t.Fatalf("Underruns = %d, want 1", p.Underruns())
	}

	// Reset closes the gate; refilling past the pre-buffer flips it
	// back to playing with a clean counter.
	p.Reset()
	p.Write(seq(0, 10))
	if p.Buffering() {
		t.Fatal("refill past pre-buffer did not reopen the gate")
	}
	if got := p.Underruns(); got != 0 {
		t.Fatalf("Underruns after gate reopened = %d, want 0", got)
	}
}

func TestEmergencyResync(t *testing.T) {
	p := NewPlayer(testTuning)
	p.Configure(testFormat)

	// Burst past the hard ceiling in one write.
	p.Write(seq(0, 60))

	if p.Resyncs() != 1 {
		t.Fatalf("Resyncs = %d, want 1", p.Resyncs())
	}
	if got := p.Buffered(); got != testTuning.PreBuffer {
		t.Fatalf("Buffered after resync = %v, want %v", got, testTuning.PreBuffer)
	}

	// The newest audio survives; the stale backlog is gone.
	dst := make([]int16, 10)
	if n := p.Pull(dst); n != 10 {
		t.Fatalf("Pull = %d, want 10", n)
	}
	for i, v := range dst {
		if v != int16(50+i) {
			t.Errorf("dst[%d] = %d, want %d", i, v, 50+i)
		}
	}
}

func TestResyncLogThrottle(t *testing.T) {
	cases := []struct {
		name         string
		frames, last int
		want         bool
	}{
		{"first frames stay quiet", 1, 0, false},
		{"window not yet elapsed", 100, 0, false},
		{"window elapsed", 101, 0, true},
		{"quiet after a log", 150, 101, false},
		{"next window elapsed", 202, 101, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := shouldLogResync(tc.frames, tc.last); got != tc.want {
				t.Errorf("shouldLogResync(%d, %d) = %v, want %v", tc.frames, tc.last, got, tc.want)
			}
		})
	}

	// A resync in the first hundred frames counts but does not log.
	p := NewPlayer(testTuning)
	p.Configure(testFormat)
	p.Write(seq(0, 60))
	if p.Resyncs() != 1 {
		t.Fatalf("Resyncs = %d, want 1", p.Resyncs())
	}
	p.mu.Lock()
	logged := p.lastResyncLog
	p.mu.Unlock()
	if logged != 0 {
		t.Errorf("lastResyncLog = %d, want 0 (throttled)", logged)
	}
}

func TestOverflowThenResync(t *testing.T) {
	p := NewPlayer(testTuning)
	p.Configure(testFormat)

	// More than capacity in one burst: overflow drops the oldest, then
	// the ceiling rule trims what remains to the pre-buffer target.
	p.Write(seq(0, 150))

	if p.Resyncs() != 1 {
		t.Fatalf("Resyncs = %d, want 1", p.Resyncs())
	}
	dst := make([]int16, 10)
	if n := p.Pull(dst); n != 10 {
		t.Fatalf("Pull = %d, want 10", n)
	}
	if dst[0] != 140 {
		t.Errorf("oldest surviving sample = %d, want 140", dst[0])
	}
}

func TestConfigureChange(t *testing.T) {
	p := NewPlayer(testTuning)
	p.Configure(testFormat)
	p.Write(seq(0, 20))

	// Same format mid-stream: nothing discarded.
	p.Configure(testFormat)
	if got := p.Buffered(); got != 20*time.Millisecond {
		t.Fatalf("Buffered after same-format Configure = %v, want 20ms", got)
	}

	// New format: buffered audio is in the wrong format, discard it.
	p.Configure(protocol.AudioFormat{SampleRate: 2000, Channels: 2, BitDepth: 16})
	if got := p.Buffered(); got != 0 {
		t.Fatalf("Buffered after format change = %v, want 0", got)
	}
	if !p.Buffering() {
		t.Error("format change did not close the gate")
	}
}

func TestReset(t *testing.T) {
	p := NewPlayer(testTuning)
	p.Configure(testFormat)
	p.Write(seq(0, 20))

	p.Reset()
	if got := p.Buffered(); got != 0 {
		t.Fatalf("Buffered after Reset = %v, want 0", got)
	}
	if !p.Buffering() {
		t.Error("Reset did not close the gate")
	}
}

func TestDrainConsumesInRealTime(t *testing.T) {
	p := NewPlayer(testTuning)
	p.Configure(testFormat)
	p.Write(seq(0, 60)) // 60 ms buffered; resync trims to 10 ms

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		Drain(p, stop)
		close(done)
	}()

	// The drain pulls 10 ms blocks at a 10 ms cadence, so the buffer
	// empties and underruns within a few ticks.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && p.Underruns() == 0 {
		time.Sleep(time.Millisecond)
	}
	if p.Underruns() == 0 {
		t.Error("drain never emptied the buffer")
	}

	close(stop)
	<-done
}
