package audio

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/carlink/internal/config"
	"github.com/muurk/carlink/internal/logging"
	"github.com/muurk/carlink/internal/protocol"
)

// Player buffers one audio stream and feeds an output device through
// Pull. Safe for concurrent use.
type Player struct {
	mu     sync.Mutex
	tuning config.AudioConfig

	format protocol.AudioFormat
	ring   *Ring

	// Occupancy thresholds in samples, derived from tuning and format.
	preBuffer int
	ceiling   int

	buffering bool
	underruns int
	resyncs   int
	dropped   int

	frames        int
	lastResyncLog int
}

// NewPlayer returns a Player with the given buffering tunables. It
// produces silence until the first Configure call.
func NewPlayer(tuning config.AudioConfig) *Player {
	return &Player{tuning: tuning}
}

// Configure sets the stream's PCM format. A format change discards any
// buffered audio and closes the pre-buffer gate; an unchanged format is
// a no-op so mid-stream config messages don't glitch playback.
func (p *Player) Configure(format protocol.AudioFormat) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ring != nil && format == p.format {
		return
	}

	p.format = format
	p.preBuffer = p.samples(p.tuning.PreBuffer)
	p.ceiling = p.samples(p.tuning.HardCeiling)
	p.ring = NewRing(p.samples(p.tuning.Capacity))
	p.buffering = true

	logging.Info("Audio stream configured",
		zap.Int("sample_rate", format.SampleRate),
		zap.Int("channels", format.Channels),
		zap.Duration("pre_buffer", p.tuning.PreBuffer),
	)
}

// samples converts a duration to an interleaved sample count for the
// current format. Callers hold the lock.
func (p *Player) samples(d time.Duration) int {
	perSecond := p.format.SampleRate * p.format.Channels
	return int(d.Seconds() * float64(perSecond))
}

// Write buffers interleaved samples from the phone. Before the first
// Configure it drops them, since their format is unknown.
func (p *Player) Write(samples []int16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ring == nil {
		return
	}
	p.frames++

	if dropped := p.ring.Write(samples); dropped > 0 {
		p.dropped += dropped
		logging.Warn("Audio buffer overflow, oldest samples dropped",
			zap.Int("dropped", dropped),
		)
	}

	if p.ring.Len() >= p.ceiling {
		// Latency has built up past the ceiling; snap back to the
		// pre-buffer target.
		cut := p.ring.Len() - p.preBuffer
		p.ring.Drop(cut)
		p.resyncs++
		if shouldLogResync(p.frames, p.lastResyncLog) {
			p.lastResyncLog = p.frames
			logging.Warn("Audio buffer resync",
				zap.Int("discarded", cut),
				zap.Duration("kept", p.duration(p.ring.Len())),
			)
		}
	}

	if p.buffering && p.ring.Len() >= p.preBuffer {
		p.buffering = false
		p.underruns = 0
		logging.Debug("Audio pre-buffer filled, playback starts")
	}
}

// shouldLogResync throttles resync logging to at most once per 100
// received frames; resyncs tend to come in bursts.
func shouldLogResync(frames, lastLogged int) bool {
	return frames-lastLogged > 100
}

// Pull fills dst for the output device and returns how many samples
// carried real audio; the rest of dst is zeroed. While the pre-buffer
// gate is closed the whole block is silence. A dry buffer mid-playback
// counts as an underrun but playback stays live: the next pull with
// enough data resumes immediately, with no pre-buffer wait.
func (p *Player) Pull(dst []int16) int {
	p.mu.Lock()

	if p.ring == nil || p.buffering {
		p.mu.Unlock()
		zero(dst)
		return 0
	}

	if p.ring.Len() < len(dst) {
		p.underruns++
		n := p.underruns
		p.mu.Unlock()
		zero(dst)
		logUnderrun(n)
		return 0
	}

	n := p.ring.Read(dst)
	p.mu.Unlock()
	zero(dst[n:])
	return n
}

// logUnderrun throttles underrun logging: the first five are reported
// individually, then every tenth.
func logUnderrun(count int) {
	if count <= 5 || count%10 == 0 {
		logging.Warn("Audio buffer underrun", zap.Int("count", count))
	}
}

// Buffered returns the duration of audio currently held.
func (p *Player) Buffered() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ring == nil {
		return 0
	}
	return p.duration(p.ring.Len())
}

// duration converts an interleaved sample count to wall time for the
// current format. Callers hold the lock.
func (p *Player) duration(samples int) time.Duration {
	perSecond := p.format.SampleRate * p.format.Channels
	if perSecond == 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(perSecond)
}

// Underruns returns the number of mid-playback underruns since the
// pre-buffer gate last opened.
func (p *Player) Underruns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.underruns
}

// Resyncs returns the number of emergency resyncs so far.
func (p *Player) Resyncs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resyncs
}

// blockSize returns the interleaved sample count covering d at the
// current format, or zero before the first Configure.
func (p *Player) blockSize(d time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ring == nil {
		return 0
	}
	return p.samples(d)
}

// Buffering reports whether the pre-buffer gate is currently closed.
func (p *Player) Buffering() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ring == nil || p.buffering
}

// Reset discards buffered audio and closes the pre-buffer gate, e.g.
// when the phone unplugs.
func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ring == nil {
		return
	}
	p.ring.Reset()
	p.buffering = true
}

func zero(s []int16) {
	for i := range s {
		s[i] = 0
	}
}
