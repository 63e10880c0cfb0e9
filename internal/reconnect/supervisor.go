package reconnect

import (
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/muurk/carlink/internal/config"
	"github.com/muurk/carlink/internal/logging"
)

// Status is the supervisor's externally visible state.
type Status string

// Supervisor statuses
const (
	StatusConnecting Status = "connecting"
	StatusRunning    Status = "running"
	StatusWaiting    Status = "waiting to reconnect"
	StatusTerminal   Status = "failed - manual reconnection needed"
	StatusStopped    Status = "stopped"
)

// Runner starts one complete dongle session and returns a handle that
// tears it down. The runner must arrange for failed to be called if the
// session later dies on its own; failed must not be called more than
// once per session.
type Runner func(failed func(error)) (io.Closer, error)

// Supervisor runs sessions produced by a Runner and restarts them per
// the reconnection policy.
type Supervisor struct {
	runner Runner
	cfg    config.ReconnectConfig

	mu       sync.Mutex
	status   Status
	attempts int
	active   io.Closer
	bo       *backoff.ExponentialBackOff
	onStatus []func(Status)

	failures chan error
	restarts chan time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New returns an idle Supervisor. Call Start to begin connecting.
func New(runner Runner, cfg config.ReconnectConfig) *Supervisor {
	return &Supervisor{
		runner:   runner,
		cfg:      cfg,
		status:   StatusStopped,
		bo:       newBackoff(cfg),
		failures: make(chan error, 1),
		restarts: make(chan time.Duration, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// newBackoff builds the retry schedule: base, base*2, base*4, ...
// capped at the max delay. No jitter; the schedule is deliberate, not
// contended.
func newBackoff(cfg config.ReconnectConfig) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.BaseDelay
	bo.Multiplier = 2
	bo.MaxInterval = cfg.MaxDelay
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// OnStatus registers a status observer. Register before Start.
func (s *Supervisor) OnStatus(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = append(s.onStatus, fn)
}

// Start launches the supervision loop.
func (s *Supervisor) Start() {
	go s.loop()
}

// Stop tears down the active session and ends supervision.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// SessionFailed reports that the active session died. Normally the
// Runner wires this as its failure callback.
func (s *Supervisor) SessionFailed(err error) {
	select {
	case s.failures <- err:
	default:
	}
}

// NotePhoneConnected resets the retry schedule: a phone in the session
// proves the link is healthy.
func (s *Supervisor) NotePhoneConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = 0
	s.bo.Reset()
}

// RestartAfter tears the session down and reconnects after the given
// delay, outside the backoff schedule. Used when the video decoder
// reports a wedged stream.
func (s *Supervisor) RestartAfter(delay time.Duration) {
	select {
	case s.restarts <- delay:
	default:
	}
}

// Status returns the current supervisor status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Attempts returns the consecutive failed attempts so far.
func (s *Supervisor) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *Supervisor) loop() {
	defer close(s.done)
	defer s.closeActive()

	for {
		select {
		case <-s.stop:
			s.setStatus(StatusStopped)
			return
		default:
		}

		if s.connect() {
			select {
			case err := <-s.failures:
				logging.Warn("Session died", zap.Error(err))
				s.closeActive()
			case delay := <-s.restarts:
				logging.Warn("Restarting session", zap.Duration("delay", delay))
				s.closeActive()
				s.NotePhoneConnected() // decoder restarts don't consume the retry budget
				if !s.sleep(delay) {
					s.setStatus(StatusStopped)
					return
				}
				continue
			case <-s.stop:
				s.setStatus(StatusStopped)
				return
			}
		}

		if !s.waitRetry() {
			return
		}
	}
}

// connect runs one session attempt, returning whether it is now active.
func (s *Supervisor) connect() bool {
	s.setStatus(StatusConnecting)

	active, err := s.runner(s.SessionFailed)
	if err != nil {
		logging.Warn("Connecting to dongle failed", zap.Error(err))
		return false
	}

	s.mu.Lock()
	s.active = active
	s.mu.Unlock()
	s.setStatus(StatusRunning)
	return true
}

// waitRetry consumes one retry from the budget and sleeps out the
// backoff delay. It returns false when the budget is exhausted or the
// supervisor stops, going terminal or stopped respectively.
func (s *Supervisor) waitRetry() bool {
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	delay := s.bo.NextBackOff()
	limit := s.cfg.MaxAttempts
	s.mu.Unlock()

	if attempt > limit {
		logging.Error("Reconnection attempts exhausted, manual reconnection needed",
			zap.Int("attempts", limit),
		)
		s.setStatus(StatusTerminal)
		return false
	}

	logging.Warn("Reconnecting to dongle",
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", limit),
		zap.Duration("delay", delay),
	)
	s.setStatus(StatusWaiting)
	if !s.sleep(delay) {
		s.setStatus(StatusStopped)
		return false
	}
	return true
}

// sleep waits out d, returning false if the supervisor stopped first.
func (s *Supervisor) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.stop:
		return false
	}
}

func (s *Supervisor) closeActive() {
	s.mu.Lock()
	active := s.active
	s.active = nil
	s.mu.Unlock()
	if active != nil {
		active.Close()
	}
	// A failure reported during teardown belongs to the session that is
	// already gone.
	select {
	case <-s.failures:
	default:
	}
}

func (s *Supervisor) setStatus(status Status) {
	s.mu.Lock()
	if s.status == status {
		s.mu.Unlock()
		return
	}
	s.status = status
	observers := make([]func(Status), len(s.onStatus))
	copy(observers, s.onStatus)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(status)
	}
}
