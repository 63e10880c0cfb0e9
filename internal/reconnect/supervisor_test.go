package reconnect

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/muurk/carlink/internal/config"
)

func testPolicy() config.ReconnectConfig {
	return config.ReconnectConfig{
		BaseDelay:         time.Millisecond,
		MaxDelay:          4 * time.Millisecond,
		MaxAttempts:       3,
		DecoderErrorDelay: 5 * time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type closeFunc func()

func (f closeFunc) Close() error { f(); return nil }

type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	closes int
	err    error
	failed func(error)
}

func (r *fakeRunner) run(failed func(error)) (io.Closer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	r.failed = failed
	return closeFunc(func() {
		r.mu.Lock()
		r.closes++
		r.mu.Unlock()
	}), nil
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *fakeRunner) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

func (r *fakeRunner) failSession(err error) {
	r.mu.Lock()
	failed := r.failed
	r.mu.Unlock()
	failed(err)
}

func TestBackoffSchedule(t *testing.T) {
	bo := newBackoff(config.ReconnectConfig{
		BaseDelay: 5 * time.Second,
		MaxDelay:  30 * time.Second,
	})

	want := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		if got := bo.NextBackOff(); got != w {
			t.Errorf("delay %d = %v, want %v", i+1, got, w)
		}
	}
}

func TestTerminalAfterMaxAttempts(t *testing.T) {
	runner := &fakeRunner{err: errors.New("no dongle")}
	s := New(runner.run, testPolicy())

	var mu sync.Mutex
	var statuses []Status
	s.OnStatus(func(st Status) {
		mu.Lock()
		statuses = append(statuses, st)
		mu.Unlock()
	})

	s.Start()
	waitFor(t, func() bool { return s.Status() == StatusTerminal }, "terminal status")

	// Initial attempt plus the full retry budget.
	if got := runner.callCount(); got != testPolicy().MaxAttempts+1 {
		t.Errorf("connect attempts = %d, want %d", got, testPolicy().MaxAttempts+1)
	}

	mu.Lock()
	defer mu.Unlock()
	if statuses[len(statuses)-1] != StatusTerminal {
		t.Errorf("last status = %s, want terminal", statuses[len(statuses)-1])
	}
}

func TestFailureTriggersReconnect(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner.run, testPolicy())
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool { return s.Status() == StatusRunning }, "first session")

	runner.failSession(errors.New("device gone"))

	waitFor(t, func() bool { return runner.closeCount() >= 1 }, "session teardown")
	waitFor(t, func() bool {
		return s.Status() == StatusRunning && runner.callCount() >= 2
	}, "reconnected session")

	if got := s.Attempts(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}

	// A phone connecting resets the budget.
	s.NotePhoneConnected()
	if got := s.Attempts(); got != 0 {
		t.Errorf("attempts after phone connect = %d, want 0", got)
	}
}

func TestRecoveryAfterReset(t *testing.T) {
	runner := &fakeRunner{}
	policy := testPolicy()
	s := New(runner.run, policy)
	s.Start()
	defer s.Stop()

	// Burn through most of the budget, then prove the link healthy;
	// the next failure must start the schedule over instead of going
	// terminal.
	for i := 0; i < policy.MaxAttempts; i++ {
		waitFor(t, func() bool { return s.Status() == StatusRunning }, "session up")
		runner.failSession(errors.New("flaky"))
		waitFor(t, func() bool { return s.Attempts() == i+1 }, "attempt counted")
	}
	waitFor(t, func() bool { return s.Status() == StatusRunning }, "session up at budget edge")

	s.NotePhoneConnected()
	runner.failSession(errors.New("flaky again"))
	waitFor(t, func() bool { return s.Status() == StatusRunning && s.Attempts() == 1 }, "fresh schedule")
}

func TestRestartAfter(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner.run, testPolicy())
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool { return s.Status() == StatusRunning }, "first session")

	s.RestartAfter(testPolicy().DecoderErrorDelay)

	waitFor(t, func() bool { return runner.closeCount() >= 1 }, "session teardown")
	waitFor(t, func() bool {
		return s.Status() == StatusRunning && runner.callCount() >= 2
	}, "restarted session")

	// Decoder restarts do not consume the retry budget.
	if got := s.Attempts(); got != 0 {
		t.Errorf("attempts = %d, want 0", got)
	}
}

func TestStopTearsDownActiveSession(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner.run, testPolicy())
	s.Start()

	waitFor(t, func() bool { return s.Status() == StatusRunning }, "session up")

	s.Stop()
	if got := s.Status(); got != StatusStopped {
		t.Errorf("status = %s, want stopped", got)
	}
	if got := runner.closeCount(); got != 1 {
		t.Errorf("session closes = %d, want 1", got)
	}
}
