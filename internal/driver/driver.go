package driver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/carlink/internal/config"
	"github.com/muurk/carlink/internal/logging"
	"github.com/muurk/carlink/internal/protocol"
	"github.com/muurk/carlink/internal/usb"
)

// State is a driver lifecycle state.
type State int

// Lifecycle states
const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateClosed
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitialized:
		return "Initialized"
	case StateRunning:
		return "Running"
	case StateClosed:
		return "Closed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MaxErrorCount is the number of consecutive transfer or parse errors
// tolerated before the driver declares the connection dead.
const MaxErrorCount = 20

// payloadChunk caps single bulk reads; large video frames are assembled
// from multiple transfers.
const payloadChunk = 16 * 1024

// MessageFunc receives a decoded incoming message. It runs on the read
// loop goroutine and must not block.
type MessageFunc func(protocol.Message)

// FailureFunc is notified once when the driver enters the Failed state.
type FailureFunc func(error)

// Driver runs one dongle session over a Transport. It is single-use:
// after Close or a failure, reconnection means building a new Driver.
type Driver struct {
	mu        sync.Mutex
	state     State
	transport usb.Transport
	cfg       *config.Config

	errorCount int

	msgSubs  []MessageFunc
	failSubs []FailureFunc

	stop     chan struct{}
	stopOnce sync.Once
	readDone chan struct{}
	beatDone chan struct{}

	// Whether each loop goroutine was actually spawned; Close only
	// joins loops that ran.
	readStarted bool
	beatStarted bool

	// Timing knobs, overridden in tests.
	headerTimeout     time.Duration
	payloadTimeout    time.Duration
	drainTimeout      time.Duration
	heartbeatInterval time.Duration
	wifiConnectDelay  time.Duration
	overflowSettle    time.Duration
	stallSettle       time.Duration
	joinTimeout       time.Duration
}

// New returns a Driver in the Uninitialized state.
func New() *Driver {
	return &Driver{
		stop:     make(chan struct{}),
		readDone: make(chan struct{}),
		beatDone: make(chan struct{}),

		headerTimeout:     time.Second,
		payloadTimeout:    2 * time.Second,
		drainTimeout:      50 * time.Millisecond,
		heartbeatInterval: 2 * time.Second,
		wifiConnectDelay:  time.Second,
		overflowSettle:    200 * time.Millisecond,
		stallSettle:       100 * time.Millisecond,
		joinTimeout:       2 * time.Second,
	}
}

// OnMessage registers a subscriber for decoded incoming messages.
// Subscribers are called synchronously on the read loop goroutine in
// registration order, so they observe messages in arrival order.
// Registration is only allowed before Start.
func (d *Driver) OnMessage(fn MessageFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgSubs = append(d.msgSubs, fn)
}

// OnFailure registers a subscriber notified exactly once when the
// driver enters the Failed state. Registration is only allowed before
// Start.
func (d *Driver) OnFailure(fn FailureFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failSubs = append(d.failSubs, fn)
}

// Initialise binds the driver to a transport. A nil transport makes the
// driver locate and claim a physical dongle itself.
func (d *Driver) Initialise(t usb.Transport) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateUninitialized {
		return &StateError{Op: "Initialise", State: d.state}
	}

	if t == nil {
		dev, err := usb.Open()
		if err != nil {
			return err
		}
		t = dev
	}

	d.transport = t
	d.state = StateInitialized
	return nil
}

// Start sends the dongle initialization sequence and spawns the read
// and heartbeat loops. It blocks through the post-init settling delay
// before requesting the WiFi connection, roughly a second.
func (d *Driver) Start(cfg *config.Config) error {
	d.mu.Lock()
	if d.state != StateInitialized {
		state := d.state
		d.mu.Unlock()
		return &StateError{Op: "Start", State: state}
	}
	d.cfg = cfg
	d.state = StateRunning
	d.readStarted = true
	d.mu.Unlock()

	go d.readLoop()

	for _, msg := range initSequence(cfg) {
		if !d.Send(msg) {
			err := fmt.Errorf("driver: init sequence: sending %s failed", msg.SendType())
			d.fail(err)
			return err
		}
	}

	// The dongle ignores wifiConnect if it arrives before the settings
	// writes have been applied.
	time.Sleep(d.wifiConnectDelay)
	if !d.Send(&protocol.SendCommand{Value: protocol.CmdWifiConnect}) {
		err := errors.New("driver: init sequence: sending wifiConnect failed")
		d.fail(err)
		return err
	}

	d.mu.Lock()
	d.beatStarted = true
	d.mu.Unlock()
	go d.heartbeatLoop()

	logging.Info("Dongle session started",
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Int("fps", cfg.FPS),
	)
	return nil
}

// initSequence builds the ordered settings and session-open messages
// the dongle expects after enumeration.
func initSequence(cfg *config.Config) []protocol.Sendable {
	msgs := []protocol.Sendable{
		protocol.NewNumberFile(uint32(cfg.DPI), protocol.FileDPI),
		&protocol.SendOpen{
			Width:         uint32(cfg.Width),
			Height:        uint32(cfg.Height),
			FPS:           uint32(cfg.FPS),
			Format:        uint32(cfg.Format),
			PacketMax:     uint32(cfg.PacketMax),
			IBoxVersion:   uint32(cfg.IBoxVersion),
			PhoneWorkMode: uint32(cfg.PhoneWorkMode),
		},
		protocol.NewBoolFile(cfg.NightMode, protocol.FileNightMode),
		protocol.NewNumberFile(uint32(cfg.Hand), protocol.FileHandDriveMode),
		protocol.NewBoolFile(true, protocol.FileChargeMode),
		protocol.NewStringFile(cfg.BoxName, protocol.FileBoxName),
		&protocol.SendBoxSettings{
			MediaDelay: cfg.MediaDelay,
			Width:      cfg.Width,
			Height:     cfg.Height,
		},
		&protocol.SendCommand{Value: protocol.CmdWifiEnable},
	}

	if cfg.WifiBand == config.WifiBand24GHz {
		msgs = append(msgs, &protocol.SendCommand{Value: protocol.CmdWifi24g})
	} else {
		msgs = append(msgs, &protocol.SendCommand{Value: protocol.CmdWifi5g})
	}

	if cfg.MicSource == config.MicSourceBox {
		msgs = append(msgs, &protocol.SendCommand{Value: protocol.CmdBoxMic})
	} else {
		msgs = append(msgs, &protocol.SendCommand{Value: protocol.CmdMic})
	}

	if cfg.AudioTransferMode {
		msgs = append(msgs, &protocol.SendCommand{Value: protocol.CmdAudioTransferOn})
	} else {
		msgs = append(msgs, &protocol.SendCommand{Value: protocol.CmdAudioTransferOff})
	}

	if cfg.AndroidWorkMode != nil {
		msgs = append(msgs, protocol.NewBoolFile(*cfg.AndroidWorkMode, protocol.FileAndroidWorkMode))
	}
	return msgs
}

// Send encodes and writes one outbound message, reporting whether the
// complete frame was written. Failed sends are logged, not fatal; a
// vanished device still moves the driver to Failed.
func (d *Driver) Send(msg protocol.Sendable) bool {
	d.mu.Lock()
	t := d.transport
	ok := d.state == StateInitialized || d.state == StateRunning
	d.mu.Unlock()
	if t == nil || !ok {
		return false
	}

	frame, err := protocol.Encode(msg)
	if err != nil {
		logging.Error("Encoding outbound message failed",
			zap.Stringer("type", msg.SendType()),
			zap.Error(err),
		)
		return false
	}

	logging.LogFrame("out", msg.SendType(), frame[protocol.HeaderSize:])

	n, err := t.Write(frame)
	if err != nil {
		if errors.Is(err, usb.ErrDeviceGone) {
			d.fail(err)
			return false
		}
		logging.Warn("Write failed",
			zap.Stringer("type", msg.SendType()),
			zap.Error(err),
		)
		return false
	}
	return n == len(frame)
}

// UpdateVideoSettings changes the projection resolution and DPI of the
// running session and pushes the new values to the dongle. The phone
// typically re-negotiates its stream in response.
func (d *Driver) UpdateVideoSettings(width, height, dpi int) error {
	d.mu.Lock()
	if d.state != StateRunning {
		state := d.state
		d.mu.Unlock()
		return &StateError{Op: "UpdateVideoSettings", State: state}
	}
	d.cfg.Width = width
	d.cfg.Height = height
	d.cfg.DPI = dpi
	mediaDelay := d.cfg.MediaDelay
	d.mu.Unlock()

	if !d.Send(protocol.NewNumberFile(uint32(dpi), protocol.FileDPI)) {
		return errors.New("driver: sending DPI update failed")
	}
	if !d.Send(&protocol.SendBoxSettings{MediaDelay: mediaDelay, Width: width, Height: height}) {
		return errors.New("driver: sending settings update failed")
	}
	return nil
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// ConsecutiveErrors returns the current consecutive-error count.
func (d *Driver) ConsecutiveErrors() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errorCount
}

// Close stops both loops and releases the transport. Safe to call more
// than once and in any state; it does not disturb a Failed state.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.state == StateClosed {
		d.mu.Unlock()
		return nil
	}
	if d.state != StateFailed {
		d.state = StateClosed
	}
	readStarted := d.readStarted
	beatStarted := d.beatStarted
	t := d.transport
	d.transport = nil
	d.mu.Unlock()

	d.stopOnce.Do(func() { close(d.stop) })

	// Join only loops that were spawned; a failed Start never reaches
	// the heartbeat. Joins are bounded so a Close issued from a
	// dispatch callback cannot deadlock on its own goroutine.
	if readStarted {
		d.join(d.readDone)
	}
	if beatStarted {
		d.join(d.beatDone)
	}

	if t != nil {
		return t.Close()
	}
	return nil
}

func (d *Driver) join(done chan struct{}) {
	select {
	case <-done:
	case <-time.After(d.joinTimeout):
	}
}

// readLoop frames the IN endpoint byte stream into messages and
// dispatches them until the session ends.
func (d *Driver) readLoop() {
	defer close(d.readDone)

	header := make([]byte, protocol.HeaderSize)
	for d.State() == StateRunning {
		if d.ConsecutiveErrors() >= MaxErrorCount {
			d.fail(fmt.Errorf("driver: %d consecutive transfer errors", MaxErrorCount))
			return
		}

		n, err := d.read(header, d.headerTimeout)
		if err != nil {
			if d.recoverTransfer(err, "header") {
				return
			}
			continue
		}
		if n < protocol.HeaderSize {
			logging.Warn("Short header read", zap.Int("bytes", n))
			d.bumpErrors()
			continue
		}

		hdr, err := protocol.DecodeHeader(header)
		if err != nil {
			var unknown *protocol.UnknownTypeError
			if errors.As(err, &unknown) {
				// The length field is still trustworthy; consume the
				// payload so the stream stays frame-aligned.
				if hdr.Length > 0 {
					if _, perr := d.readPayload(hdr.Length); perr != nil {
						if d.recoverTransfer(perr, "unknown-type payload") {
							return
						}
						continue
					}
				}
				logging.Debug("Skipping unknown message type",
					zap.Uint32("type", unknown.Type),
					zap.Uint32("length", hdr.Length),
				)
				continue
			}
			logging.Warn("Dropping malformed header", zap.Error(err))
			logging.LogRawBytes("Malformed header bytes", header)
			d.bumpErrors()
			continue
		}

		var payload []byte
		if hdr.Length > 0 {
			payload, err = d.readPayload(hdr.Length)
			if err != nil {
				if d.recoverTransfer(err, hdr.Type.String()) {
					return
				}
				continue
			}
		}

		msg, err := protocol.DecodeBody(hdr, payload)
		if err != nil {
			logging.Warn("Dropping malformed payload",
				zap.Stringer("type", hdr.Type),
				zap.Error(err),
			)
			d.bumpErrors()
			continue
		}

		d.resetErrors()
		if msg == nil {
			// Heartbeat echo; nothing to dispatch.
			continue
		}
		logging.LogFrame("in", hdr.Type, payload)
		d.dispatch(msg)
	}
}

// readPayload reads exactly length payload bytes in bounded chunks.
func (d *Driver) readPayload(length uint32) ([]byte, error) {
	payload := make([]byte, length)
	read := 0
	for read < int(length) {
		chunk := int(length) - read
		if chunk > payloadChunk {
			chunk = payloadChunk
		}
		n, err := d.read(payload[read:read+chunk], d.payloadTimeout)
		if err != nil {
			return nil, err
		}
		read += n
	}
	return payload, nil
}

func (d *Driver) read(buf []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	t := d.transport
	d.mu.Unlock()
	if t == nil {
		return 0, usb.ErrDeviceGone
	}
	return t.Read(buf, timeout)
}

// recoverTransfer applies the recovery policy for a failed transfer and
// reports whether the read loop must exit.
func (d *Driver) recoverTransfer(err error, during string) (fatal bool) {
	switch {
	case errors.Is(err, usb.ErrTimeout):
		// Idle bus; not an error.
		return false

	case errors.Is(err, usb.ErrDeviceGone):
		d.fail(err)
		return true

	case errors.Is(err, usb.ErrOverflow):
		// The endpoint buffered more than we asked for. Drain the
		// backlog and clear the halt; the stream has lost framing
		// anyway, so the stale bytes are useless. Not counted as an
		// error: the dongle keeps working afterwards.
		logging.Warn("IN endpoint overflow, draining", zap.String("during", during))
		d.drainIn()
		if cerr := d.clearHaltIn(); cerr != nil {
			logging.Warn("Clearing halt after overflow failed", zap.Error(cerr))
		}
		time.Sleep(d.overflowSettle)
		return false

	case errors.Is(err, usb.ErrStall):
		logging.Warn("IN endpoint stalled, clearing halt", zap.String("during", during))
		if cerr := d.clearHaltIn(); cerr != nil {
			logging.Warn("Clearing halt after stall failed", zap.Error(cerr))
		}
		time.Sleep(d.stallSettle)
		d.bumpErrors()
		return false

	default:
		logging.Warn("Transfer error",
			zap.String("during", during),
			zap.Error(err),
		)
		d.bumpErrors()
		return false
	}
}

// drainIn reads and discards buffered IN data until the endpoint goes
// quiet.
func (d *Driver) drainIn() {
	d.mu.Lock()
	t := d.transport
	d.mu.Unlock()
	if t == nil {
		return
	}

	buf := make([]byte, t.MaxPacketSize())
	for {
		n, err := t.Read(buf, d.drainTimeout)
		if err != nil || n == 0 {
			return
		}
	}
}

func (d *Driver) clearHaltIn() error {
	d.mu.Lock()
	t := d.transport
	d.mu.Unlock()
	if t == nil {
		return usb.ErrDeviceGone
	}
	return t.ClearHaltIn()
}

func (d *Driver) heartbeatLoop() {
	defer close(d.beatDone)

	ticker := time.NewTicker(d.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			if !d.Send(&protocol.SendHeartbeat{}) {
				logging.Warn("Heartbeat send failed")
			}
		}
	}
}

func (d *Driver) dispatch(msg protocol.Message) {
	d.mu.Lock()
	subs := make([]MessageFunc, len(d.msgSubs))
	copy(subs, d.msgSubs)
	d.mu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}
}

// fail moves the driver to the Failed state and notifies failure
// subscribers exactly once. Closed and Failed states are not disturbed.
func (d *Driver) fail(cause error) {
	d.mu.Lock()
	if d.state == StateFailed || d.state == StateClosed {
		d.mu.Unlock()
		return
	}
	d.state = StateFailed
	subs := make([]FailureFunc, len(d.failSubs))
	copy(subs, d.failSubs)
	d.mu.Unlock()

	d.stopOnce.Do(func() { close(d.stop) })

	logging.Error("Dongle connection failed", zap.Error(cause))
	for _, fn := range subs {
		fn(cause)
	}
}

func (d *Driver) bumpErrors() {
	d.mu.Lock()
	d.errorCount++
	count := d.errorCount
	d.mu.Unlock()
	logging.Debug("Consecutive transfer errors", zap.Int("count", count))
}

func (d *Driver) resetErrors() {
	d.mu.Lock()
	d.errorCount = 0
	d.mu.Unlock()
}
