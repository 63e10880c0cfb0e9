package session

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/carlink/internal/audio"
	"github.com/muurk/carlink/internal/config"
	"github.com/muurk/carlink/internal/logging"
	"github.com/muurk/carlink/internal/protocol"
)

// Link is the outbound half of the driver the session runs on.
type Link interface {
	Send(protocol.Sendable) bool
}

// Hooks are the session's integration points with the host platform.
// Any of them may be nil; a missing hook is logged and skipped.
type Hooks struct {
	// StartMic begins microphone capture; captured PCM goes back
	// through SendMicAudio.
	StartMic func()
	// StopMic ends microphone capture.
	StopMic func()
	// Video receives each decoded video frame.
	Video func(*protocol.VideoData)
}

// EventKind classifies session events.
type EventKind string

// Event kinds
const (
	EventStatus         EventKind = "status"
	EventPhonePlugged   EventKind = "phone_plugged"
	EventPhoneUnplugged EventKind = "phone_unplugged"
	EventDongleInfo     EventKind = "dongle_info"
	EventMedia          EventKind = "media"
	EventAudioCommand   EventKind = "audio_command"
)

// Event is a session state change published to observers.
type Event struct {
	Kind   EventKind      `json:"kind"`
	Status string         `json:"status,omitempty"`
	Phone  string         `json:"phone,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Session interprets the dongle message stream and drives the
// projection session. Wire HandleMessage into the driver's message
// dispatch.
type Session struct {
	mu     sync.Mutex
	link   Link
	cfg    *config.Config
	player *audio.Player
	hooks  Hooks

	observers []func(Event)

	phone   protocol.PhoneType
	plugged bool

	pairingTimer  *time.Timer
	keepAliveStop chan struct{}
	stopped       bool

	pairingTimeout time.Duration
}

// New returns a Session sending on link. The player may be nil when
// audio is handled elsewhere.
func New(link Link, cfg *config.Config, player *audio.Player, hooks Hooks) *Session {
	return &Session{
		link:           link,
		cfg:            cfg,
		player:         player,
		hooks:          hooks,
		pairingTimeout: 15 * time.Second,
	}
}

// OnEvent registers an event observer. Register before Start.
func (s *Session) OnEvent(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Start arms the pairing timeout. The session is passive otherwise: it
// acts on messages as the driver dispatches them.
func (s *Session) Start() {
	s.mu.Lock()
	s.stopped = false
	s.mu.Unlock()
	s.armPairingTimer()
	s.publish(Event{Kind: EventStatus, Status: "waiting for phone"})
}

// Stop cancels the pairing timer and the keep-alive loop. It does not
// touch the driver.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.pairingTimer != nil {
		s.pairingTimer.Stop()
		s.pairingTimer = nil
	}
	stop := s.keepAliveStop
	s.keepAliveStop = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
}

func (s *Session) armPairingTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.plugged {
		return
	}
	if s.pairingTimer != nil {
		s.pairingTimer.Stop()
	}
	s.pairingTimer = time.AfterFunc(s.pairingTimeout, s.pairingTimedOut)
}

// pairingTimedOut asks the dongle to enter WiFi pairing mode, then
// re-arms so the request repeats until a phone joins.
func (s *Session) pairingTimedOut() {
	s.mu.Lock()
	skip := s.stopped || s.plugged
	s.mu.Unlock()
	if skip {
		return
	}

	logging.Info("No phone connected, requesting WiFi pairing mode")
	s.link.Send(&protocol.SendCommand{Value: protocol.CmdWifiPair})
	s.publish(Event{Kind: EventStatus, Status: "wifi pairing"})
	s.armPairingTimer()
}

// cancelPairingTimer stops the pairing countdown. Data traffic means a
// phone is already talking, even before a Plugged arrives.
func (s *Session) cancelPairingTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pairingTimer != nil {
		s.pairingTimer.Stop()
		s.pairingTimer = nil
	}
}

// HandleMessage interprets one decoded message. It runs on the driver's
// dispatch goroutine.
func (s *Session) HandleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.Plugged:
		s.phonePlugged(m)
	case *protocol.Unplugged:
		s.phoneUnplugged()
	case *protocol.AudioData:
		s.cancelPairingTimer()
		s.handleAudio(m)
	case *protocol.VideoData:
		s.cancelPairingTimer()
		if s.hooks.Video != nil {
			s.hooks.Video(m)
		}
	case *protocol.MediaData:
		s.cancelPairingTimer()
		if m.MediaType == protocol.MediaKindData {
			s.publish(Event{Kind: EventMedia, Detail: m.Media})
		}
	case *protocol.Command:
		s.publish(Event{
			Kind:   EventStatus,
			Status: "dongle command",
			Detail: map[string]any{"command": uint32(m.Value)},
		})
	case *protocol.Opened:
		s.publish(Event{Kind: EventDongleInfo, Detail: map[string]any{
			"width": m.Width, "height": m.Height, "fps": m.FPS,
		}})
	case *protocol.SoftwareVersion:
		s.publish(Event{Kind: EventDongleInfo, Detail: map[string]any{"software_version": m.Version}})
	case *protocol.BluetoothPIN:
		s.publish(Event{Kind: EventDongleInfo, Detail: map[string]any{"bluetooth_pin": m.PIN}})
	case *protocol.BluetoothDeviceName:
		s.publish(Event{Kind: EventDongleInfo, Detail: map[string]any{"bluetooth_name": m.Name}})
	case *protocol.WifiDeviceName:
		s.publish(Event{Kind: EventDongleInfo, Detail: map[string]any{"wifi_name": m.Name}})
	case *protocol.BluetoothAddress:
		s.publish(Event{Kind: EventDongleInfo, Detail: map[string]any{"bluetooth_address": m.Address}})
	case *protocol.WifiMacAddress:
		s.publish(Event{Kind: EventDongleInfo, Detail: map[string]any{"wifi_mac": m.MAC}})
	case *protocol.BluetoothMacAddress:
		s.publish(Event{Kind: EventDongleInfo, Detail: map[string]any{"bluetooth_mac": m.MAC}})
	case *protocol.EthernetMacAddress:
		s.publish(Event{Kind: EventDongleInfo, Detail: map[string]any{"ethernet_mac": m.MAC}})
	case *protocol.Phase:
		s.publish(Event{
			Kind:   EventStatus,
			Status: "connection phase",
			Detail: map[string]any{"phase": m.Phase},
		})
	case *protocol.HiCarLink:
		s.publish(Event{Kind: EventDongleInfo, Detail: map[string]any{"hicar_link": m.Link}})
	case *protocol.Unrecognized:
		logging.Debug("Unrecognized message observed",
			zap.Uint32("type", m.TypeCode),
			zap.Int("length", len(m.Data)),
		)
	}
}

func (s *Session) phonePlugged(m *protocol.Plugged) {
	s.mu.Lock()
	if s.pairingTimer != nil {
		s.pairingTimer.Stop()
		s.pairingTimer = nil
	}
	s.phone = m.PhoneType
	s.plugged = true
	if s.keepAliveStop != nil {
		close(s.keepAliveStop)
	}
	interval := s.cfg.FrameInterval(m.PhoneType)
	var stop chan struct{}
	if interval > 0 {
		stop = make(chan struct{})
	}
	s.keepAliveStop = stop
	s.mu.Unlock()

	logging.Info("Phone connected", zap.Stringer("phone", m.PhoneType))
	if s.player != nil {
		s.player.Reset()
	}
	if stop != nil {
		go s.keepAliveLoop(interval, stop)
	}
	s.publish(Event{Kind: EventPhonePlugged, Phone: m.PhoneType.String()})
}

func (s *Session) phoneUnplugged() {
	s.mu.Lock()
	s.plugged = false
	stop := s.keepAliveStop
	s.keepAliveStop = nil
	s.mu.Unlock()

	logging.Info("Phone disconnected")
	if stop != nil {
		close(stop)
	}
	if s.player != nil {
		s.player.Reset()
	}
	s.publish(Event{Kind: EventPhoneUnplugged})
	s.armPairingTimer()
}

// keepAliveLoop requests a video frame at the configured interval while
// the phone stays plugged.
func (s *Session) keepAliveLoop(interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			alive := s.plugged
			s.mu.Unlock()
			if !alive {
				return
			}
			s.link.Send(&protocol.SendCommand{Value: protocol.CmdFrame})
		}
	}
}

func (s *Session) handleAudio(m *protocol.AudioData) {
	switch m.Kind {
	case protocol.AudioKindCommand:
		s.handleAudioCommand(m.Command)
	case protocol.AudioKindVolumeDuration:
		logging.Debug("Audio volume fade",
			zap.Float32("duration", m.VolumeDuration),
			zap.Float32("volume", m.Volume),
		)
	case protocol.AudioKindPCM:
		if s.player == nil {
			return
		}
		if format, ok := m.Format(); ok {
			s.player.Configure(format)
		} else {
			logging.Warn("Unknown audio decode type", zap.Uint32("decode_type", m.DecodeType))
			return
		}
		s.player.Write(m.Data)
	}
}

func (s *Session) handleAudioCommand(cmd protocol.AudioCommand) {
	switch cmd {
	case protocol.AudioSiriStart, protocol.AudioPhonecallStart:
		s.startMic(cmd)
	case protocol.AudioSiriStop, protocol.AudioPhonecallStop:
		s.stopMic(cmd)
	case protocol.AudioOutputStart, protocol.AudioNaviStart, protocol.AudioMediaStart, protocol.AudioAlertStart:
		// Stream starts are implicit for playback; nothing to set up.
	case protocol.AudioOutputStop, protocol.AudioNaviStop, protocol.AudioMediaStop, protocol.AudioAlertStop:
	default:
		logging.Debug("Unhandled audio command", zap.Stringer("command", cmd))
	}
	s.publish(Event{Kind: EventAudioCommand, Detail: map[string]any{"command": cmd.String()}})
}

func (s *Session) startMic(cmd protocol.AudioCommand) {
	if s.hooks.StartMic == nil {
		logging.Warn("Microphone requested but no capture hook is set",
			zap.Stringer("command", cmd),
		)
		return
	}
	logging.Info("Starting microphone capture", zap.Stringer("command", cmd))
	s.hooks.StartMic()
}

func (s *Session) stopMic(cmd protocol.AudioCommand) {
	if s.hooks.StopMic == nil {
		return
	}
	logging.Info("Stopping microphone capture", zap.Stringer("command", cmd))
	s.hooks.StopMic()
}

// SendKey sends a named key or command to the phone.
func (s *Session) SendKey(name string) error {
	msg, err := protocol.NewSendCommand(name)
	if err != nil {
		return err
	}
	if !s.link.Send(msg) {
		return fmt.Errorf("session: sending key %q failed", name)
	}
	return nil
}

// SendTouch sends a single-touch event with normalized coordinates.
func (s *Session) SendTouch(x, y float64, action protocol.TouchAction) bool {
	return s.link.Send(&protocol.Touch{X: x, Y: y, Action: action})
}

// SendMultiTouch sends a multi-touch event.
func (s *Session) SendMultiTouch(points []protocol.TouchPoint) bool {
	return s.link.Send(&protocol.MultiTouch{Touches: points})
}

// SendMicAudio forwards captured microphone PCM to the phone.
func (s *Session) SendMicAudio(data []byte) bool {
	return s.link.Send(&protocol.SendAudio{Data: data})
}

// WriteFile writes a settings file on the dongle.
func (s *Session) WriteFile(path string, content []byte) bool {
	return s.link.Send(&protocol.SendFile{Name: path, Content: content})
}

// DisconnectPhone asks the dongle to drop the phone; it may reconnect
// on its own.
func (s *Session) DisconnectPhone() bool {
	return s.link.Send(&protocol.SendDisconnectPhone{})
}

// Plugged reports whether a phone is currently in the session, and
// which kind.
func (s *Session) Plugged() (protocol.PhoneType, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phone, s.plugged
}

func (s *Session) publish(ev Event) {
	s.mu.Lock()
	observers := make([]func(Event), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(ev)
	}
}
