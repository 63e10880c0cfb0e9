package config

import (
	"fmt"
	"time"

	"github.com/muurk/carlink/internal/protocol"
)

// HandDrive selects the steering side the phone UI is laid out for.
type HandDrive int

// Drive sides
const (
	LeftHandDrive  HandDrive = 0
	RightHandDrive HandDrive = 1
)

// WiFi bands accepted by the dongle
const (
	WifiBand24GHz = "2.4ghz"
	WifiBand5GHz  = "5ghz"
)

// Microphone sources
const (
	// MicSourceOS captures microphone audio on the host and streams it
	// to the dongle.
	MicSourceOS = "os"
	// MicSourceBox uses the dongle's own microphone input.
	MicSourceBox = "box"
)

// PhoneConfig holds per-phone-type session tuning.
type PhoneConfig struct {
	// FrameInterval is the period of the periodic frame-request
	// keep-alive command. Zero disables the keep-alive for this phone
	// type.
	FrameInterval time.Duration `yaml:"frame_interval"`
}

// AudioConfig holds the playback buffering tunables.
type AudioConfig struct {
	// PreBuffer is the amount of audio accumulated before playback
	// starts, and the occupancy emergency resync trims back to.
	PreBuffer time.Duration `yaml:"pre_buffer"`
	// HardCeiling is the buffer occupancy beyond which an emergency
	// resync discards the excess.
	HardCeiling time.Duration `yaml:"hard_ceiling"`
	// Capacity is the total ring buffer duration.
	Capacity time.Duration `yaml:"capacity"`
}

// ReconnectConfig holds the reconnection supervisor policy.
type ReconnectConfig struct {
	// BaseDelay is the first retry delay; subsequent retries double it.
	BaseDelay time.Duration `yaml:"base_delay"`
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration `yaml:"max_delay"`
	// MaxAttempts is the number of automatic retries before giving up
	// and requiring manual reconnection.
	MaxAttempts int `yaml:"max_attempts"`
	// DecoderErrorDelay is the fixed wait before reconnecting after the
	// video decoder reports repeated failures. The dongle needs this
	// long to tear down its own session state.
	DecoderErrorDelay time.Duration `yaml:"decoder_error_delay"`
}

// MonitorConfig holds the optional monitor server settings.
type MonitorConfig struct {
	// Enabled starts the WebSocket event stream server.
	Enabled bool `yaml:"enabled"`
	// Addr is the listen address, e.g. ":8632".
	Addr string `yaml:"addr"`
	// MDNS advertises the monitor server over mDNS so frontends can
	// find it without configuration.
	MDNS bool `yaml:"mdns"`
}

// Config is the complete bridge configuration.
type Config struct {
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	FPS           int    `yaml:"fps"`
	DPI           int    `yaml:"dpi"`
	Format        int    `yaml:"format"`
	IBoxVersion   int    `yaml:"ibox_version"`
	PhoneWorkMode int    `yaml:"phone_work_mode"`
	PacketMax     int    `yaml:"packet_max"`
	BoxName       string `yaml:"box_name"`
	NightMode     bool   `yaml:"night_mode"`

	Hand              HandDrive `yaml:"hand_drive"`
	MediaDelay        int       `yaml:"media_delay"`
	AudioTransferMode bool      `yaml:"audio_transfer_mode"`
	WifiBand          string    `yaml:"wifi_band"`
	MicSource         string    `yaml:"mic_source"`
	// AndroidWorkMode is only sent when set explicitly; the dongle keeps
	// its stored value otherwise.
	AndroidWorkMode *bool `yaml:"android_work_mode,omitempty"`

	PhoneConfig map[protocol.PhoneType]PhoneConfig `yaml:"phone_config"`

	Audio     AudioConfig     `yaml:"audio"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Monitor   MonitorConfig   `yaml:"monitor"`
}

// Default returns the configuration the bridge runs with when no file is
// provided.
func Default() *Config {
	return &Config{
		Width:         800,
		Height:        640,
		FPS:           30,
		DPI:           160,
		Format:        5,
		IBoxVersion:   2,
		PhoneWorkMode: 2,
		PacketMax:     49152,
		BoxName:       "CarLink",
		Hand:          LeftHandDrive,
		MediaDelay:    300,
		WifiBand:      WifiBand5GHz,
		MicSource:     MicSourceOS,
		PhoneConfig: map[protocol.PhoneType]PhoneConfig{
			// CarPlay stops pushing frames on a static UI; a periodic
			// frame request keeps the stream alive. Android Auto pushes
			// continuously and needs none.
			protocol.PhoneCarPlay:     {FrameInterval: 5 * time.Second},
			protocol.PhoneAndroidAuto: {},
		},
		Audio: AudioConfig{
			PreBuffer:   1500 * time.Millisecond,
			HardCeiling: 5 * time.Second,
			Capacity:    20 * time.Second,
		},
		Reconnect: ReconnectConfig{
			BaseDelay:         5 * time.Second,
			MaxDelay:          30 * time.Second,
			MaxAttempts:       5,
			DecoderErrorDelay: 15 * time.Second,
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Addr:    ":8632",
			MDNS:    true,
		},
	}
}

// Validate rejects configurations the dongle would not accept.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: invalid resolution %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("config: invalid fps %d", c.FPS)
	}
	if c.DPI <= 0 {
		return fmt.Errorf("config: invalid dpi %d", c.DPI)
	}
	if c.WifiBand != WifiBand24GHz && c.WifiBand != WifiBand5GHz {
		return fmt.Errorf("config: unknown wifi band %q", c.WifiBand)
	}
	if c.MicSource != MicSourceOS && c.MicSource != MicSourceBox {
		return fmt.Errorf("config: unknown mic source %q", c.MicSource)
	}
	if c.Hand != LeftHandDrive && c.Hand != RightHandDrive {
		return fmt.Errorf("config: unknown hand drive side %d", c.Hand)
	}
	for phone, pc := range c.PhoneConfig {
		if pc.FrameInterval < 0 {
			return fmt.Errorf("config: negative frame interval for %s", phone)
		}
	}
	if c.Audio.PreBuffer <= 0 || c.Audio.HardCeiling <= c.Audio.PreBuffer {
		return fmt.Errorf("config: audio pre-buffer %v must be positive and below hard ceiling %v",
			c.Audio.PreBuffer, c.Audio.HardCeiling)
	}
	if c.Audio.Capacity <= c.Audio.HardCeiling {
		return fmt.Errorf("config: audio capacity %v must exceed hard ceiling %v",
			c.Audio.Capacity, c.Audio.HardCeiling)
	}
	if c.Reconnect.MaxAttempts <= 0 {
		return fmt.Errorf("config: reconnect max attempts must be positive")
	}
	if c.Reconnect.BaseDelay <= 0 || c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("config: reconnect delays base %v / max %v are inconsistent",
			c.Reconnect.BaseDelay, c.Reconnect.MaxDelay)
	}
	return nil
}

// FrameInterval returns the keep-alive period configured for a phone
// type, or zero when none applies.
func (c *Config) FrameInterval(phone protocol.PhoneType) time.Duration {
	return c.PhoneConfig[phone].FrameInterval
}
