package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Dongle filesystem paths addressed by SendFile messages. The dongle
// interprets writes to these paths as configuration updates.
const (
	FileDPI             = "/tmp/screen_dpi"
	FileNightMode       = "/tmp/night_mode"
	FileHandDriveMode   = "/tmp/hand_drive_mode"
	FileChargeMode      = "/tmp/charge_mode"
	FileBoxName         = "/etc/box_name"
	FileOEMIcon         = "/etc/oem_icon.png"
	FileAirplayConfig   = "/etc/airplay.conf"
	FileIcon120         = "/etc/icon_120x120.png"
	FileIcon180         = "/etc/icon_180x180.png"
	FileIcon256         = "/etc/icon_256x256.png"
	FileAndroidWorkMode = "/etc/android_work_mode"
)

// Sendable is an outbound message. Encode serializes it into a complete
// frame (header plus payload).
type Sendable interface {
	// SendType returns the wire type code of the message.
	SendType() MessageType
	// Payload returns the serialized payload bytes, which may be empty.
	Payload() ([]byte, error)
}

// Encode serializes an outbound message into header plus payload bytes.
func Encode(msg Sendable) ([]byte, error) {
	payload, err := msg.Payload()
	if err != nil {
		return nil, fmt.Errorf("protocol: encoding %s: %w", msg.SendType(), err)
	}
	frame := EncodeHeader(msg.SendType(), len(payload))
	return append(frame, payload...), nil
}

// SendCommand sends a key press or session control request.
type SendCommand struct {
	Value CommandValue
}

// NewSendCommand builds a SendCommand from a command name.
func NewSendCommand(name string) (*SendCommand, error) {
	value, ok := CommandByName(name)
	if !ok {
		return nil, fmt.Errorf("protocol: unknown command name %q", name)
	}
	return &SendCommand{Value: value}, nil
}

func (*SendCommand) SendType() MessageType { return TypeCommand }

func (m *SendCommand) Payload() ([]byte, error) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(m.Value))
	return buf, nil
}

// TouchAction is a single-touch event phase.
type TouchAction uint32

// Touch phases
const (
	TouchDown TouchAction = 14
	TouchMove TouchAction = 15
	TouchUp   TouchAction = 16
)

// Touch sends a single-touch event. X and Y are normalized to [0, 1];
// values outside that range are clamped during encoding.
type Touch struct {
	X      float64
	Y      float64
	Action TouchAction
}

func (*Touch) SendType() MessageType { return TypeTouch }

func (m *Touch) Payload() ([]byte, error) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.Action))
	binary.LittleEndian.PutUint32(buf[4:8], clampCoord(m.X))
	binary.LittleEndian.PutUint32(buf[8:12], clampCoord(m.Y))
	// Last word is reserved, always zero.
	return buf, nil
}

// clampCoord scales a normalized coordinate to the device's [0, 10000]
// integer range.
func clampCoord(v float64) uint32 {
	scaled := int(10000 * v)
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 10000 {
		scaled = 10000
	}
	return uint32(scaled)
}

// MultiTouchAction is a multi-touch event phase. Note the values differ
// from single-touch phases.
type MultiTouchAction uint32

// Multi-touch phases
const (
	MultiTouchUp   MultiTouchAction = 0
	MultiTouchDown MultiTouchAction = 1
	MultiTouchMove MultiTouchAction = 2
)

// TouchPoint is one contact in a multi-touch event.
type TouchPoint struct {
	X      float32
	Y      float32
	Action MultiTouchAction
	ID     uint32
}

// MultiTouch sends a multi-touch event with one 16-byte record per contact.
type MultiTouch struct {
	Touches []TouchPoint
}

func (*MultiTouch) SendType() MessageType { return TypeMultiTouch }

func (m *MultiTouch) Payload() ([]byte, error) {
	buf := make([]byte, 16*len(m.Touches))
	for i, p := range m.Touches {
		off := i * 16
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(p.X))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(p.Y))
		binary.LittleEndian.PutUint32(buf[off+8:], uint32(p.Action))
		binary.LittleEndian.PutUint32(buf[off+12:], p.ID)
	}
	return buf, nil
}

// SendAudio sends microphone PCM to the phone. Data is raw PCM16LE at
// 16 kHz mono (decode type 5).
type SendAudio struct {
	Data []byte
}

func (*SendAudio) SendType() MessageType { return TypeAudioData }

func (m *SendAudio) Payload() ([]byte, error) {
	buf := make([]byte, 12+len(m.Data))
	binary.LittleEndian.PutUint32(buf[0:4], 5) // decode type: 16 kHz mono
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(0))
	binary.LittleEndian.PutUint32(buf[8:12], 3) // audio type: voice
	copy(buf[12:], m.Data)
	return buf, nil
}

// SendFile writes a file on the dongle filesystem. Most dongle settings
// are plain files under /tmp and /etc; see the File* path constants.
type SendFile struct {
	Name    string
	Content []byte
}

func (*SendFile) SendType() MessageType { return TypeSendFile }

func (m *SendFile) Payload() ([]byte, error) {
	// Name is ASCII with a NUL terminator included in its length.
	name := append([]byte(m.Name), 0)
	buf := make([]byte, 0, 8+len(name)+len(m.Content))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(name)))
	buf = append(buf, name...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Content)))
	buf = append(buf, m.Content...)
	return buf, nil
}

// NewNumberFile builds a SendFile writing a little-endian uint32 value.
func NewNumberFile(value uint32, path string) *SendFile {
	content := make([]byte, 4)
	binary.LittleEndian.PutUint32(content, value)
	return &SendFile{Name: path, Content: content}
}

// NewBoolFile builds a SendFile writing 1 or 0.
func NewBoolFile(value bool, path string) *SendFile {
	if value {
		return NewNumberFile(1, path)
	}
	return NewNumberFile(0, path)
}

// maxStringFileLen is the dongle's limit for string settings files.
const maxStringFileLen = 16

// NewStringFile builds a SendFile writing an ASCII string, truncated to the
// dongle's 16-character limit.
func NewStringFile(value, path string) *SendFile {
	if len(value) > maxStringFileLen {
		value = value[:maxStringFileLen]
	}
	return &SendFile{Name: path, Content: []byte(value)}
}

// SendOpen starts a dongle session with the negotiated video parameters.
type SendOpen struct {
	Width         uint32
	Height        uint32
	FPS           uint32
	Format        uint32
	PacketMax     uint32
	IBoxVersion   uint32
	PhoneWorkMode uint32
}

func (*SendOpen) SendType() MessageType { return TypeOpen }

func (m *SendOpen) Payload() ([]byte, error) {
	buf := make([]byte, 28)
	binary.LittleEndian.PutUint32(buf[0:4], m.Width)
	binary.LittleEndian.PutUint32(buf[4:8], m.Height)
	binary.LittleEndian.PutUint32(buf[8:12], m.FPS)
	binary.LittleEndian.PutUint32(buf[12:16], m.Format)
	binary.LittleEndian.PutUint32(buf[16:20], m.PacketMax)
	binary.LittleEndian.PutUint32(buf[20:24], m.IBoxVersion)
	binary.LittleEndian.PutUint32(buf[24:28], m.PhoneWorkMode)
	return buf, nil
}

// SendBoxSettings pushes the JSON settings blob to the dongle. SyncTime
// defaults to the current Unix time when zero.
type SendBoxSettings struct {
	MediaDelay int
	Width      int
	Height     int
	SyncTime   int64
}

func (*SendBoxSettings) SendType() MessageType { return TypeBoxSettings }

func (m *SendBoxSettings) Payload() ([]byte, error) {
	syncTime := m.SyncTime
	if syncTime == 0 {
		syncTime = time.Now().Unix()
	}
	settings := map[string]any{
		"mediaDelay":       m.MediaDelay,
		"syncTime":         syncTime,
		"androidAutoSizeW": m.Width,
		"androidAutoSizeH": m.Height,
	}
	return json.Marshal(settings)
}

// LogoKind selects the logo shown on the dongle's built-in UI.
type LogoKind uint32

// Logo kinds
const (
	LogoHomeButton LogoKind = 1
	LogoSiri       LogoKind = 2
)

// SendLogoType selects the dongle's logo style.
type SendLogoType struct {
	Logo LogoKind
}

func (*SendLogoType) SendType() MessageType { return TypeLogoType }

func (m *SendLogoType) Payload() ([]byte, error) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(m.Logo))
	return buf, nil
}

// SendHeartbeat is the periodic keep-alive. No payload.
type SendHeartbeat struct{}

func (*SendHeartbeat) SendType() MessageType { return TypeHeartBeat }

func (*SendHeartbeat) Payload() ([]byte, error) { return nil, nil }

// SendDisconnectPhone disconnects the phone; it may reconnect without the
// dongle being reopened.
type SendDisconnectPhone struct{}

func (*SendDisconnectPhone) SendType() MessageType { return TypeDisconnectPhone }

func (*SendDisconnectPhone) Payload() ([]byte, error) { return nil, nil }

// SendCloseDongle disconnects the phone and closes the dongle session.
type SendCloseDongle struct{}

func (*SendCloseDongle) SendType() MessageType { return TypeCloseDongle }

func (*SendCloseDongle) Payload() ([]byte, error) { return nil, nil }
