package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// PayloadError reports a payload that could not be decoded for a known
// message type. These are per-message failures: the caller drops the
// message and keeps reading the stream.
type PayloadError struct {
	Type MessageType
	Err  error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("protocol: decoding %s payload: %v", e.Type, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// errShortPayload is the underlying cause for truncated payloads.
var errShortPayload = errors.New("payload too short")

func payloadErr(t MessageType, err error) error {
	return &PayloadError{Type: t, Err: err}
}

// Message is a decoded incoming message. The concrete type identifies the
// variant.
type Message interface {
	// Type returns the wire type code of the message.
	Type() MessageType
}

// Opened reports the session parameters the dongle accepted.
type Opened struct {
	Width         uint32
	Height        uint32
	FPS           uint32
	Format        uint32
	PacketMax     uint32
	IBoxVersion   uint32
	PhoneWorkMode uint32
}

func (*Opened) Type() MessageType { return TypeOpen }

// Plugged signals a phone joined the dongle session.
type Plugged struct {
	PhoneType PhoneType
	// Wifi is the wifi availability flag; only present on 8-byte payloads.
	Wifi    uint32
	HasWifi bool
}

func (*Plugged) Type() MessageType { return TypePlugged }

// Unplugged signals the phone left the dongle session.
type Unplugged struct{}

func (*Unplugged) Type() MessageType { return TypeUnplugged }

// Phase reports a connection phase change.
type Phase struct {
	Phase uint32
}

func (*Phase) Type() MessageType { return TypePhase }

// Command carries a dongle status notification.
type Command struct {
	Value CommandValue
}

func (*Command) Type() MessageType { return TypeCommand }

// ManufacturerInfo carries two opaque vendor identification words.
type ManufacturerInfo struct {
	A uint32
	B uint32
}

func (*ManufacturerInfo) Type() MessageType { return TypeManufacturerInfo }

// SoftwareVersion carries the dongle firmware version string.
type SoftwareVersion struct {
	Version string
}

func (*SoftwareVersion) Type() MessageType { return TypeSoftwareVersion }

// BluetoothAddress carries the dongle's Bluetooth address as ASCII.
type BluetoothAddress struct {
	Address string
}

func (*BluetoothAddress) Type() MessageType { return TypeBluetoothAddress }

// BluetoothPIN carries the Bluetooth pairing PIN.
type BluetoothPIN struct {
	PIN string
}

func (*BluetoothPIN) Type() MessageType { return TypeBluetoothPIN }

// BluetoothDeviceName carries the dongle's Bluetooth device name.
type BluetoothDeviceName struct {
	Name string
}

func (*BluetoothDeviceName) Type() MessageType { return TypeBluetoothDeviceName }

// WifiDeviceName carries the dongle's WiFi SSID.
type WifiDeviceName struct {
	Name string
}

func (*WifiDeviceName) Type() MessageType { return TypeWifiDeviceName }

// BluetoothPairedList carries the dongle's paired device list as ASCII.
type BluetoothPairedList struct {
	Data string
}

func (*BluetoothPairedList) Type() MessageType { return TypeBluetoothPairedList }

// HiCarLink carries the HiCar pairing link.
type HiCarLink struct {
	Link string
}

func (*HiCarLink) Type() MessageType { return TypeHiCarLink }

// WifiMacAddress carries the dongle's WiFi MAC address as ASCII.
type WifiMacAddress struct {
	MAC string
}

func (*WifiMacAddress) Type() MessageType { return TypeWifiMacAddress }

// BluetoothMacAddress carries the dongle's Bluetooth MAC address as ASCII.
type BluetoothMacAddress struct {
	MAC string
}

func (*BluetoothMacAddress) Type() MessageType { return TypeBluetoothMacAddress }

// EthernetMacAddress carries the dongle's Ethernet MAC address as ASCII.
type EthernetMacAddress struct {
	MAC string
}

func (*EthernetMacAddress) Type() MessageType { return TypeEthernetMacAddress }

// BoxInfo carries the dongle's settings blob, decoded from JSON.
type BoxInfo struct {
	Settings map[string]any
}

func (*BoxInfo) Type() MessageType { return TypeBoxSettings }

// VideoData carries one encoded video frame.
type VideoData struct {
	Width    uint32
	Height   uint32
	Flags    uint32
	Length   uint32
	Reserved uint32
	Data     []byte
}

func (*VideoData) Type() MessageType { return TypeVideoData }

// AudioKind tags which of the three AudioData payload interpretations a
// message carries. Exactly one applies per message, determined by payload
// length.
type AudioKind int

// AudioData payload interpretations
const (
	AudioKindPCM            AudioKind = iota // Data holds PCM16LE samples
	AudioKindCommand                         // Command holds a control code
	AudioKindVolumeDuration                  // VolumeDuration holds a fade time
)

// AudioData carries PCM audio, an audio control code, or a volume fade
// duration, depending on Kind.
type AudioData struct {
	DecodeType uint32
	Volume     float32
	AudioType  uint32

	Kind           AudioKind
	Command        AudioCommand
	VolumeDuration float32
	Data           []int16
}

func (*AudioData) Type() MessageType { return TypeAudioData }

// Format returns the PCM format implied by the message decode type.
func (a *AudioData) Format() (AudioFormat, bool) {
	return AudioFormatFor(a.DecodeType)
}

// MediaData carries now-playing metadata or album art.
type MediaData struct {
	MediaType MediaType
	// Media holds decoded metadata for MediaKindData payloads.
	Media map[string]any
	// AlbumCover holds raw image bytes for MediaKindAlbumCover payloads.
	AlbumCover []byte
}

func (*MediaData) Type() MessageType { return TypeMediaData }

// Unrecognized preserves a frame whose type code has no defined layout.
type Unrecognized struct {
	TypeCode uint32
	Data     []byte
}

func (u *Unrecognized) Type() MessageType { return MessageType(u.TypeCode) }

// DecodeBody decodes a message payload according to the header type.
//
// A nil Message with a nil error means the frame carries nothing to
// dispatch: heartbeat responses are filtered here, as are known types whose
// payload is required but absent. Headers with unrecognized type codes
// decode to an *Unrecognized message so callers can observe them.
func DecodeBody(hdr Header, data []byte) (Message, error) {
	switch hdr.Type {
	case TypeUnplugged:
		// No payload by design.
		return &Unplugged{}, nil
	case TypeHeartBeat:
		// Heartbeat responses are ignored.
		return nil, nil
	}

	if !hdr.Type.known() {
		return &Unrecognized{TypeCode: uint32(hdr.Type), Data: data}, nil
	}

	if len(data) == 0 {
		return nil, payloadErr(hdr.Type, errShortPayload)
	}

	switch hdr.Type {
	case TypeOpen:
		return decodeOpened(data)
	case TypePlugged:
		return decodePlugged(data)
	case TypePhase:
		if len(data) < 4 {
			return nil, payloadErr(TypePhase, errShortPayload)
		}
		return &Phase{Phase: binary.LittleEndian.Uint32(data)}, nil
	case TypeCommand:
		if len(data) < 4 {
			return nil, payloadErr(TypeCommand, errShortPayload)
		}
		return &Command{Value: CommandValue(binary.LittleEndian.Uint32(data))}, nil
	case TypeManufacturerInfo:
		if len(data) < 8 {
			return nil, payloadErr(TypeManufacturerInfo, errShortPayload)
		}
		return &ManufacturerInfo{
			A: binary.LittleEndian.Uint32(data[0:4]),
			B: binary.LittleEndian.Uint32(data[4:8]),
		}, nil
	case TypeSoftwareVersion:
		return &SoftwareVersion{Version: asciiString(data)}, nil
	case TypeBluetoothAddress:
		return &BluetoothAddress{Address: asciiString(data)}, nil
	case TypeBluetoothPIN:
		return &BluetoothPIN{PIN: asciiString(data)}, nil
	case TypeBluetoothDeviceName:
		return &BluetoothDeviceName{Name: asciiString(data)}, nil
	case TypeWifiDeviceName:
		return &WifiDeviceName{Name: asciiString(data)}, nil
	case TypeBluetoothPairedList:
		return &BluetoothPairedList{Data: asciiString(data)}, nil
	case TypeHiCarLink:
		return &HiCarLink{Link: asciiString(data)}, nil
	case TypeWifiMacAddress:
		return &WifiMacAddress{MAC: asciiString(data)}, nil
	case TypeBluetoothMacAddress:
		return &BluetoothMacAddress{MAC: asciiString(data)}, nil
	case TypeEthernetMacAddress:
		return &EthernetMacAddress{MAC: asciiString(data)}, nil
	case TypeBoxSettings:
		return decodeBoxInfo(data)
	case TypeVideoData:
		return decodeVideoData(data)
	case TypeAudioData:
		return decodeAudioData(data)
	case TypeMediaData:
		return decodeMediaData(data)
	default:
		// Known outbound-only types (Touch, SendFile, ...) have no inbound
		// layout; preserve them rather than guess.
		return &Unrecognized{TypeCode: uint32(hdr.Type), Data: data}, nil
	}
}

func decodeOpened(data []byte) (Message, error) {
	if len(data) < 28 {
		return nil, payloadErr(TypeOpen, errShortPayload)
	}
	return &Opened{
		Width:         binary.LittleEndian.Uint32(data[0:4]),
		Height:        binary.LittleEndian.Uint32(data[4:8]),
		FPS:           binary.LittleEndian.Uint32(data[8:12]),
		Format:        binary.LittleEndian.Uint32(data[12:16]),
		PacketMax:     binary.LittleEndian.Uint32(data[16:20]),
		IBoxVersion:   binary.LittleEndian.Uint32(data[20:24]),
		PhoneWorkMode: binary.LittleEndian.Uint32(data[24:28]),
	}, nil
}

func decodePlugged(data []byte) (Message, error) {
	if len(data) < 4 {
		return nil, payloadErr(TypePlugged, errShortPayload)
	}
	msg := &Plugged{PhoneType: PhoneType(binary.LittleEndian.Uint32(data[0:4]))}
	if len(data) >= 8 {
		msg.Wifi = binary.LittleEndian.Uint32(data[4:8])
		msg.HasWifi = true
	}
	return msg, nil
}

func decodeBoxInfo(data []byte) (Message, error) {
	var settings map[string]any
	if err := json.Unmarshal(bytes.TrimRight(data, "\x00"), &settings); err != nil {
		return nil, payloadErr(TypeBoxSettings, err)
	}
	return &BoxInfo{Settings: settings}, nil
}

func decodeVideoData(data []byte) (Message, error) {
	if len(data) < 20 {
		return nil, payloadErr(TypeVideoData, errShortPayload)
	}
	return &VideoData{
		Width:    binary.LittleEndian.Uint32(data[0:4]),
		Height:   binary.LittleEndian.Uint32(data[4:8]),
		Flags:    binary.LittleEndian.Uint32(data[8:12]),
		Length:   binary.LittleEndian.Uint32(data[12:16]),
		Reserved: binary.LittleEndian.Uint32(data[16:20]),
		Data:     data[20:],
	}, nil
}

func decodeAudioData(data []byte) (Message, error) {
	if len(data) < 12 {
		return nil, payloadErr(TypeAudioData, errShortPayload)
	}
	msg := &AudioData{
		DecodeType: binary.LittleEndian.Uint32(data[0:4]),
		Volume:     math.Float32frombits(binary.LittleEndian.Uint32(data[4:8])),
		AudioType:  binary.LittleEndian.Uint32(data[8:12]),
	}

	// The remainder length selects the payload interpretation: one byte is
	// a control code, four bytes a volume fade duration, anything else
	// PCM16LE samples.
	rest := data[12:]
	switch len(rest) {
	case 1:
		msg.Kind = AudioKindCommand
		msg.Command = AudioCommand(rest[0])
	case 4:
		msg.Kind = AudioKindVolumeDuration
		msg.VolumeDuration = math.Float32frombits(binary.LittleEndian.Uint32(rest))
	default:
		msg.Kind = AudioKindPCM
		samples := make([]int16, len(rest)/2)
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(rest[i*2:]))
		}
		msg.Data = samples
	}
	return msg, nil
}

func decodeMediaData(data []byte) (Message, error) {
	if len(data) < 4 {
		return nil, payloadErr(TypeMediaData, errShortPayload)
	}
	mediaType := MediaType(binary.LittleEndian.Uint32(data[0:4]))

	switch mediaType {
	case MediaKindAlbumCover:
		return &MediaData{MediaType: mediaType, AlbumCover: data[4:]}, nil
	case MediaKindData:
		body := bytes.TrimRight(data[4:], "\x00")
		var media map[string]any
		if err := json.Unmarshal(body, &media); err != nil {
			return nil, payloadErr(TypeMediaData, err)
		}
		return &MediaData{MediaType: mediaType, Media: media}, nil
	default:
		return nil, payloadErr(TypeMediaData, fmt.Errorf("unexpected media type %d", mediaType))
	}
}

// asciiString interprets payload bytes as a NUL-terminated ASCII string.
func asciiString(data []byte) string {
	s := strings.TrimRight(string(data), "\x00")
	// Drop any non-ASCII garbage the firmware occasionally appends.
	return strings.Map(func(r rune) rune {
		if r > 127 {
			return -1
		}
		return r
	}, s)
}
