package protocol

import "fmt"

// MessageType identifies a frame's payload layout.
type MessageType uint32

// Message type codes (from USB captures and the vendor SDK)
const (
	TypeOpen                MessageType = 0x01 // outbound session open; inbound Opened echo
	TypePlugged             MessageType = 0x02
	TypePhase               MessageType = 0x03
	TypeUnplugged           MessageType = 0x04
	TypeTouch               MessageType = 0x05
	TypeVideoData           MessageType = 0x06
	TypeAudioData           MessageType = 0x07
	TypeCommand             MessageType = 0x08
	TypeLogoType            MessageType = 0x09
	TypeBluetoothAddress    MessageType = 0x0a
	TypeBluetoothPIN        MessageType = 0x0c
	TypeBluetoothDeviceName MessageType = 0x0d
	TypeWifiDeviceName      MessageType = 0x0e
	TypeDisconnectPhone     MessageType = 0x0f
	TypeBluetoothPairedList MessageType = 0x12
	TypeManufacturerInfo    MessageType = 0x14
	TypeCloseDongle         MessageType = 0x15
	TypeMultiTouch          MessageType = 0x17
	TypeHiCarLink           MessageType = 0x18
	TypeBoxSettings         MessageType = 0x19
	TypeWifiMacAddress      MessageType = 0x23
	TypeBluetoothMacAddress MessageType = 0x24
	TypeEthernetMacAddress  MessageType = 0x26
	TypeMediaData           MessageType = 0x2a
	TypeSendFile            MessageType = 0x99
	TypeHeartBeat           MessageType = 0xaa
	TypeSoftwareVersion     MessageType = 0xcc
)

// known reports whether the type code has a defined payload layout.
func (t MessageType) known() bool {
	switch t {
	case TypeOpen, TypePlugged, TypePhase, TypeUnplugged, TypeTouch,
		TypeVideoData, TypeAudioData, TypeCommand, TypeLogoType,
		TypeBluetoothAddress, TypeBluetoothPIN, TypeBluetoothDeviceName,
		TypeWifiDeviceName, TypeDisconnectPhone, TypeBluetoothPairedList,
		TypeManufacturerInfo, TypeCloseDongle, TypeMultiTouch,
		TypeHiCarLink, TypeBoxSettings, TypeWifiMacAddress,
		TypeBluetoothMacAddress, TypeEthernetMacAddress, TypeMediaData,
		TypeSendFile, TypeHeartBeat, TypeSoftwareVersion:
		return true
	}
	return false
}

// String returns a human-readable type name.
func (t MessageType) String() string {
	switch t {
	case TypeOpen:
		return "Open"
	case TypePlugged:
		return "Plugged"
	case TypePhase:
		return "Phase"
	case TypeUnplugged:
		return "Unplugged"
	case TypeTouch:
		return "Touch"
	case TypeVideoData:
		return "VideoData"
	case TypeAudioData:
		return "AudioData"
	case TypeCommand:
		return "Command"
	case TypeLogoType:
		return "LogoType"
	case TypeBluetoothAddress:
		return "BluetoothAddress"
	case TypeBluetoothPIN:
		return "BluetoothPIN"
	case TypeBluetoothDeviceName:
		return "BluetoothDeviceName"
	case TypeWifiDeviceName:
		return "WifiDeviceName"
	case TypeDisconnectPhone:
		return "DisconnectPhone"
	case TypeBluetoothPairedList:
		return "BluetoothPairedList"
	case TypeManufacturerInfo:
		return "ManufacturerInfo"
	case TypeCloseDongle:
		return "CloseDongle"
	case TypeMultiTouch:
		return "MultiTouch"
	case TypeHiCarLink:
		return "HiCarLink"
	case TypeBoxSettings:
		return "BoxSettings"
	case TypeWifiMacAddress:
		return "WifiMacAddress"
	case TypeBluetoothMacAddress:
		return "BluetoothMacAddress"
	case TypeEthernetMacAddress:
		return "EthernetMacAddress"
	case TypeMediaData:
		return "MediaData"
	case TypeSendFile:
		return "SendFile"
	case TypeHeartBeat:
		return "HeartBeat"
	case TypeSoftwareVersion:
		return "SoftwareVersion"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint32(t))
	}
}

// PhoneType identifies the projection mode negotiated by the phone.
type PhoneType uint32

// Phone types reported in Plugged messages
const (
	PhoneAndroidMirror PhoneType = 1
	PhoneCarPlay       PhoneType = 3
	PhoneIPhoneMirror  PhoneType = 4
	PhoneAndroidAuto   PhoneType = 5
	PhoneHiCar         PhoneType = 6
)

// String returns a human-readable phone type name.
func (p PhoneType) String() string {
	switch p {
	case PhoneAndroidMirror:
		return "AndroidMirror"
	case PhoneCarPlay:
		return "CarPlay"
	case PhoneIPhoneMirror:
		return "iPhoneMirror"
	case PhoneAndroidAuto:
		return "AndroidAuto"
	case PhoneHiCar:
		return "HiCar"
	default:
		return fmt.Sprintf("PhoneType(%d)", uint32(p))
	}
}

// AudioCommand is a one-byte control code carried in AudioData messages.
type AudioCommand uint8

// Audio control codes. Codes 14-17 appear in captures but their semantics
// are unconfirmed; they are passed through as opaque values.
const (
	AudioOutputStart    AudioCommand = 1
	AudioOutputStop     AudioCommand = 2
	AudioInputConfig    AudioCommand = 3
	AudioPhonecallStart AudioCommand = 4
	AudioPhonecallStop  AudioCommand = 5
	AudioNaviStart      AudioCommand = 6
	AudioNaviStop       AudioCommand = 7
	AudioSiriStart      AudioCommand = 8
	AudioSiriStop       AudioCommand = 9
	AudioMediaStart     AudioCommand = 10
	AudioMediaStop      AudioCommand = 11
	AudioAlertStart     AudioCommand = 12
	AudioAlertStop      AudioCommand = 13
)

// String returns a human-readable audio command name.
func (c AudioCommand) String() string {
	switch c {
	case AudioOutputStart:
		return "AudioOutputStart"
	case AudioOutputStop:
		return "AudioOutputStop"
	case AudioInputConfig:
		return "AudioInputConfig"
	case AudioPhonecallStart:
		return "AudioPhonecallStart"
	case AudioPhonecallStop:
		return "AudioPhonecallStop"
	case AudioNaviStart:
		return "AudioNaviStart"
	case AudioNaviStop:
		return "AudioNaviStop"
	case AudioSiriStart:
		return "AudioSiriStart"
	case AudioSiriStop:
		return "AudioSiriStop"
	case AudioMediaStart:
		return "AudioMediaStart"
	case AudioMediaStop:
		return "AudioMediaStop"
	case AudioAlertStart:
		return "AudioAlertStart"
	case AudioAlertStop:
		return "AudioAlertStop"
	default:
		return fmt.Sprintf("AudioCommand(%d)", uint8(c))
	}
}

// AudioFormat describes the PCM format implied by an AudioData decode type.
type AudioFormat struct {
	SampleRate int // Hz
	Channels   int // 1 or 2
	BitDepth   int // always 16 (S16LE)
}

// audioFormats maps AudioData decode types to their PCM formats.
var audioFormats = map[uint32]AudioFormat{
	1: {SampleRate: 44100, Channels: 2, BitDepth: 16},
	2: {SampleRate: 44100, Channels: 2, BitDepth: 16},
	3: {SampleRate: 8000, Channels: 1, BitDepth: 16},
	4: {SampleRate: 48000, Channels: 2, BitDepth: 16},
	5: {SampleRate: 16000, Channels: 1, BitDepth: 16},
	6: {SampleRate: 24000, Channels: 1, BitDepth: 16},
	7: {SampleRate: 16000, Channels: 2, BitDepth: 16},
}

// AudioFormatFor returns the PCM format for a decode type code.
func AudioFormatFor(decodeType uint32) (AudioFormat, bool) {
	f, ok := audioFormats[decodeType]
	return f, ok
}

// MediaType tags the payload variant of a MediaData message.
type MediaType uint32

// Media payload variants
const (
	MediaKindData       MediaType = 1 // JSON now-playing metadata
	MediaKindAlbumCover MediaType = 3 // raw image bytes
)

// CommandValue is the numeric value carried by Command messages in both
// directions: key presses and session control requests outbound, dongle
// status notifications inbound.
type CommandValue uint32

// Command values (from the vendor SDK command table)
const (
	CmdInvalid             CommandValue = 0
	CmdStartRecordAudio    CommandValue = 1
	CmdStopRecordAudio     CommandValue = 2
	CmdRequestHostUI       CommandValue = 3
	CmdSiri                CommandValue = 5
	CmdMic                 CommandValue = 7
	CmdFrame               CommandValue = 12
	CmdBoxMic              CommandValue = 15
	CmdEnableNightMode     CommandValue = 16
	CmdDisableNightMode    CommandValue = 17
	CmdAudioTransferOn     CommandValue = 22
	CmdAudioTransferOff    CommandValue = 23
	CmdWifi24g             CommandValue = 24
	CmdWifi5g              CommandValue = 25
	CmdLeft                CommandValue = 100
	CmdRight               CommandValue = 101
	CmdSelectDown          CommandValue = 104
	CmdSelectUp            CommandValue = 105
	CmdBack                CommandValue = 106
	CmdUp                  CommandValue = 113
	CmdDown                CommandValue = 114
	CmdHome                CommandValue = 200
	CmdPlay                CommandValue = 201
	CmdPause               CommandValue = 202
	CmdPlayOrPause         CommandValue = 203
	CmdNext                CommandValue = 204
	CmdPrev                CommandValue = 205
	CmdAcceptPhone         CommandValue = 300
	CmdRejectPhone         CommandValue = 301
	CmdRequestVideoFocus   CommandValue = 500
	CmdReleaseVideoFocus   CommandValue = 501
	CmdWifiEnable          CommandValue = 1000
	CmdAutoConnectEnable   CommandValue = 1001
	CmdWifiConnect         CommandValue = 1002
	CmdScanningDevice      CommandValue = 1003
	CmdDeviceFound         CommandValue = 1004
	CmdDeviceNotFound      CommandValue = 1005
	CmdConnectDeviceFailed CommandValue = 1006
	CmdBtConnected         CommandValue = 1007
	CmdBtDisconnected      CommandValue = 1008
	CmdWifiConnected       CommandValue = 1009
	CmdWifiDisconnected    CommandValue = 1010
	CmdBtPairStart         CommandValue = 1011
	CmdWifiPair            CommandValue = 1012
)

// commandNames maps the key/command names accepted by the send-key API to
// their wire values.
var commandNames = map[string]CommandValue{
	"startRecordAudio": CmdStartRecordAudio,
	"stopRecordAudio":  CmdStopRecordAudio,
	"requestHostUI":    CmdRequestHostUI,
	"siri":             CmdSiri,
	"mic":              CmdMic,
	"frame":            CmdFrame,
	"boxMic":           CmdBoxMic,
	"enableNightMode":  CmdEnableNightMode,
	"disableNightMode": CmdDisableNightMode,
	"audioTransferOn":  CmdAudioTransferOn,
	"audioTransferOff": CmdAudioTransferOff,
	"wifi24g":          CmdWifi24g,
	"wifi5g":           CmdWifi5g,
	"left":             CmdLeft,
	"right":            CmdRight,
	"selectDown":       CmdSelectDown,
	"selectUp":         CmdSelectUp,
	"back":             CmdBack,
	"up":               CmdUp,
	"down":             CmdDown,
	"home":             CmdHome,
	"play":             CmdPlay,
	"pause":            CmdPause,
	"playOrPause":      CmdPlayOrPause,
	"next":             CmdNext,
	"prev":             CmdPrev,
	"acceptPhone":      CmdAcceptPhone,
	"rejectPhone":      CmdRejectPhone,
	"wifiEnable":       CmdWifiEnable,
	"wifiConnect":      CmdWifiConnect,
	"wifiPair":         CmdWifiPair,
}

// CommandByName resolves a key/command name to its wire value.
func CommandByName(name string) (CommandValue, bool) {
	v, ok := commandNames[name]
	return v, ok
}
