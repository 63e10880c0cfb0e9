package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func audioHeader(decodeType uint32, volume float32, audioType uint32) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], decodeType)
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(volume))
	binary.LittleEndian.PutUint32(buf[8:12], audioType)
	return buf
}

func TestDecodeAudioData(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		verify func(t *testing.T, msg *AudioData)
	}{
		{
			name: "siri start command",
			// 12-byte audio header plus a single control byte.
			data: append(audioHeader(5, 0, 1), 0x08),
			verify: func(t *testing.T, msg *AudioData) {
				if msg.Kind != AudioKindCommand {
					t.Fatalf("kind = %d, want AudioKindCommand", msg.Kind)
				}
				if msg.Command != AudioSiriStart {
					t.Errorf("command = %s, want AudioSiriStart", msg.Command)
				}
			},
		},
		{
			name: "volume duration",
			data: func() []byte {
				b := audioHeader(4, 0.5, 2)
				return binary.LittleEndian.AppendUint32(b, math.Float32bits(1.25))
			}(),
			verify: func(t *testing.T, msg *AudioData) {
				if msg.Kind != AudioKindVolumeDuration {
					t.Fatalf("kind = %d, want AudioKindVolumeDuration", msg.Kind)
				}
				if msg.VolumeDuration != 1.25 {
					t.Errorf("volume duration = %v, want 1.25", msg.VolumeDuration)
				}
			},
		},
		{
			name: "pcm samples",
			data: append(audioHeader(4, 1.0, 1),
				0x01, 0x00, // 1
				0xff, 0xff, // -1
				0x00, 0x80, // -32768
			),
			verify: func(t *testing.T, msg *AudioData) {
				if msg.Kind != AudioKindPCM {
					t.Fatalf("kind = %d, want AudioKindPCM", msg.Kind)
				}
				want := []int16{1, -1, -32768}
				if len(msg.Data) != len(want) {
					t.Fatalf("samples = %d, want %d", len(msg.Data), len(want))
				}
				for i, s := range want {
					if msg.Data[i] != s {
						t.Errorf("sample[%d] = %d, want %d", i, msg.Data[i], s)
					}
				}
				format, ok := msg.Format()
				if !ok {
					t.Fatal("Format() not found for decode type 4")
				}
				if format.SampleRate != 48000 || format.Channels != 2 {
					t.Errorf("format = %+v, want 48000 Hz stereo", format)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr := Header{Length: uint32(len(tt.data)), Type: TypeAudioData}
			msg, err := DecodeBody(hdr, tt.data)
			if err != nil {
				t.Fatalf("DecodeBody: %v", err)
			}
			audio, ok := msg.(*AudioData)
			if !ok {
				t.Fatalf("message = %T, want *AudioData", msg)
			}
			tt.verify(t, audio)
		})
	}
}

func TestDecodeVideoData(t *testing.T) {
	data := make([]byte, 20, 24)
	binary.LittleEndian.PutUint32(data[0:4], 1280)
	binary.LittleEndian.PutUint32(data[4:8], 720)
	binary.LittleEndian.PutUint32(data[8:12], 1)
	binary.LittleEndian.PutUint32(data[12:16], 4)
	binary.LittleEndian.PutUint32(data[16:20], 0)
	data = append(data, 0x00, 0x01, 0x02, 0x03)

	msg, err := DecodeBody(Header{Length: uint32(len(data)), Type: TypeVideoData}, data)
	if err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	video, ok := msg.(*VideoData)
	if !ok {
		t.Fatalf("message = %T, want *VideoData", msg)
	}
	if video.Width != 1280 || video.Height != 720 {
		t.Errorf("size = %dx%d, want 1280x720", video.Width, video.Height)
	}
	if video.Flags != 1 || video.Length != 4 || video.Reserved != 0 {
		t.Errorf("flags/length/reserved = %d/%d/%d, want 1/4/0", video.Flags, video.Length, video.Reserved)
	}
	if !bytes.Equal(video.Data, []byte{0x00, 0x01, 0x02, 0x03}) {
		t.Errorf("data = % x, want 00 01 02 03", video.Data)
	}
}

func TestDecodePlugged(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantType PhoneType
		wantWifi bool
	}{
		{
			name:     "carplay without wifi flag",
			data:     []byte{0x03, 0x00, 0x00, 0x00},
			wantType: PhoneCarPlay,
		},
		{
			name:     "android auto with wifi flag",
			data:     []byte{0x05, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00},
			wantType: PhoneAndroidAuto,
			wantWifi: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeBody(Header{Length: uint32(len(tt.data)), Type: TypePlugged}, tt.data)
			if err != nil {
				t.Fatalf("DecodeBody: %v", err)
			}
			plugged := msg.(*Plugged)
			if plugged.PhoneType != tt.wantType {
				t.Errorf("phone type = %s, want %s", plugged.PhoneType, tt.wantType)
			}
			if plugged.HasWifi != tt.wantWifi {
				t.Errorf("has wifi = %v, want %v", plugged.HasWifi, tt.wantWifi)
			}
		})
	}
}

func TestDecodeMediaData(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
		verify  func(t *testing.T, msg *MediaData)
	}{
		{
			name: "now playing json",
			data: append([]byte{0x01, 0x00, 0x00, 0x00}, []byte(`{"MediaSongName":"Song","MediaArtistName":"Artist"}`+"\x00")...),
			verify: func(t *testing.T, msg *MediaData) {
				if msg.MediaType != MediaKindData {
					t.Fatalf("media type = %d, want MediaKindData", msg.MediaType)
				}
				if msg.Media["MediaSongName"] != "Song" {
					t.Errorf("song = %v, want Song", msg.Media["MediaSongName"])
				}
			},
		},
		{
			name: "album cover",
			data: append([]byte{0x03, 0x00, 0x00, 0x00}, 0xff, 0xd8, 0xff),
			verify: func(t *testing.T, msg *MediaData) {
				if msg.MediaType != MediaKindAlbumCover {
					t.Fatalf("media type = %d, want MediaKindAlbumCover", msg.MediaType)
				}
				if !bytes.Equal(msg.AlbumCover, []byte{0xff, 0xd8, 0xff}) {
					t.Errorf("cover = % x, want ff d8 ff", msg.AlbumCover)
				}
			},
		},
		{
			name:    "malformed json",
			data:    append([]byte{0x01, 0x00, 0x00, 0x00}, []byte(`{"broken`)...),
			wantErr: true,
		},
		{
			name:    "unexpected media type",
			data:    []byte{0x07, 0x00, 0x00, 0x00, 0x01},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeBody(Header{Length: uint32(len(tt.data)), Type: TypeMediaData}, tt.data)
			if tt.wantErr {
				var payloadErr *PayloadError
				if !errors.As(err, &payloadErr) {
					t.Fatalf("error = %v, want *PayloadError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeBody: %v", err)
			}
			tt.verify(t, msg.(*MediaData))
		})
	}
}

func TestDecodeStringMessages(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    []byte
		want    string
		extract func(Message) string
	}{
		{
			name:    "software version",
			msgType: TypeSoftwareVersion,
			data:    []byte("2023.10.27.1816\x00"),
			want:    "2023.10.27.1816",
			extract: func(m Message) string { return m.(*SoftwareVersion).Version },
		},
		{
			name:    "wifi mac address",
			msgType: TypeWifiMacAddress,
			data:    []byte("B4:85:E1:A4:14:58\x00"),
			want:    "B4:85:E1:A4:14:58",
			extract: func(m Message) string { return m.(*WifiMacAddress).MAC },
		},
		{
			name:    "bluetooth device name",
			msgType: TypeBluetoothDeviceName,
			data:    []byte("AutoBox\x00"),
			want:    "AutoBox",
			extract: func(m Message) string { return m.(*BluetoothDeviceName).Name },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeBody(Header{Length: uint32(len(tt.data)), Type: tt.msgType}, tt.data)
			if err != nil {
				t.Fatalf("DecodeBody: %v", err)
			}
			if got := tt.extract(msg); got != tt.want {
				t.Errorf("value = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeBodyEdgeCases(t *testing.T) {
	t.Run("unplugged has no payload", func(t *testing.T) {
		msg, err := DecodeBody(Header{Type: TypeUnplugged}, nil)
		if err != nil {
			t.Fatalf("DecodeBody: %v", err)
		}
		if _, ok := msg.(*Unplugged); !ok {
			t.Errorf("message = %T, want *Unplugged", msg)
		}
	})

	t.Run("unrecognized type preserved", func(t *testing.T) {
		msg, err := DecodeBody(Header{Length: 2, Type: MessageType(0x25)}, []byte{0xde, 0xad})
		if err != nil {
			t.Fatalf("DecodeBody: %v", err)
		}
		u, ok := msg.(*Unrecognized)
		if !ok {
			t.Fatalf("message = %T, want *Unrecognized", msg)
		}
		if u.TypeCode != 0x25 {
			t.Errorf("type code = 0x%02x, want 0x25", u.TypeCode)
		}
	})

	t.Run("missing required payload", func(t *testing.T) {
		if _, err := DecodeBody(Header{Type: TypeCommand}, nil); err == nil {
			t.Error("expected error for empty Command payload")
		}
	})
}
