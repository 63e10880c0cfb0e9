package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muurk/carlink/internal/protocol"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero width", mutate: func(c *Config) { c.Width = 0 }},
		{name: "zero fps", mutate: func(c *Config) { c.FPS = 0 }},
		{name: "bad wifi band", mutate: func(c *Config) { c.WifiBand = "6ghz" }},
		{name: "bad mic source", mutate: func(c *Config) { c.MicSource = "cloud" }},
		{name: "bad hand drive", mutate: func(c *Config) { c.Hand = 2 }},
		{
			name: "negative frame interval",
			mutate: func(c *Config) {
				c.PhoneConfig[protocol.PhoneCarPlay] = PhoneConfig{FrameInterval: -time.Second}
			},
		},
		{name: "ceiling below pre-buffer", mutate: func(c *Config) { c.Audio.HardCeiling = time.Second }},
		{name: "capacity below ceiling", mutate: func(c *Config) { c.Audio.Capacity = time.Second }},
		{name: "zero reconnect attempts", mutate: func(c *Config) { c.Reconnect.MaxAttempts = 0 }},
		{name: "max delay below base", mutate: func(c *Config) { c.Reconnect.MaxDelay = time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
width: 1280
height: 720
box_name: TestBox
wifi_band: 2.4ghz
audio:
  pre_buffer: 2s
  hard_ceiling: 8s
  capacity: 30s
reconnect:
  max_attempts: 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Width != 1280 || cfg.Height != 720 {
		t.Errorf("resolution = %dx%d, want 1280x720", cfg.Width, cfg.Height)
	}
	if cfg.BoxName != "TestBox" {
		t.Errorf("box name = %q, want TestBox", cfg.BoxName)
	}
	if cfg.WifiBand != WifiBand24GHz {
		t.Errorf("wifi band = %q, want %q", cfg.WifiBand, WifiBand24GHz)
	}
	if cfg.Audio.PreBuffer != 2*time.Second {
		t.Errorf("pre-buffer = %v, want 2s", cfg.Audio.PreBuffer)
	}
	// Untouched fields keep defaults.
	if cfg.FPS != 30 {
		t.Errorf("fps = %d, want default 30", cfg.FPS)
	}
	if cfg.Reconnect.BaseDelay != 5*time.Second {
		t.Errorf("base delay = %v, want default 5s", cfg.Reconnect.BaseDelay)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Width != Default().Width {
		t.Errorf("width = %d, want default %d", cfg.Width, Default().Width)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("width: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestFrameInterval(t *testing.T) {
	cfg := Default()
	if got := cfg.FrameInterval(protocol.PhoneCarPlay); got != 5*time.Second {
		t.Errorf("CarPlay interval = %v, want 5s", got)
	}
	if got := cfg.FrameInterval(protocol.PhoneAndroidAuto); got != 0 {
		t.Errorf("Android Auto interval = %v, want 0", got)
	}
	if got := cfg.FrameInterval(protocol.PhoneHiCar); got != 0 {
		t.Errorf("unconfigured phone interval = %v, want 0", got)
	}
}
