// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"biosignal/internal/analysis"
	"biosignal/internal/buffer"
	"biosignal/internal/persistence"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Buffer.BlockSize != DefaultBlockSize || cfg.Analysis.WindowFunc != DefaultWindowFunc {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
buffer:
  buffer_size: 2048
  block_size: 128
  sample_rate: 500
  error_mode: zero
analysis:
  window_blocks: 3
  window_function: blackman
  output_dir: /tmp/spectra
  format: binary
  compress: true
  bands:
    - {name: slow, low_hz: 1, high_hz: 4}
transport:
  udp_enabled: true
  udp_target_address: "10.0.0.2:7000"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.Buffer.BufferSize != 2048 || cfg.Buffer.SampleRate != 500 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	// Unset keys keep their defaults.
	if cfg.Acquisition.FramesPerBuffer != DefaultFramesPerBuffer || cfg.Transport.QueueSize != DefaultTransportQueue {
		t.Errorf("defaults lost: %+v", cfg)
	}

	if got := cfg.Retention(); got != 2048/128*retentionFactor {
		t.Errorf("Retention() = %d", got)
	}
	if got := cfg.FFTSize(); got != 512 {
		t.Errorf("FFTSize() = %d, want 512", got)
	}
	if cfg.Window() != analysis.Blackman {
		t.Errorf("Window() = %v", cfg.Window())
	}
	bands := cfg.Bands()
	if len(bands) != 1 || bands[0] != (analysis.FrequencyBand{Name: "slow", LowHz: 1, HighHz: 4}) {
		t.Errorf("Bands() = %v", bands)
	}
	st := cfg.Store()
	if st == nil || st.Dir != "/tmp/spectra" || st.Format != persistence.Binary || !st.Compress {
		t.Errorf("Store() = %+v", st)
	}
	if got := cfg.UDPQueue(); got != DefaultTransportQueue {
		t.Errorf("UDPQueue() = %d", got)
	}

	b, err := buffer.New(cfg.Buffer.BufferSize, cfg.Buffer.BlockSize, cfg.Buffer.SampleRate, cfg.BufferOptions()...)
	if err != nil {
		t.Fatalf("buffer.New() error: %v", err)
	}
	if b.Mode() != buffer.ZeroSamples {
		t.Errorf("Mode() = %v, want zero", b.Mode())
	}
}

func TestDerivedDefaults(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if got := cfg.FFTSize(); got != 1024 {
		t.Errorf("FFTSize() = %d, want 1024", got)
	}
	if cfg.Gate() != nil {
		t.Error("Gate() should be nil by default")
	}
	if cfg.Artifacts() != nil {
		t.Error("Artifacts() should be nil by default")
	}
	if cfg.Store() != nil {
		t.Error("Store() should be nil without output_dir")
	}
	if len(cfg.Bands()) != len(analysis.DefaultBands) {
		t.Errorf("Bands() = %v", cfg.Bands())
	}
	src := cfg.Source()
	if src.DeviceID != DefaultDeviceID || src.SampleRate != DefaultSampleRate || src.Channels != DefaultChannels {
		t.Errorf("Source() = %+v", src)
	}

	cfg.Analysis.WindowBlocks = 0
	cfg.Analysis.FFTSize = 64
	if cfg.WindowBlocks() != 1 || cfg.FFTSize() != 64 {
		t.Errorf("WindowBlocks() = %d, FFTSize() = %d", cfg.WindowBlocks(), cfg.FFTSize())
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_LOG_LEVEL", "warn")
	t.Setenv("ENV_ERROR_MODE", "discard")
	t.Setenv("ENV_SYNTHETIC", "true")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "192.168.1.5:9999")
	t.Setenv("ENV_UDP_SEND_QUEUE", "not-a-number")
	t.Setenv("ENV_WEBSOCKET_ADDR", ":0")

	cfg, err := LoadConfig(writeTempConfig(t, "log_level: debug\n"))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.Buffer.ErrorMode != "discard" || !cfg.Acquisition.Synthetic {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "192.168.1.5:9999" {
		t.Errorf("UDP overrides not applied: %+v", cfg.Transport)
	}
	if cfg.Transport.UDPSendQueue != 0 {
		t.Errorf("invalid ENV_UDP_SEND_QUEUE applied: %d", cfg.Transport.UDPSendQueue)
	}
	if !cfg.Transport.WebSocketEnabled || cfg.Transport.WebSocketAddr != ":0" {
		t.Errorf("websocket override not applied: %+v", cfg.Transport)
	}
}

func TestLoadConfig_EnvInvalid(t *testing.T) {
	t.Setenv("ENV_ERROR_MODE", "explode")
	_, err := LoadConfig(writeTempConfig(t, ""))
	if err == nil || !strings.Contains(err.Error(), "buffer.error_mode") {
		t.Errorf("expected error_mode validation error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"zero block", func(c *Config) { c.Buffer.BlockSize = 0 }, "buffer.block_size"},
		{"ring smaller than block", func(c *Config) { c.Buffer.BufferSize = 100 }, "at least"},
		{"ring not a multiple", func(c *Config) { c.Buffer.BufferSize = 1000 }, "multiple"},
		{"zero rate", func(c *Config) { c.Buffer.SampleRate = 0 }, "buffer.sample_rate"},
		{"negative retention", func(c *Config) { c.Buffer.RetainBlocks = -1 }, "buffer.retain_blocks"},
		{"channels", func(c *Config) { c.Acquisition.Channels = 0 }, "acquisition.channels"},
		{"synthetic ignores channels", func(c *Config) {
			c.Acquisition.Synthetic = true
			c.Acquisition.Channels = 0
		}, ""},
		{"frames", func(c *Config) { c.Acquisition.FramesPerBuffer = 0 }, "acquisition.frames_per_buffer"},
		{"glitch", func(c *Config) { c.Acquisition.GlitchEvery = -3 }, "acquisition.glitch_every"},
		{"fft size", func(c *Config) { c.Analysis.FFTSize = 300 }, "analysis.fft_size"},
		{"window", func(c *Config) { c.Analysis.WindowFunc = "kaiser" }, "analysis.window_function"},
		{"compressor", func(c *Config) { c.Analysis.Compressor = -1 }, "analysis.compressor"},
		{"gate threshold", func(c *Config) { c.Analysis.GateThreshold = 1.5 }, "analysis.gate_threshold"},
		{"artifact ratio", func(c *Config) { c.Analysis.ArtifactRatio = -1 }, "artifact_ratio"},
		{"format", func(c *Config) { c.Analysis.Format = "xml" }, "analysis.format"},
		{"profiles without file", func(c *Config) { c.Analysis.Profiles = []string{"alpha"} }, "profiles_file"},
		{"band", func(c *Config) { c.Analysis.Bands = []BandConfig{{Name: "x", LowHz: 5, HighHz: 5}} }, "analysis.bands[0]"},
		{"bit depth", func(c *Config) {
			c.Recording.Enabled = true
			c.Recording.BitDepth = 8
		}, "recording.bit_depth"},
		{"bit depth ignored when disabled", func(c *Config) { c.Recording.BitDepth = 8 }, ""},
		{"udp address", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "nohost"
		}, "transport.udp_target_address"},
		{"websocket address", func(c *Config) {
			c.Transport.WebSocketEnabled = true
			c.Transport.WebSocketAddr = "bad"
		}, "transport.websocket_addr"},
		{"queue", func(c *Config) { c.Transport.QueueSize = -1 }, "queue sizes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
