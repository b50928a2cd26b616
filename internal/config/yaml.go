// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"biosignal/internal/analysis"
	"biosignal/internal/buffer"
	applog "biosignal/internal/log"
	"biosignal/internal/persistence"
	"biosignal/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{"config.yaml", "biosignal.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and reports the first invalid field by its
// YAML path.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level '%s' is not a known level", c.LogLevel)
	}

	b := c.Buffer
	switch {
	case b.BlockSize <= 0:
		return fmt.Errorf("buffer.block_size must be positive, got %d", b.BlockSize)
	case b.BufferSize < b.BlockSize:
		return fmt.Errorf("buffer.buffer_size %d must be at least buffer.block_size %d", b.BufferSize, b.BlockSize)
	case b.BufferSize%b.BlockSize != 0:
		return fmt.Errorf("buffer.buffer_size %d must be a multiple of buffer.block_size %d", b.BufferSize, b.BlockSize)
	case !(b.SampleRate > 0):
		return fmt.Errorf("buffer.sample_rate must be positive, got %g", b.SampleRate)
	case b.RetainBlocks < 0:
		return fmt.Errorf("buffer.retain_blocks must not be negative, got %d", b.RetainBlocks)
	}
	if _, err := buffer.ParseErrorMode(b.ErrorMode); err != nil {
		return fmt.Errorf("buffer.error_mode: %w", err)
	}

	a := c.Acquisition
	if !a.Synthetic && a.Channels <= 0 {
		return fmt.Errorf("acquisition.channels must be positive, got %d", a.Channels)
	}
	if a.FramesPerBuffer <= 0 {
		return fmt.Errorf("acquisition.frames_per_buffer must be positive, got %d", a.FramesPerBuffer)
	}
	if a.GlitchEvery < 0 {
		return fmt.Errorf("acquisition.glitch_every must not be negative, got %d", a.GlitchEvery)
	}

	if err := c.Analysis.validate(); err != nil {
		return err
	}

	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return fmt.Errorf("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth)
		}
	}

	t := c.Transport
	if t.QueueSize < 0 || t.UDPSendQueue < 0 {
		return errors.New("transport queue sizes must not be negative")
	}
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return fmt.Errorf("transport.udp_target_address '%s' is invalid: %w", t.UDPTargetAddress, err)
		}
	}
	if t.WebSocketEnabled {
		if _, _, err := net.SplitHostPort(t.WebSocketAddr); err != nil {
			return fmt.Errorf("transport.websocket_addr '%s' is invalid: %w", t.WebSocketAddr, err)
		}
	}
	return nil
}

func (a *AnalysisConfig) validate() error {
	if a.FFTSize != 0 && !bitint.IsPowerOfTwo(a.FFTSize) {
		return fmt.Errorf("analysis.fft_size must be a power of 2, got %d", a.FFTSize)
	}
	if _, err := analysis.ParseWindowFunc(a.WindowFunc); err != nil {
		return fmt.Errorf("analysis.window_function: %w", err)
	}
	if a.WindowBlocks < 0 {
		return fmt.Errorf("analysis.window_blocks must not be negative, got %d", a.WindowBlocks)
	}
	if a.QueueSize < 0 {
		return fmt.Errorf("analysis.queue_size must not be negative, got %d", a.QueueSize)
	}
	if a.Compressor < 0 {
		return fmt.Errorf("analysis.compressor must not be negative, got %g", a.Compressor)
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		return fmt.Errorf("analysis.gate_threshold must be within [0, 1], got %g", a.GateThreshold)
	}
	if a.ArtifactThreshold < 0 || a.ArtifactRatio < 0 {
		return errors.New("analysis.artifact_threshold and analysis.artifact_ratio must not be negative")
	}
	if _, err := persistence.ParseFormat(a.Format); err != nil {
		return fmt.Errorf("analysis.format: %w", err)
	}
	if len(a.Profiles) > 0 && a.ProfilesFile == "" {
		return errors.New("analysis.profiles requires analysis.profiles_file")
	}
	for i, band := range a.Bands {
		if band.Name == "" || !(band.HighHz > band.LowHz) {
			return fmt.Errorf("analysis.bands[%d] needs a name and high_hz above low_hz", i)
		}
	}
	return nil
}

// applyEnvOverrides applies ENV_* variables on top of the file values.
// Unparseable values are logged and ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Infof("configuration: Overriding log_level from env: %s", val)
	}

	// ENV_ERROR_MODE
	if val, ok := os.LookupEnv("ENV_ERROR_MODE"); ok {
		c.Buffer.ErrorMode = val
		applog.Infof("configuration: Overriding buffer.error_mode from env: %s", val)
	}

	// ENV_SYNTHETIC
	if val, ok := os.LookupEnv("ENV_SYNTHETIC"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Acquisition.Synthetic = bVal
			applog.Infof("configuration: Overriding acquisition.synthetic from env: %v", bVal)
		} else {
			applog.Warnf("configuration: Ignoring ENV_SYNTHETIC=%q: %v", val, err)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			applog.Infof("configuration: Overriding transport.udp_enabled from env: %v", bVal)
		} else {
			applog.Warnf("configuration: Ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Infof("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_QUEUE
	if val, ok := os.LookupEnv("ENV_UDP_SEND_QUEUE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Transport.UDPSendQueue = n
			applog.Infof("configuration: Overriding transport.udp_send_queue from env: %d", n)
		} else {
			applog.Warnf("configuration: Ignoring ENV_UDP_SEND_QUEUE=%q: %v", val, err)
		}
	}

	// ENV_WEBSOCKET_ADDR
	if val, ok := os.LookupEnv("ENV_WEBSOCKET_ADDR"); ok {
		c.Transport.WebSocketAddr = val
		c.Transport.WebSocketEnabled = val != ""
		applog.Infof("configuration: Overriding transport.websocket_addr from env: %s", val)
	}
}
