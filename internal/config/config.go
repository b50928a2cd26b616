// SPDX-License-Identifier: MIT
package config

// Built-in defaults. They describe a single-channel EEG-style stream at
// 256 Hz with one-second blocks.
const (
	DefaultLogLevel = "info"

	DefaultBufferSize = 16384 // 64 s at the default rate.
	DefaultBlockSize  = 256
	DefaultSampleRate = 256.0
	DefaultErrorMode  = "clear"

	DefaultDeviceID        = -1 // System default input device.
	DefaultChannels        = 1
	DefaultFramesPerBuffer = 64

	DefaultFFTSize       = 0 // Derived from block size and window.
	DefaultWindowFunc    = "hann"
	DefaultWindowBlocks  = 4
	DefaultQueueSize     = 16
	DefaultFormat        = "json"
	DefaultArtifactRatio = 3.0

	DefaultRecordingDir = "./recordings"
	DefaultBitDepth     = 16

	DefaultTransportQueue   = 64
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultWebSocketAddr    = "127.0.0.1:8080"

	// retentionFactor sizes the default block history relative to the ring.
	retentionFactor = 16
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel    string            `yaml:"log_level"`   // Logging level (e.g., "debug", "info", "warn", "error").
	Buffer      BufferConfig      `yaml:"buffer"`      // Ring buffer geometry and error policy.
	Acquisition AcquisitionConfig `yaml:"acquisition"` // Input device settings.
	Analysis    AnalysisConfig    `yaml:"analysis"`    // Spectrum pipeline settings.
	Recording   RecordingConfig   `yaml:"recording"`   // WAV recording of completed blocks.
	Transport   TransportConfig   `yaml:"transport"`   // Block event sinks.
}

// BufferConfig holds the ring buffer geometry.
type BufferConfig struct {
	BufferSize   int     `yaml:"buffer_size"`   // Ring capacity in samples, a multiple of block_size.
	BlockSize    int     `yaml:"block_size"`    // Samples per published block.
	SampleRate   float64 `yaml:"sample_rate"`   // Acquisition rate in Hz.
	ErrorMode    string  `yaml:"error_mode"`    // "clear", "discard" or "zero".
	RetainBlocks int     `yaml:"retain_blocks"` // Block history length, 0 derives it from the ring size.
}

// AcquisitionConfig holds settings for the input source.
type AcquisitionConfig struct {
	Synthetic       bool `yaml:"synthetic"`         // Generate a test signal instead of opening a device.
	GlitchEvery     int  `yaml:"glitch_every"`      // Synthetic only: simulate an overflow every n buffers.
	DeviceID        int  `yaml:"device_id"`         // PortAudio device index (-1 for default).
	Channels        int  `yaml:"channels"`          // Channels captured; only the first is buffered.
	FramesPerBuffer int  `yaml:"frames_per_buffer"` // Frames per callback.
	LowLatency      bool `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
}

// AnalysisConfig holds settings for the spectrum pipeline.
type AnalysisConfig struct {
	Enabled           bool         `yaml:"enabled"`
	FFTSize           int          `yaml:"fft_size"`        // Power of two, 0 to derive from block_size*window_blocks.
	WindowFunc        string       `yaml:"window_function"` // e.g. "hann", "hamming", "blackman".
	WindowBlocks      int          `yaml:"window_blocks"`   // Most recent blocks merged per analysis.
	QueueSize         int          `yaml:"queue_size"`      // Pending blocks before new ones are dropped.
	MedianFilter      bool         `yaml:"median_filter"`
	Compressor        float64      `yaml:"compressor"`         // Compressor power, 0 disables.
	Gate              bool         `yaml:"gate"`               // Skip blocks whose peak stays at or below gate_threshold.
	GateThreshold     float64      `yaml:"gate_threshold"`     // Fraction of full scale, 0-1.
	ArtifactThreshold float64      `yaml:"artifact_threshold"` // Block RMS that may flag an artifact, 0 disables.
	ArtifactRatio     float64      `yaml:"artifact_ratio"`     // Minimum RMS jump over the previous block.
	ProfilesFile      string       `yaml:"profiles_file"`      // YAML profile catalog.
	Profiles          []string     `yaml:"profiles"`           // Catalog entries to apply, empty for all.
	Bands             []BandConfig `yaml:"bands"`              // Band energy ranges, empty for the EEG defaults.
	OutputDir         string       `yaml:"output_dir"`         // Spectrum directory, empty disables saving.
	Format            string       `yaml:"format"`             // "json" or "binary".
	Compress          bool         `yaml:"compress"`           // gzip saved spectra.
}

// BandConfig is one band energy range.
type BandConfig struct {
	Name   string  `yaml:"name"`
	LowHz  float64 `yaml:"low_hz"`
	HighHz float64 `yaml:"high_hz"`
}

// RecordingConfig holds settings related to WAV recording.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record completed blocks to a WAV file.
	OutputDir string `yaml:"output_dir"` // Directory to save recordings.
	BitDepth  int    `yaml:"bit_depth"`  // 16, 24 or 32.
}

// TransportConfig holds settings for the block event sinks.
type TransportConfig struct {
	QueueSize        int    `yaml:"queue_size"`         // Per-sink event queue.
	LogEvents        bool   `yaml:"log_events"`         // Attach the logging sink.
	UDPEnabled       bool   `yaml:"udp_enabled"`        // Send every block over UDP.
	UDPTargetAddress string `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendQueue     int    `yaml:"udp_send_queue"`     // Queue size for the UDP sink, 0 uses queue_size.
	WebSocketEnabled bool   `yaml:"websocket_enabled"`  // Broadcast events to WebSocket clients.
	WebSocketAddr    string `yaml:"websocket_addr"`     // Listen address for /ws.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Buffer: BufferConfig{
			BufferSize: DefaultBufferSize,
			BlockSize:  DefaultBlockSize,
			SampleRate: DefaultSampleRate,
			ErrorMode:  DefaultErrorMode,
		},
		Acquisition: AcquisitionConfig{
			DeviceID:        DefaultDeviceID,
			Channels:        DefaultChannels,
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
		Analysis: AnalysisConfig{
			Enabled:       true,
			FFTSize:       DefaultFFTSize,
			WindowFunc:    DefaultWindowFunc,
			WindowBlocks:  DefaultWindowBlocks,
			QueueSize:     DefaultQueueSize,
			ArtifactRatio: DefaultArtifactRatio,
			Format:        DefaultFormat,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			QueueSize:        DefaultTransportQueue,
			UDPTargetAddress: DefaultUDPTargetAddress,
			WebSocketAddr:    DefaultWebSocketAddr,
		},
	}
}
