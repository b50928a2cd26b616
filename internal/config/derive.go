// SPDX-License-Identifier: MIT
package config

import (
	"biosignal/internal/acquisition"
	"biosignal/internal/analysis"
	"biosignal/internal/buffer"
	"biosignal/internal/persistence"
	"biosignal/pkg/bitint"
)

// The accessors below assume a validated Config.

// Retention is the number of blocks the buffer keeps.
func (c *Config) Retention() int {
	if c.Buffer.RetainBlocks > 0 {
		return c.Buffer.RetainBlocks
	}
	return c.Buffer.BufferSize / c.Buffer.BlockSize * retentionFactor
}

// BufferOptions returns the buffer.New options for the buffer section.
func (c *Config) BufferOptions() []buffer.Option {
	mode, _ := buffer.ParseErrorMode(c.Buffer.ErrorMode)
	return []buffer.Option{
		buffer.WithErrorMode(mode),
		buffer.WithRetention(c.Retention()),
	}
}

// Source returns the acquisition stream settings.
func (c *Config) Source() acquisition.Config {
	return acquisition.Config{
		DeviceID:        c.Acquisition.DeviceID,
		Channels:        c.Acquisition.Channels,
		FramesPerBuffer: c.Acquisition.FramesPerBuffer,
		SampleRate:      c.Buffer.SampleRate,
		LowLatency:      c.Acquisition.LowLatency,
	}
}

// WindowBlocks is the number of blocks merged per analysis, at least 1.
func (c *Config) WindowBlocks() int {
	return max(c.Analysis.WindowBlocks, 1)
}

// FFTSize is the configured size, or the window length rounded up to a
// power of two.
func (c *Config) FFTSize() int {
	if c.Analysis.FFTSize > 0 {
		return c.Analysis.FFTSize
	}
	return bitint.NextPowerOfTwo(c.Buffer.BlockSize * c.WindowBlocks())
}

// Window returns the analysis window function.
func (c *Config) Window() analysis.WindowFunc {
	w, _ := analysis.ParseWindowFunc(c.Analysis.WindowFunc)
	return w
}

// Bands returns the configured band ranges or the EEG defaults.
func (c *Config) Bands() []analysis.FrequencyBand {
	if len(c.Analysis.Bands) == 0 {
		return analysis.DefaultBands
	}
	bands := make([]analysis.FrequencyBand, len(c.Analysis.Bands))
	for i, b := range c.Analysis.Bands {
		bands[i] = analysis.FrequencyBand{Name: b.Name, LowHz: b.LowHz, HighHz: b.HighHz}
	}
	return bands
}

// Gate returns the analysis gate, nil when disabled.
func (c *Config) Gate() *analysis.Gate {
	if !c.Analysis.Gate {
		return nil
	}
	return analysis.NewGate(c.Analysis.GateThreshold)
}

// Artifacts returns a new artifact detector, nil when disabled.
func (c *Config) Artifacts() *analysis.ArtifactDetector {
	if c.Analysis.ArtifactThreshold <= 0 {
		return nil
	}
	return analysis.NewArtifactDetector(c.Analysis.ArtifactThreshold, c.Analysis.ArtifactRatio)
}

// Store returns the spectrum store, nil when saving is disabled.
func (c *Config) Store() *persistence.Store {
	if c.Analysis.OutputDir == "" {
		return nil
	}
	format, _ := persistence.ParseFormat(c.Analysis.Format)
	return &persistence.Store{
		Dir:      c.Analysis.OutputDir,
		Format:   format,
		Compress: c.Analysis.Compress,
	}
}

// UDPQueue is the event queue length of the UDP sink.
func (c *Config) UDPQueue() int {
	if c.Transport.UDPSendQueue > 0 {
		return c.Transport.UDPSendQueue
	}
	return c.Transport.QueueSize
}
