// SPDX-License-Identifier: MIT
/*
Package acquisition feeds a buffer.Writer from an input device or a
synthetic generator:
- PortAudio float32 input stream, downmixed to the first channel
- Input overflows reported through Writer.Error
- Synthetic multi-rhythm signal for running without hardware

Thread Safety:
- The PortAudio callback runs on a dedicated OS thread
- Buffers are pre-allocated, the callback does not allocate
*/
package acquisition

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"biosignal/internal/buffer"
	applog "biosignal/internal/log"

	"github.com/gordonklaus/portaudio"
)

// DefaultDeviceID selects the system default input device.
const DefaultDeviceID = -1

const bytesPerSample = 4

// Config describes the input stream.
type Config struct {
	DeviceID        int
	Channels        int
	FramesPerBuffer int
	SampleRate      float64
	LowLatency      bool
}

func (c Config) validate() error {
	switch {
	case c.Channels <= 0:
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	case c.FramesPerBuffer <= 0:
		return fmt.Errorf("frames per buffer must be positive, got %d", c.FramesPerBuffer)
	case !(c.SampleRate > 0):
		return fmt.Errorf("sample rate must be positive, got %f", c.SampleRate)
	}
	return nil
}

// Source streams device input into a buffer.Writer.
type Source struct {
	config Config
	writer buffer.Writer

	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	mono []float32 // First channel of the current callback buffer.

	frames    atomic.Uint64
	overflows atomic.Uint64
}

// NewSource resolves the configured device. PortAudio must be initialised.
func NewSource(cfg Config, w buffer.Writer) (*Source, error) {
	s, err := newSource(cfg, w)
	if err != nil {
		return nil, err
	}

	s.inputDevice, err = InputDevice(cfg.DeviceID)
	if err != nil {
		return nil, err
	}
	if cfg.Channels > s.inputDevice.MaxInputChannels {
		return nil, fmt.Errorf("device %q has %d input channels, %d requested",
			s.inputDevice.Name, s.inputDevice.MaxInputChannels, cfg.Channels)
	}
	if cfg.LowLatency {
		s.inputLatency = s.inputDevice.DefaultLowInputLatency
	} else {
		s.inputLatency = s.inputDevice.DefaultHighInputLatency
	}
	return s, nil
}

func newSource(cfg Config, w buffer.Writer) (*Source, error) {
	if w == nil {
		return nil, errors.New("acquisition: writer cannot be nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("acquisition: %w", err)
	}
	return &Source{
		config: cfg,
		writer: w,
		mono:   make([]float32, cfg.FramesPerBuffer),
	}, nil
}

// Start opens and starts the input stream.
func (s *Source) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: s.config.Channels,
			Device:   s.inputDevice,
			Latency:  s.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0,
			Device:   nil,
		},
		FramesPerBuffer: s.config.FramesPerBuffer,
		SampleRate:      s.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, s.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	s.inputStream = stream

	if err := s.inputStream.Start(); err != nil {
		s.inputStream.Close()
		s.inputStream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	applog.Infof("Acquisition: Streaming from %q (%d ch, %.0f Hz, %d frames, latency %s)",
		s.inputDevice.Name, s.config.Channels, s.config.SampleRate, s.config.FramesPerBuffer, s.inputLatency)
	return nil
}

// Stop stops and closes the input stream.
func (s *Source) Stop() error {
	if s.inputStream == nil {
		return nil
	}
	if err := s.inputStream.Stop(); err != nil {
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	if err := s.inputStream.Close(); err != nil {
		return fmt.Errorf("failed to close input stream: %w", err)
	}
	s.inputStream = nil
	applog.Infof("Acquisition: Stopped after %d frames (%d overflows)", s.frames.Load(), s.overflows.Load())
	return nil
}

// Frames is the number of frames delivered so far.
func (s *Source) Frames() uint64 { return s.frames.Load() }

// Overflows is the number of callbacks that reported lost input.
func (s *Source) Overflows() uint64 { return s.overflows.Load() }

// reportLoss reports lostFrames dropped frames of the given channel count.
// Only the first channel is buffered, so the zero-fill span is one sample
// per lost frame.
func reportLoss(w buffer.Writer, availableBytes, lostFrames, channels int) {
	w.Error(availableBytes, lostFrames*channels*bytesPerSample, 0, lostFrames)
}

// processInputStream is the PortAudio callback. It runs on the audio thread.
func (s *Source) processInputStream(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	s.process(in, flags)
}

// process reports an overflow before writing the buffer that follows it, so
// the error is attached to or clears ahead of the new samples.
func (s *Source) process(in []float32, flags portaudio.StreamCallbackFlags) {
	channels := s.config.Channels
	frames := len(in) / channels

	if flags&portaudio.InputOverflow != 0 {
		s.overflows.Add(1)
		// PortAudio does not say how much was lost; assume one buffer.
		reportLoss(s.writer, len(in)*bytesPerSample, s.config.FramesPerBuffer, channels)
	}

	if frames > len(s.mono) {
		frames = len(s.mono)
	}
	mono := s.mono[:frames]
	if channels == 1 {
		copy(mono, in)
	} else {
		for i := range mono {
			mono[i] = in[i*channels]
		}
	}
	s.writer.Write(mono)
	s.frames.Add(uint64(frames))
}
