// SPDX-License-Identifier: MIT
package acquisition

import (
	"context"
	"errors"
	"time"

	"biosignal/internal/buffer"
	applog "biosignal/internal/log"
	"biosignal/pkg/utils"
)

// Synthetic writes a continuous mix of 4, 10 and 20 Hz rhythms at the
// configured rate, for running without hardware. Every GlitchEvery-th buffer
// is preceded by a simulated overflow when GlitchEvery > 0.
type Synthetic struct {
	writer          buffer.Writer
	sampleRate      float64
	framesPerBuffer int
	GlitchEvery     int

	offset  int
	buffers int
}

// NewSynthetic creates a generator delivering framesPerBuffer samples per
// write.
func NewSynthetic(w buffer.Writer, sampleRate float64, framesPerBuffer int) (*Synthetic, error) {
	if w == nil {
		return nil, errors.New("acquisition: writer cannot be nil")
	}
	cfg := Config{Channels: 1, FramesPerBuffer: framesPerBuffer, SampleRate: sampleRate}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Synthetic{writer: w, sampleRate: sampleRate, framesPerBuffer: framesPerBuffer}, nil
}

// Interval is the real time one buffer covers.
func (s *Synthetic) Interval() time.Duration {
	return time.Duration(float64(s.framesPerBuffer) / s.sampleRate * float64(time.Second))
}

// Step generates and writes one buffer.
func (s *Synthetic) Step() {
	s.buffers++
	if s.GlitchEvery > 0 && s.buffers%s.GlitchEvery == 0 {
		reportLoss(s.writer, s.framesPerBuffer*bytesPerSample, s.framesPerBuffer, 1)
	}
	s.writer.Write(utils.ComplexWaveFrom(s.offset, s.framesPerBuffer, s.sampleRate))
	s.offset += s.framesPerBuffer
}

// Run calls Step once per Interval until ctx is done.
func (s *Synthetic) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()
	applog.Infof("Acquisition: Synthetic source running (%.0f Hz, %d frames every %s)",
		s.sampleRate, s.framesPerBuffer, s.Interval())
	for {
		select {
		case <-ctx.Done():
			applog.Infof("Acquisition: Synthetic source stopped after %d buffers", s.buffers)
			return ctx.Err()
		case <-ticker.C:
			s.Step()
		}
	}
}
