// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"math"
	"os"
	"sync"

	"biosignal/internal/buffer"
	applog "biosignal/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVRecorder appends the samples of every completed block to a mono PCM
// WAV file. Samples are clipped to [-1, 1] and scaled to the bit depth.
type WAVRecorder struct {
	mu         sync.Mutex
	file       *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer
	scale      float64
	frames     int
	closed     bool
}

// NewWAVRecorder creates filename and writes a WAV header for sampleRate Hz
// at bitDepth bits (16, 24 or 32).
func NewWAVRecorder(filename string, sampleRate, bitDepth int) (*WAVRecorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported WAV bit depth %d", bitDepth)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	applog.Infof("WAVRecorder: Recording to %s (%d Hz, %d bit)", filename, sampleRate, bitDepth)
	return &WAVRecorder{
		file:       file,
		wavEncoder: wav.NewEncoder(file, sampleRate, bitDepth, 1, 1),
		sampleBuf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
		scale: float64(int64(1)<<(bitDepth-1) - 1),
	}, nil
}

func (r *WAVRecorder) SendBlock(ev buffer.BlockEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("recording is closed")
	}

	data := r.sampleBuf.Data[:0]
	for _, s := range ev.Block.Data {
		v := math.Max(-1, math.Min(1, float64(s)))
		data = append(data, int(math.Round(v*r.scale)))
	}
	r.sampleBuf.Data = data

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("failed to write block %d: %w", ev.Block.Index, err)
	}
	r.frames += len(data)
	return nil
}

// SendError is a no-op: the buffer policy decides what samples follow.
func (r *WAVRecorder) SendError(buffer.ErrorEvent) error {
	return nil
}

// Frames is the number of samples written so far.
func (r *WAVRecorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close finalises the WAV header and closes the file.
func (r *WAVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.wavEncoder.Close(); err != nil {
		r.file.Close()
		return fmt.Errorf("failed to finalise recording: %w", err)
	}
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close recording: %w", err)
	}
	applog.Infof("WAVRecorder: Wrote %d frames to %s", r.frames, r.file.Name())
	return nil
}

var _ Sink = (*WAVRecorder)(nil)
