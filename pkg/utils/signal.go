// SPDX-License-Identifier: MIT
/*
Package utils generates deterministic float32 test signals and inspects
magnitude spectra. It is shared by the package tests and the synthetic
acquisition source.
*/
package utils

import (
	"math"
	"sync"
)

// SineWave returns size samples of amplitude*sin(2πft), starting at phase 0.
func SineWave(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// ComplexWave mixes a 10 Hz alpha rhythm with weaker 4 Hz and 20 Hz
// components.
func ComplexWave(size int, sampleRate float64) []float32 {
	return ComplexWaveFrom(0, size, sampleRate)
}

// ComplexWaveFrom is ComplexWave starting at sample offset start, so
// consecutive calls produce a continuous signal.
func ComplexWaveFrom(start, size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(start+i) / sampleRate
		signal := math.Sin(2*math.Pi*10*t)*0.5 +
			math.Sin(2*math.Pi*4*t)*0.3 +
			math.Sin(2*math.Pi*20*t)*0.2
		buffer[i] = float32(signal)
	}
	return buffer
}

// Ramp returns start, start+1, ... as float32 samples.
func Ramp(start, size int) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		buffer[i] = float32(start + i)
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in
// [startBin, endBin], clamping the range to the slice. Empty input returns 0.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}

// Recorder collects values from any goroutine for later inspection.
type Recorder[T any] struct {
	mu     sync.Mutex
	values []T
	notify chan struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{notify: make(chan struct{}, 1)}
}

// Add appends v.
func (r *Recorder[T]) Add(v T) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Values returns a copy of everything recorded so far.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

// Len is the number of recorded values.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Wait blocks until at least n values were recorded or done is closed, and
// reports whether n was reached.
func (r *Recorder[T]) Wait(n int, done <-chan struct{}) bool {
	for {
		if r.Len() >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-done:
			return r.Len() >= n
		}
	}
}
