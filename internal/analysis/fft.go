// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"
	"sync"

	"biosignal/internal/buffer"
	applog "biosignal/internal/log"
	"biosignal/internal/spectrum"
	"biosignal/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
	Rectangular
)

func (w WindowFunc) String() string {
	switch w {
	case BartlettHann:
		return "bartletthann"
	case Blackman:
		return "blackman"
	case BlackmanNuttall:
		return "blackmannuttall"
	case Hann:
		return "hann"
	case Hamming:
		return "hamming"
	case Lanczos:
		return "lanczos"
	case Nuttall:
		return "nuttall"
	case Rectangular:
		return "rectangular"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64    // Windowed input signal.
	fftOutput []complex128 // FFT complex results.
	window    []float64    // Pre-calculated window coefficients.
}

// Analyzer turns blocks of samples into magnitude spectra. The grid of every
// spectrum starts at 0 Hz with a step of sampleRate/fftSize and holds
// fftSize/2+1 bins. An Analyzer is safe for concurrent use; calls are
// serialised on its workspace.
type Analyzer struct {
	fftCalculator *fourier.FFT // Reusable FFT calculator instance.
	fftSize       int          // Number of points for the FFT (power of 2).
	sampleRate    float64      // Sample rate of the input signal (Hz).
	windowType    WindowFunc

	mu        sync.Mutex
	workspace fftWorkspace
}

// NewAnalyzer validates the FFT geometry and pre-computes the window.
func NewAnalyzer(fftSize int, sampleRate float64, windowType WindowFunc) (*Analyzer, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	applog.Infof("Analysis: Initializing Analyzer (Size: %d, SampleRate: %.1f Hz, Window: %v)", fftSize, sampleRate, windowType)

	return &Analyzer{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		sampleRate:    sampleRate,
		windowType:    windowType,
		workspace: fftWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, fftSize/2+1),
			window:    windowCoeffs,
		},
	}, nil
}

// Analyze computes the magnitude spectrum of the most recent fftSize samples
// of b. Shorter blocks are zero-padded. The spectrum is named after the block
// index and stamped with the block start time.
func (a *Analyzer) Analyze(b buffer.Block) (*spectrum.Spectrum, error) {
	if b.Empty() {
		return nil, fmt.Errorf("failed to analyze block %d: no samples", b.Index)
	}

	data := b.Data
	if len(data) > a.fftSize {
		data = data[len(data)-a.fftSize:]
	}

	a.mu.Lock()
	for i := range a.fftSize {
		if i < len(data) {
			a.workspace.input[i] = float64(data[i]) * a.workspace.window[i]
		} else {
			a.workspace.input[i] = 0
		}
	}
	a.fftCalculator.Coefficients(a.workspace.fftOutput, a.workspace.input)
	magnitude := make([]float64, len(a.workspace.fftOutput))
	for i, c := range a.workspace.fftOutput {
		magnitude[i] = cmplx.Abs(c)
	}
	a.mu.Unlock()

	s := spectrum.New(fmt.Sprintf("block%d", b.Index), 0, a.FrequencyStep(), magnitude)
	s.Timestamp = b.Start
	return s, nil
}

// FFTSize returns the configured FFT size (number of points).
func (a *Analyzer) FFTSize() int { return a.fftSize }

// SampleRate returns the configured sample rate (Hz).
func (a *Analyzer) SampleRate() float64 { return a.sampleRate }

// FrequencyStep is the width of one output bin in Hz.
func (a *Analyzer) FrequencyStep() float64 { return a.sampleRate / float64(a.fftSize) }

// Window returns the window function in use.
func (a *Analyzer) Window() WindowFunc { return a.windowType }

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "", "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	case "rect", "rectangular", "none":
		return Rectangular, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window. Unknown types fall back
// to Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// The gonum window functions scale in place, so start from ones.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Rectangular:
	default:
		applog.Warnf("Analysis: Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
