// SPDX-License-Identifier: MIT
/*
Package engine assembles a running acquisition session from a configuration:
- A ring buffer publishing completed blocks
- An acquisition source, PortAudio or synthetic, feeding the buffer
- The spectrum pipeline analysing, profiling and saving blocks
- Asynchronous sinks for logging, UDP, WebSocket and WAV recording

Every consumer is tagged with the session UUID. The buffer calls consumers
on the acquisition goroutine, so everything attached here either enqueues
or returns immediately.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"biosignal/internal/acquisition"
	"biosignal/internal/analysis"
	"biosignal/internal/buffer"
	"biosignal/internal/config"
	applog "biosignal/internal/log"
	"biosignal/internal/profile"
	"biosignal/internal/spectrum"
	"biosignal/internal/transport"
	"biosignal/internal/transport/udp"

	"github.com/google/uuid"
)

type Engine struct {
	// Core configuration and state.
	config  *config.Config
	session string

	buffer *buffer.Buffer

	// Spectrum analysis, nil when disabled.
	pipeline *analysis.Pipeline
	onResult func(analysis.Result)

	// Block event sinks.
	sinks     []*transport.Async
	recording string
	wsAddr    string

	// Acquisition, exactly one is set while running.
	source    *acquisition.Source
	synthetic *acquisition.Synthetic

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option customises an Engine.
type Option func(*Engine)

// WithSession overrides the generated session UUID.
func WithSession(id string) Option {
	return func(e *Engine) { e.session = id }
}

// WithResultHandler is called on the pipeline worker for every analysed block.
func WithResultHandler(fn func(analysis.Result)) Option {
	return func(e *Engine) { e.onResult = fn }
}

// NewEngine validates cfg and builds every component. Nothing runs until
// Start. Any sinks opened before a failure are closed again.
func NewEngine(cfg *config.Config, opts ...Option) (_ *Engine, err error) {
	if cfg == nil {
		return nil, errors.New("engine: config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Engine{config: cfg, session: uuid.NewString()}
	for _, opt := range opts {
		opt(e)
	}

	e.buffer, err = buffer.New(cfg.Buffer.BufferSize, cfg.Buffer.BlockSize, cfg.Buffer.SampleRate, cfg.BufferOptions()...)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			e.closeSinks()
		}
	}()

	if err = e.setupSinks(); err != nil {
		return nil, err
	}
	if cfg.Analysis.Enabled {
		if err = e.setupPipeline(); err != nil {
			return nil, err
		}
	}

	applog.Infof("Engine: Session %s ready (%d-sample blocks at %.1f Hz, %s mode, %d sinks)",
		e.session, cfg.Buffer.BlockSize, cfg.Buffer.SampleRate, e.buffer.Mode(), len(e.sinks))
	return e, nil
}

func (e *Engine) setupPipeline() error {
	cfg := e.config
	profiles, err := loadProfiles(&cfg.Analysis)
	if err != nil {
		return err
	}

	analyzer, err := analysis.NewAnalyzer(cfg.FFTSize(), cfg.Buffer.SampleRate, cfg.Window())
	if err != nil {
		return err
	}
	e.pipeline, err = analysis.NewPipeline(analyzer, e.buffer, analysis.PipelineConfig{
		Window:       cfg.WindowBlocks(),
		QueueSize:    cfg.Analysis.QueueSize,
		Profiles:     profiles,
		Bands:        cfg.Bands(),
		MedianFilter: cfg.Analysis.MedianFilter,
		Compressor:   cfg.Analysis.Compressor,
		Gate:         cfg.Gate(),
		Artifacts:    cfg.Artifacts(),
		Store:        cfg.Store(),
		OnResult:     e.handleResult,
	})
	if err != nil {
		return err
	}
	e.buffer.Subscribe(buffer.WithSession(e.pipeline, e.session))
	return nil
}

// loadProfiles returns the named catalog entries, or all of them when no
// names are configured.
func loadProfiles(cfg *config.AnalysisConfig) ([]spectrum.Profile, error) {
	if cfg.ProfilesFile == "" {
		return nil, nil
	}
	catalog, err := profile.Load(cfg.ProfilesFile)
	if err != nil {
		return nil, err
	}
	names := cfg.Profiles
	if len(names) == 0 {
		names = catalog.Names()
	}
	profiles := make([]spectrum.Profile, 0, len(names))
	for _, name := range names {
		p, err := catalog.Get(name)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func (e *Engine) setupSinks() error {
	t := e.config.Transport

	if t.LogEvents {
		e.attach("log", transport.NewLoggingSink(), t.QueueSize)
	}

	if t.UDPEnabled {
		sender, err := udp.NewSender(t.UDPTargetAddress)
		if err != nil {
			return err
		}
		publisher, err := udp.NewBlockPublisher(sender, e.config.Buffer.BlockSize)
		if err != nil {
			sender.Close()
			return err
		}
		e.attach("udp", publisher, e.config.UDPQueue())
	}

	if t.WebSocketEnabled {
		ws, err := transport.NewWebSocketSink(t.WebSocketAddr)
		if err != nil {
			return err
		}
		e.wsAddr = ws.Addr().String()
		e.attach("websocket", ws, t.QueueSize)
	}

	if r := e.config.Recording; r.Enabled {
		if err := os.MkdirAll(r.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create recording directory: %w", err)
		}
		e.recording = filepath.Join(r.OutputDir, recordingName(time.Now(), e.session))
		rec, err := transport.NewWAVRecorder(e.recording, int(math.Round(e.config.Buffer.SampleRate)), r.BitDepth)
		if err != nil {
			return err
		}
		e.attach("wav", rec, t.QueueSize)
	}
	return nil
}

func (e *Engine) attach(name string, sink transport.Sink, queueSize int) {
	a := transport.NewAsync(name, sink, queueSize)
	e.sinks = append(e.sinks, a)
	e.buffer.Subscribe(buffer.WithSession(a, e.session))
}

// recordingName is "recording-YYYYMMDD-HHMMSS-<session prefix>.wav" in UTC.
func recordingName(now time.Time, session string) string {
	if len(session) > 8 {
		session = session[:8]
	}
	return fmt.Sprintf("recording-%s-%s.wav", now.UTC().Format("20060102-150405"), session)
}

func (e *Engine) handleResult(res analysis.Result) {
	if applog.Enabled(applog.LevelDebug) {
		stats := res.Spectrum.MagnitudeStats()
		applog.Debugf("Engine: Block %d peak %.2f Hz, %d profiled, bands %v",
			res.Block.Index, res.Spectrum.Bin(stats.MaxIndex).Start, len(res.Profiled), res.Bands)
	}
	if e.onResult != nil {
		e.onResult(res)
	}
}

// Start launches the pipeline worker and the acquisition source. PortAudio
// must already be initialised unless acquisition is synthetic.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.New("engine: already running")
	}
	if e.stopped {
		return errors.New("engine: cannot restart a stopped engine")
	}

	ctx, e.cancel = context.WithCancel(ctx)
	if e.pipeline != nil {
		e.pipeline.Start(ctx)
	}

	if err := e.startAcquisition(ctx); err != nil {
		e.cancel()
		if e.pipeline != nil {
			e.pipeline.Stop()
		}
		return err
	}
	e.running = true
	return nil
}

// logSourceExit logs err unless the source stopped because its context
// ended.
func logSourceExit(name string, err error) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	applog.Errorf("Engine: %s stopped: %v", name, err)
}

func (e *Engine) startAcquisition(ctx context.Context) error {
	cfg := e.config
	if cfg.Acquisition.Synthetic {
		syn, err := acquisition.NewSynthetic(e.buffer, cfg.Buffer.SampleRate, cfg.Acquisition.FramesPerBuffer)
		if err != nil {
			return err
		}
		syn.GlitchEvery = cfg.Acquisition.GlitchEvery
		e.synthetic = syn

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			logSourceExit("synthetic source", syn.Run(ctx))
		}()
		return nil
	}

	src, err := acquisition.NewSource(cfg.Source(), e.buffer)
	if err != nil {
		return err
	}
	if err := src.Start(); err != nil {
		return err
	}
	e.source = src
	return nil
}

// Stop halts acquisition first so no further blocks are published, then
// stops the pipeline and drains and closes every sink. Stop on an engine
// that never started only closes the sinks. A stopped engine cannot be
// started again.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	if !e.running {
		return e.closeSinks()
	}
	e.running = false

	var errs []error
	if e.source != nil {
		if err := e.source.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop input stream: %w", err))
		}
		applog.Infof("Engine: Captured %d frames, %d overflows", e.source.Frames(), e.source.Overflows())
		e.source = nil
	}
	e.cancel()
	e.wg.Wait()
	e.synthetic = nil

	if e.pipeline != nil {
		e.pipeline.Stop()
		applog.Infof("Engine: Pipeline processed %d blocks (%d dropped, %d gated)",
			e.pipeline.Processed(), e.pipeline.Dropped(), e.pipeline.Gated())
	}

	if err := e.closeSinks(); err != nil {
		errs = append(errs, err)
	}
	applog.Infof("Engine: Session %s stopped after %d samples", e.session, e.buffer.TotalWrites())
	return errors.Join(errs...)
}

func (e *Engine) closeSinks() error {
	var errs []error
	for _, s := range e.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
		applog.Infof("Engine: Sink delivered %d events (%d dropped, %d failed)", s.Delivered(), s.Dropped(), s.Failed())
	}
	e.sinks = nil
	return errors.Join(errs...)
}

// Session returns the session UUID attached to every event.
func (e *Engine) Session() string { return e.session }

// Buffer returns the session's ring buffer.
func (e *Engine) Buffer() *buffer.Buffer { return e.buffer }

// RecordingFile returns the WAV path, empty when recording is disabled.
func (e *Engine) RecordingFile() string { return e.recording }

// WebSocketAddr returns the bound WebSocket address, empty when disabled.
func (e *Engine) WebSocketAddr() string { return e.wsAddr }
