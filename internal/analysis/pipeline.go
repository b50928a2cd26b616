// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"biosignal/internal/buffer"
	applog "biosignal/internal/log"
	"biosignal/internal/persistence"
	"biosignal/internal/spectrum"
)

// BlockSource is the part of a buffer the pipeline reads merged windows from.
type BlockSource interface {
	Blocks(count int, end int64) buffer.Block
}

// Result is everything the pipeline derived from one completed block.
type Result struct {
	Session  string
	Block    buffer.Block         // The analysed window, merged when Window > 1.
	Spectrum *spectrum.Spectrum   // Raw spectrum after the configured filters.
	Profiled []*spectrum.Spectrum // One per profile that could be applied.
	Bands    []BandEnergy         // Computed before filtering.
	Artifact bool                 // The newest block tripped the artifact detector.
	Paths    []string             // Files written, raw spectrum first.
}

// PipelineConfig controls what the pipeline does with each block.
type PipelineConfig struct {
	Window       int // Number of most recent blocks merged per analysis, 1 if zero.
	QueueSize    int // Pending blocks before new ones are dropped, 16 if zero.
	Profiles     []spectrum.Profile
	Bands        []FrequencyBand
	MedianFilter bool
	Compressor   float64            // Power of the compressor filter, disabled if zero.
	Gate         *Gate              // Nil analyses every block.
	Artifacts    *ArtifactDetector  // Nil disables artifact detection. Used only by the worker.
	Store        *persistence.Store // Nil disables saving.
	OnResult     func(Result)       // Called on the worker goroutine.
}

// Pipeline is a buffer Consumer that analyses completed blocks off the
// producer goroutine. BlockCompleted only enqueues; a worker started with
// Start merges, analyses, profiles and saves.
type Pipeline struct {
	analyzer *Analyzer
	source   BlockSource
	cfg      PipelineConfig
	queue    chan buffer.BlockEvent

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	processed atomic.Uint64
	dropped   atomic.Uint64
	gated     atomic.Uint64
}

var _ buffer.Consumer = (*Pipeline)(nil)

// NewPipeline wires an analyzer to a block source.
func NewPipeline(analyzer *Analyzer, source BlockSource, cfg PipelineConfig) (*Pipeline, error) {
	if analyzer == nil {
		return nil, errors.New("pipeline: analyzer cannot be nil")
	}
	if cfg.Window < 0 {
		return nil, fmt.Errorf("pipeline: window must not be negative, got %d", cfg.Window)
	}
	if cfg.Window == 0 {
		cfg.Window = 1
	}
	if cfg.Window > 1 && source == nil {
		return nil, fmt.Errorf("pipeline: window of %d blocks needs a block source", cfg.Window)
	}
	if cfg.Compressor < 0 {
		return nil, fmt.Errorf("pipeline: compressor power must not be negative, got %g", cfg.Compressor)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	return &Pipeline{
		analyzer: analyzer,
		source:   source,
		cfg:      cfg,
		queue:    make(chan buffer.BlockEvent, cfg.QueueSize),
	}, nil
}

// BlockCompleted enqueues ev without blocking. When the queue is full the
// block is dropped and counted.
func (p *Pipeline) BlockCompleted(ev buffer.BlockEvent) {
	select {
	case p.queue <- ev:
	default:
		n := p.dropped.Add(1)
		applog.Warnf("Pipeline: Queue full, dropped block %d (%d dropped so far)", ev.Block.Index, n)
	}
}

// BufferError logs the glitch; the buffer has already applied its policy.
func (p *Pipeline) BufferError(ev buffer.ErrorEvent) {
	applog.Warnf("Pipeline: Buffer error (lost %d, corrupted %d of %d bytes, mode %s)",
		ev.BytesLost, ev.BytesCorrupted, ev.BytesTotal, ev.Mode)
}

// Start launches the worker. It runs until ctx is cancelled or Stop is
// called. Calling Start on a running pipeline is a no-op.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		applog.Warnf("Pipeline: Start called but already running.")
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("Pipeline: Worker started (window %d blocks, %d profiles)", p.cfg.Window, len(p.cfg.Profiles))
		for {
			select {
			case <-ctx.Done():
				applog.Infof("Pipeline: Worker stopping.")
				return
			case ev := <-p.queue:
				p.process(ev)
			}
		}
	}()
}

// Stop cancels the worker and waits for it to exit. Blocks still queued stay
// queued and are handled by the next Start.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}

// Processed counts blocks fully handled by the worker.
func (p *Pipeline) Processed() uint64 { return p.processed.Load() }

// Dropped counts blocks rejected because the queue was full.
func (p *Pipeline) Dropped() uint64 { return p.dropped.Load() }

// Gated counts blocks held back by the gate.
func (p *Pipeline) Gated() uint64 { return p.gated.Load() }

func (p *Pipeline) process(ev buffer.BlockEvent) {
	block := ev.Block
	var artifact bool
	if d := p.cfg.Artifacts; d != nil {
		// Blocks of one write arrive newest first; take the baseline from
		// the buffer when the preceding block has not been seen yet.
		if prev := block.Index - 1; prev > 0 && !d.Known(prev) && p.source != nil {
			if pb := p.source.Blocks(1, prev); !pb.Empty() {
				d.Observe(prev, pb.Data)
			}
		}
		if artifact = d.Process(block.Index, block.Data); artifact {
			applog.Warnf("Pipeline: Block %d looks like an artifact (RMS %.4f)", block.Index, RMS(block.Data))
		}
	}
	if p.cfg.Window > 1 {
		if merged := p.source.Blocks(p.cfg.Window, ev.Block.Index); !merged.Empty() {
			block = merged
		}
	}

	if p.cfg.Gate != nil && !p.cfg.Gate.Open(block.Data) {
		p.gated.Add(1)
		applog.Debugf("Pipeline: Block %d below gate threshold %.4f", block.Index, p.cfg.Gate.Threshold())
		return
	}

	raw, err := p.analyzer.Analyze(block)
	if err != nil {
		applog.Errorf("Pipeline: %v", err)
		return
	}

	res := Result{Session: ev.Session, Block: block, Spectrum: raw, Artifact: artifact}
	if len(p.cfg.Bands) > 0 {
		res.Bands = BandEnergies(raw, p.cfg.Bands)
		applog.Debugf("Pipeline: Block %d bands %v", block.Index, res.Bands)
	}

	if p.cfg.MedianFilter {
		raw.ApplyMedianFilter()
	}
	if p.cfg.Compressor > 0 {
		if err := raw.ApplyCompressorFilter(p.cfg.Compressor); err != nil {
			applog.Errorf("Pipeline: %v", err)
		}
	}

	for _, prof := range p.cfg.Profiles {
		ps, err := raw.ApplyProfile(prof)
		if err != nil {
			applog.Warnf("Pipeline: Block %d: %v", block.Index, err)
			continue
		}
		res.Profiled = append(res.Profiled, ps)
	}

	if p.cfg.Store != nil {
		res.Paths = p.save(res, baseName(raw.Name, ev.Session))
	}

	p.processed.Add(1)
	if p.cfg.OnResult != nil {
		p.cfg.OnResult(res)
	}
}

func (p *Pipeline) save(res Result, base string) []string {
	paths := make([]string, 0, 1+len(res.Profiled))
	path, err := p.cfg.Store.Save(res.Spectrum, base)
	if err != nil {
		applog.Errorf("Pipeline: %v", err)
	} else {
		paths = append(paths, path)
	}
	for _, ps := range res.Profiled {
		path, err := p.cfg.Store.Save(ps, persistence.ProfiledFilename(base, ps.Name))
		if err != nil {
			applog.Errorf("Pipeline: %v", err)
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

// baseName builds "<name>-<session prefix>_raw". The part before the
// underscore is unique per block so profiled files derived from it are too.
func baseName(name, session string) string {
	if len(session) > 8 {
		session = session[:8]
	}
	if session != "" {
		name += "-" + session
	}
	return name + "_raw"
}
