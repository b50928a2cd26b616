// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"math"
	"testing"

	"biosignal/pkg/utils"
)

func constant(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{"empty", nil, 0},
		{"constant", constant(16, -0.5), 0.5},
		{"sine", utils.SineWave(256, 256, 8, 1), 1 / math.Sqrt2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RMS(tt.samples); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("RMS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArtifactDetector(t *testing.T) {
	d := NewArtifactDetector(0.2, 3)

	steps := []struct {
		level float32
		want  bool
	}{
		{0.1, false},  // below threshold
		{0.25, false}, // above threshold, ratio 2.5
		{0.9, true},   // ratio 3.6
		{0.95, false}, // sustained, not a jump
		{0.05, false},
		{0.5, true},
	}
	for i, s := range steps {
		if got := d.Process(int64(i+1), constant(32, s.level)); got != s.want {
			t.Errorf("step %d (level %v) = %v, want %v", i, s.level, got, s.want)
		}
	}
	if d.Detected() != 2 {
		t.Errorf("Detected() = %d, want 2", d.Detected())
	}

	// After a reset the first loud block only has to pass the threshold.
	d.Reset()
	if d.Known(6) {
		t.Error("Reset kept block 6")
	}
	if !d.Process(7, constant(32, 0.3)) {
		t.Error("first block after Reset should only be compared against the threshold")
	}
}

func TestArtifactDetectorComparesPrecedingIndex(t *testing.T) {
	d := NewArtifactDetector(0.2, 3)

	// Newest first: block 3 is quiet, blocks 2 and 1 are equally loud.
	d.Observe(1, constant(32, 0.9))
	if d.Process(3, constant(32, 0.05)) {
		t.Error("quiet block 3 flagged")
	}
	if d.Process(2, constant(32, 0.9)) {
		t.Error("block 2 compared against block 3 instead of block 1")
	}
	if !d.Process(4, constant(32, 0.9)) {
		t.Error("jump from block 3 to block 4 not flagged")
	}
}

func TestArtifactDetectorForgetsOldBlocks(t *testing.T) {
	d := NewArtifactDetector(0.2, 3)
	d.Observe(1, constant(8, 0.1))
	d.Observe(artifactHistory+1, constant(8, 0.1))

	if d.Known(1) {
		t.Error("block 1 still remembered")
	}
	if !d.Known(artifactHistory + 1) {
		t.Errorf("block %d forgotten", artifactHistory+1)
	}
}

func TestPipelineFlagsArtifacts(t *testing.T) {
	f := newPipelineFixture(t, PipelineConfig{Artifacts: NewArtifactDetector(0.5, 2)})
	f.pipeline.Start(context.Background())

	f.buf.Write(utils.SineWave(testFFTSize, testSampleRate, 10, 0.1))
	f.buf.Write(utils.SineWave(testFFTSize, testSampleRate, 10, 1))
	res := f.wait(t, 2)

	if res[0].Artifact || !res[1].Artifact {
		t.Errorf("Artifact flags = %v, %v, want false, true", res[0].Artifact, res[1].Artifact)
	}
}

func TestPipelineArtifactBaselineIsChronological(t *testing.T) {
	f := newPipelineFixture(t, PipelineConfig{Artifacts: NewArtifactDetector(0.5, 2)})
	f.pipeline.Start(context.Background())

	// One write completes loud, loud, quiet; blocks arrive as 3, 2, 1.
	var samples []float32
	samples = append(samples, utils.SineWave(testFFTSize, testSampleRate, 10, 1)...)
	samples = append(samples, utils.SineWave(testFFTSize, testSampleRate, 10, 1)...)
	samples = append(samples, utils.SineWave(testFFTSize, testSampleRate, 10, 0.1)...)
	f.buf.Write(samples)
	res := f.wait(t, 3)

	want := map[int64]bool{3: false, 2: false, 1: true}
	for _, r := range res {
		if r.Artifact != want[r.Block.Index] {
			t.Errorf("block %d Artifact = %v, want %v", r.Block.Index, r.Artifact, want[r.Block.Index])
		}
	}
}
