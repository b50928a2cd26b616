// SPDX-License-Identifier: MIT
/*
Package buffer implements the acquisition ring buffer:
- Fixed-capacity float32 ring with wraparound writes
- Block assembly at every BlockSize boundary crossed by a write
- Indexed block history merged on demand by count or duration
- Configurable handling of reported acquisition glitches

Thread Safety:
- One producer calls Write/Error, any number of consumers call Blocks/Clear
- Every operation runs under a single non-reentrant mutex
- Notifications are delivered synchronously on the producer goroutine
*/
package buffer

import (
	"math"
	"sync"
	"time"
)

// LatestBlock selects the highest known block index in Blocks and BlocksFor.
const LatestBlock int64 = 0

// Buffer is the circular sample store together with its block assembler and
// block repository. Create it with New.
//
// A single coarse lock serializes producer and consumers.
type Buffer struct {
	mu sync.Mutex

	data       []float32
	capacity   int
	blockSize  int
	sampleRate float64
	blockSpan  time.Duration // Duration of one block at sampleRate.

	position int   // Next write offset in [0, capacity).
	total    int64 // Samples written since the last clear, never wrapped.

	mode      ErrorMode
	pending   *BlockError
	repo      *repository
	consumers []Consumer
	now       func() time.Time
}

// Option customises a Buffer at construction time.
type Option func(*Buffer)

// WithErrorMode selects how Error affects the buffer. The default is ClearBuffer.
func WithErrorMode(mode ErrorMode) Option {
	return func(b *Buffer) { b.mode = mode }
}

// WithRetention keeps only the most recent n blocks in the repository.
// n <= 0 keeps every block, which grows without bound.
func WithRetention(n int) Option {
	return func(b *Buffer) { b.repo.retention = n }
}

// WithClock replaces time.Now as the source of block timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Buffer) { b.now = now }
}

// WithConsumer subscribes c before the buffer is handed to a producer.
func WithConsumer(c Consumer) Option {
	return func(b *Buffer) { b.consumers = append(b.consumers, c) }
}

// New creates a ring holding bufferSize samples split into blocks of
// blockSize samples acquired at sampleRate Hz.
func New(bufferSize, blockSize int, sampleRate float64, opts ...Option) (*Buffer, error) {
	if blockSize <= 0 {
		return nil, &ConstructionError{Param: "blockSize", Value: blockSize, Reason: "must be positive"}
	}
	if bufferSize < blockSize {
		return nil, &ConstructionError{Param: "bufferSize", Value: bufferSize, Reason: "must be at least blockSize"}
	}
	if bufferSize%blockSize != 0 {
		return nil, &ConstructionError{Param: "bufferSize", Value: bufferSize, Reason: "must be a multiple of blockSize"}
	}
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return nil, &ConstructionError{Param: "sampleRate", Value: sampleRate, Reason: "must be positive"}
	}

	b := &Buffer{
		data:       make([]float32, bufferSize),
		capacity:   bufferSize,
		blockSize:  blockSize,
		sampleRate: sampleRate,
		blockSpan:  time.Duration(float64(blockSize) / sampleRate * float64(time.Second)),
		mode:       ClearBuffer,
		repo:       newRepository(0),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Subscribe registers c for block-completed and buffer-error notifications.
func (b *Buffer) Subscribe(c Consumer) {
	b.mu.Lock()
	b.consumers = append(b.consumers, c)
	b.mu.Unlock()
}

// Write copies samples into the ring and publishes every block whose
// boundary was crossed. When one call completes several blocks they are
// published newest first, from the highest index down to the lowest.
func (b *Buffer) Write(samples []float32) {
	b.mu.Lock()
	b.write(samples)
	b.mu.Unlock()
}

func (b *Buffer) write(samples []float32) {
	n := len(samples)
	if n == 0 {
		return
	}

	// Only the last capacity samples survive; skipping the rest keeps each
	// surviving sample at the offset a full copy would have left it.
	src := samples
	if n > b.capacity {
		skip := n - b.capacity
		src = samples[skip:]
		b.position = (b.position + skip) % b.capacity
	}
	copied := copy(b.data[b.position:], src)
	if copied < len(src) {
		copy(b.data, src[copied:])
	}
	b.position = (b.position + len(src)) % b.capacity

	before := b.total
	b.total += int64(n)

	bs := int64(b.blockSize)
	first := before/bs + 1
	last := b.total / bs
	if last < first {
		return
	}

	now := b.now()
	for k := last; k >= first; k-- {
		end := now.Add(-time.Duration(last-k) * b.blockSpan)
		boundary := int((k * bs) % int64(b.capacity))
		data, _ := b.read(b.blockSize, boundary)

		blk := Block{
			Index:          k,
			BlockSize:      b.blockSize,
			BufferPosition: int(((k - 1) * bs) % int64(b.capacity)),
			StartIndex:     k,
			EndIndex:       k,
			Data:           data,
			Start:          end.Add(-b.blockSpan),
			End:            end,
		}
		b.repo.put(blk)

		ev := BlockEvent{Block: blk, Error: b.pending}
		b.pending = nil
		for _, c := range b.consumers {
			c.BlockCompleted(ev)
		}
	}
}

// read returns a copy of the n samples that end just before offset end.
func (b *Buffer) read(n, end int) ([]float32, error) {
	if n < 0 || n > b.capacity {
		return nil, ErrReadBounds
	}
	out := make([]float32, n)
	start := ((end-n)%b.capacity + b.capacity) % b.capacity
	copied := copy(out, b.data[start:min(start+n, b.capacity)])
	if copied < n {
		copy(out[copied:], b.data[:n-copied])
	}
	return out, nil
}

// Latest returns the n most recently written samples, oldest first.
func (b *Buffer) Latest(n int) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read(n, b.position)
}

// Clear resets the write position, the write counter, the pending error and
// the block repository.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.clear()
	b.mu.Unlock()
}

func (b *Buffer) clear() {
	b.position = 0
	b.total = 0
	b.pending = nil
	b.repo.reset()
}

// Blocks merges the count most recent blocks up to and including block index
// end (LatestBlock for the highest known index) into one Block. Indices
// missing from the repository are skipped. When nothing matches, the result
// has empty Data and BufferPosition -1.
func (b *Buffer) Blocks(count int, end int64) Block {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blocks(count, end)
}

// BlocksFor merges enough blocks to cover d, plus one, ending at block index
// end.
func (b *Buffer) BlocksFor(d time.Duration, end int64) Block {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blocks(b.blocksIn(d), end)
}

func (b *Buffer) blocksIn(d time.Duration) int {
	return int(math.Ceil(d.Seconds()*b.sampleRate/float64(b.blockSize))) + 1
}

func (b *Buffer) blocks(count int, end int64) Block {
	if count <= 0 || b.repo.len() == 0 {
		return emptyBlock(b.blockSize)
	}
	if end <= LatestBlock {
		end = b.repo.highest
	}
	start := max(end-int64(count)+1, 1)

	merged := Block{
		Index:      end,
		BlockSize:  b.blockSize,
		StartIndex: start,
		EndIndex:   end,
		Data:       make([]float32, 0, min(count, b.repo.len())*b.blockSize),
	}
	found := false
	for k := start; k <= end; k++ {
		blk, ok := b.repo.get(k)
		if !ok {
			continue
		}
		merged.Data = append(merged.Data, blk.Data...)
		if !found {
			merged.BufferPosition = blk.BufferPosition
			merged.Start = blk.Start
			merged.End = blk.End
			found = true
			continue
		}
		if blk.Start.Before(merged.Start) {
			merged.Start = blk.Start
		}
		if blk.End.After(merged.End) {
			merged.End = blk.End
		}
	}
	if !found {
		return emptyBlock(b.blockSize)
	}
	return merged
}

// Position is the next write offset in the ring.
func (b *Buffer) Position() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position
}

// TotalWrites is the number of samples written since construction or the
// last clear.
func (b *Buffer) TotalWrites() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// StoredBlocks is the number of blocks currently held by the repository.
func (b *Buffer) StoredBlocks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.repo.len()
}

func (b *Buffer) Capacity() int { return b.capacity }
func (b *Buffer) BlockSize() int { return b.blockSize }
func (b *Buffer) SampleRate() float64 { return b.sampleRate }
func (b *Buffer) Mode() ErrorMode { return b.mode }
func (b *Buffer) BlockSpan() time.Duration { return b.blockSpan }

var _ Writer = (*Buffer)(nil)
