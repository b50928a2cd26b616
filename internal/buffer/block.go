// SPDX-License-Identifier: MIT
package buffer

import "time"

// Block is an immutable snapshot of BlockSize consecutive samples. A freshly
// completed block has StartIndex == EndIndex == Index; a block returned by
// Blocks spans a range of indices and carries the concatenated data.
type Block struct {
	Index          int64     // TotalWrites / BlockSize at the boundary that completed it.
	BlockSize      int       // Samples per constituent block.
	BufferPosition int       // Ring offset of the first sample, -1 for an empty result.
	StartIndex     int64     // First block index covered.
	EndIndex       int64     // Last block index covered.
	Data           []float32 // Samples in ascending index order.
	Start          time.Time // Acquisition time of the first sample.
	End            time.Time // Acquisition time just after the last sample.
}

// Empty reports whether the block carries no samples.
func (b Block) Empty() bool {
	return len(b.Data) == 0
}

// Duration is the time span covered by the block.
func (b Block) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// emptyBlock is the sentinel returned when nothing matches a request.
func emptyBlock(blockSize int) Block {
	return Block{
		BlockSize:      blockSize,
		BufferPosition: -1,
		Data:           []float32{},
	}
}

// BlockError accumulates acquisition glitches reported since the last
// published block.
type BlockError struct {
	ErrorCount     int
	CorruptedBytes int
	LostBytes      int
}
