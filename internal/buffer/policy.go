// SPDX-License-Identifier: MIT
package buffer

import (
	"fmt"
	"strings"
)

// ErrorMode selects how a reported acquisition glitch affects the buffer.
type ErrorMode int

const (
	// ClearBuffer wipes the ring, the repository and the pending error.
	ClearBuffer ErrorMode = iota
	// DiscardSamples leaves the buffer untouched; the accumulated error is
	// attached to the next published block.
	DiscardSamples
	// ZeroSamples writes the corrupted span as zeros through Write.
	ZeroSamples
)

func (m ErrorMode) String() string {
	switch m {
	case ClearBuffer:
		return "clear"
	case DiscardSamples:
		return "discard"
	case ZeroSamples:
		return "zero"
	default:
		return fmt.Sprintf("ErrorMode(%d)", int(m))
	}
}

// ParseErrorMode converts a configuration value (case-insensitive) to an
// ErrorMode.
func ParseErrorMode(name string) (ErrorMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "clear", "clearbuffer", "clear_buffer":
		return ClearBuffer, nil
	case "discard", "discardsamples", "discard_samples":
		return DiscardSamples, nil
	case "zero", "zerosamples", "zero_samples":
		return ZeroSamples, nil
	default:
		return ClearBuffer, fmt.Errorf("unknown error mode: '%s'", name)
	}
}

// Error records an acquisition glitch. The counts are accumulated onto the
// pending BlockError, a buffer-error notification carrying this call's raw
// counts is always delivered, and then the configured ErrorMode is applied.
func (b *Buffer) Error(bytesAvailable, bytesLost, bytesCorrupted, bytesTotal int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == nil {
		b.pending = &BlockError{
			ErrorCount:     1,
			CorruptedBytes: bytesCorrupted,
			LostBytes:      bytesLost,
		}
	} else {
		b.pending.ErrorCount++
		b.pending.CorruptedBytes += bytesCorrupted
		b.pending.LostBytes += bytesLost
	}

	ev := ErrorEvent{
		BytesAvailable: bytesAvailable,
		BytesLost:      bytesLost,
		BytesCorrupted: bytesCorrupted,
		BytesTotal:     bytesTotal,
		Mode:           b.mode,
	}
	for _, c := range b.consumers {
		c.BufferError(ev)
	}

	switch b.mode {
	case ClearBuffer:
		b.clear()
	case DiscardSamples:
		// Deferred until the next publish.
	case ZeroSamples:
		if bytesTotal > 0 {
			b.write(make([]float32, bytesTotal))
		}
	}
}
