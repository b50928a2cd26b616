// SPDX-License-Identifier: MIT
package transport

import (
	"biosignal/internal/buffer"
	applog "biosignal/internal/log"
)

// LoggingSink implements Sink by logging a one-line summary of each event.
// Blocks are logged at debug level, glitches at warn.
type LoggingSink struct{}

// NewLoggingSink creates a new LoggingSink instance.
func NewLoggingSink() *LoggingSink {
	applog.Infof("Transport: Using LoggingSink")
	return &LoggingSink{}
}

func (ls *LoggingSink) SendBlock(ev buffer.BlockEvent) error {
	b := ev.Block
	if ev.Error != nil {
		applog.Warnf("LOG_SINK: block %d [%s] carries %d glitches (lost %d, corrupted %d bytes)",
			b.Index, ev.Session, ev.Error.ErrorCount, ev.Error.LostBytes, ev.Error.CorruptedBytes)
	}
	applog.Debugf("LOG_SINK: block %d [%s] pos=%d samples=%d span=%s",
		b.Index, ev.Session, b.BufferPosition, len(b.Data), b.Duration())
	return nil
}

func (ls *LoggingSink) SendError(ev buffer.ErrorEvent) error {
	applog.Warnf("LOG_SINK: buffer error [%s] available=%d lost=%d corrupted=%d total=%d mode=%s",
		ev.Session, ev.BytesAvailable, ev.BytesLost, ev.BytesCorrupted, ev.BytesTotal, ev.Mode)
	return nil
}

// Close is a no-op for LoggingSink.
func (ls *LoggingSink) Close() error {
	applog.Debugf("LOG_SINK: Close called.")
	return nil
}

// Ensure LoggingSink satisfies the interface at compile time.
var _ Sink = (*LoggingSink)(nil)
