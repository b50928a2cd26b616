// SPDX-License-Identifier: MIT
package buffer

// BlockEvent is delivered once for every completed block.
type BlockEvent struct {
	Block Block
	Error *BlockError // Glitches accumulated since the previous publish, nil if none.

	// Session associates the event with an acquisition session. The buffer
	// never sets it; wrappers that know the session fill it in.
	Session string
}

// ErrorEvent is delivered for every Error call with that call's raw counts.
type ErrorEvent struct {
	BytesAvailable int
	BytesLost      int
	BytesCorrupted int
	BytesTotal     int
	Mode           ErrorMode
	Session        string
}

// Consumer receives buffer notifications. Both methods are called on the
// producer goroutine while the buffer lock is held: they must return quickly
// and must not call back into the same Buffer, the lock is not reentrant.
type Consumer interface {
	BlockCompleted(BlockEvent)
	BufferError(ErrorEvent)
}

// Writer is the surface an acquisition source drives. The first three Error
// counts are in bytes and only reported; bytesTotal is the length of the
// corrupted span in samples, which ZeroSamples mode fills with zeros.
type Writer interface {
	Write(samples []float32)
	Error(bytesAvailable, bytesLost, bytesCorrupted, bytesTotal int)
}

// ConsumerFuncs adapts plain functions to the Consumer interface. Nil fields
// are ignored.
type ConsumerFuncs struct {
	OnBlock func(BlockEvent)
	OnError func(ErrorEvent)
}

func (f ConsumerFuncs) BlockCompleted(ev BlockEvent) {
	if f.OnBlock != nil {
		f.OnBlock(ev)
	}
}

func (f ConsumerFuncs) BufferError(ev ErrorEvent) {
	if f.OnError != nil {
		f.OnError(ev)
	}
}

// WithSession wraps c so every event it receives is tagged with session.
func WithSession(c Consumer, session string) Consumer {
	return sessionConsumer{next: c, session: session}
}

type sessionConsumer struct {
	next    Consumer
	session string
}

func (s sessionConsumer) BlockCompleted(ev BlockEvent) {
	ev.Session = s.session
	s.next.BlockCompleted(ev)
}

func (s sessionConsumer) BufferError(ev ErrorEvent) {
	ev.Session = s.session
	s.next.BufferError(ev)
}
