// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"sync"
	"sync/atomic"

	"biosignal/internal/buffer"
	applog "biosignal/internal/log"
)

// Sink delivers buffer events to an external destination. Sinks may block on
// I/O, so they are driven through Async rather than subscribed to a buffer
// directly.
type Sink interface {
	SendBlock(ev buffer.BlockEvent) error
	SendError(ev buffer.ErrorEvent) error
	Close() error
}

// DefaultQueueSize is the Async queue length used when none is given.
const DefaultQueueSize = 64

type event struct {
	block *buffer.BlockEvent
	err   *buffer.ErrorEvent
}

// Async is a buffer Consumer that hands events to a Sink on its own
// goroutine. Notifications never block the producer: when the queue is full
// the event is dropped and counted.
type Async struct {
	name  string
	sink  Sink
	queue chan event
	done  chan struct{}

	mu     sync.RWMutex // Guards closed against concurrent enqueue.
	closed bool

	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

var _ buffer.Consumer = (*Async)(nil)

// NewAsync starts the delivery goroutine for sink. name is used in log
// messages. queueSize <= 0 selects DefaultQueueSize.
func NewAsync(name string, sink Sink, queueSize int) *Async {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	a := &Async{
		name:  name,
		sink:  sink,
		queue: make(chan event, queueSize),
		done:  make(chan struct{}),
	}
	go a.run()
	applog.Infof("Transport: %s attached (queue %d)", name, queueSize)
	return a
}

func (a *Async) BlockCompleted(ev buffer.BlockEvent) {
	a.enqueue(event{block: &ev})
}

func (a *Async) BufferError(ev buffer.ErrorEvent) {
	a.enqueue(event{err: &ev})
}

func (a *Async) enqueue(e event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- e:
	default:
		n := a.dropped.Add(1)
		applog.Warnf("Transport: %s queue full, event dropped (%d dropped so far)", a.name, n)
	}
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.queue {
		var err error
		if e.block != nil {
			err = a.sink.SendBlock(*e.block)
		} else {
			err = a.sink.SendError(*e.err)
		}
		if err != nil {
			a.failed.Add(1)
			applog.Errorf("Transport: %s: %v", a.name, err)
			continue
		}
		a.delivered.Add(1)
	}
}

// Close stops accepting events, delivers what is queued and closes the sink.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	applog.Infof("Transport: %s closed (delivered %d, dropped %d, failed %d)",
		a.name, a.delivered.Load(), a.dropped.Load(), a.failed.Load())
	if err := a.sink.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", a.name, err)
	}
	return nil
}

// Delivered counts events the sink accepted.
func (a *Async) Delivered() uint64 { return a.delivered.Load() }

// Dropped counts events discarded because the queue was full.
func (a *Async) Dropped() uint64 { return a.dropped.Load() }

// Failed counts events the sink returned an error for.
func (a *Async) Failed() uint64 { return a.failed.Load() }
