package metrics

import (
	"sync"
	"sync/atomic"
)

// AsyncObserver moves slow sinks (files, logs) off the request path.
// When the queue is full the event is dropped and counted; recording never
// blocks a handler.
type AsyncObserver struct {
	inner   Observer
	ch      chan MetricsEvent
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

func NewAsyncObserver(inner Observer, buffer int) *AsyncObserver {
	if inner == nil {
		inner = NoopObserver{}
	}
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncObserver{
		inner: inner,
		ch:    make(chan MetricsEvent, buffer),
		done:  make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *AsyncObserver) RecordEvent(ev MetricsEvent) {
	if a == nil {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.ch <- ev:
	default:
		a.dropped.Add(1)
	}
}

func (a *AsyncObserver) Dropped() int64 { return a.dropped.Load() }

// Close stops intake, waits for queued events to reach the inner observer
// and flushes it when it is a Flusher. Later calls only wait.
func (a *AsyncObserver) Close() {
	if a == nil {
		return
	}
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *AsyncObserver) loop() {
	defer close(a.done)
	for ev := range a.ch {
		a.inner.RecordEvent(ev)
	}
	if f, ok := a.inner.(Flusher); ok {
		_ = f.Flush()
	}
}
