// Package transport provides the event loop and the TCP record-marked byte
// channel that drive RPC sessions.
//
// Every RPC session method runs on the Loop goroutine. Network I/O that can
// block (dialing, reading) runs in helper goroutines which only hand results
// to the loop through Post, so session state is never touched concurrently.
package transport

import (
	"context"
	"sync"
)

// Loop is a single-goroutine event loop.
type Loop struct {
	events   chan func()
	done     chan struct{}
	stopOnce sync.Once
	err      error
}

// NewLoop creates a loop. Nothing runs until Run is called.
func NewLoop() *Loop {
	return &Loop{
		events: make(chan func(), 64),
		done:   make(chan struct{}),
	}
}

// Post schedules fn to run on the loop goroutine.
//
// Returns false if the loop has stopped; fn will then never run. Post may
// block while the event queue is full, so it must not be called from the
// loop goroutine itself with a full queue.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.events <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Run executes posted events until Stop is called or ctx is cancelled.
//
// Returns:
//   - the error passed to Stop (nil for an orderly stop)
//   - ctx.Err() if the context was cancelled first
func (l *Loop) Run(ctx context.Context) error {
	for {
		// Stop wins over pending events.
		select {
		case <-l.done:
			return l.err
		default:
		}

		select {
		case <-ctx.Done():
			l.Stop(ctx.Err())
			return l.err
		case <-l.done:
			return l.err
		case fn := <-l.events:
			fn()
		}
	}
}

// Stop ends Run with err. Only the first call has any effect.
func (l *Loop) Stop(err error) {
	l.stopOnce.Do(func() {
		l.err = err
		close(l.done)
	})
}

// Done is closed when the loop stops.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
