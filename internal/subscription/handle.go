// Package subscription owns the live realtime queries of a session.
package subscription

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
	"github.com/ST10104037/hippocampus-site/internal/fifo"
)

// generations are unique for the life of the process
var generations atomic.Uint64

type SnapshotFunc func(gen uint64, snap docstore.Snapshot)

type ErrorFunc func(gen uint64, err error)

type event struct {
	snap docstore.Snapshot
	err  error
}

// Handle is one open query subscription.
//
// Snapshots are delivered one at a time from a single goroutine, in the order
// the store produced them. The store's callback only enqueues, so a slow
// consumer never blocks the store.
type Handle struct {
	gen   uint64
	query docstore.Query

	queue    *fifo.Queue[event]
	started  chan struct{}
	done     chan struct{}
	finished chan struct{}
	closed   atomic.Bool
	once     sync.Once
	cancel   func()
}

// Open subscribes to q. onSnapshot receives the current result first and
// then one snapshot per change; onError receives store errors, which do not
// close the handle.
func Open(store docstore.Store, q docstore.Query, onSnapshot SnapshotFunc, onError ErrorFunc) (*Handle, error) {
	h, err := openPaused(store, q, onSnapshot, onError)
	if err != nil {
		return nil, err
	}
	close(h.started)
	return h, nil
}

// openPaused subscribes but holds deliveries until h.started is closed, so
// the caller can publish the generation before the first callback runs
func openPaused(store docstore.Store, q docstore.Query, onSnapshot SnapshotFunc, onError ErrorFunc) (*Handle, error) {
	h := &Handle{
		gen:      generations.Add(1),
		query:    q,
		queue:    fifo.New[event](),
		started:  make(chan struct{}),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}

	cancel, err := store.Subscribe(q,
		func(snap docstore.Snapshot) { h.queue.Push(event{snap: snap}) },
		func(err error) { h.queue.Push(event{err: err}) },
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", q, err)
	}
	h.cancel = cancel

	go h.deliver(onSnapshot, onError)
	return h, nil
}

func (h *Handle) deliver(onSnapshot SnapshotFunc, onError ErrorFunc) {
	defer close(h.finished)

	select {
	case <-h.started:
	case <-h.done:
		return
	}

	for {
		ev, ok := h.queue.Next(h.done)
		if !ok || h.closed.Load() {
			return
		}

		if ev.err != nil {
			if onError != nil {
				onError(h.gen, ev.err)
			}
			continue
		}
		if onSnapshot != nil {
			onSnapshot(h.gen, ev.snap)
		}
	}
}

// Close stops the subscription. It waits for a delivery in progress, after
// it returns no callback of this handle runs again. Close is idempotent and
// must not be called from the handle's own callbacks.
func (h *Handle) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		h.cancel()
		h.queue.Close()
		close(h.done)
		<-h.finished
	})
}

// Gen is the unique generation of the handle
func (h *Handle) Gen() uint64 {
	return h.gen
}

// Alive reports whether the handle is still open
func (h *Handle) Alive() bool {
	return !h.closed.Load()
}

func (h *Handle) Query() docstore.Query {
	return h.query
}
