package cache

import (
	"context"
	"sync"

	"catalog/internal/apiclient"
)

// entry is the mutable cache slot behind one key. All fields are guarded by
// mu, the owning Store's mutex.
type entry[T any] struct {
	mu      *sync.Mutex
	key     string
	status  Status
	data    T
	hasData bool
	err     *apiclient.Error

	// gen is bumped by every invalidation and every local edit. A fetch
	// result is only applied if gen did not move while it was in flight.
	gen        uint64
	loadingGen uint64

	fetch     func(ctx context.Context) (T, error)
	clone     func(T) T
	listeners map[int]func(State[T])

	// pending holds listener calls in the order the changes were made.
	pending    []notification[T]
	delivering bool
}

type notification[T any] struct {
	listener int
	state    State[T]
}

func newEntry[T any](mu *sync.Mutex, key string, fetch func(context.Context) (T, error), clone func(T) T) *entry[T] {
	return &entry[T]{
		mu:        mu,
		key:       key,
		status:    StatusAbsent,
		fetch:     fetch,
		clone:     clone,
		listeners: make(map[int]func(State[T])),
	}
}

// moveTo changes the status if the transition table allows it.
func (e *entry[T]) moveTo(to Status) bool {
	if !CanTransition(e.status, to) {
		return false
	}
	e.status = to
	return true
}

func (e *entry[T]) state() State[T] {
	st := State[T]{Status: e.status, HasData: e.hasData, Err: e.err}
	if e.hasData {
		st.Data = e.clone(e.data)
	}
	return st
}

// notifications queues the current state for every listener and returns the
// call that delivers the queue once the store lock is released.
func (e *entry[T]) notifications() []func() {
	if len(e.listeners) == 0 {
		return nil
	}
	for id := range e.listeners {
		e.pending = append(e.pending, notification[T]{listener: id, state: e.state()})
	}
	return []func(){e.deliver}
}

// notify queues the current state for one listener. Must be called with mu held.
func (e *entry[T]) notify(id int) {
	e.pending = append(e.pending, notification[T]{listener: id, state: e.state()})
}

// deliver calls the queued listeners one at a time, without holding mu. If
// another goroutine is already delivering for this entry, it returns at once
// and that goroutine delivers the queued calls too, so a listener never runs
// concurrently with itself and never sees an older state after a newer one.
func (e *entry[T]) deliver() {
	e.mu.Lock()
	if e.delivering {
		e.mu.Unlock()
		return
	}
	e.delivering = true
	for len(e.pending) > 0 {
		n := e.pending[0]
		e.pending = e.pending[1:]
		fn, ok := e.listeners[n.listener]
		if !ok {
			// unsubscribed after the change was queued
			continue
		}
		e.mu.Unlock()
		fn(n.state)
		e.mu.Lock()
	}
	e.delivering = false
	e.mu.Unlock()
}

func run(calls []func()) {
	for _, call := range calls {
		call()
	}
}
