// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package state holds the declarative configuration tree of the restreamer
// (restreams, inputs, endpoints, outputs, mixins, settings, peers) in
// reactive cells, and exposes the mutation API every surface funnels through.
package state

import (
	"context"
	"reflect"
	"sync"
)

// Cell is a typed value holder that publishes a deduplicated stream of
// snapshots to subscribers. Updates serialize under an internal mutex;
// subscribers that cannot keep up never block the producer — stale
// intermediate snapshots are dropped, the latest never is.
type Cell[T any] struct {
	clone func(T) T

	mu    sync.Mutex
	value T
	subs  map[int]chan T
	next  int
}

// NewCell creates a cell holding initial. clone produces the snapshot copies
// handed to readers and subscribers; pass nil for value-only types that need
// no deep copy.
func NewCell[T any](initial T, clone func(T) T) *Cell[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Cell[T]{
		clone: clone,
		value: initial,
		subs:  make(map[int]chan T),
	}
}

// Get returns a snapshot of the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clone(c.value)
}

// Update applies fn to the value under the cell's mutex and, if the value
// actually changed, fans the new snapshot out to all subscribers. It reports
// whether a change was published.
func (c *Cell[T]) Update(fn func(*T)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.clone(c.value)
	fn(&c.value)
	if reflect.DeepEqual(before, c.value) {
		return false
	}
	c.publishLocked()
	return true
}

// Set replaces the value wholesale; dedup applies as in Update.
func (c *Cell[T]) Set(v T) bool {
	return c.Update(func(cur *T) { *cur = v })
}

// Subscribe returns a channel that yields the current value immediately and
// every subsequent distinct value. The subscription ends when ctx is done;
// the channel is closed afterwards. Each subscriber observes at most one
// pending snapshot: when it lags, older snapshots are replaced by newer ones.
func (c *Cell[T]) Subscribe(ctx context.Context) <-chan T {
	c.mu.Lock()
	ch := make(chan T, 1)
	id := c.next
	c.next++
	c.subs[id] = ch
	ch <- c.clone(c.value)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subs, id)
		close(ch)
		c.mu.Unlock()
	}()
	return ch
}

// publishLocked pushes the current value into every subscriber channel,
// latest-wins. Caller holds c.mu, which also excludes concurrent close.
func (c *Cell[T]) publishLocked() {
	for _, ch := range c.subs {
		snap := c.clone(c.value)
		select {
		case ch <- snap:
		default:
			// Slot occupied by a stale snapshot: evict it, then retry.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
