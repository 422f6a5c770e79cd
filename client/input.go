// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/input.go
// Summary: Coalesces pointer movement and batches input for the backend.

package client

import (
	"sync"
	"time"

	"github.com/viewdeck/viewdeck/protocol"
)

// SendFunc ships a batch of input events to the backend.
type SendFunc func(events []protocol.InputEvent) error

// Coalescer merges bursts of pointer-move events into the most recent
// position and buffers discrete events (buttons, keys, wheel) for batched
// dispatch. At most one deferred flush is armed at a time.
//
// Ordering: buffered events always leave before events sent with
// immediate=true in the same call, so a click can never overtake the move
// that preceded it.
type Coalescer struct {
	mu        sync.Mutex
	send      SendFunc
	connected func() bool

	pending   []protocol.InputEvent
	moveIdx   int // index of the single pending pointer-move, -1 if none
	scheduled bool
	timer     *time.Timer
}

// NewCoalescer builds a coalescer. connected gates dispatch: when it reports
// false every SendInput call is a no-op, so stale input never queues up
// against a dead session.
func NewCoalescer(send SendFunc, connected func() bool) *Coalescer {
	return &Coalescer{send: send, connected: connected, moveIdx: -1}
}

// SendInput queues events for batched dispatch, or, with immediate set,
// flushes anything pending and ships the new events in the same dispatch.
func (c *Coalescer) SendInput(events []protocol.InputEvent, immediate bool) {
	if c.send == nil || (c.connected != nil && !c.connected()) {
		return
	}

	c.mu.Lock()
	if immediate {
		batch := c.drainLocked()
		batch = append(batch, events...)
		c.mu.Unlock()
		if len(batch) > 0 {
			_ = c.send(batch)
		}
		return
	}

	for _, ev := range events {
		if ev.Kind == protocol.InputPointerMove {
			if c.moveIdx >= 0 {
				c.pending[c.moveIdx] = ev
				continue
			}
			c.moveIdx = len(c.pending)
		}
		c.pending = append(c.pending, ev)
	}
	if !c.scheduled && len(c.pending) > 0 {
		c.scheduled = true
		c.timer = time.AfterFunc(0, c.Flush)
	}
	c.mu.Unlock()
}

// Flush dispatches the pending buffer, if any. Safe to call at any time.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	batch := c.drainLocked()
	c.mu.Unlock()
	if len(batch) > 0 {
		_ = c.send(batch)
	}
}

// drainLocked clears the pending state and cancels any armed flush.
func (c *Coalescer) drainLocked() []protocol.InputEvent {
	batch := c.pending
	c.pending = nil
	c.moveIdx = -1
	c.scheduled = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return batch
}

// PendingLen reports the queued event count. Test hook.
func (c *Coalescer) PendingLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
