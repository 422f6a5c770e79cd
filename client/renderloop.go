// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/renderloop.go
// Summary: Batches frame messages per display tick and drives the renderer.

package client

import (
	"sync"
	"time"

	"github.com/viewdeck/viewdeck/protocol"
	"github.com/viewdeck/viewdeck/render"
)

// DefaultTick approximates one display refresh at 60Hz. There is no vsync
// source in a headless core, so a fixed timer stands in for it.
const DefaultTick = 16 * time.Millisecond

// FrameMessage is one raw MsgFrameUpdate payload awaiting a render pass.
type FrameMessage struct {
	Sequence uint64
	Payload  []byte
}

// Loop drains queued frame messages once per display tick. Arming follows an
// IDLE -> SCHEDULED -> IDLE cycle: the first message landing on an empty
// queue schedules exactly one pass; further arrivals before the tick ride
// along in the same pass. The loop re-arms only when new data arrives, so an
// idle session costs nothing.
type Loop struct {
	mu      sync.Mutex
	paintMu sync.Mutex // held for the whole paint phase of pass and Resize; Stop waits on it

	interval  time.Duration
	surface   *Surface
	renderer  render.Renderer
	ack       func(sequence uint64)
	queue     []FrameMessage
	scheduled bool
	stopped   bool
	timer     *time.Timer
}

// NewLoop builds a render loop around the session's back-buffer and live
// renderer. ack, when non-nil, is invoked after each pass with the highest
// sequence number painted.
func NewLoop(surface *Surface, renderer render.Renderer, interval time.Duration, ack func(uint64)) *Loop {
	if interval <= 0 {
		interval = DefaultTick
	}
	return &Loop{interval: interval, surface: surface, renderer: renderer, ack: ack}
}

// Enqueue appends a frame message and arms a pass if none is pending.
func (l *Loop) Enqueue(sequence uint64, payload []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.queue = append(l.queue, FrameMessage{Sequence: sequence, Payload: payload})
	if !l.scheduled {
		l.scheduled = true
		l.timer = time.AfterFunc(l.interval, l.pass)
	}
}

// pass drains the whole queue in FIFO order, applies every decoded region to
// the back-buffer and the renderer, and presents once.
func (l *Loop) pass() {
	// paintMu before mu: the stopped check must happen under the paint lock,
	// or a Stop landing between the snapshot and the paint could let this
	// pass touch a renderer the caller already destroyed.
	l.paintMu.Lock()
	defer l.paintMu.Unlock()

	l.mu.Lock()
	if l.stopped {
		l.scheduled = false
		l.mu.Unlock()
		return
	}
	msgs := l.queue
	l.queue = nil
	l.scheduled = false
	renderer := l.renderer
	surface := l.surface
	ack := l.ack
	l.mu.Unlock()

	if len(msgs) == 0 {
		return
	}

	var lastSeq uint64
	for _, msg := range msgs {
		reader := protocol.NewFrameReader(msg.Payload)
		for {
			reg, ok := reader.Next()
			if !ok {
				break
			}
			if surface != nil {
				surface.ApplyRegion(int(reg.X), int(reg.Y), int(reg.Width), int(reg.Height), reg.Pixels)
			}
			if renderer != nil {
				renderer.PaintRegion(int(reg.X), int(reg.Y), int(reg.Width), int(reg.Height), reg.Pixels)
			}
		}
		if msg.Sequence > lastSeq {
			lastSeq = msg.Sequence
		}
	}

	if renderer != nil {
		if err := renderer.Present(); err != nil {
			debugLog.Printf("render loop: present failed: %v", err)
		}
	}
	if ack != nil && lastSeq > 0 {
		ack(lastSeq)
	}
}

// Resize adjusts the back-buffer and renderer to new desktop dimensions and
// immediately repaints the rescaled prior content, so the operator never
// stares at a blank desktop while waiting for the next real frame.
func (l *Loop) Resize(width, height int) {
	l.paintMu.Lock()
	defer l.paintMu.Unlock()

	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	surface := l.surface
	renderer := l.renderer
	l.mu.Unlock()

	if surface == nil {
		return
	}
	surface.Resize(width, height)
	if renderer == nil {
		return
	}
	renderer.Resize(width, height)
	if surface.HasPainted() {
		w, h := surface.Size()
		renderer.PaintRegion(0, 0, w, h, surface.Image().Pix)
		if err := renderer.Present(); err != nil {
			debugLog.Printf("render loop: present after resize failed: %v", err)
		}
	}
}

// SetRenderer swaps the live renderer. The caller owns destruction of the
// previous one.
func (l *Loop) SetRenderer(r render.Renderer) {
	l.mu.Lock()
	l.renderer = r
	l.mu.Unlock()
}

// Surface exposes the back-buffer for secondary read-only views.
func (l *Loop) Surface() *Surface {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.surface
}

// Stop cancels any pending pass, waits for a pass already painting to drain,
// and detaches the renderer. After Stop returns the caller may destroy the
// renderer without racing a late PaintRegion or Present.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	l.renderer = nil
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.mu.Unlock()

	l.paintMu.Lock()
	l.paintMu.Unlock()
}

// Pending reports the queued message count. Test hook.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
