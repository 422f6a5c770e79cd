// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/renderloop_test.go
// Summary: Frame batching, truncation tolerance and teardown of the loop.

package client

import (
	"sync"
	"testing"
	"time"

	"github.com/viewdeck/viewdeck/protocol"
	"github.com/viewdeck/viewdeck/render"
)

// recordingRenderer counts paints and presents without touching pixels.
type recordingRenderer struct {
	mu       sync.Mutex
	paints   []paintCall
	presents int
	resizes  []int
}

type paintCall struct{ x, y, w, h int }

func (r *recordingRenderer) Name() string      { return "recording" }
func (r *recordingRenderer) Kind() render.Kind { return render.KindDirect }

func (r *recordingRenderer) PaintRegion(x, y, w, h int, rgba []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paints = append(r.paints, paintCall{x, y, w, h})
}

func (r *recordingRenderer) Present() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presents++
	return nil
}

func (r *recordingRenderer) Resize(w, h int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resizes = append(r.resizes, w*100000+h)
}

func (r *recordingRenderer) Destroy() {}

func (r *recordingRenderer) snapshot() ([]paintCall, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]paintCall(nil), r.paints...), r.presents
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func frameWith(regions ...[5]int) []byte {
	var buf []byte
	for _, r := range regions {
		pixels := solidRGBA(r[2], r[3], byte(r[4]), byte(r[4]), byte(r[4]), 0xFF)
		buf = protocol.AppendRegion(buf, uint16(r[0]), uint16(r[1]), uint16(r[2]), uint16(r[3]), pixels)
	}
	return buf
}

func TestLoopPaintsAllRegionsPresentsOnce(t *testing.T) {
	surface := NewSurface(32, 32)
	rr := &recordingRenderer{}
	loop := NewLoop(surface, rr, time.Millisecond, nil)
	defer loop.Stop()

	loop.Enqueue(1, frameWith([5]int{0, 0, 4, 4, 0x10}, [5]int{8, 8, 4, 4, 0x20}))

	waitFor(t, func() bool { _, presents := rr.snapshot(); return presents == 1 })
	paints, presents := rr.snapshot()
	if len(paints) != 2 {
		t.Fatalf("expected 2 paints, got %d", len(paints))
	}
	if paints[0] != (paintCall{0, 0, 4, 4}) || paints[1] != (paintCall{8, 8, 4, 4}) {
		t.Fatalf("unexpected paint calls: %+v", paints)
	}
	if presents != 1 {
		t.Fatalf("expected exactly one present, got %d", presents)
	}
	if !surface.HasPainted() {
		t.Fatal("surface must mirror painted regions")
	}
}

func TestLoopCoalescesBurstIntoOnePass(t *testing.T) {
	surface := NewSurface(32, 32)
	rr := &recordingRenderer{}
	loop := NewLoop(surface, rr, 20*time.Millisecond, nil)
	defer loop.Stop()

	for i := 0; i < 5; i++ {
		loop.Enqueue(uint64(i+1), frameWith([5]int{i, 0, 1, 1, 0x40}))
	}

	waitFor(t, func() bool { _, presents := rr.snapshot(); return presents >= 1 })
	paints, presents := rr.snapshot()
	if presents != 1 {
		t.Fatalf("burst must collapse into one pass, got %d presents", presents)
	}
	if len(paints) != 5 {
		t.Fatalf("all queued regions must paint, got %d", len(paints))
	}
	if loop.Pending() != 0 {
		t.Fatalf("queue not drained: %d", loop.Pending())
	}
}

func TestLoopTruncatedTrailingRecord(t *testing.T) {
	surface := NewSurface(32, 32)
	rr := &recordingRenderer{}
	loop := NewLoop(surface, rr, time.Millisecond, nil)
	defer loop.Stop()

	payload := frameWith([5]int{0, 0, 2, 2, 0x7F})
	// Truncated 10x10 record: header only, pixels missing.
	payload = append(payload, frameWith([5]int{4, 4, 10, 10, 0x00})[:11]...)

	loop.Enqueue(1, payload)

	waitFor(t, func() bool { _, presents := rr.snapshot(); return presents == 1 })
	paints, _ := rr.snapshot()
	if len(paints) != 1 {
		t.Fatalf("expected exactly the complete record, got %d paints", len(paints))
	}
	if !surface.HasPainted() {
		t.Fatal("the valid region must still mark the surface painted")
	}
}

func TestLoopAcksHighestSequence(t *testing.T) {
	surface := NewSurface(16, 16)
	rr := &recordingRenderer{}
	var mu sync.Mutex
	var acked uint64
	loop := NewLoop(surface, rr, time.Millisecond, func(seq uint64) {
		mu.Lock()
		acked = seq
		mu.Unlock()
	})
	defer loop.Stop()

	loop.Enqueue(7, frameWith([5]int{0, 0, 1, 1, 1}))
	loop.Enqueue(9, frameWith([5]int{1, 1, 1, 1, 1}))

	waitFor(t, func() bool { mu.Lock(); defer mu.Unlock(); return acked == 9 })
}

func TestLoopStopCancelsPendingPass(t *testing.T) {
	surface := NewSurface(16, 16)
	rr := &recordingRenderer{}
	loop := NewLoop(surface, rr, 50*time.Millisecond, nil)

	loop.Enqueue(1, frameWith([5]int{0, 0, 2, 2, 0x55}))
	loop.Stop()

	time.Sleep(80 * time.Millisecond)
	paints, presents := rr.snapshot()
	if len(paints) != 0 || presents != 0 {
		t.Fatalf("stopped loop must never paint: %d paints, %d presents", len(paints), presents)
	}
	// Enqueue after stop is a no-op.
	loop.Enqueue(2, frameWith([5]int{0, 0, 1, 1, 1}))
	if loop.Pending() != 0 {
		t.Fatal("stopped loop must drop enqueues")
	}
}

// blockingRenderer parks inside its first PaintRegion until released, so a
// test can hold a pass mid-paint.
type blockingRenderer struct {
	recordingRenderer
	startedOnce sync.Once
	started     chan struct{}
	release     chan struct{}
}

func (r *blockingRenderer) PaintRegion(x, y, w, h int, rgba []byte) {
	r.startedOnce.Do(func() { close(r.started) })
	<-r.release
	r.recordingRenderer.PaintRegion(x, y, w, h, rgba)
}

func TestLoopStopWaitsForInFlightPass(t *testing.T) {
	surface := NewSurface(16, 16)
	rr := &blockingRenderer{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	loop := NewLoop(surface, rr, time.Millisecond, nil)

	loop.Enqueue(1, frameWith([5]int{0, 0, 2, 2, 0x55}))
	<-rr.started // the pass is now inside PaintRegion

	stopped := make(chan struct{})
	go func() {
		loop.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a pass was still painting")
	case <-time.After(50 * time.Millisecond):
	}

	close(rr.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the pass drained")
	}

	// Teardown order: the renderer may be destroyed once Stop has returned.
	rr.Destroy()
}

func TestLoopResizeRepaintsScaledContent(t *testing.T) {
	surface := NewSurface(4, 4)
	rr := &recordingRenderer{}
	loop := NewLoop(surface, rr, time.Millisecond, nil)
	defer loop.Stop()

	loop.Enqueue(1, frameWith([5]int{0, 0, 4, 4, 0xFF}))
	waitFor(t, func() bool { _, presents := rr.snapshot(); return presents == 1 })

	loop.Resize(8, 6)
	w, h := surface.Size()
	if w != 8 || h != 6 {
		t.Fatalf("surface not resized: %dx%d", w, h)
	}
	paints, presents := rr.snapshot()
	last := paints[len(paints)-1]
	if last != (paintCall{0, 0, 8, 6}) {
		t.Fatalf("expected full-surface repaint after resize, got %+v", last)
	}
	if presents != 2 {
		t.Fatalf("resize must present the rescaled content, got %d presents", presents)
	}
}

func TestLoopResizeWithoutPriorFrameStaysBlank(t *testing.T) {
	surface := NewSurface(4, 4)
	rr := &recordingRenderer{}
	loop := NewLoop(surface, rr, time.Millisecond, nil)
	defer loop.Stop()

	loop.Resize(8, 8)
	paints, presents := rr.snapshot()
	if len(paints) != 0 || presents != 0 {
		t.Fatal("no prior frame: resize must not paint or present")
	}
}
