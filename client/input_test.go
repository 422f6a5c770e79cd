// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/input_test.go
// Summary: Pointer-move coalescing and immediate-dispatch ordering.

package client

import (
	"sync"
	"testing"

	"github.com/viewdeck/viewdeck/protocol"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]protocol.InputEvent
}

func (c *captureSink) send(events []protocol.InputEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := append([]protocol.InputEvent(nil), events...)
	c.batches = append(c.batches, batch)
	return nil
}

func (c *captureSink) all() []protocol.InputEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.InputEvent
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func alwaysConnected() bool { return true }

func TestMoveCoalescing(t *testing.T) {
	sink := &captureSink{}
	c := NewCoalescer(sink.send, alwaysConnected)

	c.SendInput([]protocol.InputEvent{{Kind: protocol.InputPointerMove, X: 1, Y: 1}}, false)
	c.SendInput([]protocol.InputEvent{{Kind: protocol.InputPointerMove, X: 2, Y: 2}}, false)
	c.SendInput([]protocol.InputEvent{{Kind: protocol.InputPointerMove, X: 3, Y: 3}}, false)
	c.SendInput([]protocol.InputEvent{{Kind: protocol.InputPointerButton, Button: 1, Pressed: true}}, false)
	c.Flush()

	got := sink.all()
	if len(got) != 2 {
		t.Fatalf("expected 2 events after coalescing, got %d: %+v", len(got), got)
	}
	if got[0].Kind != protocol.InputPointerMove || got[0].X != 3 || got[0].Y != 3 {
		t.Fatalf("expected last move first, got %+v", got[0])
	}
	if got[1].Kind != protocol.InputPointerButton {
		t.Fatalf("expected button second, got %+v", got[1])
	}
}

func TestDiscreteEventsAppendInOrder(t *testing.T) {
	sink := &captureSink{}
	c := NewCoalescer(sink.send, alwaysConnected)

	c.SendInput([]protocol.InputEvent{
		{Kind: protocol.InputKey, KeyCode: 1, Pressed: true},
		{Kind: protocol.InputKey, KeyCode: 1, Pressed: false},
		{Kind: protocol.InputWheel, WheelY: -2},
	}, false)
	c.Flush()

	got := sink.all()
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].KeyCode != 1 || !got[0].Pressed || got[1].Pressed || got[2].WheelY != -2 {
		t.Fatalf("order not preserved: %+v", got)
	}
}

func TestImmediateFlushesPendingFirst(t *testing.T) {
	sink := &captureSink{}
	c := NewCoalescer(sink.send, alwaysConnected)

	c.SendInput([]protocol.InputEvent{{Kind: protocol.InputPointerMove, X: 9, Y: 9}}, false)
	c.SendInput([]protocol.InputEvent{{Kind: protocol.InputKey, KeyCode: 27, Pressed: true}}, true)

	got := sink.all()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(got), got)
	}
	if got[0].Kind != protocol.InputPointerMove {
		t.Fatalf("pending move must leave first, got %+v", got[0])
	}
	if got[1].Kind != protocol.InputKey || got[1].KeyCode != 27 {
		t.Fatalf("immediate key must follow, got %+v", got[1])
	}
	if c.PendingLen() != 0 {
		t.Fatalf("pending buffer not drained: %d", c.PendingLen())
	}
}

func TestDisconnectedIsNoop(t *testing.T) {
	sink := &captureSink{}
	c := NewCoalescer(sink.send, func() bool { return false })

	c.SendInput([]protocol.InputEvent{{Kind: protocol.InputPointerMove, X: 1}}, false)
	c.SendInput([]protocol.InputEvent{{Kind: protocol.InputKey, KeyCode: 2}}, true)
	c.Flush()

	if len(sink.all()) != 0 {
		t.Fatal("disconnected coalescer must drop input")
	}
	if c.PendingLen() != 0 {
		t.Fatal("disconnected coalescer must not accumulate input")
	}
}

func TestMoveSlotResetsAfterFlush(t *testing.T) {
	sink := &captureSink{}
	c := NewCoalescer(sink.send, alwaysConnected)

	c.SendInput([]protocol.InputEvent{{Kind: protocol.InputPointerMove, X: 1}}, false)
	c.Flush()
	c.SendInput([]protocol.InputEvent{{Kind: protocol.InputPointerMove, X: 2}}, false)
	c.Flush()

	got := sink.all()
	if len(got) != 2 {
		t.Fatalf("expected 2 separate moves across flushes, got %d", len(got))
	}
	if got[0].X != 1 || got[1].X != 2 {
		t.Fatalf("unexpected moves: %+v", got)
	}
}
