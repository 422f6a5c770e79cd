// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package host

import (
	"testing"

	"github.com/viewdeck/viewdeck/protocol"
)

func newTestSession(maxPackets int) *Session {
	return NewSession([16]byte{1}, protocol.SessionDesktop, "test", 64, 48, maxPackets)
}

func TestEnqueueAssignsSequences(t *testing.T) {
	s := newTestSession(0)
	for i := 0; i < 3; i++ {
		if err := s.EnqueueFrame([]byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}
	pending := s.Pending(0)
	if len(pending) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(pending))
	}
	for i, pkt := range pending {
		if pkt.Sequence != uint64(i+1) {
			t.Fatalf("packet %d has sequence %d", i, pkt.Sequence)
		}
		if pkt.Message.Type != protocol.MsgFrameUpdate {
			t.Fatalf("unexpected message type %v", pkt.Message.Type)
		}
	}
}

func TestAckTrimsQueue(t *testing.T) {
	s := newTestSession(0)
	for i := 0; i < 5; i++ {
		if err := s.EnqueueFrame(nil); err != nil {
			t.Fatal(err)
		}
	}
	s.Ack(3)
	pending := s.Pending(0)
	if len(pending) != 2 || pending[0].Sequence != 4 {
		t.Fatalf("ack trim wrong: %+v", pending)
	}
	// Ack of zero is a no-op.
	s.Ack(0)
	if len(s.Pending(0)) != 2 {
		t.Fatal("zero ack must not trim")
	}
}

func TestPendingAfterSequence(t *testing.T) {
	s := newTestSession(0)
	for i := 0; i < 4; i++ {
		if err := s.EnqueueFrame(nil); err != nil {
			t.Fatal(err)
		}
	}
	pending := s.Pending(2)
	if len(pending) != 2 || pending[0].Sequence != 3 {
		t.Fatalf("unexpected pending: %+v", pending)
	}
	if s.Pending(10) != nil {
		t.Fatal("pending past the end must be empty")
	}
}

func TestRetentionLimitDropsOldest(t *testing.T) {
	s := newTestSession(3)
	for i := 0; i < 5; i++ {
		if err := s.EnqueueFrame(nil); err != nil {
			t.Fatal(err)
		}
	}
	pending := s.Pending(0)
	if len(pending) != 3 {
		t.Fatalf("retention limit ignored: %d packets", len(pending))
	}
	if pending[0].Sequence != 3 {
		t.Fatalf("oldest packets must drop first, got head %d", pending[0].Sequence)
	}
	// Sequences keep climbing past drops.
	if err := s.EnqueueFrame(nil); err != nil {
		t.Fatal(err)
	}
	pending = s.Pending(0)
	if pending[len(pending)-1].Sequence != 6 {
		t.Fatalf("sequence regressed: %+v", pending)
	}
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	s := newTestSession(0)
	s.Close()
	if err := s.EnqueueFrame(nil); err != ErrSessionClosed {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if s.Pending(0) != nil {
		t.Fatal("closed session must hold no packets")
	}
}

func TestShellDataUsesShellMessageType(t *testing.T) {
	s := NewSession([16]byte{2}, protocol.SessionShell, "sh", 80, 24, 0)
	if err := s.EnqueueShellData([]byte("prompt$ ")); err != nil {
		t.Fatal(err)
	}
	pending := s.Pending(0)
	if len(pending) != 1 || pending[0].Message.Type != protocol.MsgShellData {
		t.Fatalf("unexpected packets: %+v", pending)
	}
}
