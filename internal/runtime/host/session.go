// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/host/session.go
// Summary: Per-session outbound packet queue with ack-based retention.

package host

import (
	"errors"
	"sync"

	"github.com/viewdeck/viewdeck/protocol"
)

var ErrSessionClosed = errors.New("host: session closed")

// Packet holds a serialised update ready to be sent to the attached client.
type Packet struct {
	Sequence uint64
	Payload  []byte
	Message  protocol.Header
}

// Session is one hosted desktop or shell stream. Updates are queued until the
// client acknowledges them; the retention limit bounds memory when a client
// stalls by dropping the oldest unacked packets.
type Session struct {
	id   [16]byte
	kind protocol.SessionKind

	mu           sync.Mutex
	title        string
	width        uint16
	height       uint16
	attached     bool
	nextSequence uint64
	packets      []Packet
	closed       bool
	maxPackets   int

	// shell sessions only
	shell *shellProc
}

func NewSession(id [16]byte, kind protocol.SessionKind, title string, width, height uint16, maxPackets int) *Session {
	if maxPackets < 0 {
		maxPackets = 0
	}
	return &Session{
		id:         id,
		kind:       kind,
		title:      title,
		width:      width,
		height:     height,
		packets:    make([]Packet, 0, 128),
		maxPackets: maxPackets,
	}
}

func (s *Session) ID() [16]byte               { return s.id }
func (s *Session) Kind() protocol.SessionKind { return s.kind }

func (s *Session) Info() protocol.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.SessionInfo{
		SessionID: s.id,
		Kind:      s.kind,
		Title:     s.title,
		Width:     s.width,
		Height:    s.height,
		Attached:  s.attached,
	}
}

func (s *Session) Size() (uint16, uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *Session) setAttached(attached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = attached
}

func (s *Session) setSize(width, height uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.height = height
}

// EnqueueFrame registers a dirty-region frame payload for delivery.
func (s *Session) EnqueueFrame(payload []byte) error {
	return s.enqueue(protocol.MsgFrameUpdate, payload)
}

// EnqueueShellData registers raw terminal output for delivery.
func (s *Session) EnqueueShellData(data []byte) error {
	return s.enqueue(protocol.MsgShellData, data)
}

func (s *Session) enqueue(msgType protocol.MessageType, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	seq := s.nextSequence + 1
	hdr := protocol.Header{
		Version:   protocol.Version,
		Type:      msgType,
		Flags:     protocol.FlagChecksum,
		SessionID: s.id,
		Sequence:  seq,
	}
	s.packets = append(s.packets, Packet{Sequence: seq, Payload: payload, Message: hdr})
	s.nextSequence = seq

	if s.maxPackets > 0 && len(s.packets) > s.maxPackets {
		drop := len(s.packets) - s.maxPackets
		s.packets = append([]Packet(nil), s.packets[drop:]...)
		debugLog.Printf("host: session %x dropped %d unacked packets", s.id[:4], drop)
	}
	return nil
}

// Ack trims the queue up to and including the provided sequence.
func (s *Session) Ack(sequence uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sequence == 0 {
		return
	}
	idx := 0
	for idx < len(s.packets) && s.packets[idx].Sequence <= sequence {
		idx++
	}
	if idx > 0 {
		s.packets = s.packets[idx:]
	}
}

// Pending returns a snapshot of queued packets beginning after the provided
// sequence. The returned slice is safe to iterate without holding the lock.
func (s *Session) Pending(after uint64) []Packet {
	s.mu.Lock()
	defer s.mu.Unlock()

	if after == 0 {
		out := make([]Packet, len(s.packets))
		copy(out, s.packets)
		return out
	}
	for i, pkt := range s.packets {
		if pkt.Sequence > after {
			out := make([]Packet, len(s.packets)-i)
			copy(out, s.packets[i:])
			return out
		}
	}
	return nil
}

func (s *Session) Close() {
	s.mu.Lock()
	shell := s.shell
	s.closed = true
	s.packets = nil
	s.shell = nil
	s.mu.Unlock()

	if shell != nil {
		shell.stop()
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
