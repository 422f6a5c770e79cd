// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/host/testutil/memconn.go
// Summary: In-memory net.Conn pipe for driving the host without OS sockets.
// Usage: Imported by host and client runtime tests.
// Notes: Not shipped with production binaries; only used in test code.

package testutil

import (
	"io"
	"net"
	"sync"
	"time"
)

// MemConn implements net.Conn using mirrored channels. Each Write delivers
// one chunk; reads consume whole chunks, which lines up with the framing
// layer's header-then-payload write pattern.
type MemConn struct {
	readCh        <-chan []byte
	writeCh       chan []byte
	mu            sync.Mutex
	closed        bool
	readDeadline  time.Time
	writeDeadline time.Time
}

// NewMemPipe returns two connected endpoints.
func NewMemPipe(buffer int) (*MemConn, *MemConn) {
	if buffer <= 0 {
		buffer = 16
	}
	leftChan := make(chan []byte, buffer)
	rightChan := make(chan []byte, buffer)
	left := &MemConn{readCh: rightChan, writeCh: leftChan}
	right := &MemConn{readCh: leftChan, writeCh: rightChan}
	return left, right
}

func (m *MemConn) Read(b []byte) (int, error) {
	m.mu.Lock()
	closed := m.closed
	deadline := m.readDeadline
	m.mu.Unlock()
	if closed {
		return 0, io.EOF
	}

	var timer <-chan time.Time
	if !deadline.IsZero() {
		timer = time.After(time.Until(deadline))
	}

	select {
	case data, ok := <-m.readCh:
		if !ok {
			return 0, io.EOF
		}
		n := copy(b, data)
		return n, nil
	case <-timer:
		return 0, timeoutError{}
	}
}

func (m *MemConn) Write(b []byte) (int, error) {
	m.mu.Lock()
	closed := m.closed
	deadline := m.writeDeadline
	m.mu.Unlock()
	if closed {
		return 0, io.EOF
	}

	payload := make([]byte, len(b))
	copy(payload, b)

	var timer <-chan time.Time
	if !deadline.IsZero() {
		timer = time.After(time.Until(deadline))
	}

	select {
	case m.writeCh <- payload:
		return len(b), nil
	case <-timer:
		return 0, timeoutError{}
	}
}

func (m *MemConn) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.writeCh)
	return nil
}

func (m *MemConn) LocalAddr() net.Addr  { return dummyAddr("mem") }
func (m *MemConn) RemoteAddr() net.Addr { return dummyAddr("mem") }

func (m *MemConn) SetDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readDeadline = t
	m.writeDeadline = t
	return nil
}

func (m *MemConn) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readDeadline = t
	return nil
}

func (m *MemConn) SetWriteDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeDeadline = t
	return nil
}

// timeoutError satisfies net.Error so deadline hits look like real socket
// timeouts to polling read loops.
type timeoutError struct{}

func (timeoutError) Error() string   { return "memconn: deadline reached" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

type dummyAddr string

func (d dummyAddr) Network() string { return string(d) }
func (d dummyAddr) String() string  { return string(d) }
