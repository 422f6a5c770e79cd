// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/host/manager.go
// Summary: Session registry keyed by UUID.

package host

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/viewdeck/viewdeck/protocol"
)

var ErrSessionNotFound = errors.New("host: session not found")

// Manager tracks active sessions and coordinates creation/lookup.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[[16]byte]*Session
	maxPackets int
}

func NewManager(maxPackets int) *Manager {
	return &Manager{sessions: make(map[[16]byte]*Session), maxPackets: maxPackets}
}

func (m *Manager) NewSession(kind protocol.SessionKind, title string, width, height uint16) *Session {
	id := [16]byte(uuid.New())
	session := NewSession(id, kind, title, width, height, m.maxPackets)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = session
	return session
}

func (m *Manager) Lookup(id [16]byte) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (m *Manager) Close(id [16]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[id]; ok {
		session.Close()
		delete(m.sessions, id)
	}
}

// List reports every live session for a session-list reply.
func (m *Manager) List() protocol.SessionList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := protocol.SessionList{Sessions: make([]protocol.SessionInfo, 0, len(m.sessions))}
	for _, session := range m.sessions {
		list.Sessions = append(list.Sessions, session.Info())
	}
	return list
}

func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, session := range m.sessions {
		session.Close()
		delete(m.sessions, id)
	}
}
