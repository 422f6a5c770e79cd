// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/host/host.go
// Summary: Host listener: accepts unix-socket and websocket clients.

package host

import (
	"context"
	"crypto/rand"
	"log"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/viewdeck/viewdeck/internal/wsconn"
	"github.com/viewdeck/viewdeck/protocol"
)

// Options configures a Host.
type Options struct {
	Name string
	// SocketPath is the unix socket to listen on. Empty disables the listener.
	SocketPath string
	// WebAddr is an optional HTTP address serving websocket clients at /ws.
	WebAddr string
	// RetentionLimit bounds the unacked packet queue per session. Zero keeps
	// everything until acked.
	RetentionLimit int
	// ShellCommand is launched for shell sessions. Empty falls back to $SHELL.
	ShellCommand string
	// InputSink receives decoded input batches. Nil discards them.
	InputSink InputSink
}

// Host owns the session manager, the presented identity and the listeners.
type Host struct {
	id        [16]byte
	name      string
	identity  Identity
	manager   *Manager
	inputSink InputSink
	shellCmd  string

	mu        sync.Mutex
	listener  net.Listener
	webServer *http.Server
	quit      chan struct{}
	wg        sync.WaitGroup

	sources map[[16]byte]*DesktopSource
	opts    Options
}

func New(opts Options) (*Host, error) {
	if opts.Name == "" {
		opts.Name = "viewdeck-host"
	}
	sink := opts.InputSink
	if sink == nil {
		sink = nopSink{}
	}

	// Ephemeral identity: a fresh key per host start exercises the
	// first-use and mismatch paths of the client trust store.
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}

	return &Host{
		id:        [16]byte(uuid.New()),
		name:      opts.Name,
		identity:  Identity{Kind: protocol.IdentityHostKey, Algorithm: "ed25519", Raw: raw},
		manager:   NewManager(opts.RetentionLimit),
		inputSink: sink,
		shellCmd:  opts.ShellCommand,
		quit:      make(chan struct{}),
		sources:   make(map[[16]byte]*DesktopSource),
		opts:      opts,
	}, nil
}

// SetIdentity replaces the presented identity. Tests use this to simulate a
// reinstalled host with a changed key.
func (h *Host) SetIdentity(id Identity) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.identity = id
}

func (h *Host) Identity() Identity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.identity
}

func (h *Host) Manager() *Manager { return h.manager }

// Start opens the configured listeners.
func (h *Host) Start() error {
	if h.opts.SocketPath != "" {
		if err := os.RemoveAll(h.opts.SocketPath); err != nil {
			return err
		}
		l, err := net.Listen("unix", h.opts.SocketPath)
		if err != nil {
			return err
		}
		h.listener = l
		h.wg.Add(1)
		go h.acceptLoop(l)
	}

	if h.opts.WebAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			conn, err := wsconn.Upgrade(w, r)
			if err != nil {
				log.Printf("host: websocket upgrade failed: %v", err)
				return
			}
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				h.ServeConn(conn)
			}()
		})
		h.webServer = &http.Server{Addr: h.opts.WebAddr, Handler: mux}
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			if err := h.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("host: web listener error: %v", err)
			}
		}()
	}
	return nil
}

func (h *Host) acceptLoop(l net.Listener) {
	defer h.wg.Done()
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-h.quit:
				return
			default:
			}
			continue
		}
		h.wg.Add(1)
		go func(c net.Conn) {
			defer h.wg.Done()
			h.ServeConn(c)
		}(conn)
	}
}

// ServeConn runs the handshake and message loop for one client connection.
// Exported so tests can drive the host over an in-memory pipe.
func (h *Host) ServeConn(conn net.Conn) {
	defer conn.Close()
	if _, err := handleHandshake(conn, h); err != nil {
		debugLog.Printf("host: handshake failed: %v", err)
		return
	}
	c := newConnection(conn, h)
	if err := c.serve(); err != nil {
		debugLog.Printf("host: connection closed: %v", err)
	}
}

func (h *Host) createSession(req protocol.AttachRequest) *Session {
	width, height := req.Width, req.Height
	if width == 0 || height == 0 {
		width, height = 1024, 768
	}
	title := req.Title
	if title == "" {
		title = "session"
	}
	session := h.manager.NewSession(req.Kind, title, width, height)

	switch req.Kind {
	case protocol.SessionDesktop:
		source := NewDesktopSource(session)
		h.mu.Lock()
		h.sources[session.ID()] = source
		h.mu.Unlock()
		source.Start()
	case protocol.SessionShell:
		if err := session.startShell(h.shellCmd); err != nil {
			log.Printf("host: shell start failed: %v", err)
		}
	}
	return session
}

func (h *Host) notifyResize(session *Session, size protocol.DesktopResize) {
	h.mu.Lock()
	source := h.sources[session.ID()]
	h.mu.Unlock()
	if source != nil {
		source.Resize(int(size.Width), int(size.Height))
	}
	session.resizeShell(size.Width, size.Height)
}

// Stop shuts the listeners and sessions down.
func (h *Host) Stop(ctx context.Context) error {
	close(h.quit)
	if h.listener != nil {
		_ = h.listener.Close()
	}
	if h.webServer != nil {
		_ = h.webServer.Shutdown(ctx)
	}

	h.mu.Lock()
	for id, source := range h.sources {
		source.Stop()
		delete(h.sources, id)
	}
	h.mu.Unlock()
	h.manager.CloseAll()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
