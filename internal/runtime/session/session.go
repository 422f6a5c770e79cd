// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/session/session.go
// Summary: Client-side session runtime: handshake, trust gate, frame pipeline.

package session

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/viewdeck/viewdeck/client"
	"github.com/viewdeck/viewdeck/protocol"
	"github.com/viewdeck/viewdeck/render"
	"github.com/viewdeck/viewdeck/trust"
)

// Status tracks the connection lifecycle.
type Status int

const (
	StatusConnecting Status = iota
	StatusVerifying
	StatusConnected
	StatusClosed
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusVerifying:
		return "verifying"
	case StatusConnected:
		return "connected"
	case StatusClosed:
		return "closed"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Prompter asks the operator whether to accept a host identity. It is called
// on first use under the ask policy and on every mismatch; returning false
// aborts the connection.
type Prompter interface {
	ConfirmIdentity(info protocol.HostKeyInfo, fingerprint string, result trust.Result) bool
}

var (
	ErrIdentityRejected = errors.New("session: host identity rejected")
	errUnexpectedReply  = errors.New("session: unexpected message type")
)

// Options configures Connect.
type Options struct {
	Conn         net.Conn
	ConnectionID [16]byte
	Host         string
	Port         uint16
	ClientName   string

	// Trust gate. A nil TrustStore or the always-trust policy skips
	// verification entirely.
	Policy     trust.Policy
	TrustStore *trust.Store
	Prompter   Prompter

	// Session to attach. A zero SessionID asks the host for a new session.
	SessionID [16]byte
	Kind      protocol.SessionKind
	Title     string
	Width     uint16
	Height    uint16

	// Rendering.
	RendererPref string
	Screen       tcell.Screen
	TickInterval time.Duration

	// OnShellData receives raw terminal bytes for shell sessions.
	OnShellData func([]byte)
	// OnClose runs once when the runtime shuts down, after teardown.
	OnClose func(error)
}

// Runtime is one live attached session.
type Runtime struct {
	conn    net.Conn
	opts    Options
	writeMu sync.Mutex

	mu           sync.Mutex
	status       Status
	lastErr      error
	renderer     render.Renderer
	rendererName string
	loop         *client.Loop
	coalescer    *client.Coalescer
	sessionID    [16]byte
	closed       bool

	done chan struct{}
}

// Connect performs the handshake, the trust check and the attach, then starts
// the receive loop. It blocks until the session is ready or failed.
func Connect(opts Options) (*Runtime, error) {
	if opts.Conn == nil {
		return nil, errors.New("session: connection required")
	}
	if opts.ClientName == "" {
		opts.ClientName = "viewdeck"
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = client.DefaultTick
	}
	if opts.Width == 0 || opts.Height == 0 {
		opts.Width, opts.Height = 1024, 768
	}

	r := &Runtime{
		conn:   opts.Conn,
		opts:   opts,
		status: StatusConnecting,
		done:   make(chan struct{}),
	}

	if err := r.handshake(); err != nil {
		r.fail(err)
		return nil, err
	}
	if err := r.verifyIdentity(); err != nil {
		r.fail(err)
		return nil, err
	}
	if err := r.connect(); err != nil {
		r.fail(err)
		return nil, err
	}
	if err := r.attach(); err != nil {
		r.fail(err)
		return nil, err
	}

	r.setStatus(StatusConnected)
	go r.readLoop()
	return r, nil
}

func (r *Runtime) handshake() error {
	helloPayload, err := protocol.EncodeHello(protocol.Hello{ClientName: r.opts.ClientName})
	if err != nil {
		return err
	}
	if err := r.write(protocol.MsgHello, helloPayload); err != nil {
		return err
	}
	hdr, _, err := protocol.ReadMessage(r.conn)
	if err != nil {
		return err
	}
	if hdr.Type != protocol.MsgWelcome {
		return errUnexpectedReply
	}
	return nil
}

func (r *Runtime) verifyIdentity() error {
	policy := trust.EffectivePolicy(r.opts.Policy, "")
	if policy == trust.PolicyAlwaysTrust || r.opts.TrustStore == nil {
		return nil
	}
	r.setStatus(StatusVerifying)

	if err := r.write(protocol.MsgHostKeyRequest, nil); err != nil {
		return err
	}
	hdr, payload, err := protocol.ReadMessage(r.conn)
	if err != nil {
		return err
	}
	if hdr.Type != protocol.MsgHostKeyInfo {
		return errUnexpectedReply
	}
	info, err := protocol.DecodeHostKeyInfo(payload)
	if err != nil {
		return err
	}

	kind := trust.KindHostKey
	if info.Kind == protocol.IdentityCertificate {
		kind = trust.KindCertificate
	}
	fingerprint := trust.Fingerprint(info.Raw)
	connID := fmt.Sprintf("%x", r.opts.ConnectionID)

	result, err := r.opts.TrustStore.Verify(r.opts.Host, r.opts.Port, kind, connID, fingerprint)
	if err != nil {
		return err
	}

	accepted := false
	switch result.Status {
	case trust.StatusTrusted:
		accepted = true
	case trust.StatusFirstUse:
		if policy == trust.PolicyTOFU {
			accepted = true
		} else if r.opts.Prompter != nil {
			accepted = r.opts.Prompter.ConfirmIdentity(info, fingerprint, result)
		}
	case trust.StatusMismatch:
		// A changed identity always needs an explicit verdict.
		if r.opts.Prompter != nil {
			accepted = r.opts.Prompter.ConfirmIdentity(info, fingerprint, result)
		}
	}

	decisionPayload, err := protocol.EncodeTrustDecision(protocol.TrustDecision{Accepted: accepted})
	if err != nil {
		return err
	}
	if err := r.write(protocol.MsgTrustDecision, decisionPayload); err != nil {
		return err
	}
	if !accepted {
		return ErrIdentityRejected
	}

	if result.Status == trust.StatusTrusted {
		return nil
	}
	userApproved := result.Status == trust.StatusMismatch ||
		(result.Status == trust.StatusFirstUse && policy == trust.PolicyAsk)
	rec := trust.Record{
		Host:         r.opts.Host,
		Port:         r.opts.Port,
		Kind:         kind,
		ConnectionID: connID,
		Algorithm:    info.Algorithm,
		Fingerprint:  fingerprint,
	}
	if err := r.opts.TrustStore.Trust(rec, userApproved); err != nil {
		return err
	}
	return nil
}

func (r *Runtime) connect() error {
	connectPayload, err := protocol.EncodeConnectRequest(protocol.ConnectRequest{ConnectionID: r.opts.ConnectionID})
	if err != nil {
		return err
	}
	if err := r.write(protocol.MsgConnectRequest, connectPayload); err != nil {
		return err
	}
	hdr, _, err := protocol.ReadMessage(r.conn)
	if err != nil {
		return err
	}
	if hdr.Type != protocol.MsgConnectAccept {
		return errUnexpectedReply
	}
	return nil
}

func (r *Runtime) attach() error {
	attachPayload, err := protocol.EncodeAttachRequest(protocol.AttachRequest{
		SessionID: r.opts.SessionID,
		Kind:      r.opts.Kind,
		Title:     r.opts.Title,
		Width:     r.opts.Width,
		Height:    r.opts.Height,
	})
	if err != nil {
		return err
	}
	if err := r.write(protocol.MsgAttachRequest, attachPayload); err != nil {
		return err
	}
	hdr, payload, err := protocol.ReadMessage(r.conn)
	if err != nil {
		return err
	}
	if hdr.Type == protocol.MsgError {
		if frame, err := protocol.DecodeErrorFrame(payload); err == nil {
			return fmt.Errorf("session: attach refused: %s", frame.Message)
		}
		return errors.New("session: attach refused")
	}
	if hdr.Type != protocol.MsgAttachAccept {
		return errUnexpectedReply
	}
	accept, err := protocol.DecodeAttachAccept(payload)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionID = accept.SessionID

	if accept.Kind == protocol.SessionDesktop {
		renderer, actual, err := render.Resolve(r.opts.RendererPref, render.Options{
			Width:  int(accept.Width),
			Height: int(accept.Height),
			Title:  r.opts.Title,
			Screen: r.opts.Screen,
		})
		if err != nil {
			return err
		}
		r.renderer = renderer
		r.rendererName = actual

		surface := client.NewSurface(int(accept.Width), int(accept.Height))
		r.loop = client.NewLoop(surface, renderer, r.opts.TickInterval, r.sendAck)
		r.coalescer = client.NewCoalescer(r.sendInputBatch, r.isConnected)
	}
	return nil
}

func (r *Runtime) readLoop() {
	var loopErr error
	for {
		hdr, payload, err := protocol.ReadMessage(r.conn)
		if err != nil {
			if !r.isClosed() {
				loopErr = err
			}
			break
		}

		switch hdr.Type {
		case protocol.MsgFrameUpdate:
			r.mu.Lock()
			loop := r.loop
			r.mu.Unlock()
			if loop != nil {
				loop.Enqueue(hdr.Sequence, payload)
			}

		case protocol.MsgDesktopResize:
			size, err := protocol.DecodeDesktopResize(payload)
			if err != nil {
				continue
			}
			r.mu.Lock()
			loop := r.loop
			r.mu.Unlock()
			if loop != nil {
				loop.Resize(int(size.Width), int(size.Height))
			}

		case protocol.MsgShellData:
			if r.opts.OnShellData != nil {
				r.opts.OnShellData(payload)
			}

		case protocol.MsgDetachNotice, protocol.MsgDisconnectNotice:
			r.teardown(nil)
			return

		case protocol.MsgPong:
			// Keepalive replies need no handling yet.
		}
	}
	r.teardown(loopErr)
}

// SendInput queues input for delivery, coalescing pointer moves.
func (r *Runtime) SendInput(events []protocol.InputEvent, immediate bool) {
	r.mu.Lock()
	coalescer := r.coalescer
	r.mu.Unlock()
	if coalescer != nil {
		coalescer.SendInput(events, immediate)
	}
}

// SendShellData forwards raw keystrokes on a shell session.
func (r *Runtime) SendShellData(data []byte) error {
	if r.isClosed() {
		return ErrClosed
	}
	return r.write(protocol.MsgShellData, data)
}

// RequestResize asks the host for a new desktop geometry. The surface resizes
// when the authoritative echo arrives.
func (r *Runtime) RequestResize(width, height uint16) error {
	if r.isClosed() {
		return ErrClosed
	}
	payload, err := protocol.EncodeDesktopResize(protocol.DesktopResize{Width: width, Height: height})
	if err != nil {
		return err
	}
	return r.write(protocol.MsgDesktopResize, payload)
}

// Ping sends a keepalive probe.
func (r *Runtime) Ping() error {
	payload, err := protocol.EncodePing(protocol.Ping{Timestamp: time.Now().UnixNano()})
	if err != nil {
		return err
	}
	return r.write(protocol.MsgPing, payload)
}

var ErrClosed = errors.New("session: closed")

func (r *Runtime) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runtime) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// RendererName reports the backend actually serving the session, which may
// differ from the requested preference.
func (r *Runtime) RendererName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rendererName
}

func (r *Runtime) SessionID() [16]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Loop exposes the render loop for status inspection.
func (r *Runtime) Loop() *client.Loop {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loop
}

// Close detaches and tears the pipeline down.
func (r *Runtime) Close() {
	if r.isClosed() {
		return
	}
	payload, err := protocol.EncodeDisconnectNotice(protocol.DisconnectNotice{Message: "client closing"})
	if err == nil {
		_ = r.write(protocol.MsgDisconnectNotice, payload)
	}
	r.teardown(nil)
}

// Done is closed once teardown completes.
func (r *Runtime) Done() <-chan struct{} { return r.done }

func (r *Runtime) teardown(cause error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	loop := r.loop
	renderer := r.renderer
	r.loop = nil
	r.renderer = nil
	r.coalescer = nil
	if cause != nil {
		r.status = StatusError
		r.lastErr = cause
	} else {
		r.status = StatusClosed
	}
	r.mu.Unlock()

	// Stop the loop before destroying the renderer it paints into.
	if loop != nil {
		loop.Stop()
	}
	if renderer != nil {
		renderer.Destroy()
	}
	_ = r.conn.Close()
	close(r.done)

	if r.opts.OnClose != nil {
		r.opts.OnClose(cause)
	}
}

func (r *Runtime) fail(err error) {
	r.mu.Lock()
	r.status = StatusError
	r.lastErr = err
	r.closed = true
	r.mu.Unlock()
	_ = r.conn.Close()
	close(r.done)
}

func (r *Runtime) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *Runtime) isConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == StatusConnected
}

func (r *Runtime) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Runtime) sendAck(sequence uint64) {
	payload, err := protocol.EncodeFrameAck(protocol.FrameAck{Sequence: sequence})
	if err != nil {
		return
	}
	_ = r.write(protocol.MsgFrameAck, payload)
}

func (r *Runtime) sendInputBatch(events []protocol.InputEvent) error {
	payload, err := protocol.EncodeInputBatch(events)
	if err != nil {
		return err
	}
	return r.write(protocol.MsgInputBatch, payload)
}

func (r *Runtime) write(msgType protocol.MessageType, payload []byte) error {
	hdr := protocol.Header{
		Version:   protocol.Version,
		Type:      msgType,
		Flags:     protocol.FlagChecksum,
		SessionID: r.sessionIDLocked(),
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return protocol.WriteMessage(r.conn, hdr, payload)
}

func (r *Runtime) sessionIDLocked() [16]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}
