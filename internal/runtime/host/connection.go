// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/host/connection.go
// Summary: Per-client message loop: attach, frame pump, input and acks.

package host

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/viewdeck/viewdeck/protocol"
)

// InputSink receives decoded input batches destined for a desktop session.
type InputSink interface {
	HandleInput(session *Session, events []protocol.InputEvent)
}

type nopSink struct{}

func (nopSink) HandleInput(*Session, []protocol.InputEvent) {}

type connection struct {
	conn      net.Conn
	host      *Host
	session   *Session
	lastSent  uint64
	lastAcked uint64
	writeMu   sync.Mutex
}

func newConnection(conn net.Conn, h *Host) *connection {
	return &connection{conn: conn, host: h}
}

func (c *connection) serve() error {
	_ = c.conn.SetDeadline(time.Time{})
	defer func() {
		if c.session != nil {
			c.session.setAttached(false)
		}
	}()

	for {
		if err := c.sendPending(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
		header, payload, err := protocol.ReadMessage(c.conn)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}

		switch header.Type {
		case protocol.MsgSessionListRequest:
			listPayload, err := protocol.EncodeSessionList(c.host.manager.List())
			if err != nil {
				return err
			}
			if err := c.writeControlMessage(protocol.MsgSessionList, listPayload); err != nil {
				return err
			}

		case protocol.MsgAttachRequest:
			req, err := protocol.DecodeAttachRequest(payload)
			if err != nil {
				return err
			}
			if err := c.handleAttach(req); err != nil {
				return err
			}

		case protocol.MsgFrameAck:
			ack, err := protocol.DecodeFrameAck(payload)
			if err != nil {
				return err
			}
			if c.session != nil {
				c.session.Ack(ack.Sequence)
			}
			if ack.Sequence > c.lastAcked {
				c.lastAcked = ack.Sequence
			}

		case protocol.MsgInputBatch:
			events, err := protocol.DecodeInputBatch(payload)
			if err != nil {
				return err
			}
			if c.session != nil {
				c.host.inputSink.HandleInput(c.session, events)
			}

		case protocol.MsgDesktopResize:
			size, err := protocol.DecodeDesktopResize(payload)
			if err != nil {
				return err
			}
			c.handleResize(size)

		case protocol.MsgShellData:
			if c.session != nil {
				c.session.writeShellInput(payload)
			}

		case protocol.MsgPing:
			ping, err := protocol.DecodePing(payload)
			if err != nil {
				return err
			}
			pongPayload, err := protocol.EncodePong(protocol.Pong{Timestamp: ping.Timestamp})
			if err != nil {
				return err
			}
			if err := c.writeControlMessage(protocol.MsgPong, pongPayload); err != nil {
				return err
			}

		case protocol.MsgDetachNotice:
			if c.session != nil {
				c.session.setAttached(false)
				c.session = nil
				c.lastSent = 0
				c.lastAcked = 0
			}

		case protocol.MsgDisconnectNotice:
			return nil

		default:
			// Unknown messages are ignored for now.
		}
	}
}

func (c *connection) handleAttach(req protocol.AttachRequest) error {
	var session *Session
	zeroID := [16]byte{}
	if req.SessionID == zeroID {
		session = c.host.createSession(req)
	} else {
		found, err := c.host.manager.Lookup(req.SessionID)
		if err != nil {
			errPayload, encErr := protocol.EncodeErrorFrame(protocol.ErrorFrame{
				Code:    1,
				Message: "session not found",
			})
			if encErr != nil {
				return encErr
			}
			return c.writeControlMessage(protocol.MsgError, errPayload)
		}
		session = found
	}

	c.session = session
	c.lastSent = 0
	c.lastAcked = 0
	session.setAttached(true)

	width, height := session.Size()
	acceptPayload, err := protocol.EncodeAttachAccept(protocol.AttachAccept{
		SessionID: session.ID(),
		Kind:      session.Kind(),
		Width:     width,
		Height:    height,
	})
	if err != nil {
		return err
	}
	header := protocol.Header{
		Version:   protocol.Version,
		Type:      protocol.MsgAttachAccept,
		Flags:     protocol.FlagChecksum,
		SessionID: session.ID(),
	}
	return c.writeMessage(header, acceptPayload)
}

func (c *connection) handleResize(size protocol.DesktopResize) {
	if c.session == nil {
		return
	}
	c.session.setSize(size.Width, size.Height)
	c.host.notifyResize(c.session, size)

	// Echo the authoritative geometry back so the client resizes its surface.
	payload, err := protocol.EncodeDesktopResize(size)
	if err != nil {
		return
	}
	_ = c.writeControlMessage(protocol.MsgDesktopResize, payload)
}

func (c *connection) sendPending() error {
	if c.session == nil {
		return nil
	}
	pending := c.session.Pending(c.lastAcked)
	for _, pkt := range pending {
		if pkt.Sequence <= c.lastSent {
			continue
		}
		header := pkt.Message
		header.Sequence = pkt.Sequence
		header.SessionID = c.session.ID()
		if err := c.writeMessage(header, pkt.Payload); err != nil {
			return err
		}
		c.lastSent = pkt.Sequence
	}
	return nil
}

func (c *connection) writeControlMessage(msgType protocol.MessageType, payload []byte) error {
	header := protocol.Header{
		Version: protocol.Version,
		Type:    msgType,
		Flags:   protocol.FlagChecksum,
	}
	if c.session != nil {
		header.SessionID = c.session.ID()
	}
	return c.writeMessage(header, payload)
}

func (c *connection) writeMessage(header protocol.Header, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteMessage(c.conn, header, payload)
}
