// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/messages.go
// Summary: Payload codecs for every message type exchanged with the backend.

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
)

var (
	errStringTooLong = errors.New("protocol: string exceeds 64KB limit")
	errPayloadShort  = errors.New("protocol: payload too short")
)

// SessionKind distinguishes the transport semantics of a hosted session.
type SessionKind uint8

const (
	// SessionDesktop streams dirty-region RGBA frame updates.
	SessionDesktop SessionKind = iota
	// SessionShell streams raw terminal bytes from a pty.
	SessionShell
)

// IdentityKind tells which credential class a HostKeyInfo carries.
type IdentityKind uint8

const (
	IdentityHostKey IdentityKind = iota
	IdentityCertificate
)

// Hello initiates the handshake from client to host.
type Hello struct {
	ClientID     [16]byte
	ClientName   string
	Capabilities uint32
}

// Welcome is returned by the host acknowledging the handshake.
type Welcome struct {
	HostID   [16]byte
	HostName string
}

// ConnectRequest opens or resumes a connection-scoped channel on the host.
type ConnectRequest struct {
	ConnectionID [16]byte
}

// ConnectAccept is returned once the connection is ready.
type ConnectAccept struct {
	ConnectionID [16]byte
}

// DisconnectNotice informs the peer that the connection is closing.
type DisconnectNotice struct {
	ReasonCode uint16
	Message    string
}

// Ping/Pong keep the connection alive.
type Ping struct {
	Timestamp int64
}

type Pong struct {
	Timestamp int64
}

// ErrorFrame communicates protocol-level errors.
type ErrorFrame struct {
	Code    uint16
	Message string
}

// SessionInfo describes one hosted session in a SessionList reply.
type SessionInfo struct {
	SessionID [16]byte
	Kind      SessionKind
	Title     string
	Width     uint16
	Height    uint16
	Attached  bool
}

// SessionList enumerates the sessions the host is willing to expose.
type SessionList struct {
	Sessions []SessionInfo
}

// AttachRequest attaches to an existing session, or creates one when the
// session id is all zeroes.
type AttachRequest struct {
	SessionID [16]byte
	Kind      SessionKind
	Title     string
	Width     uint16
	Height    uint16
}

// AttachAccept confirms the attach and reports the authoritative geometry.
type AttachAccept struct {
	SessionID [16]byte
	Kind      SessionKind
	Width     uint16
	Height    uint16
}

// DetachNotice tells the peer a session went away or was released.
type DetachNotice struct {
	SessionID  [16]byte
	ReasonCode uint16
	Message    string
}

// DesktopResize announces a desktop geometry change. The host sends it when
// the remote desktop resizes; the client sends it to request a resize.
type DesktopResize struct {
	Width  uint16
	Height uint16
}

// FrameAck acknowledges frame updates up to and including the sequence.
type FrameAck struct {
	Sequence uint64
}

// HostKeyInfo presents the host identity for trust verification. Raw holds
// the identity material (public key or certificate, DER-ish opaque bytes);
// the client fingerprints it locally.
type HostKeyInfo struct {
	Kind      IdentityKind
	Algorithm string
	Raw       []byte
}

// TrustDecision carries the operator's accept/reject verdict back to the host.
type TrustDecision struct {
	Accepted bool
}

func encodeString(buf *bytes.Buffer, value string) error {
	if len(value) > 0xFFFF {
		return errStringTooLong
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(value))); err != nil {
		return err
	}
	if len(value) > 0 {
		if _, err := buf.WriteString(value); err != nil {
			return err
		}
	}
	return nil
}

func decodeString(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, errPayloadShort
	}
	length := binary.LittleEndian.Uint16(b[:2])
	b = b[2:]
	if uint16(len(b)) < length {
		return "", nil, errPayloadShort
	}
	return string(b[:length]), b[length:], nil
}

func encodeBytes(buf *bytes.Buffer, data []byte) error {
	if len(data) > 0xFFFF {
		return errStringTooLong
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(data))); err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := buf.Write(data); err != nil {
			return err
		}
	}
	return nil
}

func decodeBytes(b []byte) ([]byte, []byte, error) {
	if len(b) < 2 {
		return nil, nil, errPayloadShort
	}
	length := binary.LittleEndian.Uint16(b[:2])
	b = b[2:]
	if len(b) < int(length) {
		return nil, nil, errPayloadShort
	}
	return append([]byte(nil), b[:length]...), b[length:], nil
}

func EncodeHello(h Hello) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 24+len(h.ClientName)))
	buf.Write(h.ClientID[:])
	if err := encodeString(buf, h.ClientName); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, h.Capabilities); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeHello(b []byte) (Hello, error) {
	var h Hello
	if len(b) < 16 {
		return h, errPayloadShort
	}
	copy(h.ClientID[:], b[:16])
	name, rest, err := decodeString(b[16:])
	if err != nil {
		return h, err
	}
	h.ClientName = name
	if len(rest) < 4 {
		return h, errPayloadShort
	}
	h.Capabilities = binary.LittleEndian.Uint32(rest[:4])
	return h, nil
}

func EncodeWelcome(w Welcome) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 18+len(w.HostName)))
	buf.Write(w.HostID[:])
	if err := encodeString(buf, w.HostName); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeWelcome(b []byte) (Welcome, error) {
	var w Welcome
	if len(b) < 16 {
		return w, errPayloadShort
	}
	copy(w.HostID[:], b[:16])
	name, _, err := decodeString(b[16:])
	if err != nil {
		return w, err
	}
	w.HostName = name
	return w, nil
}

func EncodeConnectRequest(c ConnectRequest) ([]byte, error) {
	return append([]byte(nil), c.ConnectionID[:]...), nil
}

func DecodeConnectRequest(b []byte) (ConnectRequest, error) {
	var c ConnectRequest
	if len(b) < 16 {
		return c, errPayloadShort
	}
	copy(c.ConnectionID[:], b[:16])
	return c, nil
}

func EncodeConnectAccept(c ConnectAccept) ([]byte, error) {
	return append([]byte(nil), c.ConnectionID[:]...), nil
}

func DecodeConnectAccept(b []byte) (ConnectAccept, error) {
	var c ConnectAccept
	if len(b) < 16 {
		return c, errPayloadShort
	}
	copy(c.ConnectionID[:], b[:16])
	return c, nil
}

func EncodeDisconnectNotice(d DisconnectNotice) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 4+len(d.Message)))
	if err := binary.Write(buf, binary.LittleEndian, d.ReasonCode); err != nil {
		return nil, err
	}
	if err := encodeString(buf, d.Message); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeDisconnectNotice(b []byte) (DisconnectNotice, error) {
	var d DisconnectNotice
	if len(b) < 2 {
		return d, errPayloadShort
	}
	d.ReasonCode = binary.LittleEndian.Uint16(b[:2])
	msg, _, err := decodeString(b[2:])
	if err != nil {
		return d, err
	}
	d.Message = msg
	return d, nil
}

func EncodePing(p Ping) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 8))
	if err := binary.Write(buf, binary.LittleEndian, p.Timestamp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodePing(b []byte) (Ping, error) {
	var p Ping
	if len(b) < 8 {
		return p, errPayloadShort
	}
	p.Timestamp = int64(binary.LittleEndian.Uint64(b[:8]))
	return p, nil
}

func EncodePong(p Pong) ([]byte, error) {
	return EncodePing(Ping{Timestamp: p.Timestamp})
}

func DecodePong(b []byte) (Pong, error) {
	ping, err := DecodePing(b)
	if err != nil {
		return Pong{}, err
	}
	return Pong{Timestamp: ping.Timestamp}, nil
}

func EncodeErrorFrame(e ErrorFrame) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 4+len(e.Message)))
	if err := binary.Write(buf, binary.LittleEndian, e.Code); err != nil {
		return nil, err
	}
	if err := encodeString(buf, e.Message); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeErrorFrame(b []byte) (ErrorFrame, error) {
	var e ErrorFrame
	if len(b) < 2 {
		return e, errPayloadShort
	}
	e.Code = binary.LittleEndian.Uint16(b[:2])
	msg, _, err := decodeString(b[2:])
	if err != nil {
		return e, err
	}
	e.Message = msg
	return e, nil
}

func EncodeSessionList(list SessionList) ([]byte, error) {
	if len(list.Sessions) > 0xFFFF {
		return nil, errStringTooLong
	}
	buf := bytes.NewBuffer(nil)
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(list.Sessions))); err != nil {
		return nil, err
	}
	for _, info := range list.Sessions {
		buf.Write(info.SessionID[:])
		buf.WriteByte(byte(info.Kind))
		if err := encodeString(buf, info.Title); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.LittleEndian, info.Width); err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.LittleEndian, info.Height); err != nil {
			return nil, err
		}
		if info.Attached {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes(), nil
}

func DecodeSessionList(b []byte) (SessionList, error) {
	var list SessionList
	if len(b) < 2 {
		return list, errPayloadShort
	}
	count := binary.LittleEndian.Uint16(b[:2])
	b = b[2:]
	list.Sessions = make([]SessionInfo, 0, count)
	for i := 0; i < int(count); i++ {
		var info SessionInfo
		if len(b) < 17 {
			return list, errPayloadShort
		}
		copy(info.SessionID[:], b[:16])
		info.Kind = SessionKind(b[16])
		title, rest, err := decodeString(b[17:])
		if err != nil {
			return list, err
		}
		info.Title = title
		if len(rest) < 5 {
			return list, errPayloadShort
		}
		info.Width = binary.LittleEndian.Uint16(rest[0:2])
		info.Height = binary.LittleEndian.Uint16(rest[2:4])
		info.Attached = rest[4] != 0
		list.Sessions = append(list.Sessions, info)
		b = rest[5:]
	}
	return list, nil
}

func EncodeAttachRequest(a AttachRequest) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 23+len(a.Title)))
	buf.Write(a.SessionID[:])
	buf.WriteByte(byte(a.Kind))
	if err := encodeString(buf, a.Title); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, a.Width); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, a.Height); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeAttachRequest(b []byte) (AttachRequest, error) {
	var a AttachRequest
	if len(b) < 17 {
		return a, errPayloadShort
	}
	copy(a.SessionID[:], b[:16])
	a.Kind = SessionKind(b[16])
	title, rest, err := decodeString(b[17:])
	if err != nil {
		return a, err
	}
	a.Title = title
	if len(rest) < 4 {
		return a, errPayloadShort
	}
	a.Width = binary.LittleEndian.Uint16(rest[0:2])
	a.Height = binary.LittleEndian.Uint16(rest[2:4])
	return a, nil
}

func EncodeAttachAccept(a AttachAccept) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 21))
	buf.Write(a.SessionID[:])
	buf.WriteByte(byte(a.Kind))
	if err := binary.Write(buf, binary.LittleEndian, a.Width); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, a.Height); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeAttachAccept(b []byte) (AttachAccept, error) {
	var a AttachAccept
	if len(b) < 21 {
		return a, errPayloadShort
	}
	copy(a.SessionID[:], b[:16])
	a.Kind = SessionKind(b[16])
	a.Width = binary.LittleEndian.Uint16(b[17:19])
	a.Height = binary.LittleEndian.Uint16(b[19:21])
	return a, nil
}

func EncodeDetachNotice(d DetachNotice) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 20+len(d.Message)))
	buf.Write(d.SessionID[:])
	if err := binary.Write(buf, binary.LittleEndian, d.ReasonCode); err != nil {
		return nil, err
	}
	if err := encodeString(buf, d.Message); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeDetachNotice(b []byte) (DetachNotice, error) {
	var d DetachNotice
	if len(b) < 18 {
		return d, errPayloadShort
	}
	copy(d.SessionID[:], b[:16])
	d.ReasonCode = binary.LittleEndian.Uint16(b[16:18])
	msg, _, err := decodeString(b[18:])
	if err != nil {
		return d, err
	}
	d.Message = msg
	return d, nil
}

func EncodeDesktopResize(r DesktopResize) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 4))
	if err := binary.Write(buf, binary.LittleEndian, r.Width); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, r.Height); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeDesktopResize(b []byte) (DesktopResize, error) {
	var r DesktopResize
	if len(b) < 4 {
		return r, errPayloadShort
	}
	r.Width = binary.LittleEndian.Uint16(b[0:2])
	r.Height = binary.LittleEndian.Uint16(b[2:4])
	return r, nil
}

func EncodeFrameAck(a FrameAck) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 8))
	if err := binary.Write(buf, binary.LittleEndian, a.Sequence); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeFrameAck(b []byte) (FrameAck, error) {
	var ack FrameAck
	if len(b) < 8 {
		return ack, errPayloadShort
	}
	ack.Sequence = binary.LittleEndian.Uint64(b[:8])
	return ack, nil
}

func EncodeHostKeyInfo(h HostKeyInfo) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 5+len(h.Algorithm)+len(h.Raw)))
	buf.WriteByte(byte(h.Kind))
	if err := encodeString(buf, h.Algorithm); err != nil {
		return nil, err
	}
	if err := encodeBytes(buf, h.Raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeHostKeyInfo(b []byte) (HostKeyInfo, error) {
	var h HostKeyInfo
	if len(b) < 1 {
		return h, errPayloadShort
	}
	h.Kind = IdentityKind(b[0])
	algo, rest, err := decodeString(b[1:])
	if err != nil {
		return h, err
	}
	h.Algorithm = algo
	raw, _, err := decodeBytes(rest)
	if err != nil {
		return h, err
	}
	h.Raw = raw
	return h, nil
}

func EncodeTrustDecision(d TrustDecision) ([]byte, error) {
	if d.Accepted {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func DecodeTrustDecision(b []byte) (TrustDecision, error) {
	if len(b) < 1 {
		return TrustDecision{}, errPayloadShort
	}
	return TrustDecision{Accepted: b[0] != 0}, nil
}
