// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/protocol_test.go
// Summary: Exercises wire framing to ensure the message envelope stays reliable.

package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var session [16]byte
	copy(session[:], []byte("session-abcdef"))

	header := Header{
		Version:   Version,
		Type:      MsgFrameUpdate,
		Flags:     FlagChecksum,
		Sequence:  42,
		SessionID: session,
	}
	payload := []byte("hello world")

	buf := &bytes.Buffer{}
	if err := WriteMessage(buf, header, payload); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	gotHeader, gotPayload, err := ReadMessage(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if gotHeader.Type != header.Type || gotHeader.Sequence != header.Sequence {
		t.Fatalf("header mismatch: %+v vs %+v", gotHeader, header)
	}
	if gotHeader.SessionID != session {
		t.Fatalf("session id mismatch: %x vs %x", gotHeader.SessionID, session)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload mismatch: %q vs %q", gotPayload, payload)
	}
}

func TestWriteReadEmptyPayload(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteMessage(buf, Header{Version: Version, Type: MsgSessionListRequest}, nil); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	hdr, payload, err := ReadMessage(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if hdr.Type != MsgSessionListRequest {
		t.Fatalf("unexpected type %d", hdr.Type)
	}
	if len(payload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(payload))
	}
}

func TestReadMessageInvalidMagic(t *testing.T) {
	data := make([]byte, headerSize)
	buf := bytes.NewReader(data)
	if _, _, err := ReadMessage(buf); !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestChecksumMismatch(t *testing.T) {
	var session [16]byte
	header := Header{Version: Version, Type: MsgPing, Flags: FlagChecksum, SessionID: session}
	payload := []byte("ping")
	buf := &bytes.Buffer{}
	if err := WriteMessage(buf, header, payload); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF // corrupt the payload after the checksum was taken

	if _, _, err := ReadMessage(bytes.NewReader(raw)); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestTruncatedPayload(t *testing.T) {
	header := Header{Version: Version, Type: MsgShellData}
	payload := []byte("partial write")
	buf := &bytes.Buffer{}
	if err := WriteMessage(buf, header, payload); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	raw := buf.Bytes()
	if _, _, err := ReadMessage(bytes.NewReader(raw[:len(raw)-4])); !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}

func TestUnsupportedVersion(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteMessage(buf, Header{Version: Version + 1, Type: MsgPing}, nil); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, _, err := ReadMessage(buf); !errors.Is(err, ErrUnsupportedVer) {
		t.Fatalf("expected ErrUnsupportedVer, got %v", err)
	}
}
