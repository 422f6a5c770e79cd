// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/host/handshake.go
// Summary: Connection-level negotiation: hello, identity presentation, connect.

package host

import (
	"errors"
	"io"

	"github.com/viewdeck/viewdeck/protocol"
)

var (
	errUnexpectedMessage = errors.New("host: unexpected message type")
	errTrustRejected     = errors.New("host: client rejected host identity")
)

// Identity is the credential the host presents during the handshake.
type Identity struct {
	Kind      protocol.IdentityKind
	Algorithm string
	Raw       []byte
}

// handleHandshake performs the initial client/host negotiation. The client
// may request the host identity and deliver a trust verdict before
// connecting; a client configured to always trust skips straight to the
// connect request.
func handleHandshake(rw io.ReadWriter, h *Host) ([16]byte, error) {
	var connID [16]byte

	hdr, payload, err := protocol.ReadMessage(rw)
	if err != nil {
		return connID, err
	}
	if hdr.Type != protocol.MsgHello {
		return connID, errUnexpectedMessage
	}
	hello, err := protocol.DecodeHello(payload)
	if err != nil {
		return connID, err
	}
	debugLog.Printf("host: hello from client %x (%s)", hello.ClientID[:4], hello.ClientName)

	welcomePayload, err := protocol.EncodeWelcome(protocol.Welcome{HostID: h.id, HostName: h.name})
	if err != nil {
		return connID, err
	}
	welcomeHeader := protocol.Header{
		Version: protocol.Version,
		Type:    protocol.MsgWelcome,
		Flags:   protocol.FlagChecksum,
	}
	if err := protocol.WriteMessage(rw, welcomeHeader, welcomePayload); err != nil {
		return connID, err
	}

	for {
		hdr, payload, err = protocol.ReadMessage(rw)
		if err != nil {
			return connID, err
		}

		switch hdr.Type {
		case protocol.MsgHostKeyRequest:
			keyPayload, err := protocol.EncodeHostKeyInfo(protocol.HostKeyInfo{
				Kind:      h.identity.Kind,
				Algorithm: h.identity.Algorithm,
				Raw:       h.identity.Raw,
			})
			if err != nil {
				return connID, err
			}
			keyHeader := protocol.Header{
				Version: protocol.Version,
				Type:    protocol.MsgHostKeyInfo,
				Flags:   protocol.FlagChecksum,
			}
			if err := protocol.WriteMessage(rw, keyHeader, keyPayload); err != nil {
				return connID, err
			}

		case protocol.MsgTrustDecision:
			decision, err := protocol.DecodeTrustDecision(payload)
			if err != nil {
				return connID, err
			}
			if !decision.Accepted {
				return connID, errTrustRejected
			}

		case protocol.MsgConnectRequest:
			req, err := protocol.DecodeConnectRequest(payload)
			if err != nil {
				return connID, err
			}
			connID = req.ConnectionID

			acceptPayload, err := protocol.EncodeConnectAccept(protocol.ConnectAccept{ConnectionID: connID})
			if err != nil {
				return connID, err
			}
			acceptHeader := protocol.Header{
				Version:  protocol.Version,
				Type:     protocol.MsgConnectAccept,
				Flags:    protocol.FlagChecksum,
				Sequence: 1,
			}
			if err := protocol.WriteMessage(rw, acceptHeader, acceptPayload); err != nil {
				return connID, err
			}
			return connID, nil

		default:
			return connID, errUnexpectedMessage
		}
	}
}
