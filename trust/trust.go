// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: trust/trust.go
// Summary: Trust-On-First-Use types and policy resolution for host identities.

package trust

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Kind names the credential class an identity belongs to. Host keys and TLS
// certificates are stored side by side but never satisfy one another.
type Kind string

const (
	KindHostKey     Kind = "host-key"
	KindCertificate Kind = "certificate"
)

// Policy decides how an unverified identity is handled at connect time.
type Policy string

const (
	// PolicyAlwaysTrust skips verification entirely.
	PolicyAlwaysTrust Policy = "always-trust"
	// PolicyTOFU trusts an unseen identity automatically and only escalates
	// when it later changes.
	PolicyTOFU Policy = "tofu"
	// PolicyAsk requires an explicit operator decision on first use.
	PolicyAsk Policy = "ask"
)

// Status is the outcome of verifying a presented identity against the store.
type Status string

const (
	StatusTrusted  Status = "trusted"
	StatusFirstUse Status = "first-use"
	StatusMismatch Status = "mismatch"
)

// Record is one persisted identity, either global (ConnectionID empty) or
// pinned to a single configured connection.
type Record struct {
	Host         string
	Port         uint16
	Kind         Kind
	ConnectionID string
	Algorithm    string
	Fingerprint  string
	UserApproved bool
	FirstSeen    time.Time
	LastSeen     time.Time
}

// Result carries the verification status plus the stored record, when one
// exists (always set for mismatch so the UI can show both fingerprints).
type Result struct {
	Status Status
	Stored *Record
}

// EffectivePolicy resolves the policy for a connection: a per-connection
// override wins over the global setting; an unset pair falls back to ask,
// the conservative default.
func EffectivePolicy(override, global Policy) Policy {
	if isValidPolicy(override) {
		return override
	}
	if isValidPolicy(global) {
		return global
	}
	return PolicyAsk
}

func isValidPolicy(p Policy) bool {
	switch p {
	case PolicyAlwaysTrust, PolicyTOFU, PolicyAsk:
		return true
	}
	return false
}

// Fingerprint digests raw identity material into the canonical stored form.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}
