// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: trust/trust_test.go
// Summary: Policy resolution, fingerprinting and TOFU store behavior.

package trust

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestEffectivePolicy(t *testing.T) {
	tests := []struct {
		name     string
		override Policy
		global   Policy
		want     Policy
	}{
		{"override wins", PolicyAlwaysTrust, PolicyAsk, PolicyAlwaysTrust},
		{"global when no override", "", PolicyTOFU, PolicyTOFU},
		{"default when both unset", "", "", PolicyAsk},
		{"invalid override falls through", Policy("bogus"), PolicyTOFU, PolicyTOFU},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectivePolicy(tt.override, tt.global); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFingerprintFormat(t *testing.T) {
	fp := Fingerprint([]byte("host key material"))
	if len(fp) != len("sha256:")+64 {
		t.Fatalf("unexpected fingerprint length: %q", fp)
	}
	if fp[:7] != "sha256:" {
		t.Fatalf("missing digest prefix: %q", fp)
	}
	if fp != Fingerprint([]byte("host key material")) {
		t.Fatal("fingerprint must be deterministic")
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trust.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestVerifyFirstUseThenTrusted(t *testing.T) {
	s := openTestStore(t)
	fp := Fingerprint([]byte("key-a"))

	res, err := s.Verify("host1", 3389, KindHostKey, "", fp)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusFirstUse || res.Stored != nil {
		t.Fatalf("unexpected first lookup: %+v", res)
	}

	err = s.Trust(Record{Host: "host1", Port: 3389, Kind: KindHostKey, Algorithm: "ssh-ed25519", Fingerprint: fp}, false)
	if err != nil {
		t.Fatal(err)
	}

	res, err = s.Verify("host1", 3389, KindHostKey, "", fp)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusTrusted {
		t.Fatalf("expected trusted, got %+v", res)
	}
	if res.Stored == nil || res.Stored.Fingerprint != fp {
		t.Fatalf("stored record missing: %+v", res.Stored)
	}
}

func TestVerifyMismatchReportsStored(t *testing.T) {
	s := openTestStore(t)
	old := Fingerprint([]byte("key-old"))
	if err := s.Trust(Record{Host: "h", Port: 22, Kind: KindHostKey, Fingerprint: old}, false); err != nil {
		t.Fatal(err)
	}

	res, err := s.Verify("h", 22, KindHostKey, "", Fingerprint([]byte("key-new")))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusMismatch {
		t.Fatalf("expected mismatch, got %+v", res)
	}
	if res.Stored == nil || res.Stored.Fingerprint != old {
		t.Fatal("mismatch must carry the stored record")
	}
}

func TestTrustRefusesSilentReplacement(t *testing.T) {
	s := openTestStore(t)
	if err := s.Trust(Record{Host: "h", Port: 22, Kind: KindHostKey, Fingerprint: "sha256:aa"}, false); err != nil {
		t.Fatal(err)
	}

	err := s.Trust(Record{Host: "h", Port: 22, Kind: KindHostKey, Fingerprint: "sha256:bb"}, false)
	if !errors.Is(err, ErrMismatchNotApproved) {
		t.Fatalf("expected ErrMismatchNotApproved, got %v", err)
	}

	// The same replacement with approval goes through.
	if err := s.Trust(Record{Host: "h", Port: 22, Kind: KindHostKey, Fingerprint: "sha256:bb"}, true); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Stored("h", 22, KindHostKey, "")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Fingerprint != "sha256:bb" || !rec.UserApproved {
		t.Fatalf("replacement not recorded: %+v", rec)
	}
}

func TestConnectionEntryShadowsGlobal(t *testing.T) {
	s := openTestStore(t)
	globalFP := Fingerprint([]byte("global"))
	connFP := Fingerprint([]byte("per-conn"))
	if err := s.Trust(Record{Host: "h", Port: 22, Kind: KindHostKey, Fingerprint: globalFP}, false); err != nil {
		t.Fatal(err)
	}
	if err := s.Trust(Record{Host: "h", Port: 22, Kind: KindHostKey, ConnectionID: "c1", Fingerprint: connFP}, false); err != nil {
		t.Fatal(err)
	}

	res, err := s.Verify("h", 22, KindHostKey, "c1", connFP)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusTrusted {
		t.Fatalf("per-connection entry must win: %+v", res)
	}

	// Without a per-connection entry the global one applies.
	res, err = s.Verify("h", 22, KindHostKey, "c2", globalFP)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusTrusted {
		t.Fatalf("global fallback failed: %+v", res)
	}
}

func TestKindsDoNotSatisfyEachOther(t *testing.T) {
	s := openTestStore(t)
	fp := Fingerprint([]byte("shared"))
	if err := s.Trust(Record{Host: "h", Port: 443, Kind: KindCertificate, Fingerprint: fp}, false); err != nil {
		t.Fatal(err)
	}
	res, err := s.Verify("h", 443, KindHostKey, "", fp)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusFirstUse {
		t.Fatalf("certificate entry must not satisfy host-key lookup: %+v", res)
	}
}

func TestRemove(t *testing.T) {
	s := openTestStore(t)
	fp := Fingerprint([]byte("k"))
	if err := s.Trust(Record{Host: "h", Port: 22, Kind: KindHostKey, Fingerprint: fp}, false); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("h", 22, KindHostKey, ""); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Stored("h", 22, KindHostKey, "")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatalf("entry survived removal: %+v", rec)
	}
	// Removing again is fine.
	if err := s.Remove("h", 22, KindHostKey, ""); err != nil {
		t.Fatal(err)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trust.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	fp := Fingerprint([]byte("persist"))
	if err := s.Trust(Record{Host: "h", Port: 22, Kind: KindHostKey, Fingerprint: fp}, false); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	res, err := s2.Verify("h", 22, KindHostKey, "", fp)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusTrusted {
		t.Fatalf("identity lost across reopen: %+v", res)
	}
}
