// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"path/filepath"
	"testing"

	"github.com/viewdeck/viewdeck/store"
)

func TestShellRecorderRoundTrip(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "blobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	rec := newShellRecorder()
	rec.Append([]byte("$ ls\n"))
	rec.Append([]byte("file-a file-b\n"))
	if err := rec.Save(st, "demo"); err != nil {
		t.Fatalf("save: %v", err)
	}

	var got shellRecording
	if err := st.Get(store.CollectionRecordings, "demo", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Started.IsZero() {
		t.Fatal("started timestamp missing")
	}
	if len(got.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got.Chunks))
	}
	if string(got.Chunks[0].Data) != "$ ls\n" || string(got.Chunks[1].Data) != "file-a file-b\n" {
		t.Fatalf("chunks corrupted: %q %q", got.Chunks[0].Data, got.Chunks[1].Data)
	}
	if got.Chunks[1].OffsetNS < got.Chunks[0].OffsetNS {
		t.Fatal("chunk offsets must be monotonic")
	}

	keys, err := st.Keys(store.CollectionRecordings)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "demo" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestShellRecorderSaveOverwrites(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "blobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	first := newShellRecorder()
	first.Append([]byte("old"))
	if err := first.Save(st, "session"); err != nil {
		t.Fatal(err)
	}

	second := newShellRecorder()
	second.Append([]byte("new"))
	if err := second.Save(st, "session"); err != nil {
		t.Fatal(err)
	}

	var got shellRecording
	if err := st.Get(store.CollectionRecordings, "session", &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Chunks) != 1 || string(got.Chunks[0].Data) != "new" {
		t.Fatalf("save under an existing key must replace: %+v", got.Chunks)
	}
}
