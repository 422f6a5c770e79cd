// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/viewdeck/record.go
// Summary: Shell session transcripts saved into the recordings collection.

package main

import (
	"sync"
	"time"

	"github.com/viewdeck/viewdeck/store"
)

// shellRecording is the stored transcript of one shell session. Chunks keep
// their offset from session start so playback can reproduce pacing.
type shellRecording struct {
	Started time.Time       `json:"started"`
	Chunks  []recordedChunk `json:"chunks"`
}

type recordedChunk struct {
	OffsetNS int64  `json:"offset_ns"`
	Data     []byte `json:"data"`
}

// shellRecorder accumulates output chunks. Append runs on the session's read
// goroutine while the main goroutine saves on exit.
type shellRecorder struct {
	mu  sync.Mutex
	rec shellRecording
}

func newShellRecorder() *shellRecorder {
	return &shellRecorder{rec: shellRecording{Started: time.Now()}}
}

func (r *shellRecorder) Append(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Chunks = append(r.rec.Chunks, recordedChunk{
		OffsetNS: time.Since(r.rec.Started).Nanoseconds(),
		Data:     append([]byte(nil), data...),
	})
}

// Save writes the transcript under key in the recordings collection.
func (r *shellRecorder) Save(st *store.Store, key string) error {
	r.mu.Lock()
	rec := shellRecording{
		Started: r.rec.Started,
		Chunks:  append([]recordedChunk(nil), r.rec.Chunks...),
	}
	r.mu.Unlock()
	return st.Put(store.CollectionRecordings, key, rec)
}
