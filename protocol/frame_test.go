// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/frame_test.go
// Summary: Guards the dirty-region decoder's truncation and aliasing rules.

package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func makeRegion(x, y, w, h uint16, fill byte) []byte {
	pixels := bytes.Repeat([]byte{fill}, int(w)*int(h)*4)
	return AppendRegion(nil, x, y, w, h, pixels)
}

func TestFrameReaderTwoRecords(t *testing.T) {
	buf := makeRegion(0, 0, 4, 4, 0x11)
	buf = append(buf, makeRegion(8, 4, 4, 4, 0x22)...)

	r := NewFrameReader(buf)

	first, ok := r.Next()
	if !ok {
		t.Fatal("expected first record")
	}
	if first.X != 0 || first.Y != 0 || first.Width != 4 || first.Height != 4 {
		t.Fatalf("unexpected first record geometry: %+v", first)
	}
	if len(first.Pixels) != 64 || first.Pixels[0] != 0x11 {
		t.Fatalf("unexpected first record pixels: len=%d first=%#x", len(first.Pixels), first.Pixels[0])
	}

	second, ok := r.Next()
	if !ok {
		t.Fatal("expected second record")
	}
	if second.X != 8 || second.Y != 4 {
		t.Fatalf("unexpected second record geometry: %+v", second)
	}
	if second.Pixels[0] != 0x22 {
		t.Fatalf("unexpected second record pixels: %#x", second.Pixels[0])
	}

	if _, ok := r.Next(); ok {
		t.Fatal("expected reader to be exhausted")
	}
}

func TestFrameReaderTruncatedPixels(t *testing.T) {
	buf := makeRegion(0, 0, 2, 2, 0xAA)
	// Declare a 10x10 record but supply only a handful of pixel bytes.
	var hdr [8]byte
	binary.LittleEndian.PutUint16(hdr[0:], 4)
	binary.LittleEndian.PutUint16(hdr[2:], 4)
	binary.LittleEndian.PutUint16(hdr[4:], 10)
	binary.LittleEndian.PutUint16(hdr[6:], 10)
	buf = append(buf, hdr[:]...)
	buf = append(buf, 0xBB, 0xBB, 0xBB)

	r := NewFrameReader(buf)
	if _, ok := r.Next(); !ok {
		t.Fatal("expected the complete leading record")
	}
	if _, ok := r.Next(); ok {
		t.Fatal("truncated record must be dropped, not returned")
	}
	// The reader must stay exhausted.
	if _, ok := r.Next(); ok {
		t.Fatal("reader resurrected after exhaustion")
	}
}

func TestFrameReaderTruncatedHeader(t *testing.T) {
	r := NewFrameReader([]byte{0x01, 0x00, 0x02})
	if _, ok := r.Next(); ok {
		t.Fatal("expected no record from a partial header")
	}
}

func TestFrameReaderEmptyBuffer(t *testing.T) {
	r := NewFrameReader(nil)
	if _, ok := r.Next(); ok {
		t.Fatal("expected no record from an empty buffer")
	}
}

func TestFrameReaderZeroSizeRecord(t *testing.T) {
	// A 0x0 record is technically well-formed: 8 header bytes, no pixels.
	buf := AppendRegion(nil, 1, 2, 3, 3, bytes.Repeat([]byte{1}, 36))
	var hdr [8]byte
	binary.LittleEndian.PutUint16(hdr[0:], 5)
	binary.LittleEndian.PutUint16(hdr[2:], 5)
	buf = append(buf, hdr[:]...)

	r := NewFrameReader(buf)
	if _, ok := r.Next(); !ok {
		t.Fatal("expected leading record")
	}
	reg, ok := r.Next()
	if !ok {
		t.Fatal("expected zero-size record to decode")
	}
	if reg.Width != 0 || reg.Height != 0 || len(reg.Pixels) != 0 {
		t.Fatalf("unexpected zero-size record: %+v", reg)
	}
}

func TestFrameReaderAliasesBuffer(t *testing.T) {
	buf := makeRegion(0, 0, 1, 1, 0x7F)
	r := NewFrameReader(buf)
	reg, ok := r.Next()
	if !ok {
		t.Fatal("expected record")
	}
	buf[8] = 0x01
	if reg.Pixels[0] != 0x01 {
		t.Fatal("decoder must alias the source buffer, not copy it")
	}
}

func TestAppendRegionRejectsShortPixels(t *testing.T) {
	out := AppendRegion(nil, 0, 0, 4, 4, make([]byte, 10))
	if len(out) != 0 {
		t.Fatalf("short pixel slice must not be encoded, got %d bytes", len(out))
	}
	out = AppendRegion(nil, 0, 0, 0, 4, nil)
	if len(out) != 0 {
		t.Fatalf("zero-width region must not be encoded, got %d bytes", len(out))
	}
}
