// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/frame.go
// Summary: Dirty-region frame codec for MsgFrameUpdate payloads.
// Notes: The decoder is deliberately forgiving; the backend may flush a
// partial trailing record and the renderer must keep going.

package protocol

import "encoding/binary"

// regionHeaderSize is the fixed prefix of every dirty-region record:
// [u16 x][u16 y][u16 w][u16 h], little-endian.
const regionHeaderSize = 8

// Region is a single dirty-region record. Pixels aliases the frame buffer it
// was decoded from; callers must not retain it past the buffer's lifetime.
type Region struct {
	X      uint16
	Y      uint16
	Width  uint16
	Height uint16
	Pixels []byte // Width*Height*4 bytes, RGBA
}

// FrameReader walks a MsgFrameUpdate payload record by record. It is a
// single-pass cursor: once Next returns false the reader is exhausted.
//
// A record is only produced when the buffer holds the full header and pixel
// payload from the current offset. Truncated trailing bytes are dropped
// without error; a half-written record from the backend must never tear the
// regions decoded before it.
type FrameReader struct {
	buf []byte
	off int
}

// NewFrameReader returns a reader positioned at the first record of buf.
func NewFrameReader(buf []byte) *FrameReader {
	return &FrameReader{buf: buf}
}

// Next returns the next complete record, or ok=false when the buffer is
// exhausted or the remaining bytes do not form a whole record.
func (r *FrameReader) Next() (Region, bool) {
	if r.off+regionHeaderSize > len(r.buf) {
		r.off = len(r.buf)
		return Region{}, false
	}
	var reg Region
	reg.X = binary.LittleEndian.Uint16(r.buf[r.off:])
	reg.Y = binary.LittleEndian.Uint16(r.buf[r.off+2:])
	reg.Width = binary.LittleEndian.Uint16(r.buf[r.off+4:])
	reg.Height = binary.LittleEndian.Uint16(r.buf[r.off+6:])

	pixelBytes := int(reg.Width) * int(reg.Height) * 4
	if r.off+regionHeaderSize+pixelBytes > len(r.buf) {
		r.off = len(r.buf)
		return Region{}, false
	}
	start := r.off + regionHeaderSize
	reg.Pixels = r.buf[start : start+pixelBytes : start+pixelBytes]
	r.off = start + pixelBytes
	return reg, true
}

// AppendRegion appends one encoded record to dst and returns the extended
// slice. pixels shorter than w*h*4 is a programming error on the host side
// and is dropped rather than encoded truncated.
func AppendRegion(dst []byte, x, y, w, h uint16, pixels []byte) []byte {
	need := int(w) * int(h) * 4
	if w == 0 || h == 0 || len(pixels) < need {
		return dst
	}
	var hdr [regionHeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:], x)
	binary.LittleEndian.PutUint16(hdr[2:], y)
	binary.LittleEndian.PutUint16(hdr[4:], w)
	binary.LittleEndian.PutUint16(hdr[6:], h)
	dst = append(dst, hdr[:]...)
	return append(dst, pixels[:need]...)
}
