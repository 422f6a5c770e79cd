// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/surface.go
// Summary: Offscreen back-buffer accumulating paints between presents.
// Notes: Doubles as the "last known frame" cache so a live resize never
// shows a blank desktop.

package client

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Surface owns the back-buffer pixel image for one session. It is not safe
// for concurrent use; all mutation funnels through the render loop.
// Secondary views (magnifier) may read the image between passes but never
// mutate it.
type Surface struct {
	img     *image.RGBA
	painted bool
}

// NewSurface allocates a back-buffer with the given desktop dimensions.
func NewSurface(width, height int) *Surface {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// ApplyRegion writes a w*h RGBA rectangle at (x, y). Malformed input (zero
// or negative extent, short pixel slice) is dropped silently: the frame
// channel is trusted but unreliable, and a dropped partial region heals on
// the next full frame, whereas an error here would kill the render loop.
func (s *Surface) ApplyRegion(x, y, w, h int, rgba []byte) {
	if s == nil || s.img == nil {
		return
	}
	if w <= 0 || h <= 0 || len(rgba) < w*h*4 {
		return
	}
	src := &image.RGBA{Pix: rgba, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	draw.Draw(s.img, image.Rect(x, y, x+w, y+h), src, image.Point{}, draw.Src)
	s.painted = true
}

// Resize adjusts the back-buffer to new desktop dimensions. A same-size call
// is a strict no-op. When a prior frame exists its content is stretched
// (bilinear) into the new geometry so the operator keeps seeing the old
// desktop, distorted, until the next real frame repaints it. Without a prior
// frame the buffer is simply reallocated.
func (s *Surface) Resize(width, height int) {
	if s == nil || s.img == nil || width <= 0 || height <= 0 {
		return
	}
	b := s.img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return
	}
	fresh := image.NewRGBA(image.Rect(0, 0, width, height))
	if s.painted {
		xdraw.BiLinear.Scale(fresh, fresh.Bounds(), s.img, b, xdraw.Src, nil)
	}
	s.img = fresh
}

// BlitTo copies the whole back-buffer onto dst in one operation. Before the
// first real frame arrives this is a no-op so an all-zero surface is never
// presented.
func (s *Surface) BlitTo(dst draw.Image) {
	if s == nil || s.img == nil || dst == nil || !s.painted {
		return
	}
	draw.Draw(dst, s.img.Bounds(), s.img, image.Point{}, draw.Src)
}

// HasPainted reports whether at least one region has been applied.
func (s *Surface) HasPainted() bool {
	return s != nil && s.painted
}

// Size returns the current back-buffer dimensions.
func (s *Surface) Size() (int, int) {
	if s == nil || s.img == nil {
		return 0, 0
	}
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Image exposes the back-buffer for read-only consumers.
func (s *Surface) Image() *image.RGBA {
	if s == nil {
		return nil
	}
	return s.img
}
