// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: render/direct.go
// Summary: Direct backend painting into an in-memory RGBA surface.

package render

import (
	"image"
	"image/draw"
)

// DirectRenderer owns the visible RGBA surface and paints regions straight
// into it. It is the unconditional fallback backend: construction cannot
// fail for sane dimensions.
type DirectRenderer struct {
	visible *image.RGBA
}

func init() {
	Register(NameDirect, func(opts Options) (Renderer, error) {
		return NewDirect(opts.Width, opts.Height), nil
	})
}

// NewDirect builds a direct renderer sized to the given desktop dimensions.
func NewDirect(width, height int) *DirectRenderer {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &DirectRenderer{visible: image.NewRGBA(image.Rect(0, 0, width, height))}
}

func (r *DirectRenderer) Name() string { return NameDirect }

func (r *DirectRenderer) Kind() Kind { return KindDirect }

// PaintRegion copies a w*h RGBA rectangle to (x, y). Rectangles reaching
// outside the surface are clipped; short pixel slices are dropped.
func (r *DirectRenderer) PaintRegion(x, y, w, h int, rgba []byte) {
	if r.visible == nil || w <= 0 || h <= 0 || len(rgba) < w*h*4 {
		return
	}
	src := &image.RGBA{Pix: rgba, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	draw.Draw(r.visible, image.Rect(x, y, x+w, y+h), src, image.Point{}, draw.Src)
}

// Present is a no-op: the visible surface is the presentation.
func (r *DirectRenderer) Present() error { return nil }

// Resize reallocates the visible surface. Content is not preserved here;
// the session's back-buffer repaints it right after a resize.
func (r *DirectRenderer) Resize(w, h int) {
	if r.visible == nil || w <= 0 || h <= 0 {
		return
	}
	b := r.visible.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return
	}
	r.visible = image.NewRGBA(image.Rect(0, 0, w, h))
}

// Destroy releases the surface. The renderer must not be used afterwards.
func (r *DirectRenderer) Destroy() {
	r.visible = nil
}

// Visible exposes the live surface for blitting and for secondary views.
// Returns nil after Destroy.
func (r *DirectRenderer) Visible() *image.RGBA {
	return r.visible
}
