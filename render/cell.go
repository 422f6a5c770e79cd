// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: render/cell.go
// Summary: Cell backend rasterising desktop frames into a tcell screen.
// Notes: Each terminal cell shows two vertically stacked pixels via the
// upper-half-block glyph; row zero is reserved for the status line.

package render

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	xdraw "golang.org/x/image/draw"
)

const halfBlock = '▀' // upper half block

// CellRenderer paints the remote desktop into a terminal. It keeps a
// full-resolution frame and downsamples on Present, so regions can arrive in
// any order between presents.
type CellRenderer struct {
	screen tcell.Screen
	title  string
	frame  *image.RGBA
	// scaled is the single reused downsample target; reallocated lazily
	// when the terminal geometry changes.
	scaled *image.RGBA
	dirty  bool
}

func init() {
	Register(NameCell, func(opts Options) (Renderer, error) {
		return NewCell(opts.Screen, opts.Width, opts.Height, opts.Title)
	})
}

// NewCell builds a cell renderer bound to the given screen. The screen must
// already be initialised; a nil screen fails construction so the dispatch
// layer can fall back to the direct backend.
func NewCell(screen tcell.Screen, width, height int, title string) (*CellRenderer, error) {
	if screen == nil {
		return nil, fmt.Errorf("%w: cell backend needs a terminal screen", ErrBackendUnavailable)
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &CellRenderer{
		screen: screen,
		title:  title,
		frame:  image.NewRGBA(image.Rect(0, 0, width, height)),
	}, nil
}

func (r *CellRenderer) Name() string { return NameCell }

func (r *CellRenderer) Kind() Kind { return KindCell }

func (r *CellRenderer) PaintRegion(x, y, w, h int, rgba []byte) {
	if r.frame == nil || w <= 0 || h <= 0 || len(rgba) < w*h*4 {
		return
	}
	src := &image.RGBA{Pix: rgba, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	draw.Draw(r.frame, image.Rect(x, y, x+w, y+h), src, image.Point{}, draw.Src)
	r.dirty = true
}

// Present downsamples the accumulated frame into the terminal grid and
// flushes it. Painting nothing since the last present is a cheap no-op.
func (r *CellRenderer) Present() error {
	if r.frame == nil || r.screen == nil {
		return nil
	}
	if !r.dirty {
		return nil
	}
	r.dirty = false

	cols, rows := r.screen.Size()
	pixelRows := rows - 1 // row 0 carries the status line
	if cols < 1 || pixelRows < 1 {
		return nil
	}

	target := image.Rect(0, 0, cols, pixelRows*2)
	if r.scaled == nil || r.scaled.Bounds() != target {
		r.scaled = image.NewRGBA(target)
	}
	xdraw.ApproxBiLinear.Scale(r.scaled, target, r.frame, r.frame.Bounds(), xdraw.Src, nil)

	for cy := 0; cy < pixelRows; cy++ {
		for cx := 0; cx < cols; cx++ {
			upper := r.scaled.RGBAAt(cx, cy*2)
			lower := r.scaled.RGBAAt(cx, cy*2+1)
			style := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(upper.R), int32(upper.G), int32(upper.B))).
				Background(tcell.NewRGBColor(int32(lower.R), int32(lower.G), int32(lower.B)))
			r.screen.SetContent(cx, cy+1, halfBlock, nil, style)
		}
	}

	r.drawStatus(cols)
	r.screen.Show()
	return nil
}

func (r *CellRenderer) drawStatus(cols int) {
	b := r.frame.Bounds()
	status := fmt.Sprintf(" %s — %dx%d [%s]", r.title, b.Dx(), b.Dy(), NameCell)
	status = runewidth.Truncate(status, cols, "…")
	status = runewidth.FillRight(status, cols)
	style := tcell.StyleDefault.Reverse(true)
	x := 0
	for _, ch := range status {
		r.screen.SetContent(x, 0, ch, nil, style)
		x += runewidth.RuneWidth(ch)
	}
}

func (r *CellRenderer) Resize(w, h int) {
	if r.frame == nil || w <= 0 || h <= 0 {
		return
	}
	b := r.frame.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return
	}
	r.frame = image.NewRGBA(image.Rect(0, 0, w, h))
	r.dirty = true
}

// Destroy drops the pixel buffers. The screen itself belongs to the caller
// and stays untouched so it can back a replacement renderer.
func (r *CellRenderer) Destroy() {
	r.frame = nil
	r.scaled = nil
	r.screen = nil
}
