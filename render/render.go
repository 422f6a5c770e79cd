// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: render/render.go
// Summary: Renderer contract implemented by the interchangeable paint backends.

package render

import (
	"errors"

	"github.com/gdamore/tcell/v2"
)

// Kind describes how a backend gets decoded pixels in front of the operator.
type Kind string

const (
	// KindDirect paints straight into an in-memory RGBA surface.
	KindDirect Kind = "direct"
	// KindCell rasterises the frame into terminal cells.
	KindCell Kind = "cell"
)

// Backend name constants. Auto resolves to the first backend that can be
// constructed, in priority order.
const (
	Auto       = "auto"
	NameDirect = "direct"
	NameCell   = "cell"
)

var (
	ErrBackendUnknown     = errors.New("render: unknown backend")
	ErrBackendUnavailable = errors.New("render: backend unavailable")
)

// Renderer is the uniform surface the render loop drives. PaintRegion and
// Resize never fail: a malformed rectangle is dropped, matching the
// fail-silent policy of the frame hot path. Present flushes accumulated
// paints to the visible output in one operation.
//
// Exactly one renderer is live per session; Destroy must be called before a
// replacement is constructed for the same output.
type Renderer interface {
	Name() string
	Kind() Kind
	PaintRegion(x, y, w, h int, rgba []byte)
	Present() error
	Resize(w, h int)
	Destroy()
}

// Options carries construction parameters common to all backends.
type Options struct {
	Width  int
	Height int
	Title  string
	// Screen is required by the cell backend and ignored by the others.
	Screen tcell.Screen
}
