// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: render/cell_test.go
// Summary: Cell backend behaviour against a tcell simulation screen.

package render

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func newSimScreen(t *testing.T, cols, rows int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("sim screen init failed: %v", err)
	}
	screen.SetSize(cols, rows)
	t.Cleanup(screen.Fini)
	return screen
}

func TestCellRequiresScreen(t *testing.T) {
	if _, err := NewCell(nil, 10, 10, "x"); err == nil {
		t.Fatal("expected construction error without a screen")
	}
}

func TestCellPresentFillsGrid(t *testing.T) {
	screen := newSimScreen(t, 20, 6)
	r, err := NewCell(screen, 40, 20, "lab-vm")
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	defer r.Destroy()

	r.PaintRegion(0, 0, 40, 20, solidRGBA(40, 20, 0xFF, 0xFF, 0xFF, 0xFF))
	if err := r.Present(); err != nil {
		t.Fatalf("present failed: %v", err)
	}

	cells, cols, _ := screen.GetContents()
	// Row 1 is the first pixel row (row 0 is the status line).
	cell := cells[1*cols+0]
	if len(cell.Runes) == 0 || cell.Runes[0] != halfBlock {
		t.Fatalf("expected half-block glyph, got %v", cell.Runes)
	}
	fg, _, _ := cell.Style.Decompose()
	cr, cg, cb := fg.RGB()
	if cr != 0xFF || cg != 0xFF || cb != 0xFF {
		t.Fatalf("unexpected foreground %v,%v,%v", cr, cg, cb)
	}
}

func TestCellPresentWithoutPaintIsNoop(t *testing.T) {
	screen := newSimScreen(t, 20, 6)
	r, err := NewCell(screen, 40, 20, "idle")
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	defer r.Destroy()

	if err := r.Present(); err != nil {
		t.Fatalf("present failed: %v", err)
	}
	cells, cols, _ := screen.GetContents()
	cell := cells[1*cols+0]
	if len(cell.Runes) > 0 && cell.Runes[0] == halfBlock {
		t.Fatal("nothing was painted; the grid must stay untouched")
	}
}

func TestCellResizeDropsStaleFrame(t *testing.T) {
	screen := newSimScreen(t, 20, 6)
	r, err := NewCell(screen, 40, 20, "resize")
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	defer r.Destroy()

	r.PaintRegion(0, 0, 40, 20, solidRGBA(40, 20, 0x80, 0x80, 0x80, 0xFF))
	r.Resize(16, 8)
	r.PaintRegion(0, 0, 16, 8, solidRGBA(16, 8, 0x40, 0x40, 0x40, 0xFF))
	if err := r.Present(); err != nil {
		t.Fatalf("present failed: %v", err)
	}
}

func TestCellDestroyIsTerminal(t *testing.T) {
	screen := newSimScreen(t, 20, 6)
	r, err := NewCell(screen, 40, 20, "bye")
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	r.Destroy()
	r.PaintRegion(0, 0, 1, 1, solidRGBA(1, 1, 1, 1, 1, 1))
	if err := r.Present(); err != nil {
		t.Fatalf("present on destroyed renderer: %v", err)
	}
}
