// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/host/desktop.go
// Summary: Synthetic desktop source emitting dirty-region frame updates.

package host

import (
	"sync"
	"time"

	"github.com/viewdeck/viewdeck/protocol"
)

const defaultFrameInterval = 33 * time.Millisecond

// DesktopSource drives a desktop session with generated content: a gradient
// background painted once, then a small moving block per tick. Real desktop
// capture plugs in at the same EnqueueFrame seam.
type DesktopSource struct {
	session *Session

	mu      sync.Mutex
	width   int
	height  int
	step    int
	full    bool
	ticker  *time.Ticker
	stopCh  chan struct{}
	stopped bool
}

func NewDesktopSource(session *Session) *DesktopSource {
	w, h := session.Size()
	return &DesktopSource{
		session: session,
		width:   int(w),
		height:  int(h),
		stopCh:  make(chan struct{}),
	}
}

func (d *DesktopSource) Start() {
	d.ticker = time.NewTicker(defaultFrameInterval)
	go d.run()
}

func (d *DesktopSource) run() {
	for {
		select {
		case <-d.stopCh:
			return
		case <-d.ticker.C:
			if err := d.emit(); err != nil {
				return
			}
		}
	}
}

func (d *DesktopSource) emit() error {
	d.mu.Lock()
	width, height := d.width, d.height
	step := d.step
	needFull := !d.full
	d.full = true
	d.step++
	d.mu.Unlock()

	if width <= 0 || height <= 0 {
		return nil
	}

	var payload []byte
	if needFull {
		payload = protocol.AppendRegion(payload, 0, 0, uint16(width), uint16(height),
			gradient(width, height))
	}

	// Moving 32x32 block sweeping left to right, wrapping per row.
	const block = 32
	bw, bh := block, block
	if bw > width {
		bw = width
	}
	if bh > height {
		bh = height
	}
	cols := (width + block - 1) / block
	rows := (height + block - 1) / block
	if cols > 0 && rows > 0 {
		pos := step % (cols * rows)
		x := (pos % cols) * block
		y := (pos / cols) * block
		if x+bw > width {
			x = width - bw
		}
		if y+bh > height {
			y = height - bh
		}
		payload = protocol.AppendRegion(payload, uint16(x), uint16(y), uint16(bw), uint16(bh),
			solidBlock(bw, bh, byte(step)))
	}

	if len(payload) == 0 {
		return nil
	}
	return d.session.EnqueueFrame(payload)
}

func (d *DesktopSource) Resize(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if width == d.width && height == d.height {
		return
	}
	d.width = width
	d.height = height
	d.full = false
}

func (d *DesktopSource) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.ticker != nil {
		d.ticker.Stop()
	}
	close(d.stopCh)
}

func gradient(width, height int) []byte {
	out := make([]byte, width*height*4)
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[i] = byte(x * 255 / width)
			out[i+1] = byte(y * 255 / height)
			out[i+2] = 0x30
			out[i+3] = 0xFF
			i += 4
		}
	}
	return out
}

func solidBlock(width, height int, shade byte) []byte {
	out := make([]byte, width*height*4)
	for i := 0; i < len(out); i += 4 {
		out[i] = shade
		out[i+1] = shade
		out[i+2] = 0xFF - shade
		out[i+3] = 0xFF
	}
	return out
}
