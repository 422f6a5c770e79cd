// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/viewdeck/input.go
// Summary: Translates tcell events into protocol input batches.

package main

import (
	"github.com/gdamore/tcell/v2"

	"github.com/viewdeck/viewdeck/protocol"
)

// pointerButtons are the tcell button bits forwarded as discrete presses.
var pointerButtons = []tcell.ButtonMask{
	tcell.Button1, tcell.Button2, tcell.Button3,
}

// inputSender is the slice of the session runtime the forwarder drives.
type inputSender interface {
	SendInput(events []protocol.InputEvent, immediate bool)
}

type inputForwarder struct {
	sender        inputSender
	coalesceMoves bool
	lastButtons   tcell.ButtonMask
	lastX         int
	lastY         int
}

func newInputForwarder(sender inputSender, coalesceMoves bool) *inputForwarder {
	return &inputForwarder{sender: sender, coalesceMoves: coalesceMoves, lastX: -1, lastY: -1}
}

// handleKey forwards a key press immediately; keys must never wait behind
// coalesced pointer traffic.
func (f *inputForwarder) handleKey(ev *tcell.EventKey) {
	f.sender.SendInput([]protocol.InputEvent{{
		Kind:      protocol.InputKey,
		Pressed:   true,
		KeyCode:   uint32(ev.Key()),
		RuneValue: ev.Rune(),
		Modifiers: uint16(ev.Modifiers()),
	}}, true)
}

func (f *inputForwarder) handleMouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	buttons := ev.Buttons()

	if x != f.lastX || y != f.lastY {
		f.lastX, f.lastY = x, y
		f.sender.SendInput([]protocol.InputEvent{{
			Kind: protocol.InputPointerMove,
			X:    int16(x),
			Y:    int16(y),
		}}, !f.coalesceMoves)
	}

	var immediate []protocol.InputEvent
	for i, mask := range pointerButtons {
		was := f.lastButtons&mask != 0
		is := buttons&mask != 0
		if was == is {
			continue
		}
		immediate = append(immediate, protocol.InputEvent{
			Kind:    protocol.InputPointerButton,
			Pressed: is,
			Button:  uint16(i + 1),
			X:       int16(x),
			Y:       int16(y),
		})
	}

	wheelX, wheelY := int16(0), int16(0)
	if buttons&tcell.WheelUp != 0 {
		wheelY = -1
	}
	if buttons&tcell.WheelDown != 0 {
		wheelY = 1
	}
	if buttons&tcell.WheelLeft != 0 {
		wheelX = -1
	}
	if buttons&tcell.WheelRight != 0 {
		wheelX = 1
	}
	if wheelX != 0 || wheelY != 0 {
		immediate = append(immediate, protocol.InputEvent{
			Kind:   protocol.InputWheel,
			X:      int16(x),
			Y:      int16(y),
			WheelX: wheelX,
			WheelY: wheelY,
		})
	}

	f.lastButtons = buttons &^ (tcell.WheelUp | tcell.WheelDown | tcell.WheelLeft | tcell.WheelRight)
	if len(immediate) > 0 {
		f.sender.SendInput(immediate, true)
	}
}
