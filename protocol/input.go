// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/input.go
// Summary: Input event records carried in MsgInputBatch payloads.

package protocol

import (
	"bytes"
	"encoding/binary"
)

// InputKind enumerates the input event classes the backend accepts.
type InputKind uint8

const (
	InputPointerMove InputKind = iota
	InputPointerButton
	InputWheel
	InputKey
)

// inputRecordSize is the fixed on-wire size of a single input record.
const inputRecordSize = 24

// InputEvent is a single input record. Unused fields for a given kind are
// zero on the wire.
type InputEvent struct {
	Kind      InputKind
	Pressed   bool
	X         int16
	Y         int16
	Button    uint16
	WheelX    int16
	WheelY    int16
	KeyCode   uint32
	RuneValue rune
	Modifiers uint16
}

// EncodeInputBatch serialises events as a count-prefixed run of fixed-size
// records.
func EncodeInputBatch(events []InputEvent) ([]byte, error) {
	if len(events) > 0xFFFF {
		return nil, errStringTooLong
	}
	buf := bytes.NewBuffer(make([]byte, 0, 2+len(events)*inputRecordSize))
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(events))); err != nil {
		return nil, err
	}
	var rec [inputRecordSize]byte
	for _, ev := range events {
		rec[0] = byte(ev.Kind)
		if ev.Pressed {
			rec[1] = 1
		} else {
			rec[1] = 0
		}
		binary.LittleEndian.PutUint16(rec[2:], uint16(ev.X))
		binary.LittleEndian.PutUint16(rec[4:], uint16(ev.Y))
		binary.LittleEndian.PutUint16(rec[6:], ev.Button)
		binary.LittleEndian.PutUint16(rec[8:], uint16(ev.WheelX))
		binary.LittleEndian.PutUint16(rec[10:], uint16(ev.WheelY))
		binary.LittleEndian.PutUint32(rec[12:], ev.KeyCode)
		binary.LittleEndian.PutUint32(rec[16:], uint32(ev.RuneValue))
		binary.LittleEndian.PutUint16(rec[20:], ev.Modifiers)
		rec[22] = 0
		rec[23] = 0
		buf.Write(rec[:])
	}
	return buf.Bytes(), nil
}

// DecodeInputBatch deserialises a count-prefixed input batch.
func DecodeInputBatch(b []byte) ([]InputEvent, error) {
	if len(b) < 2 {
		return nil, errPayloadShort
	}
	count := int(binary.LittleEndian.Uint16(b[:2]))
	b = b[2:]
	if len(b) < count*inputRecordSize {
		return nil, errPayloadShort
	}
	events := make([]InputEvent, count)
	for i := 0; i < count; i++ {
		rec := b[i*inputRecordSize : (i+1)*inputRecordSize]
		events[i] = InputEvent{
			Kind:      InputKind(rec[0]),
			Pressed:   rec[1] != 0,
			X:         int16(binary.LittleEndian.Uint16(rec[2:])),
			Y:         int16(binary.LittleEndian.Uint16(rec[4:])),
			Button:    binary.LittleEndian.Uint16(rec[6:]),
			WheelX:    int16(binary.LittleEndian.Uint16(rec[8:])),
			WheelY:    int16(binary.LittleEndian.Uint16(rec[10:])),
			KeyCode:   binary.LittleEndian.Uint32(rec[12:]),
			RuneValue: rune(binary.LittleEndian.Uint32(rec[16:])),
			Modifiers: binary.LittleEndian.Uint16(rec[20:]),
		}
	}
	return events, nil
}
