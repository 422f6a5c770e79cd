// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/viewdeck/shell.go
// Summary: Raw-mode terminal relay for shell sessions.

package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/viewdeck/viewdeck/config"
	"github.com/viewdeck/viewdeck/internal/runtime/session"
	"github.com/viewdeck/viewdeck/store"
)

func runShell(opts session.Options, recordName string) error {
	fd := int(os.Stdin.Fd())
	cols, rows := 80, 24
	if term.IsTerminal(fd) {
		if w, h, err := term.GetSize(fd); err == nil {
			cols, rows = w, h
		}
	}
	opts.Width = uint16(cols)
	opts.Height = uint16(rows)
	opts.Prompter = stdinPrompter{}

	var recorder *shellRecorder
	var recordings *store.Store
	if recordName != "" {
		dbPath, err := config.BlobDBPath()
		if err != nil {
			return fmt.Errorf("resolve blob db path: %w", err)
		}
		recordings, err = store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open recording store: %w", err)
		}
		defer recordings.Close()
		recorder = newShellRecorder()
	}

	opts.OnShellData = func(data []byte) {
		_, _ = os.Stdout.Write(data)
		if recorder != nil {
			recorder.Append(data)
		}
	}

	r, err := session.Connect(opts)
	if err != nil {
		return err
	}
	defer r.Close()

	var restore func()
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		restore = func() { _ = term.Restore(fd, state) }
		defer func() {
			if restore != nil {
				restore()
			}
		}()
	}

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				if err := r.SendShellData(buf[:n]); err != nil {
					return
				}
			}
			if err != nil {
				r.Close()
				return
			}
		}
	}()

	<-r.Done()

	if recorder != nil {
		// Leave raw mode before any save diagnostics hit stderr.
		if restore != nil {
			restore()
			restore = nil
		}
		if err := recorder.Save(recordings, recordName); err != nil {
			fmt.Fprintf(os.Stderr, "save recording %q: %v\n", recordName, err)
		}
	}
	return r.Err()
}
