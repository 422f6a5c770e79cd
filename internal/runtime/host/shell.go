// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/host/shell.go
// Summary: Pty-backed shell sessions streaming raw terminal bytes.

package host

import (
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

type shellProc struct {
	cmd *exec.Cmd
	pty *os.File

	mu      sync.Mutex
	stopped bool
}

// startShell launches the shell under a pty and streams its output into the
// session packet queue. Geometry comes from the session's current size,
// interpreted as terminal columns and rows.
func (s *Session) startShell(command string) error {
	if command == "" {
		command = os.Getenv("SHELL")
	}
	if command == "" {
		command = "/bin/sh"
	}

	cmd := exec.Command(command)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	cols, rows := s.Size()
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return err
	}
	proc := &shellProc{cmd: cmd, pty: ptmx}

	s.mu.Lock()
	s.shell = proc
	s.mu.Unlock()

	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				if err := s.EnqueueShellData(data); err != nil {
					break
				}
			}
			if err != nil {
				break
			}
		}
		proc.stop()
	}()
	return nil
}

// writeShellInput forwards client keystrokes to the pty. Non-shell sessions
// ignore the data.
func (s *Session) writeShellInput(data []byte) {
	s.mu.Lock()
	proc := s.shell
	s.mu.Unlock()
	if proc == nil || len(data) == 0 {
		return
	}
	if _, err := proc.pty.Write(data); err != nil {
		debugLog.Printf("host: shell write failed: %v", err)
	}
}

func (s *Session) resizeShell(cols, rows uint16) {
	s.mu.Lock()
	proc := s.shell
	s.mu.Unlock()
	if proc == nil {
		return
	}
	if err := pty.Setsize(proc.pty, &pty.Winsize{Cols: cols, Rows: rows}); err != nil {
		debugLog.Printf("host: shell resize failed: %v", err)
	}
}

func (p *shellProc) stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.pty.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
}
