// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/viewdeck-host/main.go
// Summary: Host simulator CLI serving desktop and shell sessions.
// Usage: Run `viewdeck-host` and point a viewdeck client at its socket.
// Notes: Focuses on wiring flags and lifecycle around the internal runtime.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/viewdeck/viewdeck/internal/runtime/host"
)

func main() {
	socketPath := flag.String("socket", "/tmp/viewdeck-host.sock", "Unix socket path")
	webAddr := flag.String("web", "", "Optional HTTP address serving websocket clients at /ws (e.g. :8422)")
	name := flag.String("name", "viewdeck-host", "Host name presented to clients")
	retention := flag.Int("retention", 128, "Unacked packets kept per session (0 = unlimited)")
	shell := flag.String("shell", "", "Command for shell sessions (default: $SHELL)")
	verboseLogs := flag.Bool("verbose-logs", false, "Enable verbose host logging")
	flag.Parse()

	host.SetVerboseLogging(*verboseLogs)

	h, err := host.New(host.Options{
		Name:           *name,
		SocketPath:     *socketPath,
		WebAddr:        *webAddr,
		RetentionLimit: *retention,
		ShellCommand:   *shell,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create host: %v\n", err)
		os.Exit(1)
	}
	if err := h.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start host: %v\n", err)
		os.Exit(1)
	}
	log.Printf("viewdeck-host: listening on %s", *socketPath)
	if *webAddr != "" {
		log.Printf("viewdeck-host: websocket clients on %s/ws", *webAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("viewdeck-host: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Stop(ctx); err != nil {
		log.Printf("viewdeck-host: shutdown error: %v", err)
	}
}
