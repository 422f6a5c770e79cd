// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/viewdeck/main.go
// Summary: Viewdeck client CLI: connect, verify trust, render and forward input.
// Usage: Run `viewdeck -socket /tmp/viewdeck-host.sock` against a running host.

package main

import (
	"crypto/sha256"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/viewdeck/viewdeck/client"
	"github.com/viewdeck/viewdeck/config"
	"github.com/viewdeck/viewdeck/internal/runtime/session"
	"github.com/viewdeck/viewdeck/internal/wsconn"
	"github.com/viewdeck/viewdeck/protocol"
	"github.com/viewdeck/viewdeck/trust"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	socketPath := flag.String("socket", "/tmp/viewdeck-host.sock", "Unix socket path of the host")
	wsURL := flag.String("url", "", "Websocket URL of the host (overrides -socket)")
	connectionName := flag.String("connection", "", "Saved connection name")
	kindFlag := flag.String("kind", "desktop", "Session kind: desktop or shell")
	rendererFlag := flag.String("renderer", "", "Renderer backend: auto, cell or direct")
	policyFlag := flag.String("trust-policy", "", "Trust policy: always-trust, tofu or ask")
	title := flag.String("title", "viewdeck", "Session title")
	recordName := flag.String("record", "", "Save the shell session transcript under this name")
	verboseLogs := flag.Bool("verbose-logs", false, "Enable verbose client logging")
	flag.Parse()

	client.SetVerboseLogging(*verboseLogs)

	system := config.System()
	connCfg := config.Connection(*connectionName)

	rendererPref := firstNonEmpty(*rendererFlag,
		connCfg.GetString("display", "renderer", ""),
		system.GetString("display", "renderer", "auto"))
	policy := trust.EffectivePolicy(
		trust.Policy(firstNonEmpty(*policyFlag, connCfg.GetString("security", "trust_policy", ""))),
		trust.Policy(system.GetString("security", "trust_policy", "tofu")))
	tick := time.Duration(system.GetInt("display", "tick_ms", 16)) * time.Millisecond
	coalesceMoves := connCfg.GetBool("input", "coalesce_pointer_moves",
		system.GetBool("input", "coalesce_pointer_moves", true))

	trustPath, err := config.TrustDBPath()
	if err != nil {
		return fmt.Errorf("resolve trust db path: %w", err)
	}
	trustStore, err := trust.Open(trustPath)
	if err != nil {
		return fmt.Errorf("open trust store: %w", err)
	}
	defer trustStore.Close()

	var conn net.Conn
	endpoint := *socketPath
	if *wsURL != "" {
		endpoint = *wsURL
		conn, err = wsconn.Dial(*wsURL)
	} else {
		conn, err = net.Dial("unix", *socketPath)
	}
	if err != nil {
		return fmt.Errorf("connect to %s: %w", endpoint, err)
	}

	var connID [16]byte
	if *connectionName != "" {
		sum := sha256.Sum256([]byte(*connectionName))
		copy(connID[:], sum[:16])
	}

	opts := session.Options{
		Conn:         conn,
		ConnectionID: connID,
		Host:         endpoint,
		ClientName:   "viewdeck",
		Policy:       policy,
		TrustStore:   trustStore,
		Title:        *title,
		RendererPref: rendererPref,
		TickInterval: tick,
	}

	switch *kindFlag {
	case "shell":
		opts.Kind = protocol.SessionShell
		return runShell(opts, *recordName)
	case "desktop":
		if *recordName != "" {
			return fmt.Errorf("-record applies to shell sessions only")
		}
		opts.Kind = protocol.SessionDesktop
		return runDesktop(opts, coalesceMoves)
	default:
		return fmt.Errorf("unknown session kind %q", *kindFlag)
	}
}

func runDesktop(opts session.Options, coalesceMoves bool) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()
	screen.EnableMouse()

	cols, rows := screen.Size()
	opts.Screen = screen
	opts.Width = uint16(cols)
	opts.Height = cellPixelHeight(rows)
	opts.Prompter = &screenPrompter{screen: screen}

	r, err := session.Connect(opts)
	if err != nil {
		return err
	}
	defer r.Close()

	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	forwarder := newInputForwarder(r, coalesceMoves)
	for {
		select {
		case <-r.Done():
			return r.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyCtrlQ {
					return nil
				}
				forwarder.handleKey(ev)
			case *tcell.EventMouse:
				forwarder.handleMouse(ev)
			case *tcell.EventResize:
				cols, rows := ev.Size()
				if err := r.RequestResize(uint16(cols), cellPixelHeight(rows)); err != nil {
					return err
				}
			}
		}
	}
}

// cellPixelHeight maps terminal rows to frame pixels: the cell backend keeps
// one status row and packs two pixels per remaining cell.
func cellPixelHeight(rows int) uint16 {
	if rows <= 1 {
		return 2
	}
	return uint16((rows - 1) * 2)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
