// Copyright © 2025 Viewdeck contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/viewdeck/prompt.go
// Summary: Trust prompts for terminal and full-screen contexts.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/viewdeck/viewdeck/protocol"
	"github.com/viewdeck/viewdeck/trust"
)

// stdinPrompter asks on the controlling terminal, for shell sessions where no
// tcell screen is active.
type stdinPrompter struct{}

func (stdinPrompter) ConfirmIdentity(info protocol.HostKeyInfo, fingerprint string, result trust.Result) bool {
	if result.Status == trust.StatusMismatch && result.Stored != nil {
		fmt.Fprintf(os.Stderr, "WARNING: host identity changed!\n")
		fmt.Fprintf(os.Stderr, "  stored:    %s\n", result.Stored.Fingerprint)
		fmt.Fprintf(os.Stderr, "  presented: %s\n", fingerprint)
	} else {
		fmt.Fprintf(os.Stderr, "Unknown host identity (%s):\n  %s\n", info.Algorithm, fingerprint)
	}
	fmt.Fprintf(os.Stderr, "Accept and continue? [y/N] ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// screenPrompter renders the question on the tcell screen and waits for a
// single y/n key.
type screenPrompter struct {
	screen tcell.Screen
}

func (p *screenPrompter) ConfirmIdentity(info protocol.HostKeyInfo, fingerprint string, result trust.Result) bool {
	lines := []string{
		"Host identity verification",
		"",
	}
	if result.Status == trust.StatusMismatch && result.Stored != nil {
		lines = append(lines,
			"WARNING: the host identity CHANGED.",
			"stored:    "+result.Stored.Fingerprint,
			"presented: "+fingerprint,
		)
	} else {
		lines = append(lines,
			"This host is not known yet ("+info.Algorithm+").",
			fingerprint,
		)
	}
	lines = append(lines, "", "Press y to accept, n to abort.")

	p.screen.Clear()
	style := tcell.StyleDefault
	for row, line := range lines {
		col := 0
		for _, r := range line {
			p.screen.SetContent(col, row, r, nil, style)
			col += runewidth.RuneWidth(r)
		}
	}
	p.screen.Show()

	for {
		ev := p.screen.PollEvent()
		key, ok := ev.(*tcell.EventKey)
		if !ok {
			continue
		}
		switch key.Rune() {
		case 'y', 'Y':
			return true
		case 'n', 'N':
			return false
		}
		if key.Key() == tcell.KeyEscape || key.Key() == tcell.KeyCtrlC {
			return false
		}
	}
}
