// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package progress renders a single-line terminal spinner for the Tuning
Engine's current stage and latest stress-test sample.
*/
package progress

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

var spinChars = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Spinner draws one redrawn status line for the run currently in
// progress — the Tuning Engine only ever drives one stage at a time,
// unlike the teacher's multi-target spinner.
type Spinner struct {
	label       string
	status      string
	statusIsNew bool
	spinIndex   int

	ticker   *time.Ticker
	done     chan bool
	spinning bool
}

// New creates a Spinner labeled for the run (e.g. the CPU model).
func New(label string) *Spinner {
	return &Spinner{label: label, status: "starting...", statusIsNew: true, done: make(chan bool)}
}

// Start begins redrawing the line every 250ms until Finish is called.
func (s *Spinner) Start() {
	s.draw(true)
	s.ticker = time.NewTicker(250 * time.Millisecond)
	s.spinning = true
	go s.onTick()
}

// Finish stops redrawing and leaves the final status on screen.
func (s *Spinner) Finish() {
	if !s.spinning {
		return
	}
	s.ticker.Stop()
	s.done <- true
	s.draw(false)
	s.spinning = false
}

// Update changes the displayed status, e.g. "undervolt: testing -40mV".
func (s *Spinner) Update(status string) {
	if status != s.status {
		s.status = status
		s.statusIsNew = true
	}
}

func (s *Spinner) onTick() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			s.draw(true)
		}
	}
}

func (s *Spinner) draw(goUp bool) {
	isTerm := term.IsTerminal(int(os.Stderr.Fd()))
	if !isTerm && !s.statusIsNew {
		return
	}
	fmt.Fprintf(os.Stderr, "%-24s  %s  %-60s\n", s.label, spinChars[s.spinIndex], s.status)
	s.statusIsNew = false
	s.spinIndex = (s.spinIndex + 1) % len(spinChars)
	if goUp && isTerm {
		fmt.Fprint(os.Stderr, "\x1b[1A")
	}
}
