package engine

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import "errors"

// Sentinel errors for the Tuning Engine's error taxonomy (spec §7):
// callers distinguish "already running" from genuine tuning failures
// with errors.Is.
var (
	// ErrAlreadyRunning is returned by ExecuteTuning when a tuning run
	// is already in progress — the Engine is non-reentrant.
	ErrAlreadyRunning = errors.New("engine: a tuning run is already in progress")

	// ErrBaselineUnstable is returned when the initial baseline stress
	// test does not complete: the system was unstable before any
	// change was made, so the Engine refuses to proceed.
	ErrBaselineUnstable = errors.New("engine: baseline stress test did not complete; system is already unstable")
)
