package setting

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import "errors"

// Sentinel errors for the Setting Store's failure taxonomy (spec §7):
// tool-missing is fatal at init; tool-I/O failures and not-found are
// per-operation and caught by the Engine's stage boundary.
var (
	// ErrToolMissing means the firmware vendor tool was not found at the
	// configured path. Fatal at Store construction.
	ErrToolMissing = errors.New("firmware tool not found")

	// ErrToolIO means the vendor tool's export or import invocation
	// failed: non-zero exit, stderr content, or a missing/empty dump file.
	ErrToolIO = errors.New("firmware tool I/O failure")

	// ErrSettingNotFound means no "Setup Question" block matched the
	// requested name.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrValueFormat means the setting's block has no Value line within
	// its first 10 lines, or its Value line has no "=" to split on.
	ErrValueFormat = errors.New("malformed value line")
)
