package target

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalTargetRunCommand(t *testing.T) {
	target := NewLocalTarget()
	stdout, _, exitCode, err := target.RunCommand(exec.Command("echo", "hello"), 5)
	require.NoError(t, err)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout, "hello")
}

func TestLocalTargetRunCommandNonZeroExit(t *testing.T) {
	target := NewLocalTarget()
	_, _, exitCode, err := target.RunCommand(exec.Command("false"), 5)
	require.Error(t, err)
	require.Equal(t, 1, exitCode)
}

func TestLocalTargetRunCommandTimeout(t *testing.T) {
	target := NewLocalTarget()
	_, _, _, err := target.RunCommand(exec.Command("sleep", "5"), 1)
	require.Error(t, err)
}
