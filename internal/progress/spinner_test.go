// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package progress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSpinner(t *testing.T) {
	s := New("Test CPU")
	require.Equal(t, "Test CPU", s.label)
	require.Equal(t, "starting...", s.status)
}

func TestUpdateMarksStatusNewOnlyOnChange(t *testing.T) {
	s := New("Test CPU")
	s.statusIsNew = false

	s.Update("starting...")
	require.False(t, s.statusIsNew, "identical status should not be marked new")

	s.Update("undervolt: testing -20mV")
	require.True(t, s.statusIsNew)
	require.Equal(t, "undervolt: testing -20mV", s.status)
}

func TestStartAndFinishStopsTicker(t *testing.T) {
	s := New("Test CPU")
	s.Start()
	require.True(t, s.spinning)
	s.Finish()
	require.False(t, s.spinning)
}

func TestFinishWithoutStartIsNoop(t *testing.T) {
	s := New("Test CPU")
	require.NotPanics(t, func() { s.Finish() })
}
