package checkpoint

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cputuner/internal/profile"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	p := profile.New("test")
	p.PowerLimit1 = 70

	filename, err := s.Save(p, "power_limits", "")
	require.NoError(t, err)
	require.Regexp(t, `^checkpoint_power_limits_\d{8}_\d{6}\.json$`, filename)

	loaded, stage, detail, err := s.Load(filename)
	require.NoError(t, err)
	require.Equal(t, "power_limits", stage)
	require.Equal(t, "", detail)
	require.Equal(t, int64(70), loaded.PowerLimit1)
}

func TestSaveRecordsDetail(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	filename, err := s.Save(profile.New("test"), "undervolt_start", "trying -40mV")
	require.NoError(t, err)
	_, stage, detail, err := s.Load(filename)
	require.NoError(t, err)
	require.Equal(t, "undervolt_start", stage)
	require.Equal(t, "trying -40mV", detail)
}

func TestLatestPicksNewestByTimestamp(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)

	_, err = s.Save(profile.New("test"), "baseline", "")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	newest, err := s.Save(profile.New("test"), "power_limits", "")
	require.NoError(t, err)

	latest, err := s.Latest()
	require.NoError(t, err)
	require.Equal(t, newest, latest)
}

func TestLatestErrorsWhenEmpty(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Latest()
	require.Error(t, err)
}

func TestNewStoreRejectsRegularFileAsDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints")
	require.NoError(t, os.WriteFile(path, []byte("not a directory"), 0644))

	_, err := NewStore(path)
	require.Error(t, err)
}

func TestNewStoreReusesExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := NewStore(dir)
	require.NoError(t, err)

	// a second Store over the same already-existing directory should
	// not error or attempt to recreate it.
	_, err = NewStore(dir)
	require.NoError(t, err)
}
