package profile

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cputuner/internal/setting"
)

func TestNewBiosParameterDefaultsBestValueToCurrent(t *testing.T) {
	bp := NewBiosParameter("Long Duration Power Limit", 65, 65, setting.CategoryCPUPower)
	require.Equal(t, int64(65), bp.BestValue)
	require.False(t, bp.Modified)
}

func TestUpdateParameterFlipsModified(t *testing.T) {
	p := New("test")
	p.RegisterBiosParameter(NewBiosParameter("PL1", 65, 65, setting.CategoryCPUPower))
	require.NoError(t, p.UpdateParameter("PL1", 70))
	require.True(t, p.BiosParameters["PL1"].Modified)
	require.Equal(t, int64(70), p.BiosParameters["PL1"].CurrentValue)
}

func TestUpdateParameterUnregisteredErrors(t *testing.T) {
	p := New("test")
	require.Error(t, p.UpdateParameter("nope", 1))
}

func TestAddTestResultUpdatesBestValueOnImprovement(t *testing.T) {
	p := New("test")
	p.RegisterBiosParameter(NewBiosParameter("Offset", 0, 0, setting.CategoryCPUVoltage))
	p.BaselineResults = &StressTestResult{OpsPerSecond: 1000, Completed: true}
	p.BestResults = &StressTestResult{OpsPerSecond: 1000, Completed: true}

	p.AddTestResult("Offset", -20, StressTestResult{OpsPerSecond: 1005, Completed: true})
	require.Equal(t, int64(0), p.BiosParameters["Offset"].BestValue) // 1005/1000 < 1.01 margin, not promoted

	p.AddTestResult("Offset", -40, StressTestResult{OpsPerSecond: 1015, Completed: true})
	require.Equal(t, int64(-40), p.BiosParameters["Offset"].BestValue)
	require.Equal(t, float64(1015), p.BestResults.OpsPerSecond)

	require.Len(t, p.TestHistory, 2)
	require.InDelta(t, 1.5, p.TestHistory[1].PerfDeltaPercent, 0.01)
}

func TestAddTestResultIncompleteNeverPromotes(t *testing.T) {
	p := New("test")
	p.RegisterBiosParameter(NewBiosParameter("Offset", 0, 0, setting.CategoryCPUVoltage))
	p.BestResults = &StressTestResult{OpsPerSecond: 1000, Completed: true}

	p.AddTestResult("Offset", -100, StressTestResult{OpsPerSecond: 2000, Completed: false})
	require.Equal(t, int64(0), p.BiosParameters["Offset"].BestValue)
	require.Equal(t, float64(1000), p.BestResults.OpsPerSecond)
}

func TestGetModifiedParametersSortedByName(t *testing.T) {
	p := New("test")
	p.RegisterBiosParameter(NewBiosParameter("Zeta", 1, 1, setting.CategoryOther))
	p.RegisterBiosParameter(NewBiosParameter("Alpha", 1, 1, setting.CategoryOther))
	require.NoError(t, p.UpdateParameter("Zeta", 2))
	require.NoError(t, p.UpdateParameter("Alpha", 2))

	mods := p.GetModifiedParameters()
	require.Len(t, mods, 2)
	require.Equal(t, "Alpha", mods[0].Name)
	require.Equal(t, "Zeta", mods[1].Name)
}

func TestCloneIsDetached(t *testing.T) {
	p := New("test")
	p.RegisterBiosParameter(NewBiosParameter("PL1", 65, 65, setting.CategoryCPUPower))

	clone := p.Clone()
	clone.BiosParameters["PL1"].CurrentValue = 999
	require.Equal(t, int64(65), p.BiosParameters["PL1"].CurrentValue)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	p := New("roundtrip")
	p.PowerLimit1 = 70
	p.RegisterBiosParameter(NewBiosParameter("PL1", 70, 65, setting.CategoryCPUPower))
	require.NoError(t, p.UpdateParameter("PL1", 70))

	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, p.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, int64(70), loaded.PowerLimit1)
	require.True(t, loaded.BiosParameters["PL1"].Modified)
}

func TestGenerateReportIncludesModifiedParameters(t *testing.T) {
	p := New("test")
	p.BaselineResults = &StressTestResult{OpsPerSecond: 1000, AvgTemperature: 60}
	p.BestResults = &StressTestResult{OpsPerSecond: 1050, AvgTemperature: 62}
	p.RegisterBiosParameter(NewBiosParameter("PL1", 65, 65, setting.CategoryCPUPower))
	require.NoError(t, p.UpdateParameter("PL1", 70))

	report := p.GenerateReport()
	require.Contains(t, report, "Modified parameters (1)")
	require.Contains(t, report, "PL1")
	require.Contains(t, report, "Performance improvement")
}
