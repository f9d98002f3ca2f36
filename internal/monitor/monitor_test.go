package monitor

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeTarget scripts RunCommand by matching on substrings of the shell
// command, mirroring internal/setting's fakeTarget pattern so sensor
// priority tiers can be exercised without real hardware.
type fakeTarget struct {
	sensorsJSON   string
	hwmonTemps    string
	hwmonPower    string
	thermalZone   string
	cpuFreqLines  string
	cpu0Freqs     string
	procStatLines string
}

func (f *fakeTarget) RunCommand(cmd *exec.Cmd, timeoutSeconds int) (string, string, int, error) {
	script := cmd.Args[len(cmd.Args)-1]
	switch {
	case strings.Contains(script, "sensors -j"):
		if f.sensorsJSON == "" {
			return "", "sensors: command not found", 127, nil
		}
		return f.sensorsJSON, "", 0, nil
	case strings.Contains(script, "power*_input"):
		return f.hwmonPower, "", 0, nil
	case strings.Contains(script, "temp*_input"):
		return f.hwmonTemps, "", 0, nil
	case strings.Contains(script, "thermal_zone0"):
		if f.thermalZone == "" {
			return "", "no such file", 1, nil
		}
		return f.thermalZone, "", 0, nil
	case strings.Contains(script, "cpufreq/scaling_cur_freq; do"):
		return f.cpuFreqLines, "", 0, nil
	case strings.Contains(script, "scaling_max_freq"):
		if f.cpu0Freqs == "" {
			return "", "no such file", 1, nil
		}
		return f.cpu0Freqs, "", 0, nil
	case strings.Contains(script, "/proc/stat"):
		return f.procStatLines, "", 0, nil
	}
	return "", "unhandled: " + script, 1, nil
}

func TestSensorBusTemperaturePrefersPackage(t *testing.T) {
	m := New(&fakeTarget{sensorsJSON: `{
		"coretemp-isa-0000": {
			"Core 0": {"temp2_input": 40.0},
			"Package id 0": {"temp1_input": 55.0}
		}
	}`}, "Intel(R) Core(TM) i7-9700K", 8)

	v, ok := m.sensorBusTemperature()
	require.True(t, ok)
	require.Equal(t, 55.0, v)
}

func TestSensorBusTemperatureFallsBackToAnyCPU(t *testing.T) {
	m := New(&fakeTarget{sensorsJSON: `{
		"k10temp-pci-00c3": {
			"Tctl": {"temp1_input": 48.5}
		}
	}`}, "AMD Ryzen 5 3600", 12)
	v, ok := m.sensorBusTemperature()
	require.True(t, ok)
	require.Equal(t, 48.5, v)
}

func TestHwmonTemperatureFiltersToKnownChips(t *testing.T) {
	ft := &fakeTarget{
		hwmonTemps: "nouveau|edge|70000\ncoretemp|Package id 0|62500\ncoretemp|Core 0|58000\n",
	}
	m := New(ft, "Intel(R) Core(TM) i5-10400", 6)
	v, ok := m.hwmonTemperature()
	require.True(t, ok)
	require.Equal(t, 62.5, v)
}

func TestHwmonTemperatureFirstEntryWhenNoPackageLabel(t *testing.T) {
	ft := &fakeTarget{
		hwmonTemps: "coretemp|Core 0|50000\ncoretemp|Core 1|52000\n",
	}
	m := New(ft, "Intel(R) Core(TM) i5-10400", 6)
	v, ok := m.hwmonTemperature()
	require.True(t, ok)
	require.Equal(t, 50.0, v)
}

func TestAcpiTemperatureConvertsTenthsKelvin(t *testing.T) {
	ft := &fakeTarget{thermalZone: "3232\n"}
	m := New(ft, "generic", 4)
	v, ok := m.acpiTemperature()
	require.True(t, ok)
	require.InDelta(t, 50.05, v, 0.001)
}

func TestReadCPUDataFallsThroughToEstimate(t *testing.T) {
	ft := &fakeTarget{
		procStatLines: "cpu 100 0 100 800 0 0 0 0 0 0\ncpu 150 0 150 850 0 0 0 0 0 0\n",
	}
	m := New(ft, "Intel(R) Core(TM) i5-10400", 6)
	temp, power, load := m.ReadCPUData()
	require.Greater(t, load, 0.0)
	require.GreaterOrEqual(t, temp, estimateBaseTempC)
	require.Greater(t, power, 0.0)
	require.Equal(t, temp, m.MaxTempSession())
	require.Equal(t, power, m.MaxPowerSession())
}

func TestSensorBusPowerPrefersPackageLabel(t *testing.T) {
	ft := &fakeTarget{
		hwmonPower: "it8688|CPU|8000000\nit8688|VCore|1000000\n",
	}
	m := New(ft, "generic", 4)
	v, ok := m.sensorBusPower()
	require.True(t, ok)
	require.Equal(t, 8.0, v)
}

func TestTdpForModelParsesBrandDigits(t *testing.T) {
	require.Equal(t, 65.0, tdpForModel("Intel(R) Core(TM) i5-10400 CPU @ 2.90GHz (65W)"))
}

func TestTdpForModelFallsBackToFamilyTable(t *testing.T) {
	require.Equal(t, 125.0, tdpForModel("AMD Ryzen 9 5950X 16-Core Processor"))
	require.Equal(t, 95.0, tdpForModel("Intel(R) Core(TM) i7-9700K"))
	require.Equal(t, 65.0, tdpForModel("Unknown CPU Model"))
}

func TestCPUFrequenciesPerCore(t *testing.T) {
	ft := &fakeTarget{cpuFreqLines: "cpu0:2400000\ncpu1:2600000\n"}
	m := New(ft, "generic", 2)
	freqs := m.CPUFrequencies()
	require.Equal(t, 2400.0, freqs["cpu0"])
	require.Equal(t, 2600.0, freqs["cpu1"])
}

func TestCPUFrequenciesFallsBackToAverage(t *testing.T) {
	ft := &fakeTarget{cpu0Freqs: "2000000\n4000000\n"}
	m := New(ft, "generic", 2)
	freqs := m.CPUFrequencies()
	require.Equal(t, 2000.0, freqs["average"])
}

func TestCollectSystemInfo(t *testing.T) {
	ft := &fakeTarget{
		sensorsJSON:   `{"coretemp-isa-0000": {"Package id 0": {"temp1_input": 44.0}}}`,
		hwmonPower:    "",
		cpuFreqLines:  "cpu0:3000000\n",
		procStatLines: "cpu 100 0 100 800 0 0 0 0 0 0\ncpu 120 0 110 870 0 0 0 0 0 0\n",
	}
	m := New(ft, "Intel(R) Core(TM) i9-9900K", 16)
	info := m.CollectSystemInfo()
	require.Equal(t, "Intel(R) Core(TM) i9-9900K", info.CPUModel)
	require.Equal(t, 16, info.LogicalCores)
	require.Equal(t, 44.0, info.Temperature)
	require.Equal(t, 3000.0, info.Frequencies["cpu0"])
}
