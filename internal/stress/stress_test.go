package stress

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeMonitor struct {
	temp, power, load float64
	freqs             map[string]float64
	reads             int
}

func (f *fakeMonitor) ReadCPUData() (float64, float64, float64) {
	f.reads++
	return f.temp, f.power, f.load
}

func (f *fakeMonitor) CPUFrequencies() map[string]float64 {
	return f.freqs
}

func TestRunCompletesNominalDuration(t *testing.T) {
	mon := &fakeMonitor{temp: 60, power: 40, load: 80, freqs: map[string]float64{"average": 3200}}
	d := New(2)

	result := d.Run(context.Background(), 2, mon, nil)

	require.True(t, result.Completed)
	require.Equal(t, 60.0, result.MaxTemperature)
	require.Equal(t, 60.0, result.AvgTemperature)
	require.Equal(t, 3200.0, result.CPUFrequency)
	require.Greater(t, result.OpsPerSecond, 0.0)
	require.GreaterOrEqual(t, mon.reads, 2)
}

func TestRunAbortsOnContextCancel(t *testing.T) {
	mon := &fakeMonitor{temp: 50, power: 30, load: 50, freqs: map[string]float64{"average": 2000}}
	d := New(1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()

	result := d.Run(ctx, 60, mon, nil)
	require.False(t, result.Completed)
}

func TestRunEmitsProgressEveryTenSeconds(t *testing.T) {
	mon := &fakeMonitor{temp: 55, power: 35, load: 70, freqs: map[string]float64{}}
	d := New(1)

	var progressCalls []int
	onProgress := func(elapsed, duration int, temp, load float64) {
		progressCalls = append(progressCalls, elapsed)
	}

	result := d.Run(context.Background(), 10, mon, onProgress)
	require.True(t, result.Completed)
	require.Equal(t, []int{10}, progressCalls)
}

func TestAverageFrequencyFallsBackToMean(t *testing.T) {
	mon := &fakeMonitor{freqs: map[string]float64{"cpu0": 2000, "cpu1": 4000}}
	require.Equal(t, 3000.0, averageFrequency(mon))
}

func TestAverageFrequencyEmptyMap(t *testing.T) {
	mon := &fakeMonitor{freqs: map[string]float64{}}
	require.Equal(t, 0.0, averageFrequency(mon))
}
