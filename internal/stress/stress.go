/*
Package stress drives a bounded, multi-core CPU-bound workload while a
sampler goroutine records temperature and power through the Monitor —
the Stress Driver (C3).
*/
package stress

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"cputuner/internal/profile"
)

const (
	// batchIterations is the kernel's inner-loop size; a worker adds
	// one batch to its counter only after completing it, matching the
	// Python original's whole-batch counting.
	batchIterations = 100_000

	// progressEveryN seconds, matching tuning_engine.py's 10-second
	// cadence.
	progressEveryN = 10

	// joinTimeoutPerWorker bounds how long Run waits for stress workers
	// to notice the stop flag and exit before giving up; a leaked
	// worker goroutine here is an accepted tradeoff, same as the
	// Python original's thread.join(timeout=1.0).
	joinTimeoutPerWorker = time.Second
)

// Monitor is the subset of monitor.HardwareMonitor the Stress Driver
// needs, kept narrow so tests can script sampled readings without
// pulling in the whole sensor stack.
type Monitor interface {
	ReadCPUData() (tempC, powerW, loadPct float64)
	CPUFrequencies() map[string]float64
}

// ProgressFunc is called roughly every 10 seconds of test elapsed time
// with the latest sample, the Stress Driver's half of the Engine's log
// callback contract.
type ProgressFunc func(elapsedSeconds, durationSeconds int, tempC, loadPct float64)

// Driver runs stress tests with a fixed worker count.
type Driver struct {
	numWorkers int
}

// New returns a Driver with numWorkers workers. numWorkers <= 0 means
// one worker per logical CPU, the spec's default.
func New(numWorkers int) *Driver {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Driver{numWorkers: numWorkers}
}

// Run spawns d.numWorkers CPU-bound workers for durationSeconds, sampling
// the Monitor once a second, and returns the aggregated result. Canceling
// ctx stops the test early with Completed=false; this is how the Engine's
// abort flag reaches a running test.
//
// The Monitor is defined never to error (every sensor tier falls through
// to an estimate), so the "Monitor raised during sampling" termination
// condition is structurally unreachable here — see DESIGN.md.
func (d *Driver) Run(ctx context.Context, durationSeconds int, mon Monitor, onProgress ProgressFunc) profile.StressTestResult {
	var stop int32
	var totalOps int64

	var wg sync.WaitGroup
	wg.Add(d.numWorkers)
	for i := 0; i < d.numWorkers; i++ {
		go func() {
			defer wg.Done()
			stressWorker(&stop, &totalOps)
		}()
	}

	start := time.Now()
	completed := true
	var maxTemp, maxPower, tempSum, powerSum float64
	var samples int

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

loop:
	for elapsed := 1; elapsed <= durationSeconds; elapsed++ {
		select {
		case <-ctx.Done():
			completed = false
			break loop
		case <-ticker.C:
			temp, power, load := mon.ReadCPUData()
			if temp > maxTemp {
				maxTemp = temp
			}
			if power > maxPower {
				maxPower = power
			}
			tempSum += temp
			powerSum += power
			samples++

			if onProgress != nil && elapsed%progressEveryN == 0 {
				onProgress(elapsed, durationSeconds, temp, load)
			}
		}
	}

	atomic.StoreInt32(&stop, 1)
	elapsedDuration := time.Since(start)
	joinWithTimeout(&wg, time.Duration(d.numWorkers)*joinTimeoutPerWorker)

	elapsedSeconds := elapsedDuration.Seconds()
	var opsPerSecond float64
	if elapsedSeconds > 0 {
		opsPerSecond = float64(atomic.LoadInt64(&totalOps)) / elapsedSeconds
	}

	var avgTemp, avgPower float64
	if samples > 0 {
		avgTemp = tempSum / float64(samples)
		avgPower = powerSum / float64(samples)
	}

	return profile.StressTestResult{
		OpsPerSecond:   opsPerSecond,
		MaxTemperature: maxTemp,
		AvgTemperature: avgTemp,
		MaxPower:       maxPower,
		AvgPower:       avgPower,
		TestDuration:   elapsedSeconds,
		CPUFrequency:   averageFrequency(mon),
		Completed:      completed,
	}
}

// stressWorker spins a tight floating-point kernel in 100k-iteration
// batches until stop is set, then adds its batch count to total.
func stressWorker(stop *int32, total *int64) {
	var ops int64
	dummy := 0.0
	for atomic.LoadInt32(stop) == 0 {
		for j := 0; j < batchIterations; j++ {
			dummy += math.Sqrt(float64(j))
		}
		ops += batchIterations
	}
	_ = dummy
	atomic.AddInt64(total, ops)
}

// joinWithTimeout waits on wg but gives up after timeout, leaving any
// still-running workers to exit on their own once they next check stop.
func joinWithTimeout(wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

// averageFrequency reduces the Monitor's per-core frequency map to a
// single number, preferring a precomputed "average" entry, matching
// tuning_engine.py's _run_stress_test.
func averageFrequency(mon Monitor) float64 {
	freqs := mon.CPUFrequencies()
	if len(freqs) == 0 {
		return 0
	}
	if avg, ok := freqs["average"]; ok {
		return avg
	}
	var sum float64
	for _, v := range freqs {
		sum += v
	}
	return sum / float64(len(freqs))
}
