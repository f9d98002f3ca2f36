/*
Package monitor samples CPU temperature, power, and load on demand,
falling through a priority chain of hardware sources down to an
estimate — the Monitor (C1).
*/
package monitor

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"cputuner/internal/target"
)

const (
	estimateBaseTempC = 35.0
	estimateMaxTempC  = 85.0
	powerEstimateFrac = 0.8

	sensorTimeoutSeconds = 5
)

// Monitor is the Monitor component's public contract: read_cpu_data(),
// cpu_frequencies(), and collect_system_info() from spec §4.1.
type Monitor interface {
	ReadCPUData() (tempC, powerW, loadPct float64)
	CPUFrequencies() map[string]float64
	CollectSystemInfo() SystemInfo
	MaxTempSession() float64
	MaxPowerSession() float64
}

// SystemInfo is the startup snapshot the Engine collects once, per
// hardware_monitor.py's collect_system_info.
type SystemInfo struct {
	CPUModel       string             `json:"cpu_model"`
	LogicalCores   int                `json:"logical_cores"`
	Frequencies    map[string]float64 `json:"cpu_frequencies"`
	Temperature    float64            `json:"cpu_temperature"`
	Power          float64            `json:"cpu_power"`
	Load           float64            `json:"cpu_load"`
}

// HardwareMonitor implements Monitor against the local machine's sensor
// interfaces, reached through internal/target so every touch point is
// fakeable in tests without real hardware.
type HardwareMonitor struct {
	target       target.Target
	cpuModel     string
	logicalCores int
	estimatedTDP float64

	maxTempSessionBits  uint64 // atomic, math.Float64bits
	maxPowerSessionBits uint64

	tempGauge  prometheus.Gauge
	powerGauge prometheus.Gauge
	loadGauge  prometheus.Gauge
}

// New constructs a HardwareMonitor. cpuModel and logicalCores are
// collected once by the caller (spec's CollectSystemInfo is then just a
// read of cached identity plus a fresh sample).
func New(t target.Target, cpuModel string, logicalCores int) *HardwareMonitor {
	return &HardwareMonitor{
		target:       t,
		cpuModel:     cpuModel,
		logicalCores: logicalCores,
		estimatedTDP: tdpForModel(cpuModel),
	}
}

// EnableMetrics registers session gauges on reg, exercised on every
// ReadCPUData call once enabled. Optional: callers that don't pass
// --metrics-addr never call this.
func (m *HardwareMonitor) EnableMetrics(reg prometheus.Registerer) {
	m.tempGauge = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "cputuner_session_max_temperature_celsius",
		Help: "Maximum CPU temperature observed this session.",
	})
	m.powerGauge = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "cputuner_session_max_power_watts",
		Help: "Maximum CPU power draw observed this session.",
	})
	m.loadGauge = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Name: "cputuner_current_load_percent",
		Help: "Most recently sampled CPU load percentage.",
	})
}

// ReadCPUData samples (temperature, power, load), falling through the
// source priority chains of spec §4.1. It never fails: every source
// that errors or comes back empty falls through to the next, ending in
// an estimate.
func (m *HardwareMonitor) ReadCPUData() (tempC, powerW, loadPct float64) {
	loadPct = m.readLoad()

	if v, ok := m.sensorBusTemperature(); ok {
		tempC = v
	} else if v, ok := m.hwmonTemperature(); ok {
		tempC = v
	} else if v, ok := m.acpiTemperature(); ok {
		tempC = v
	} else {
		tempC = m.estimateTemperature(loadPct)
	}

	if v, ok := m.sensorBusPower(); ok {
		powerW = v
	} else {
		powerW = m.estimatedTDP * (loadPct / 100.0) * powerEstimateFrac
	}

	m.updateSessionMax(&m.maxTempSessionBits, tempC)
	m.updateSessionMax(&m.maxPowerSessionBits, powerW)
	if m.tempGauge != nil {
		m.tempGauge.Set(m.MaxTempSession())
		m.powerGauge.Set(m.MaxPowerSession())
		m.loadGauge.Set(loadPct)
	}
	return tempC, powerW, loadPct
}

func (m *HardwareMonitor) updateSessionMax(bits *uint64, v float64) {
	for {
		old := atomic.LoadUint64(bits)
		if v <= math.Float64frombits(old) {
			return
		}
		if atomic.CompareAndSwapUint64(bits, old, math.Float64bits(v)) {
			return
		}
	}
}

// MaxTempSession returns the highest temperature observed this session.
func (m *HardwareMonitor) MaxTempSession() float64 {
	return math.Float64frombits(atomic.LoadUint64(&m.maxTempSessionBits))
}

// MaxPowerSession returns the highest power draw observed this session.
func (m *HardwareMonitor) MaxPowerSession() float64 {
	return math.Float64frombits(atomic.LoadUint64(&m.maxPowerSessionBits))
}

// estimateTemperature implements spec §4.1's two-tier estimate: prefer
// the frequency-ratio formula; fall back to a load-only formula when
// per-core frequency data is unavailable (hardware_monitor.py's
// load-only branch, omitted from spec.md's prose but present in the
// source — see SPEC_FULL.md §6.1).
func (m *HardwareMonitor) estimateTemperature(loadPct float64) float64 {
	cur, max, ok := m.averageFrequencyRatio()
	if ok && max > 0 {
		ratio := cur / max
		return estimateBaseTempC + (estimateMaxTempC-estimateBaseTempC)*ratio*(loadPct/100.0)
	}
	return estimateBaseTempC + (loadPct/100.0)*45.0
}

// run executes a shell one-liner through the target abstraction,
// returning trimmed stdout or an error on non-zero exit.
func (m *HardwareMonitor) run(script string) (string, error) {
	out, stderr, exitCode, err := m.target.RunCommand(exec.Command("sh", "-c", script), sensorTimeoutSeconds)
	if err != nil || exitCode != 0 {
		return "", fmt.Errorf("sensor command failed: exit=%d stderr=%q err=%v", exitCode, stderr, err)
	}
	return strings.TrimSpace(out), nil
}

var tdpDigitsRe = regexp.MustCompile(`(\d+)[WT]`)

// tdpForModel parses a wattage hint out of the CPU brand string, falling
// back to the vendor/family table of spec §4.1 (i9/Ryzen9 -> 125,
// i7/Ryzen7 -> 95, i5/Ryzen5 -> 65, i3/Ryzen3 -> 45, else 65). The
// Ryzen 9 value supersedes hardware_monitor.py's 105 — spec.md's
// authoritative table says 125; treated as a resolved discrepancy (see
// DESIGN.md).
func tdpForModel(model string) float64 {
	if m := tdpDigitsRe.FindStringSubmatch(model); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return float64(n)
		}
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "i9"), strings.Contains(lower, "ryzen 9"):
		return 125
	case strings.Contains(lower, "i7"), strings.Contains(lower, "ryzen 7"):
		return 95
	case strings.Contains(lower, "i5"), strings.Contains(lower, "ryzen 5"):
		return 65
	case strings.Contains(lower, "i3"), strings.Contains(lower, "ryzen 3"):
		return 45
	default:
		return 65
	}
}

// CPUFrequencies returns per-core current frequencies in MHz, falling
// back to a single "average" entry when per-core files are unavailable.
func (m *HardwareMonitor) CPUFrequencies() map[string]float64 {
	out, err := m.run(`for f in /sys/devices/system/cpu/cpu[0-9]*/cpufreq/scaling_cur_freq; do
  [ -e "$f" ] || continue
  core=$(echo "$f" | grep -oE 'cpu[0-9]+')
  v=$(cat "$f" 2>/dev/null)
  echo "$core:$v"
done`)
	result := map[string]float64{}
	if err == nil {
		for _, line := range strings.Split(out, "\n") {
			if line == "" {
				continue
			}
			parts := strings.SplitN(line, ":", 2)
			if len(parts) != 2 {
				continue
			}
			khz, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				continue
			}
			result[parts[0]] = khz / 1000.0
		}
	}
	if len(result) > 0 {
		return result
	}
	if avg, _, ok := m.averageFrequencyRatio(); ok {
		result["average"] = avg
	}
	return result
}

// averageFrequencyRatio reads the current and maximum scaling frequency
// of cpu0 as a stand-in for a system-wide ratio, used by the two-tier
// temperature estimate.
func (m *HardwareMonitor) averageFrequencyRatio() (cur, max float64, ok bool) {
	out, err := m.run(`cat /sys/devices/system/cpu/cpu0/cpufreq/scaling_cur_freq /sys/devices/system/cpu/cpu0/cpufreq/scaling_max_freq 2>/dev/null`)
	if err != nil {
		return 0, 0, false
	}
	lines := strings.Split(out, "\n")
	if len(lines) < 2 {
		return 0, 0, false
	}
	curKHz, err1 := strconv.ParseFloat(strings.TrimSpace(lines[0]), 64)
	maxKHz, err2 := strconv.ParseFloat(strings.TrimSpace(lines[1]), 64)
	if err1 != nil || err2 != nil || maxKHz == 0 {
		return 0, 0, false
	}
	return curKHz / 1000.0, maxKHz / 1000.0, true
}

// readLoad samples CPU busy percentage over a short window by
// differencing /proc/stat, mirroring psutil.cpu_percent(interval=0.2).
func (m *HardwareMonitor) readLoad() float64 {
	out, err := m.run(`a=$(grep '^cpu ' /proc/stat); sleep 0.2; b=$(grep '^cpu ' /proc/stat); echo "$a"; echo "$b"`)
	if err != nil {
		return 0
	}
	lines := strings.Split(out, "\n")
	if len(lines) < 2 {
		return 0
	}
	idle1, total1, ok1 := parseProcStatCPULine(lines[0])
	idle2, total2, ok2 := parseProcStatCPULine(lines[1])
	if !ok1 || !ok2 || total2 <= total1 {
		return 0
	}
	idleDelta := idle2 - idle1
	totalDelta := total2 - total1
	busy := 1.0 - (idleDelta / totalDelta)
	return busy * 100.0
}

func parseProcStatCPULine(line string) (idle, total float64, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, false
	}
	var sum float64
	for _, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, 0, false
		}
		sum += v
	}
	idleVal, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return 0, 0, false
	}
	return idleVal, sum, true
}

// CollectSystemInfo returns a startup snapshot: CPU identity, logical
// core count, per-core frequencies, and a fresh sensor sample.
func (m *HardwareMonitor) CollectSystemInfo() SystemInfo {
	temp, power, load := m.ReadCPUData()
	return SystemInfo{
		CPUModel:     m.cpuModel,
		LogicalCores: m.logicalCores,
		Frequencies:  m.CPUFrequencies(),
		Temperature:  temp,
		Power:        power,
		Load:         load,
	}
}
