package monitor

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/json"
	"strconv"
	"strings"
)

// sensorBusTemperature is tier 1: lm-sensors' `sensors -j` JSON output,
// the Linux analogue of hardware_monitor.py's OpenHardwareMonitor query.
// A chip counts as a CPU sensor when its name contains "cpu" or starts
// with "coretemp" or "k10temp"; on other chips only features whose name
// contains "cpu" are considered. It prefers a reading whose chip or
// feature name contains "package", falling back to any CPU reading.
func (m *HardwareMonitor) sensorBusTemperature() (float64, bool) {
	out, err := m.run("sensors -j 2>/dev/null")
	if err != nil || out == "" {
		return 0, false
	}
	var chips map[string]map[string]json.RawMessage
	if err := json.Unmarshal([]byte(out), &chips); err != nil {
		return 0, false
	}

	var bestPackage, anyCPU float64
	var havePackage, haveCPU bool
	for chipName, features := range chips {
		for featureName, raw := range features {
			lowerChip := strings.ToLower(chipName)
			lowerFeat := strings.ToLower(featureName)
			cpuChip := strings.Contains(lowerChip, "cpu") ||
				strings.HasPrefix(lowerChip, "coretemp") || strings.HasPrefix(lowerChip, "k10temp")
			if !cpuChip && !strings.Contains(lowerFeat, "cpu") {
				continue
			}
			v, ok := firstTempInputValue(raw)
			if !ok {
				continue
			}
			if !haveCPU {
				anyCPU = v
				haveCPU = true
			}
			if strings.Contains(lowerFeat, "package") || strings.Contains(lowerChip, "package") {
				bestPackage = v
				havePackage = true
			}
		}
	}
	if havePackage {
		return bestPackage, true
	}
	if haveCPU {
		return anyCPU, true
	}
	return 0, false
}

// firstTempInputValue pulls the first "*_input" numeric field out of a
// sensors -j feature object, e.g. {"temp1_input": 45.0, "temp1_crit": 100.0}.
func firstTempInputValue(raw json.RawMessage) (float64, bool) {
	var fields map[string]float64
	if err := json.Unmarshal(raw, &fields); err != nil {
		return 0, false
	}
	for key, v := range fields {
		if strings.HasSuffix(key, "_input") {
			return v, true
		}
	}
	return 0, false
}

// knownTempChipDrivers mirrors hardware_monitor.py's psutil chip-name
// allowlist for sensors_temperatures().
var knownTempChipDrivers = map[string]bool{
	"coretemp": true,
	"k10temp":  true,
	"acpitz":   true,
	"it8686":   true,
	"it8688":   true,
	"it8655":   true,
}

// hwmonTemperature is tier 2: a direct /sys/class/hwmon scan restricted
// to the same chip-driver allowlist psutil.sensors_temperatures() uses,
// preferring a label containing "package" or "tdie".
func (m *HardwareMonitor) hwmonTemperature() (float64, bool) {
	out, err := m.run(`for d in /sys/class/hwmon/hwmon*; do
  [ -d "$d" ] || continue
  name=$(cat "$d/name" 2>/dev/null)
  [ -n "$name" ] || continue
  for f in "$d"/temp*_input; do
    [ -e "$f" ] || continue
    label_file="${f%_input}_label"
    label=$(cat "$label_file" 2>/dev/null)
    val=$(cat "$f" 2>/dev/null)
    echo "$name|$label|$val"
  done
done`)
	if err != nil || out == "" {
		return 0, false
	}

	var firstForChip float64
	haveFirst := false
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 {
			continue
		}
		chip, label, rawMilli := parts[0], strings.ToLower(parts[1]), parts[2]
		if !knownTempChipDrivers[chip] {
			continue
		}
		milli, err := strconv.ParseFloat(rawMilli, 64)
		if err != nil {
			continue
		}
		celsius := milli / 1000.0
		if strings.Contains(label, "package") || strings.Contains(label, "tdie") {
			return celsius, true
		}
		if !haveFirst {
			firstForChip = celsius
			haveFirst = true
		}
	}
	return firstForChip, haveFirst
}

// acpiTemperature is tier 3: ACPI thermal zones, converted with the
// spec's literal tenths-of-Kelvin formula. This formula is the
// Windows-WMI MSAcpi_ThermalZoneTemperature convention spec.md carries
// over verbatim; it does not match raw Linux thermal_zone millidegree
// semantics, but fidelity to spec.md wins here (see SPEC_FULL.md §6.1).
func (m *HardwareMonitor) acpiTemperature() (float64, bool) {
	out, err := m.run(`cat /sys/class/thermal/thermal_zone0/temp 2>/dev/null`)
	if err != nil || out == "" {
		return 0, false
	}
	tenthsKelvin, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, false
	}
	return (tenthsKelvin / 10.0) - 273.15, true
}
