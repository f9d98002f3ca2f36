package monitor

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"strconv"
	"strings"
)

// sensorBusPower looks for a CPU/Package power sensor on the hwmon bus,
// the Linux analogue of OpenHardwareMonitor's "Power" sensor type.
// RAPL-backed power sensors surface as energy accumulators on most
// kernels rather than instantaneous watts, so this checks the simpler
// power1_input style exposed by some hwmon drivers (e.g. it86xx) and
// falls through to the TDP estimate everywhere else.
func (m *HardwareMonitor) sensorBusPower() (float64, bool) {
	out, err := m.run(`for d in /sys/class/hwmon/hwmon*; do
  [ -d "$d" ] || continue
  name=$(cat "$d/name" 2>/dev/null)
  [ -n "$name" ] || continue
  for f in "$d"/power*_input; do
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

	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 {
			continue
		}
		label, rawMicro := strings.ToLower(parts[1]), parts[2]
		micro, err := strconv.ParseFloat(rawMicro, 64)
		if err != nil {
			continue
		}
		if strings.Contains(label, "package") || strings.Contains(label, "cpu") {
			return micro / 1_000_000.0, true
		}
	}
	return 0, false
}
