// Package app defines application-wide types, constants, and context
// that are shared across multiple commands.
package app

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"cputuner/internal/target"
)

// Name is the name of the application executable.
var Name = filepath.Base(os.Args[0])

// Context represents the application context that can be accessed from all commands.
type Context struct {
	Timestamp      string // Timestamp is the timestamp when the application was started.
	OutputDir      string // OutputDir is the directory where the application writes output files.
	CheckpointDir  string // CheckpointDir is the directory where the Checkpoint Store writes snapshots.
	LocalTempDir   string // LocalTempDir is the temp directory on the local host (created by the application).
	LogFilePath    string // LogFilePath is the path to the log file.
	ConfigPath     string // ConfigPath is the path to the tuner.yaml config file, if any.
	Version        string // Version is the version of the application.
	Debug          bool   // Debug is true if the application is running in debug mode.
}

// Flag names for flags defined in the root command, but sometimes used in other commands.
const (
	FlagDebugName         = "debug"
	FlagSyslogName        = "syslog"
	FlagLogStdOutName     = "log-stdout"
	FlagOutputDirName     = "output"
	FlagCheckpointDirName = "checkpoint-dir"
	FlagConfigName        = "config"
	FlagMetricsAddrName   = "metrics-addr"
)

// Flag names for flags shared by the report and restore commands.
const (
	FlagInputName  = "input"
	FlagFormatName = "format"
)

// Flag names for flags shared by the commands that drive the Setting
// Store and Monitor (tune, resume, status, restore).
const (
	FlagBiosToolName = "bios-tool"
)

// DefaultBiosToolPath is the conventional install path of the vendor
// firmware setup utility this tuner drives (spec.md §4.2's "external
// firmware tool"), overridable with --bios-tool for systems that
// install it elsewhere.
const DefaultBiosToolPath = "/usr/sbin/syscfg"

var modelNameRe = regexp.MustCompile(`(?m)^[Mm]odel name:\s*(.+)$`)

// DetectSystemIdentity reads the CPU brand string via lscpu and the
// logical core count via runtime.NumCPU, the identity snapshot every
// command that touches the Monitor or Setting Store needs at startup
// (spec.md §4.4.3's CollectSystemInfo), reached through Target the same
// way the Monitor and Setting Store touch every other sensor/tool.
func DetectSystemIdentity(t target.Target) (cpuModel string, logicalCores int, err error) {
	stdout, stderr, exitCode, err := t.RunCommand(exec.Command("lscpu"), 5)
	if err != nil {
		return "", 0, fmt.Errorf("app: running lscpu: %w", err)
	}
	if exitCode != 0 {
		return "", 0, fmt.Errorf("app: lscpu exited %d: %s", exitCode, strings.TrimSpace(stderr))
	}
	if m := modelNameRe.FindStringSubmatch(stdout); m != nil {
		cpuModel = strings.TrimSpace(m[1])
	} else {
		cpuModel = "unknown CPU"
	}
	return cpuModel, runtime.NumCPU(), nil
}

// ParseCheckpointArg resolves the "resume" command's checkpoint
// argument: a literal filename, or "latest" to scan the checkpoint
// directory for the newest by embedded timestamp.
func ParseCheckpointArg(arg string, latest func() (string, error)) (string, error) {
	if arg == "" || arg == "latest" {
		name, err := latest()
		if err != nil {
			return "", err
		}
		return name, nil
	}
	return arg, nil
}

// FormatWatts renders a whole-number wattage value for CLI output as
// decimal digits followed by "W".
func FormatWatts(v int64) string {
	return strconv.FormatInt(v, 10) + "W"
}
