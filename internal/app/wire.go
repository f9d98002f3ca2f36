package app

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"

	"cputuner/internal/checkpoint"
	"cputuner/internal/engine"
	"cputuner/internal/monitor"
	"cputuner/internal/setting"
	"cputuner/internal/stress"
	"cputuner/internal/target"
)

// Stack bundles the constructed components every hardware-touching
// command (tune, resume, status, restore) wires up the same way —
// pulled out here so each cmd/* package states its own flags and
// output, not the wiring, matching the teacher's pattern of a shared
// `app` package backing otherwise-independent subcommands.
type Stack struct {
	Target      target.Target
	Settings    *setting.Store
	Monitor     *monitor.HardwareMonitor
	Checkpoints *checkpoint.Store
	CPUModel    string
}

// NewStack detects the local CPU, opens the Setting Store against
// toolPath, and creates the checkpoint directory.
func NewStack(toolPath, tempDir, checkpointDir string) (*Stack, error) {
	t := target.NewLocalTarget()

	cpuModel, logicalCores, err := DetectSystemIdentity(t)
	if err != nil {
		return nil, fmt.Errorf("app: detecting system identity: %w", err)
	}

	settings, err := setting.NewStore(toolPath, tempDir, t)
	if err != nil {
		return nil, fmt.Errorf("app: opening setting store: %w", err)
	}

	checkpoints, err := checkpoint.NewStore(checkpointDir)
	if err != nil {
		return nil, fmt.Errorf("app: opening checkpoint store: %w", err)
	}

	return &Stack{
		Target:      t,
		Settings:    settings,
		Monitor:     monitor.New(t, cpuModel, logicalCores),
		Checkpoints: checkpoints,
		CPUModel:    cpuModel,
	}, nil
}

// NewEngine builds a Tuning Engine over the Stack's components.
func (s *Stack) NewEngine(constants engine.Constants, logFn engine.LogFunc) *engine.Engine {
	return engine.New(s.Settings, s.Monitor, stress.New(0), s.Checkpoints, constants, logFn)
}
