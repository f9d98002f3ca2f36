package engine

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os"

	"github.com/casbin/govaluate"
	"gopkg.in/yaml.v2"
)

// Constants holds the tunable knobs of spec §4.4.2, overridable from
// tuner.yaml the same way the teacher's targets.yaml overrides remote
// target defaults.
type Constants struct {
	ThermalLimitC            float64 `yaml:"thermal_limit_c"`
	PerfImprovementThreshold float64 `yaml:"perf_improvement_threshold"`
	AcceptablePerfLoss       float64 `yaml:"acceptable_perf_loss"`
	ShortTestDurationSec     int     `yaml:"short_test_duration_sec"`
	MediumTestDurationSec    int     `yaml:"medium_test_duration_sec"`
	FinalTestDurationSec     int     `yaml:"final_test_duration_sec"`

	// Rule expressions, evaluated via govaluate against a small
	// variable map per trial instead of being hardcoded in Go, per
	// SPEC_FULL.md §6.6.
	UndervoltAcceptRule  string `yaml:"undervolt_accept_rule"`
	PowerLimitAcceptRule string `yaml:"power_limit_accept_rule"`
	CStateAcceptRule     string `yaml:"cstate_accept_rule"`
}

// DefaultConstants matches tuning_engine.py's hardcoded defaults.
func DefaultConstants() Constants {
	return Constants{
		ThermalLimitC:            90.0,
		PerfImprovementThreshold: 1.01,
		AcceptablePerfLoss:       0.98,
		ShortTestDurationSec:     60,
		MediumTestDurationSec:    120,
		FinalTestDurationSec:     180,
		UndervoltAcceptRule:      "ratio >= acceptable_perf_loss",
		PowerLimitAcceptRule:     "ratio >= perf_improvement_threshold",
		CStateAcceptRule:         "ratio >= perf_improvement_threshold",
	}
}

// LoadConstants reads tuner.yaml at path, if it exists, overlaying
// non-zero fields onto the defaults. A missing file is not an error —
// tuner.yaml is optional, matching the teacher's config-overlay idiom.
func LoadConstants(path string) (Constants, error) {
	c := DefaultConstants()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("engine: reading %q: %w", path, err)
	}
	var override Constants
	if err := yaml.Unmarshal(data, &override); err != nil {
		return c, fmt.Errorf("engine: parsing %q: %w", path, err)
	}
	overlay(&c, override)
	return c, nil
}

func overlay(base *Constants, o Constants) {
	if o.ThermalLimitC != 0 {
		base.ThermalLimitC = o.ThermalLimitC
	}
	if o.PerfImprovementThreshold != 0 {
		base.PerfImprovementThreshold = o.PerfImprovementThreshold
	}
	if o.AcceptablePerfLoss != 0 {
		base.AcceptablePerfLoss = o.AcceptablePerfLoss
	}
	if o.ShortTestDurationSec != 0 {
		base.ShortTestDurationSec = o.ShortTestDurationSec
	}
	if o.MediumTestDurationSec != 0 {
		base.MediumTestDurationSec = o.MediumTestDurationSec
	}
	if o.FinalTestDurationSec != 0 {
		base.FinalTestDurationSec = o.FinalTestDurationSec
	}
	if o.UndervoltAcceptRule != "" {
		base.UndervoltAcceptRule = o.UndervoltAcceptRule
	}
	if o.PowerLimitAcceptRule != "" {
		base.PowerLimitAcceptRule = o.PowerLimitAcceptRule
	}
	if o.CStateAcceptRule != "" {
		base.CStateAcceptRule = o.CStateAcceptRule
	}
}

// evaluateAcceptRule runs a govaluate expression against the standard
// trial variable map (ratio, temp, thermal_limit,
// perf_improvement_threshold, acceptable_perf_loss) and coerces the
// result to bool.
func evaluateAcceptRule(expr string, vars map[string]any) (bool, error) {
	evaluable, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return false, fmt.Errorf("engine: parsing rule %q: %w", expr, err)
	}
	result, err := evaluable.Evaluate(vars)
	if err != nil {
		return false, fmt.Errorf("engine: evaluating rule %q: %w", expr, err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("engine: rule %q did not evaluate to a boolean (got %T)", expr, result)
	}
	return b, nil
}
