package engine

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"sort"
	"strings"
	"time"

	"cputuner/internal/profile"
	"cputuner/internal/setting"
)

// candidate setting names, first match wins, per spec §6.
var (
	pl1CandidateNames      = []string{"Long Duration Power Limit", "Package Power Limit 1", "PPT"}
	pl2CandidateNames      = []string{"Short Duration Power Limit", "Package Power Limit 2", "PPT Limit"}
	voltageCandidateNames  = []string{"Core Voltage Offset", "CPU Core Voltage Offset", "Vcore Offset"}
	cstatePriorityKeywords = []string{"c state", "c-state", "c states", "c-states", "package c", "cpu c state"}
)

// tdpForModel mirrors internal/monitor's fallback table (spec §4.1/§4.4.3
// share the same estimate), duplicated here rather than imported across
// packages since the Engine only needs it once, at cold-start profile
// initialization, and the two tables must stay literally identical —
// a shared constant would just move the coupling, not remove it.
func tdpForModel(model string) int64 {
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

// initializeProfile collects CPU identity and current PL1/PL2/voltage
// settings, estimating any that can't be read (spec §4.4.3).
func (e *Engine) initializeProfile() *profile.Profile {
	e.log("collecting CPU information...")
	info := e.mon.CollectSystemInfo()
	prof := profile.New("")
	prof.CPUModel = info.CPUModel

	e.log("reading current BIOS settings...")

	pl1, pl1Name, pl1Found := e.readFirstCandidate(pl1CandidateNames)
	if pl1Found {
		prof.PowerLimit1 = pl1
		prof.RegisterBiosParameter(profile.NewBiosParameter(pl1Name, pl1, pl1, setting.CategoryCPUPower))
		e.log("found PL1: %s = %dW", pl1Name, pl1)
	} else {
		prof.PowerLimit1 = tdpForModel(info.CPUModel)
		e.log("PL1 not found, using estimate: %dW", prof.PowerLimit1)
	}

	pl2, pl2Name, pl2Found := e.readFirstCandidate(pl2CandidateNames)
	if pl2Found {
		prof.PowerLimit2 = pl2
		prof.RegisterBiosParameter(profile.NewBiosParameter(pl2Name, pl2, pl2, setting.CategoryCPUPower))
		e.log("found PL2: %s = %dW", pl2Name, pl2)
	} else {
		prof.PowerLimit2 = int64(float64(prof.PowerLimit1) * 1.25)
		e.log("PL2 not found, using estimate: %dW", prof.PowerLimit2)
	}

	offset, offsetName, offsetFound := e.readFirstCandidate(voltageCandidateNames)
	if offsetFound {
		prof.VoltageOffsetMV = offset
		prof.RegisterBiosParameter(profile.NewBiosParameter(offsetName, offset, offset, setting.CategoryCPUVoltage))
		e.log("found voltage offset: %s = %dmV", offsetName, offset)
	} else {
		prof.VoltageOffsetMV = 0
		e.log("voltage offset setting not found")
	}

	e.log("initialized CPU profile: PL1=%dW, PL2=%dW, offset=%dmV", prof.PowerLimit1, prof.PowerLimit2, prof.VoltageOffsetMV)
	return prof
}

func (e *Engine) readFirstCandidate(names []string) (value int64, name string, ok bool) {
	for _, n := range names {
		v, err := e.settings.ReadValue(n)
		if err != nil {
			continue
		}
		return v, n, true
	}
	return 0, "", false
}

// analyzeBiosParameters enumerates every performance-related setting via
// the Setting Store's bucket finder and registers each one (spec §4.4.4).
func (e *Engine) analyzeBiosParameters(prof *profile.Profile) {
	e.log("analyzing available BIOS parameters...")

	buckets, err := e.settings.FindAllPerformanceParameters()
	if err != nil {
		e.log("error analyzing BIOS parameters: %v", err)
		return
	}

	e.log("discovered the following performance parameter categories:")
	for _, bucket := range sortedBucketKeys(buckets) {
		names := sortedCopy(buckets[bucket])
		if len(names) == 0 {
			continue
		}
		e.log("- %s: %d parameters", bucket, len(names))
		sample := names
		if len(sample) > 3 {
			sample = sample[:3]
		}
		e.log("  examples: %s", strings.Join(sample, ", "))

		for _, name := range names {
			v, err := e.settings.ReadValue(name)
			if err != nil {
				continue
			}
			prof.RegisterBiosParameter(profile.NewBiosParameter(name, v, v, bucketToCategory(bucket)))
		}
	}

	if len(buckets[setting.BucketPower]) == 0 {
		e.log("warning: no CPU power-limit parameters found")
	}
	if len(buckets[setting.BucketVoltage]) == 0 {
		e.log("warning: no CPU voltage parameters found")
	}

	xmpParams, err := e.settings.FindXMPParameters()
	if err == nil && len(xmpParams) > 0 {
		e.log("discovered %d XMP/DOCP memory parameters", len(xmpParams))
		for _, name := range sortedCopy(xmpParams) {
			v, err := e.settings.ReadValue(name)
			if err != nil {
				continue
			}
			prof.RegisterBiosParameter(profile.NewBiosParameter(name, v, v, setting.CategoryMemory))
			if strings.Contains(strings.ToLower(name), "profile") && v == 0 {
				e.log("XMP/DOCP is currently disabled")
			}
		}
	}

	cstateParams, err := e.settings.FindCStateParameters()
	if err == nil && len(cstateParams) > 0 {
		e.log("discovered %d C-State parameters", len(cstateParams))
		for _, name := range sortedCopy(cstateParams) {
			v, err := e.settings.ReadValue(name)
			if err != nil {
				continue
			}
			prof.RegisterBiosParameter(profile.NewBiosParameter(name, v, v, setting.CategoryCPUFeatures))
		}
	}

	e.log("BIOS analysis complete: %d parameters registered", len(prof.BiosParameters))
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func sortedBucketKeys(m map[setting.PerformanceBucket][]string) []setting.PerformanceBucket {
	keys := make([]setting.PerformanceBucket, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func bucketToCategory(b setting.PerformanceBucket) setting.Category {
	switch b {
	case setting.BucketPower:
		return setting.CategoryCPUPower
	case setting.BucketVoltage:
		return setting.CategoryCPUVoltage
	case setting.BucketMemory:
		return setting.CategoryMemory
	case setting.BucketCStates, setting.BucketTurbo, setting.BucketFeatures:
		return setting.CategoryCPUFeatures
	default:
		return setting.CategoryOther
	}
}

// performUndervolting sweeps voltage-offset trials downward from the
// current value, stopping at the first non-completing or unacceptable
// trial (spec §4.4.5).
func (e *Engine) performUndervolting(ctx context.Context, prof *profile.Profile) {
	e.log("=== starting CPU undervolting ===")

	voltageParams, err := e.settings.FindVoltageParameters()
	if err != nil || len(voltageParams) == 0 {
		e.log("no CPU voltage parameters found, skipping undervolt stage")
		return
	}
	offsetParam := selectByKeyword(voltageParams, "offset")
	if offsetParam == "" {
		offsetParam = sortedCopy(voltageParams)[0]
	}
	e.log("undervolt parameter: %s", offsetParam)

	currentOffset, err := e.settings.ReadValue(offsetParam)
	if err != nil {
		e.log("error reading %s: %v", offsetParam, err)
		return
	}
	e.log("current offset: %dmV", currentOffset)

	steps := undervoltSteps(currentOffset)
	e.log("planned undervolt steps: %v", steps)

	e.log("baseline performance test at current voltage...")
	baseline := e.runStressTest(ctx, e.constants.ShortTestDurationSec)
	if !baseline.Completed {
		e.log("baseline test did not complete; stability concern, skipping undervolt")
		return
	}
	prof.AddTestResult(offsetParam, currentOffset, baseline)

	bestOffset := currentOffset
	bestPerf := baseline.OpsPerSecond

	for _, offset := range steps {
		if e.aborted() {
			e.log("undervolt stage aborted by request")
			break
		}
		e.log("[undervolt] testing offset %dmV...", offset)
		e.checkpoints.Save(prof, "undervolt_start", "testing offset")

		if err := e.settings.WriteValue(offsetParam, offset); err != nil {
			e.log("error writing offset %dmV: %v", offset, err)
			e.restoreOffset(prof, offsetParam, bestOffset)
			break
		}
		prof.UpdateParameter(offsetParam, offset)
		time.Sleep(settleDuration)

		result := e.runStressTest(ctx, e.constants.ShortTestDurationSec)
		prof.AddTestResult(offsetParam, offset, result)

		if !result.Completed {
			e.log("offset %dmV test did not complete: instability, reverting to %dmV", offset, bestOffset)
			e.restoreOffset(prof, offsetParam, bestOffset)
			break
		}

		ratio := result.OpsPerSecond / bestPerf
		accept, err := evaluateAcceptRule(e.constants.UndervoltAcceptRule, map[string]any{
			"ratio":                      ratio,
			"temp":                       result.MaxTemperature,
			"thermal_limit":              e.constants.ThermalLimitC,
			"perf_improvement_threshold": e.constants.PerfImprovementThreshold,
			"acceptable_perf_loss":       e.constants.AcceptablePerfLoss,
		})
		if err != nil {
			e.log("rule evaluation error: %v", err)
			e.restoreOffset(prof, offsetParam, bestOffset)
			break
		}

		if accept {
			e.log("undervolt %dmV accepted (%.2f%% perf change)", offset, (ratio-1)*100)
			if result.OpsPerSecond > bestPerf {
				bestPerf = result.OpsPerSecond
				bestOffset = offset
			}
			prof.VoltageOffsetMV = offset
		} else {
			e.log("offset %dmV caused unacceptable perf drop (%.2f%%), reverting to %dmV", offset, (ratio-1)*100, bestOffset)
			e.restoreOffset(prof, offsetParam, bestOffset)
			break
		}
	}

	e.log("=== undervolting complete: best offset %dmV ===", prof.VoltageOffsetMV)
}

func (e *Engine) restoreOffset(prof *profile.Profile, param string, value int64) {
	if err := e.settings.WriteValue(param, value); err != nil {
		e.log("failed to restore %s to %d: %v", param, value, err)
		return
	}
	prof.UpdateParameter(param, value)
	prof.VoltageOffsetMV = value
}

// undervoltSteps builds the descending trial sequence of spec §4.4.5.
func undervoltSteps(currentOffset int64) []int64 {
	var steps []int64
	if currentOffset >= 0 {
		steps = []int64{-20, -40, -60, -80, -100}
	} else {
		const step = int64(-20)
		start := (currentOffset / step) * step
		for start >= currentOffset-100 {
			if start < currentOffset {
				steps = append(steps, start)
			}
			start += step
		}
		if len(steps) == 0 {
			steps = []int64{-20, -40, -60, -80, -100}
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] > steps[j] })
	return steps
}

// selectByKeyword returns the first name (in sorted order, for
// determinism) whose lowercase form contains keyword, or "" if none do.
func selectByKeyword(names []string, keyword string) string {
	for _, n := range sortedCopy(names) {
		if strings.Contains(strings.ToLower(n), keyword) {
			return n
		}
	}
	return ""
}

// optimizePowerLimits sweeps PL1 upward in 5W steps up to 1.5x the
// current value, rolling PL2 along as max(currentPL2, PL1) on every
// trial and rollback (spec §4.4.6).
func (e *Engine) optimizePowerLimits(ctx context.Context, prof *profile.Profile) {
	e.log("=== starting power-limit optimization ===")

	powerParams, err := e.settings.FindPowerLimitParameters()
	if err != nil || len(powerParams) == 0 {
		e.log("no power-limit parameters found, skipping stage")
		return
	}

	pl1Param, pl2Param := selectPowerLimitParams(powerParams)
	if pl1Param == "" {
		e.log("PL1 parameter not found, skipping stage")
		return
	}
	e.log("PL1 parameter: %s", pl1Param)
	if pl2Param != "" {
		e.log("PL2 parameter: %s", pl2Param)
	}

	currentPL1, err := e.settings.ReadValue(pl1Param)
	if err != nil {
		e.log("error reading %s: %v", pl1Param, err)
		return
	}
	var currentPL2 int64
	havePL2 := false
	if pl2Param != "" {
		if v, err := e.settings.ReadValue(pl2Param); err == nil {
			currentPL2 = v
			havePL2 = true
		}
	}

	maxPL1 := int64(float64(currentPL1) * 1.5)
	var steps []int64
	for v := currentPL1 + 5; v <= maxPL1; v += 5 {
		steps = append(steps, v)
	}
	e.log("planned PL1 steps: %v", steps)

	baseline := e.runStressTest(ctx, e.constants.MediumTestDurationSec)
	if !baseline.Completed {
		e.log("baseline test did not complete, skipping power-limit stage")
		return
	}
	prof.AddTestResult(pl1Param, currentPL1, baseline)

	bestPL1 := currentPL1
	bestPerf := baseline.OpsPerSecond
	revert := func() {
		e.revertPowerLimits(prof, pl1Param, pl2Param, bestPL1, currentPL2, havePL2)
	}

	for _, pl1 := range steps {
		if e.aborted() {
			e.log("power-limit optimization aborted by request")
			break
		}
		e.log("[power] testing PL1 = %dW...", pl1)
		e.checkpoints.Save(prof, "power_limits_start", "testing PL1")

		if err := e.settings.WriteValue(pl1Param, pl1); err != nil {
			e.log("error writing PL1=%d: %v", pl1, err)
			revert()
			break
		}
		prof.UpdateParameter(pl1Param, pl1)

		if havePL2 {
			pl2 := maxInt64(currentPL2, pl1)
			if err := e.settings.WriteValue(pl2Param, pl2); err == nil {
				prof.UpdateParameter(pl2Param, pl2)
				prof.PowerLimit2 = pl2
			}
		}
		time.Sleep(settleDuration)

		result := e.runStressTest(ctx, e.constants.MediumTestDurationSec)
		prof.AddTestResult(pl1Param, pl1, result)

		if !result.Completed {
			e.log("PL1=%dW test did not complete: possible instability", pl1)
			revert()
			break
		}
		if result.MaxTemperature > e.constants.ThermalLimitC {
			e.log("thermal limit reached: %.1fC > %.1fC", result.MaxTemperature, e.constants.ThermalLimitC)
			revert()
			break
		}

		ratio := result.OpsPerSecond / bestPerf
		accept, err := evaluateAcceptRule(e.constants.PowerLimitAcceptRule, map[string]any{
			"ratio":                      ratio,
			"temp":                       result.MaxTemperature,
			"thermal_limit":              e.constants.ThermalLimitC,
			"perf_improvement_threshold": e.constants.PerfImprovementThreshold,
			"acceptable_perf_loss":       e.constants.AcceptablePerfLoss,
		})
		if err != nil {
			e.log("rule evaluation error: %v", err)
			revert()
			break
		}

		if accept {
			e.log("PL1=%dW accepted: +%.2f%% perf", pl1, (ratio-1)*100)
			bestPerf = result.OpsPerSecond
			bestPL1 = pl1
			prof.PowerLimit1 = pl1
			if havePL2 {
				prof.PowerLimit2 = maxInt64(currentPL2, pl1)
			}
		} else {
			e.log("PL1=%dW gave no significant improvement (%.2f%%), stopping", pl1, (ratio-1)*100)
			revert()
			break
		}
	}

	e.log("=== power-limit optimization complete: PL1=%dW ===", prof.PowerLimit1)
}

// revertPowerLimits restores PL1 (and PL2, pinned to max(currentPL2,
// bestPL1)) on any rollback path — factored into one helper because
// tuning_engine.py repeats this exact sequence in three separate
// branches (non-completion, thermal, diminishing-returns).
func (e *Engine) revertPowerLimits(prof *profile.Profile, pl1Param, pl2Param string, bestPL1, currentPL2 int64, havePL2 bool) {
	if err := e.settings.WriteValue(pl1Param, bestPL1); err == nil {
		prof.UpdateParameter(pl1Param, bestPL1)
	}
	prof.PowerLimit1 = bestPL1
	if havePL2 {
		pl2 := maxInt64(currentPL2, bestPL1)
		if err := e.settings.WriteValue(pl2Param, pl2); err == nil {
			prof.UpdateParameter(pl2Param, pl2)
		}
		prof.PowerLimit2 = pl2
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// selectPowerLimitParams partitions the discovered power parameters
// into PL1/PL2 by keyword priority, falling back to the first
// discovered parameter for PL1 and AMD's combined PPT reading (spec
// §4.4.6).
func selectPowerLimitParams(names []string) (pl1, pl2 string) {
	for _, n := range sortedCopy(names) {
		lower := strings.ToLower(n)
		switch {
		case strings.Contains(lower, "long"), strings.Contains(lower, "pl1"), strings.Contains(lower, "package power limit 1"):
			if pl1 == "" {
				pl1 = n
			}
		case strings.Contains(lower, "short"), strings.Contains(lower, "pl2"), strings.Contains(lower, "package power limit 2"):
			if pl2 == "" {
				pl2 = n
			}
		case strings.Contains(lower, "ppt"):
			if pl1 == "" {
				pl1 = n
			}
		}
	}
	if pl1 == "" && len(names) > 0 {
		pl1 = sortedCopy(names)[0]
	}
	return pl1, pl2
}

// optimizeCStates tests disabling the primary C-State control setting,
// keeping the change only if it measurably improves throughput (spec
// §4.4.7).
func (e *Engine) optimizeCStates(ctx context.Context, prof *profile.Profile) {
	e.log("=== starting C-State optimization ===")

	cstateParams, err := e.settings.FindCStateParameters()
	if err != nil || len(cstateParams) == 0 {
		e.log("no C-State parameters found, skipping stage")
		return
	}

	mainParam := selectMainCStateParam(cstateParams)
	e.log("main C-State parameter: %s", mainParam)

	currentValue, err := e.settings.ReadValue(mainParam)
	if err != nil {
		e.log("error reading %s: %v", mainParam, err)
		return
	}
	declaredType, err := e.settings.ReadType(mainParam)
	if err != nil {
		e.log("error reading type of %s: %v", mainParam, err)
		return
	}

	baseline := e.runStressTest(ctx, e.constants.ShortTestDurationSec)
	if !baseline.Completed {
		e.log("baseline test did not complete, skipping C-State stage")
		return
	}
	prof.AddTestResult(mainParam, currentValue, baseline)

	disableValue, ok := cstateDisableValue(mainParam, declaredType)
	if !ok {
		e.log("could not determine a disable value for %s, skipping stage", mainParam)
		return
	}
	if currentValue == disableValue {
		e.log("C-States already disabled (value %d), skipping test", disableValue)
		return
	}

	e.log("[cstates] testing disabled C-States (value %d)...", disableValue)
	e.checkpoints.Save(prof, "cstates_start", "testing disabled C-States")

	if err := e.settings.WriteValue(mainParam, disableValue); err != nil {
		e.log("error writing %s=%d: %v", mainParam, disableValue, err)
		return
	}
	prof.UpdateParameter(mainParam, disableValue)
	time.Sleep(settleDuration)

	result := e.runStressTest(ctx, e.constants.ShortTestDurationSec)
	prof.AddTestResult(mainParam, disableValue, result)

	if !result.Completed {
		e.log("disabled-C-State test did not complete, reverting")
		if err := e.settings.WriteValue(mainParam, currentValue); err == nil {
			prof.UpdateParameter(mainParam, currentValue)
		}
		return
	}

	ratio := result.OpsPerSecond / baseline.OpsPerSecond
	accept, err := evaluateAcceptRule(e.constants.CStateAcceptRule, map[string]any{
		"ratio":                      ratio,
		"temp":                       result.MaxTemperature,
		"thermal_limit":              e.constants.ThermalLimitC,
		"perf_improvement_threshold": e.constants.PerfImprovementThreshold,
		"acceptable_perf_loss":       e.constants.AcceptablePerfLoss,
	})
	if err != nil || !accept {
		e.log("disabling C-States gave no significant improvement (%.2f%%), reverting", (ratio-1)*100)
		if err := e.settings.WriteValue(mainParam, currentValue); err == nil {
			prof.UpdateParameter(mainParam, currentValue)
		}
		return
	}

	e.log("disabling C-States improved performance by %.2f%%, keeping", (ratio-1)*100)
	if bp, ok := prof.BiosParameters[mainParam]; ok {
		bp.BestValue = disableValue
	}
}

func selectMainCStateParam(names []string) string {
	sorted := sortedCopy(names)
	for _, keyword := range cstatePriorityKeywords {
		for _, n := range sorted {
			if strings.Contains(strings.ToLower(n), keyword) {
				return n
			}
		}
	}
	return sorted[0]
}

// cstateDisableValue implements spec §4.4.7's declared-type rule: bool
// settings disable at 0; integer settings are only handled when their
// name itself signals an enable/limit/control semantic, matching the
// source's narrower integer branch.
func cstateDisableValue(name string, declaredType setting.DeclaredType) (int64, bool) {
	if declaredType == setting.TypeBool {
		return 0, true
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "enable") || strings.Contains(lower, "package c") {
		return 0, true
	}
	if strings.Contains(lower, "limit") || strings.Contains(lower, "control") {
		return 0, true
	}
	return 0, false
}

// checkMemoryProfiles enables the first discovered XMP/DOCP profile
// setting if it isn't already enabled, marking the profile as requiring
// a reboot rather than stress-testing (spec §4.4.8: the setting only
// takes effect after reboot).
func (e *Engine) checkMemoryProfiles(prof *profile.Profile) {
	e.log("=== checking memory profiles (XMP/DOCP) ===")

	xmpParams, err := e.settings.FindXMPParameters()
	if err != nil || len(xmpParams) == 0 {
		e.log("no XMP/DOCP memory profiles found, skipping stage")
		return
	}

	param := selectXMPProfileParam(xmpParams)
	e.log("memory profile parameter: %s", param)

	currentValue, err := e.settings.ReadValue(param)
	if err != nil {
		e.log("error reading %s: %v", param, err)
		return
	}

	if currentValue > 0 {
		e.log("memory profile already enabled (value %d), skipping", currentValue)
		prof.RequiresReboot = true
		return
	}

	e.log("memory profile currently disabled; enabling it requires a reboot")
	const enableValue = 1
	if err := e.settings.WriteValue(param, enableValue); err != nil {
		e.log("error enabling memory profile: %v", err)
		return
	}
	prof.UpdateParameter(param, enableValue)
	e.log("memory profile enabled (value %d); reboot required to apply", enableValue)
	prof.RequiresReboot = true
}

func selectXMPProfileParam(names []string) string {
	for _, n := range sortedCopy(names) {
		lower := strings.ToLower(n)
		if strings.Contains(lower, "profile") && (strings.Contains(lower, "xmp") || strings.Contains(lower, "docp")) {
			return n
		}
	}
	return sortedCopy(names)[0]
}

// applySavedSettings re-applies every already-modified setting in a
// resumed Profile to firmware, rather than assuming firmware state
// matches the checkpoint (spec §6.6 supplement, from
// _apply_saved_profile_settings).
func (e *Engine) applySavedSettings(prof *profile.Profile) {
	e.log("applying saved profile settings...")
	for _, bp := range prof.GetModifiedParameters() {
		e.log("restoring parameter: %s = %d", bp.Name, bp.CurrentValue)
		if err := e.settings.WriteValue(bp.Name, bp.CurrentValue); err != nil {
			e.log("failed to restore parameter %s: %v", bp.Name, err)
		}
	}
}

// applyBestSettings is the idempotent final write pass of spec §4.4.9:
// voltage offset, PL1, PL2, then every other modified parameter with a
// best value, skipping the three already applied above.
func (e *Engine) applyBestSettings(prof *profile.Profile) {
	e.log("applying best known settings...")

	if voltageParams, err := e.settings.FindVoltageParameters(); err == nil && prof.VoltageOffsetMV != 0 {
		if param := selectByKeyword(voltageParams, "offset"); param != "" {
			e.log("setting %s = %dmV", param, prof.VoltageOffsetMV)
			if err := e.settings.WriteValue(param, prof.VoltageOffsetMV); err != nil {
				e.log("failed to set %s: %v", param, err)
			}
		}
	}

	pl1Set, pl2Set := false, false
	var pl1Name, pl2Name string
	if powerParams, err := e.settings.FindPowerLimitParameters(); err == nil {
		for _, p := range sortedCopy(powerParams) {
			lower := strings.ToLower(p)
			if !pl1Set && (strings.Contains(lower, "long") || strings.Contains(lower, "pl1")) {
				e.log("setting %s = %dW", p, prof.PowerLimit1)
				if err := e.settings.WriteValue(p, prof.PowerLimit1); err == nil {
					pl1Set = true
					pl1Name = p
				}
			} else if !pl2Set && (strings.Contains(lower, "short") || strings.Contains(lower, "pl2")) {
				e.log("setting %s = %dW", p, prof.PowerLimit2)
				if err := e.settings.WriteValue(p, prof.PowerLimit2); err == nil {
					pl2Set = true
					pl2Name = p
				}
			}
		}
	}

	for _, name := range sortedBiosParamNames(prof) {
		bp := prof.BiosParameters[name]
		if !bp.Modified {
			continue
		}
		if alreadyApplied(bp, name, pl1Name, pl2Name) {
			continue
		}
		e.log("setting %s = %d", name, bp.BestValue)
		if err := e.settings.WriteValue(name, bp.BestValue); err != nil {
			e.log("failed to set %s: %v", name, err)
		}
	}
}

func alreadyApplied(bp *profile.BiosParameter, name, pl1Name, pl2Name string) bool {
	lower := strings.ToLower(name)
	if bp.Category == setting.CategoryCPUVoltage && strings.Contains(lower, "offset") {
		return true
	}
	if name == pl1Name || name == pl2Name {
		return true
	}
	return false
}

func sortedBiosParamNames(prof *profile.Profile) []string {
	names := make([]string, 0, len(prof.BiosParameters))
	for n := range prof.BiosParameters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
