package engine

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cputuner/internal/monitor"
	"cputuner/internal/profile"
	"cputuner/internal/setting"
	"cputuner/internal/stress"
)

// fakeSettings is an in-memory SettingStore: values keyed by name, with
// declared types and bucket membership fixed at construction.
type fakeSettings struct {
	values      map[string]int64
	types       map[string]setting.DeclaredType
	power       []string
	voltage     []string
	xmp         []string
	cstate      []string
	buckets     map[setting.PerformanceBucket][]string
	writeErrs   map[string]error
	backupCalls int
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{
		values:    make(map[string]int64),
		types:     make(map[string]setting.DeclaredType),
		buckets:   make(map[setting.PerformanceBucket][]string),
		writeErrs: make(map[string]error),
	}
}

func (f *fakeSettings) ReadValue(name string) (int64, error) {
	v, ok := f.values[name]
	if !ok {
		return 0, fmt.Errorf("fakeSettings: %q not found", name)
	}
	return v, nil
}

func (f *fakeSettings) ReadType(name string) (setting.DeclaredType, error) {
	t, ok := f.types[name]
	if !ok {
		return "", fmt.Errorf("fakeSettings: %q not found", name)
	}
	return t, nil
}

func (f *fakeSettings) WriteValue(name string, newValue any) error {
	if err, ok := f.writeErrs[name]; ok && err != nil {
		return err
	}
	v, ok := newValue.(int64)
	if !ok {
		return fmt.Errorf("fakeSettings: unsupported value type %T", newValue)
	}
	f.values[name] = v
	return nil
}

func (f *fakeSettings) FindPowerLimitParameters() ([]string, error) { return f.power, nil }
func (f *fakeSettings) FindVoltageParameters() ([]string, error)    { return f.voltage, nil }
func (f *fakeSettings) FindXMPParameters() ([]string, error)        { return f.xmp, nil }
func (f *fakeSettings) FindCStateParameters() ([]string, error)     { return f.cstate, nil }
func (f *fakeSettings) FindAllPerformanceParameters() (map[setting.PerformanceBucket][]string, error) {
	return f.buckets, nil
}
func (f *fakeSettings) SnapshotBackup() error {
	f.backupCalls++
	return nil
}
func (f *fakeSettings) RestoreFrom(path string) bool { return true }
func (f *fakeSettings) BackupPath() string           { return "" }

// scriptedStress returns canned results in sequence, ignoring duration.
type scriptedStress struct {
	results []profile.StressTestResult
	calls   int
}

func (s *scriptedStress) Run(ctx context.Context, durationSeconds int, mon stress.Monitor, onProgress stress.ProgressFunc) profile.StressTestResult {
	if s.calls >= len(s.results) {
		return s.results[len(s.results)-1]
	}
	r := s.results[s.calls]
	s.calls++
	return r
}

// fakeCheckpoints records every Save call and serves Load from an
// in-memory map keyed by filename.
type fakeCheckpoints struct {
	saved  []string
	loaded map[string]loadedCheckpoint
}

type loadedCheckpoint struct {
	prof   *profile.Profile
	stage  string
	detail string
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{loaded: make(map[string]loadedCheckpoint)}
}

func (c *fakeCheckpoints) Save(p *profile.Profile, stage, detail string) (string, error) {
	c.saved = append(c.saved, stage)
	return "checkpoint_" + stage + ".json", nil
}

func (c *fakeCheckpoints) Load(filename string) (*profile.Profile, string, string, error) {
	lc, ok := c.loaded[filename]
	if !ok {
		return nil, "", "", fmt.Errorf("fakeCheckpoints: %q not found", filename)
	}
	return lc.prof, lc.stage, lc.detail, nil
}

func completed(ops, maxTemp float64) profile.StressTestResult {
	return profile.StressTestResult{OpsPerSecond: ops, MaxTemperature: maxTemp, AvgTemperature: maxTemp - 5, Completed: true}
}

func incomplete() profile.StressTestResult {
	return profile.StressTestResult{Completed: false}
}

func testEngine(settings *fakeSettings, stressRunner *scriptedStress, checkpoints *fakeCheckpoints, logs *[]string) *Engine {
	logFn := func(msg string) {
		if logs != nil {
			*logs = append(*logs, msg)
		}
	}
	return New(settings, fakeMonitorForEngine{}, stressRunner, checkpoints, DefaultConstants(), logFn)
}

// fakeMonitorForEngine satisfies the full monitor.Monitor interface
// used by *Engine (CollectSystemInfo must return monitor.SystemInfo,
// not the narrower stress.Monitor surface).
type fakeMonitorForEngine struct{}

func (fakeMonitorForEngine) ReadCPUData() (float64, float64, float64) { return 60, 80, 50 }
func (fakeMonitorForEngine) CPUFrequencies() map[string]float64 {
	return map[string]float64{"average": 3.5}
}
func (fakeMonitorForEngine) CollectSystemInfo() monitor.SystemInfo {
	return monitor.SystemInfo{CPUModel: "Test CPU", LogicalCores: 8}
}
func (fakeMonitorForEngine) MaxTempSession() float64  { return 60 }
func (fakeMonitorForEngine) MaxPowerSession() float64 { return 80 }

func TestExecuteTuningHappyUndervolt(t *testing.T) {
	t.Chdir(t.TempDir())
	settings := newFakeSettings()
	settings.values["Core Voltage Offset"] = 0
	settings.voltage = []string{"Core Voltage Offset"}

	stressRunner := &scriptedStress{results: []profile.StressTestResult{
		completed(1000, 70), // baseline
		completed(1000, 70), // undervolt baseline
		completed(1010, 70), // offset -20
		incomplete(),        // offset -40 fails -> stop, revert to -20
		completed(1010, 70), // final stress test
	}}
	checkpoints := newFakeCheckpoints()
	var logs []string
	eng := testEngine(settings, stressRunner, checkpoints, &logs)

	prof, err := eng.ExecuteTuning(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, prof)
	require.True(t, prof.IsStable)
	require.Equal(t, int64(-20), prof.VoltageOffsetMV)
	require.Equal(t, int64(-20), settings.values["Core Voltage Offset"])
	require.Equal(t, 1, settings.backupCalls, "cold start takes exactly one firmware backup")
}

func TestExecuteTuningBaselineUnstableAborts(t *testing.T) {
	t.Chdir(t.TempDir())
	settings := newFakeSettings()
	stressRunner := &scriptedStress{results: []profile.StressTestResult{incomplete()}}
	checkpoints := newFakeCheckpoints()
	eng := testEngine(settings, stressRunner, checkpoints, nil)

	prof, err := eng.ExecuteTuning(context.Background(), "")
	require.ErrorIs(t, err, ErrBaselineUnstable)
	require.NotNil(t, prof)
	require.False(t, prof.IsStable)
}

func TestExecuteTuningRejectsConcurrentRun(t *testing.T) {
	settings := newFakeSettings()
	stressRunner := &scriptedStress{results: []profile.StressTestResult{completed(1000, 70)}}
	checkpoints := newFakeCheckpoints()
	eng := testEngine(settings, stressRunner, checkpoints, nil)

	eng.running.Store(true)
	_, err := eng.ExecuteTuning(context.Background(), "")
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

// abortingStress calls back into the Engine to request an abort as
// soon as the first (baseline) stress test runs, simulating a
// concurrent caller invoking Abort mid-run — ExecuteTuning clears the
// abort flag at entry, so requesting it beforehand would be a no-op.
type abortingStress struct {
	eng    *Engine
	result profile.StressTestResult
}

func (s *abortingStress) Run(ctx context.Context, durationSeconds int, mon stress.Monitor, onProgress stress.ProgressFunc) profile.StressTestResult {
	s.eng.Abort()
	return s.result
}

func TestExecuteTuningAbortStopsBetweenStages(t *testing.T) {
	t.Chdir(t.TempDir())
	settings := newFakeSettings()
	stressRunner := &abortingStress{result: completed(1000, 70)}
	checkpoints := newFakeCheckpoints()
	var logs []string
	logFn := func(msg string) { logs = append(logs, msg) }
	eng := New(settings, fakeMonitorForEngine{}, stressRunner, checkpoints, DefaultConstants(), logFn)
	stressRunner.eng = eng

	prof, err := eng.ExecuteTuning(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, prof)
	require.Contains(t, strings.Join(logs, "\n"), "tuning aborted after baseline")
}

// blockingStress never returns on its own; it only stops when ctx is
// canceled, standing in for a real stress test that's still sampling
// when Abort is called.
type blockingStress struct{}

func (blockingStress) Run(ctx context.Context, durationSeconds int, mon stress.Monitor, onProgress stress.ProgressFunc) profile.StressTestResult {
	<-ctx.Done()
	return incomplete()
}

func TestAbortCancelsInFlightStressTest(t *testing.T) {
	t.Chdir(t.TempDir())
	settings := newFakeSettings()
	checkpoints := newFakeCheckpoints()
	eng := New(settings, fakeMonitorForEngine{}, blockingStress{}, checkpoints, DefaultConstants(), nil)

	done := make(chan struct{})
	var prof *profile.Profile
	var err error
	go func() {
		prof, err = eng.ExecuteTuning(context.Background(), "")
		close(done)
	}()

	// Give ExecuteTuning a moment to reach the baseline stress test and
	// start blocking on ctx.Done(); there's no other signal to wait on.
	time.Sleep(20 * time.Millisecond)
	eng.Abort()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ExecuteTuning did not return after Abort canceled the in-flight stress test")
	}
	require.ErrorIs(t, err, ErrBaselineUnstable)
	require.NotNil(t, prof)
	require.False(t, prof.IsStable)
}

func TestExecuteTuningResumesFromCheckpoint(t *testing.T) {
	t.Chdir(t.TempDir())
	settings := newFakeSettings()
	settings.values["Core Voltage Offset"] = -20
	settings.voltage = []string{"Core Voltage Offset"}

	saved := profile.New("resumed")
	saved.RegisterBiosParameter(profile.NewBiosParameter("Core Voltage Offset", -20, 0, setting.CategoryCPUVoltage))
	saved.UpdateParameter("Core Voltage Offset", -20)
	saved.VoltageOffsetMV = -20
	saved.BaselineResults = &profile.StressTestResult{OpsPerSecond: 1000, MaxTemperature: 70, Completed: true}
	saved.BestResults = saved.BaselineResults

	checkpoints := newFakeCheckpoints()
	checkpoints.loaded["checkpoint_power_limits.json"] = loadedCheckpoint{prof: saved, stage: StagePowerLimits, detail: ""}

	stressRunner := &scriptedStress{results: []profile.StressTestResult{
		completed(1010, 70), // final stress test
	}}
	var logs []string
	eng := testEngine(settings, stressRunner, checkpoints, &logs)

	prof, err := eng.ExecuteTuning(context.Background(), "checkpoint_power_limits.json")
	require.NoError(t, err)
	require.NotNil(t, prof)
	require.Equal(t, "resumed", prof.ProfileName)
	require.Contains(t, strings.Join(logs, "\n"), "restoring parameter: Core Voltage Offset")
	require.Contains(t, checkpoints.saved, StageCStates)
	require.Contains(t, checkpoints.saved, StageMemory)
	require.Zero(t, settings.backupCalls, "resume reuses the backup the original cold start already took")
}

func TestPerformUndervoltingSkipsWhenNoVoltageParams(t *testing.T) {
	settings := newFakeSettings()
	stressRunner := &scriptedStress{}
	checkpoints := newFakeCheckpoints()
	var logs []string
	eng := testEngine(settings, stressRunner, checkpoints, &logs)

	prof := profile.New("test")
	eng.performUndervolting(context.Background(), prof)

	require.Contains(t, strings.Join(logs, "\n"), "no CPU voltage parameters found")
	require.Equal(t, int64(0), prof.VoltageOffsetMV)
}

func TestOptimizePowerLimitsStopsAtThermalLimit(t *testing.T) {
	settings := newFakeSettings()
	settings.values["Long Duration Power Limit"] = 65
	settings.values["Short Duration Power Limit"] = 80
	settings.power = []string{"Long Duration Power Limit", "Short Duration Power Limit"}

	stressRunner := &scriptedStress{results: []profile.StressTestResult{
		completed(1000, 70), // baseline
		completed(1100, 95), // PL1=70W trips thermal limit
	}}
	checkpoints := newFakeCheckpoints()
	var logs []string
	eng := testEngine(settings, stressRunner, checkpoints, &logs)

	prof := profile.New("test")
	prof.PowerLimit1 = 65
	prof.PowerLimit2 = 80
	prof.RegisterBiosParameter(profile.NewBiosParameter("Long Duration Power Limit", 65, 65, setting.CategoryCPUPower))
	prof.RegisterBiosParameter(profile.NewBiosParameter("Short Duration Power Limit", 80, 80, setting.CategoryCPUPower))

	eng.optimizePowerLimits(context.Background(), prof)

	require.Equal(t, int64(65), prof.PowerLimit1)
	require.Equal(t, int64(65), settings.values["Long Duration Power Limit"])
	require.Contains(t, strings.Join(logs, "\n"), "thermal limit reached")
}

func TestOptimizeCStatesKeepsImprovement(t *testing.T) {
	settings := newFakeSettings()
	settings.values["Package C State Limit"] = 1
	settings.types["Package C State Limit"] = setting.TypeInt
	settings.cstate = []string{"Package C State Limit"}

	stressRunner := &scriptedStress{results: []profile.StressTestResult{
		completed(1000, 70), // baseline
		completed(1050, 70), // disabled
	}}
	checkpoints := newFakeCheckpoints()
	eng := testEngine(settings, stressRunner, checkpoints, nil)

	prof := profile.New("test")
	prof.RegisterBiosParameter(profile.NewBiosParameter("Package C State Limit", 1, 1, setting.CategoryCPUFeatures))

	eng.optimizeCStates(context.Background(), prof)

	require.Equal(t, int64(0), settings.values["Package C State Limit"])
}

func TestOptimizeCStatesRevertsWithoutImprovement(t *testing.T) {
	settings := newFakeSettings()
	settings.values["Package C State Limit"] = 1
	settings.types["Package C State Limit"] = setting.TypeInt
	settings.cstate = []string{"Package C State Limit"}

	stressRunner := &scriptedStress{results: []profile.StressTestResult{
		completed(1000, 70), // baseline
		completed(1002, 70), // disabled, negligible gain
	}}
	checkpoints := newFakeCheckpoints()
	eng := testEngine(settings, stressRunner, checkpoints, nil)

	prof := profile.New("test")
	prof.RegisterBiosParameter(profile.NewBiosParameter("Package C State Limit", 1, 1, setting.CategoryCPUFeatures))

	eng.optimizeCStates(context.Background(), prof)

	require.Equal(t, int64(1), settings.values["Package C State Limit"])
}

func TestCheckMemoryProfilesEnablesAndRequiresReboot(t *testing.T) {
	settings := newFakeSettings()
	settings.values["XMP Profile"] = 0
	settings.xmp = []string{"XMP Profile"}
	checkpoints := newFakeCheckpoints()
	eng := testEngine(settings, &scriptedStress{}, checkpoints, nil)

	prof := profile.New("test")
	prof.RegisterBiosParameter(profile.NewBiosParameter("XMP Profile", 0, 0, setting.CategoryMemory))

	eng.checkMemoryProfiles(prof)

	require.True(t, prof.RequiresReboot)
	require.Equal(t, int64(1), settings.values["XMP Profile"])
}

func TestApplyBestSettingsWritesEachCategoryOnce(t *testing.T) {
	settings := newFakeSettings()
	settings.values["Long Duration Power Limit"] = 65
	settings.values["Short Duration Power Limit"] = 80
	settings.values["Core Voltage Offset"] = 0
	settings.power = []string{"Long Duration Power Limit", "Short Duration Power Limit"}
	settings.voltage = []string{"Core Voltage Offset"}
	checkpoints := newFakeCheckpoints()
	eng := testEngine(settings, &scriptedStress{}, checkpoints, nil)

	prof := profile.New("test")
	prof.PowerLimit1 = 75
	prof.PowerLimit2 = 90
	prof.VoltageOffsetMV = -40
	prof.RegisterBiosParameter(profile.NewBiosParameter("Long Duration Power Limit", 65, 65, setting.CategoryCPUPower))
	prof.RegisterBiosParameter(profile.NewBiosParameter("Short Duration Power Limit", 80, 80, setting.CategoryCPUPower))
	prof.RegisterBiosParameter(profile.NewBiosParameter("Core Voltage Offset", 0, 0, setting.CategoryCPUVoltage))
	prof.UpdateParameter("Long Duration Power Limit", 75)
	prof.UpdateParameter("Short Duration Power Limit", 90)
	prof.UpdateParameter("Core Voltage Offset", -40)

	eng.applyBestSettings(prof)

	require.Equal(t, int64(75), settings.values["Long Duration Power Limit"])
	require.Equal(t, int64(90), settings.values["Short Duration Power Limit"])
	require.Equal(t, int64(-40), settings.values["Core Voltage Offset"])
}

func TestUndervoltStepsDescendFromCurrentOffset(t *testing.T) {
	require.Equal(t, []int64{-20, -40, -60, -80, -100}, undervoltSteps(0))
	steps := undervoltSteps(-40)
	require.NotEmpty(t, steps)
	for _, s := range steps {
		require.Less(t, s, int64(-40))
	}
}

func TestSelectPowerLimitParamsPrefersLongShortNaming(t *testing.T) {
	pl1, pl2 := selectPowerLimitParams([]string{"Short Duration Power Limit", "Long Duration Power Limit"})
	require.Equal(t, "Long Duration Power Limit", pl1)
	require.Equal(t, "Short Duration Power Limit", pl2)
}

func TestEvaluateAcceptRule(t *testing.T) {
	ok, err := evaluateAcceptRule("ratio >= perf_improvement_threshold", map[string]any{
		"ratio":                      1.02,
		"perf_improvement_threshold": 1.01,
	})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = evaluateAcceptRule("ratio >= perf_improvement_threshold", map[string]any{
		"ratio":                      1.0,
		"perf_improvement_threshold": 1.01,
	})
	require.NoError(t, err)
	require.False(t, ok)
}
