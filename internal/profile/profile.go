/*
Package profile holds the in-memory record of discovered firmware
settings, their modifications, per-trial history, and best-known
results for one tuning run — the Profile Model (C4).
*/
package profile

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"cputuner/internal/setting"
	"cputuner/internal/util"
)

// bestResultMargin is the minimum improvement over the previous best
// ops/sec required before a trial is promoted to a parameter's best
// known value (cpu_profile.py's add_test_result applies the same 1.01
// margin the Engine uses for its own "improve" stages).
const bestResultMargin = 1.01

// StressTestResult is one completed or aborted stress-test measurement.
type StressTestResult struct {
	OpsPerSecond   float64 `json:"ops_per_second"`
	MaxTemperature float64 `json:"max_temperature"`
	AvgTemperature float64 `json:"avg_temperature"`
	MaxPower       float64 `json:"max_power"`
	AvgPower       float64 `json:"avg_power"`
	TestDuration   float64 `json:"test_duration"`
	CPUFrequency   float64 `json:"cpu_frequency"`
	Completed      bool    `json:"completed"`
}

// BiosParameter is one discovered firmware setting tracked across the
// tuning run: its current/default/best values, every value tried, and
// whether it has ever been modified away from its default.
type BiosParameter struct {
	Name            string           `json:"name"`
	CurrentValue    int64            `json:"current_value"`
	DefaultValue    int64            `json:"default_value"`
	Modified        bool             `json:"modified"`
	TestedValues    []int64          `json:"tested_values"`
	BestValue       int64            `json:"best_value"`
	Category        setting.Category `json:"category"`
	Description     string           `json:"description,omitempty"`
	ImpactPercent   float64          `json:"impact_pct"`
	StabilityImpact bool             `json:"stability_impact"`
}

// NewBiosParameter registers a discovered setting. BestValue defaults to
// currentValue so it is never the zero-of-unset sentinel — invariant
// from spec §3 ("best_value is never null after construction").
func NewBiosParameter(name string, currentValue, defaultValue int64, category setting.Category) *BiosParameter {
	return &BiosParameter{
		Name:         name,
		CurrentValue: currentValue,
		DefaultValue: defaultValue,
		BestValue:    currentValue,
		Category:     category,
	}
}

// TestHistoryEntry is one (write, settle, stress, measure) trial record.
type TestHistoryEntry struct {
	Timestamp        string           `json:"timestamp"`
	ParameterName    string           `json:"parameter_name"`
	TriedValue       int64            `json:"tried_value"`
	Result           StressTestResult `json:"result"`
	PerfDeltaPercent float64          `json:"perf_delta_pct"`
}

// Profile is the full record of one tuning run: headline settings,
// every discovered BiosParameter, the ordered trial history, and the
// baseline/best stress-test results.
type Profile struct {
	PowerLimit1       int64                     `json:"power_limit1"`
	PowerLimit2       int64                     `json:"power_limit2"`
	VoltageOffsetMV   int64                     `json:"voltage_offset_mv"`
	MaxTemperature    float64                   `json:"max_temperature"`
	MeasuredPerfScore float64                   `json:"measured_perf_score"`
	CPUModel          string                    `json:"cpu_model"`
	ProfileName       string                    `json:"profile_name"`
	CreationTimestamp string                    `json:"creation_timestamp"`
	Description       string                    `json:"description,omitempty"`
	IsStable          bool                      `json:"is_stable"`
	RequiresReboot    bool                      `json:"requires_reboot"`
	BiosParameters    map[string]*BiosParameter `json:"bios_parameters"`
	TestHistory       []TestHistoryEntry        `json:"test_history"`
	BaselineResults   *StressTestResult         `json:"baseline_results,omitempty"`
	BestResults       *StressTestResult         `json:"best_results,omitempty"`
}

// New creates an empty Profile, as at engine cold start.
func New(name string) *Profile {
	if name == "" {
		name = "default_profile"
	}
	return &Profile{
		ProfileName:       name,
		CreationTimestamp: time.Now().UTC().Format(time.RFC3339),
		IsStable:          true,
		BiosParameters:    make(map[string]*BiosParameter),
	}
}

// RegisterBiosParameter adds or replaces a discovered setting.
func (p *Profile) RegisterBiosParameter(bp *BiosParameter) {
	p.BiosParameters[bp.Name] = bp
}

// UpdateParameter records a new committed value for an already
// registered setting, flipping Modified when it departs the default.
func (p *Profile) UpdateParameter(name string, newValue int64) error {
	bp, ok := p.BiosParameters[name]
	if !ok {
		return fmt.Errorf("parameter %q not registered in profile", name)
	}
	bp.CurrentValue = newValue
	if newValue != bp.DefaultValue {
		bp.Modified = true
	}
	return nil
}

// calculatePerfDiff computes a result's percentage delta against the
// profile's baseline, or 0 if no baseline is set yet.
func (p *Profile) calculatePerfDiff(result StressTestResult) float64 {
	if p.BaselineResults == nil || p.BaselineResults.OpsPerSecond == 0 {
		return 0
	}
	return (result.OpsPerSecond - p.BaselineResults.OpsPerSecond) / p.BaselineResults.OpsPerSecond * 100
}

// AddTestResult appends a trial to the history and, for registered
// parameters, additionally promotes the trial to the parameter's best
// known value whenever it completed and beat BestResults by
// bestResultMargin — a parameter-level bookkeeping check distinct from
// (and in addition to) the Engine's own per-stage best-tracking, kept
// because cpu_profile.py performs both.
func (p *Profile) AddTestResult(parameterName string, triedValue int64, result StressTestResult) {
	entry := TestHistoryEntry{
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ParameterName:    parameterName,
		TriedValue:       triedValue,
		Result:           result,
		PerfDeltaPercent: p.calculatePerfDiff(result),
	}
	p.TestHistory = append(p.TestHistory, entry)

	bp, ok := p.BiosParameters[parameterName]
	if !ok {
		return
	}
	bp.TestedValues = append(bp.TestedValues, triedValue)

	if result.Completed && (p.BestResults == nil || result.OpsPerSecond > p.BestResults.OpsPerSecond*bestResultMargin) {
		bp.BestValue = triedValue
		resultCopy := result
		p.BestResults = &resultCopy
	}
}

// GetModifiedParameters returns every parameter that has departed its
// default value at some point, ordered by name for deterministic reports.
func (p *Profile) GetModifiedParameters() []*BiosParameter {
	var mods []*BiosParameter
	for _, bp := range p.BiosParameters {
		if bp.Modified {
			mods = append(mods, bp)
		}
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Name < mods[j].Name })
	return mods
}

// Clone returns a detached deep copy; nothing in the Engine or the
// report package calls it (spec §9 prefers this
// over the Python source's wholesale deepcopy-for-experiments pattern,
// since Go's map/slice fields carry no aliasing hazard once copied).
func (p *Profile) Clone() *Profile {
	data, err := json.Marshal(p)
	if err != nil {
		panic(fmt.Sprintf("profile: clone marshal: %v", err))
	}
	var out Profile
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("profile: clone unmarshal: %v", err))
	}
	return &out
}

// ToJSON serializes the profile for persistence.
func (p *Profile) ToJSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// FromJSON deserializes a profile previously produced by ToJSON.
func FromJSON(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profile: parsing JSON: %w", err)
	}
	if p.BiosParameters == nil {
		p.BiosParameters = make(map[string]*BiosParameter)
	}
	return &p, nil
}

// SaveToFile atomically writes the profile to path.
func (p *Profile) SaveToFile(path string) error {
	data, err := p.ToJSON()
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(path, data, 0644)
}

// LoadFromFile reads and parses a profile previously written by SaveToFile.
func LoadFromFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: reading %q: %w", path, err)
	}
	return FromJSON(data)
}

// GenerateReport renders the text summary used by cmd/report and the
// Engine's end-of-run log line: headline settings, baseline-vs-best
// throughput and temperature, and the modified-parameter list.
func (p *Profile) GenerateReport() string {
	printer := message.NewPrinter(language.English)
	var b strings.Builder

	fmt.Fprintf(&b, "Profile: %s\n", p.ProfileName)
	fmt.Fprintf(&b, "CPU: %s\n", p.CPUModel)
	fmt.Fprintf(&b, "Created: %s\n", p.CreationTimestamp)
	fmt.Fprintf(&b, "Stable: %v   Requires reboot: %v\n\n", p.IsStable, p.RequiresReboot)

	fmt.Fprintf(&b, "Power Limit 1: %d W\n", p.PowerLimit1)
	fmt.Fprintf(&b, "Power Limit 2: %d W\n", p.PowerLimit2)
	fmt.Fprintf(&b, "Voltage Offset: %d mV\n", p.VoltageOffsetMV)
	fmt.Fprintf(&b, "Max Temperature Observed: %.1f C\n\n", p.MaxTemperature)

	if p.BaselineResults != nil {
		printer.Fprintf(&b, "Baseline: %.0f ops/sec, %.1f C avg temp\n",
			p.BaselineResults.OpsPerSecond, p.BaselineResults.AvgTemperature)
	}
	if p.BestResults != nil {
		printer.Fprintf(&b, "Best:     %.0f ops/sec, %.1f C avg temp\n",
			p.BestResults.OpsPerSecond, p.BestResults.AvgTemperature)
	}
	if p.BaselineResults != nil && p.BestResults != nil && p.BaselineResults.OpsPerSecond > 0 {
		improvement := (p.BestResults.OpsPerSecond/p.BaselineResults.OpsPerSecond - 1) * 100
		fmt.Fprintf(&b, "Performance improvement: %.2f%%\n", improvement)
	}

	mods := p.GetModifiedParameters()
	fmt.Fprintf(&b, "\nModified parameters (%d):\n", len(mods))
	for _, bp := range mods {
		fmt.Fprintf(&b, "  %-40s %d -> %d (best %d)\n", bp.Name, bp.DefaultValue, bp.CurrentValue, bp.BestValue)
	}

	return b.String()
}
