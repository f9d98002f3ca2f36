/*
Package report renders a completed tuning Profile as a plain-text
summary and a report.xlsx workbook (summary, modified parameters, trial
history).
*/
package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"cputuner/internal/profile"
)

const noDataFound = "No data found."

// Field is one named column of a Table; len(Values) == 1 for a
// key/value Table (HasRows == false), or one entry per row otherwise.
type Field struct {
	Name   string
	Values []string
}

// Table is a renderer-agnostic table, generalized from the teacher's
// TableValues down to the handful of shapes a tuning report needs.
type Table struct {
	Name    string
	HasRows bool
	Fields  []Field
}

var printer = message.NewPrinter(language.English)

// Tables builds the sheets/sections of a tuning report: the headline
// summary, the modified-parameter list, and the full trial history.
func Tables(prof *profile.Profile) []Table {
	return []Table{
		summaryTable(prof),
		modifiedParametersTable(prof),
		trialHistoryTable(prof),
	}
}

func summaryTable(prof *profile.Profile) Table {
	field := func(name, value string) Field { return Field{Name: name, Values: []string{value}} }
	fields := []Field{
		field("Profile", prof.ProfileName),
		field("CPU", prof.CPUModel),
		field("Created", prof.CreationTimestamp),
		field("Stable", fmt.Sprintf("%v", prof.IsStable)),
		field("Requires reboot", fmt.Sprintf("%v", prof.RequiresReboot)),
		field("Power Limit 1 (W)", fmt.Sprintf("%d", prof.PowerLimit1)),
		field("Power Limit 2 (W)", fmt.Sprintf("%d", prof.PowerLimit2)),
		field("Voltage Offset (mV)", fmt.Sprintf("%d", prof.VoltageOffsetMV)),
		field("Max Temperature Observed (C)", fmt.Sprintf("%.1f", prof.MaxTemperature)),
	}
	if prof.BaselineResults != nil {
		fields = append(fields,
			field("Baseline ops/sec", printer.Sprintf("%.0f", prof.BaselineResults.OpsPerSecond)),
			field("Baseline avg temp (C)", fmt.Sprintf("%.1f", prof.BaselineResults.AvgTemperature)))
	}
	if prof.BestResults != nil {
		fields = append(fields,
			field("Best ops/sec", printer.Sprintf("%.0f", prof.BestResults.OpsPerSecond)),
			field("Best avg temp (C)", fmt.Sprintf("%.1f", prof.BestResults.AvgTemperature)))
	}
	if prof.BaselineResults != nil && prof.BestResults != nil && prof.BaselineResults.OpsPerSecond > 0 {
		improvement := (prof.BestResults.OpsPerSecond/prof.BaselineResults.OpsPerSecond - 1) * 100
		fields = append(fields, field("Performance improvement", fmt.Sprintf("%.2f%%", improvement)))
	}
	return Table{Name: "Summary", HasRows: false, Fields: fields}
}

func modifiedParametersTable(prof *profile.Profile) Table {
	mods := prof.GetModifiedParameters()
	name := make([]string, 0, len(mods))
	category := make([]string, 0, len(mods))
	def := make([]string, 0, len(mods))
	current := make([]string, 0, len(mods))
	best := make([]string, 0, len(mods))
	for _, bp := range mods {
		name = append(name, bp.Name)
		category = append(category, string(bp.Category))
		def = append(def, fmt.Sprintf("%d", bp.DefaultValue))
		current = append(current, fmt.Sprintf("%d", bp.CurrentValue))
		best = append(best, fmt.Sprintf("%d", bp.BestValue))
	}
	return Table{
		Name:    "Modified Parameters",
		HasRows: true,
		Fields: []Field{
			{Name: "Parameter", Values: name},
			{Name: "Category", Values: category},
			{Name: "Default", Values: def},
			{Name: "Current", Values: current},
			{Name: "Best", Values: best},
		},
	}
}

func trialHistoryTable(prof *profile.Profile) Table {
	ts := make([]string, 0, len(prof.TestHistory))
	param := make([]string, 0, len(prof.TestHistory))
	tried := make([]string, 0, len(prof.TestHistory))
	ops := make([]string, 0, len(prof.TestHistory))
	temp := make([]string, 0, len(prof.TestHistory))
	completed := make([]string, 0, len(prof.TestHistory))
	delta := make([]string, 0, len(prof.TestHistory))
	for _, entry := range prof.TestHistory {
		ts = append(ts, entry.Timestamp)
		param = append(param, entry.ParameterName)
		tried = append(tried, fmt.Sprintf("%d", entry.TriedValue))
		ops = append(ops, printer.Sprintf("%.0f", entry.Result.OpsPerSecond))
		temp = append(temp, fmt.Sprintf("%.1f", entry.Result.MaxTemperature))
		completed = append(completed, fmt.Sprintf("%v", entry.Result.Completed))
		delta = append(delta, fmt.Sprintf("%.2f%%", entry.PerfDeltaPercent))
	}
	return Table{
		Name:    "Trial History",
		HasRows: true,
		Fields: []Field{
			{Name: "Timestamp", Values: ts},
			{Name: "Parameter", Values: param},
			{Name: "Tried Value", Values: tried},
			{Name: "Ops/Sec", Values: ops},
			{Name: "Max Temp (C)", Values: temp},
			{Name: "Completed", Values: completed},
			{Name: "Perf Delta", Values: delta},
		},
	}
}
