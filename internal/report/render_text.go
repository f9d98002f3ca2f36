package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"cputuner/internal/profile"
)

// Text renders the plain-text report: the Profile's own narrative
// summary (cpu_profile.py's generate_report) followed by the
// modified-parameter and trial history tables, column-aligned the same way
// `cmd/plugins/command.go` aligns its own tabular CLI output.
func Text(prof *profile.Profile) string {
	var b strings.Builder
	b.WriteString(prof.GenerateReport())
	b.WriteString("\n")
	for _, table := range []Table{modifiedParametersTable(prof), trialHistoryTable(prof)} {
		b.WriteString(renderTextTable(table))
	}
	return b.String()
}

// columnSpacing mirrors the teacher's minimum gap between columns.
const columnSpacing = 3

func renderTextTable(t Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", t.Name, strings.Repeat("=", len(t.Name)))
	if len(t.Fields) == 0 || len(t.Fields[0].Values) == 0 {
		b.WriteString(noDataFound + "\n\n")
		return b.String()
	}

	tw := tabwriter.NewWriter(&b, 0, 0, columnSpacing, ' ', 0)
	if t.HasRows {
		writeRowTable(tw, t)
	} else {
		writeKeyValueTable(tw, t)
	}
	_ = tw.Flush()
	b.WriteString("\n")
	return b.String()
}

// writeRowTable lays out a column-headed table: field names, an
// underline rule, then one tab-separated line per row. tabwriter sizes
// each column to its widest cell, so unlike a fixed-width scheme no
// column is computed or padded by hand here.
func writeRowTable(tw *tabwriter.Writer, t Table) {
	names := make([]string, len(t.Fields))
	underlines := make([]string, len(t.Fields))
	for i, field := range t.Fields {
		names[i] = field.Name
		underlines[i] = strings.Repeat("-", len(field.Name))
	}
	fmt.Fprintln(tw, strings.Join(names, "\t"))
	fmt.Fprintln(tw, strings.Join(underlines, "\t"))

	rows := len(t.Fields[0].Values)
	for row := 0; row < rows; row++ {
		cells := make([]string, len(t.Fields))
		for i, field := range t.Fields {
			cells[i] = field.Values[row]
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
}

// writeKeyValueTable lays out a two-column "Name: Value" table, one
// field per line, with tabwriter aligning the values.
func writeKeyValueTable(tw *tabwriter.Writer, t Table) {
	for _, field := range t.Fields {
		var value string
		if len(field.Values) > 0 {
			value = field.Values[0]
		}
		fmt.Fprintf(tw, "%s:\t%s\n", field.Name, value)
	}
}
