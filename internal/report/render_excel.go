package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"cputuner/internal/profile"
)

// sheetName is the single worksheet a tuning report needs — unlike the
// teacher's per-target, per-table-category workbook, one run produces
// one profile and one set of tables.
const sheetName = "Tuning Report"

func cellName(col, row int) string {
	columnName, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return ""
	}
	name, err := excelize.JoinCellName(columnName, row)
	if err != nil {
		return ""
	}
	return name
}

// getValueForCell lets excelize store numeric-looking strings as
// numbers so spreadsheet formulas over the trial history work, exactly
// as the teacher's render_excel.go does for its metric tables.
func getValueForCell(value string) any {
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func renderXlsxTable(table Table, f *excelize.File, row *int) {
	col := 1
	boldStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = f.SetCellValue(sheetName, cellName(col, *row), table.Name)
	_ = f.SetCellStyle(sheetName, cellName(col, *row), cellName(col, *row), boldStyle)
	*row++
	if len(table.Fields) == 0 || len(table.Fields[0].Values) == 0 {
		_ = f.SetCellValue(sheetName, cellName(col, *row), noDataFound)
		*row += 2
		return
	}
	if table.HasRows {
		col = 1
		for _, field := range table.Fields {
			_ = f.SetCellValue(sheetName, cellName(col, *row), field.Name)
			_ = f.SetCellStyle(sheetName, cellName(col, *row), cellName(col, *row), boldStyle)
			col++
		}
		*row++
		rows := len(table.Fields[0].Values)
		for r := 0; r < rows; r++ {
			col = 1
			for _, field := range table.Fields {
				_ = f.SetCellValue(sheetName, cellName(col, *row), getValueForCell(field.Values[r]))
				col++
			}
			*row++
		}
	} else {
		for _, field := range table.Fields {
			var value string
			if len(field.Values) > 0 {
				value = field.Values[0]
			}
			_ = f.SetCellValue(sheetName, cellName(1, *row), field.Name)
			_ = f.SetCellValue(sheetName, cellName(2, *row), getValueForCell(value))
			*row++
		}
	}
	*row++
}

// Xlsx renders the tuning report workbook: summary, modified
// parameters, and trial history, one below another on a single sheet,
// generalizing the teacher's render_excel.go sheet/row-writer idiom
// from hardware-feature tables to tuning-trial tables.
func Xlsx(prof *profile.Profile) ([]byte, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheetName)
	_ = f.SetColWidth(sheetName, "A", "A", 28)
	_ = f.SetColWidth(sheetName, "B", "H", 20)

	row := 1
	for _, table := range Tables(prof) {
		renderXlsxTable(table, f, &row)
	}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if _, err := f.WriteTo(w); err != nil {
		return nil, fmt.Errorf("report: writing xlsx: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("report: flushing xlsx buffer: %w", err)
	}
	return buf.Bytes(), nil
}
