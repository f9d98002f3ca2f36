package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"os"

	"cputuner/internal/profile"
)

const (
	FormatTxt  = "txt"
	FormatXlsx = "xlsx"
)

var FormatOptions = []string{FormatTxt, FormatXlsx}

// Generate renders a Profile in the requested format, used by
// cmd/report.
func Generate(format string, prof *profile.Profile) ([]byte, error) {
	switch format {
	case FormatTxt:
		return []byte(Text(prof)), nil
	case FormatXlsx:
		return Xlsx(prof)
	default:
		return nil, fmt.Errorf("report: unsupported format %q (want one of %v)", format, FormatOptions)
	}
}

// WriteReport writes the report bytes to path, logging and returning
// any failure (cmd/report/report.go's write-then-log pattern).
func WriteReport(data []byte, path string) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		err = fmt.Errorf("report: writing %q: %w", path, err)
		slog.Error(err.Error())
		return err
	}
	return nil
}
