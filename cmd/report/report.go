// Package report implements the "report" subcommand: rendering a
// completed tuning Profile as text and/or an xlsx workbook.
package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"cputuner/internal/app"
	"cputuner/internal/checkpoint"
	"cputuner/internal/profile"
	"cputuner/internal/report"
)

const (
	cmdName             = "report"
	bestProfileFilename = "best_profile.json"
)

var (
	flagInput  string
	flagFormat string
)

var Cmd = &cobra.Command{
	Use:   cmdName,
	Short: "Render the optimized profile as a text and/or xlsx report",
	RunE:  run,
}

func init() {
	Cmd.Flags().StringVar(&flagInput, app.FlagInputName, "", "profile or checkpoint JSON file to report on (defaults to best_profile.json in the working directory, where tune writes it)")
	Cmd.Flags().StringVar(&flagFormat, app.FlagFormatName, report.FormatTxt, fmt.Sprintf("report format: %s", report.FormatOptions))
}

func run(cmd *cobra.Command, args []string) error {
	appCtx := cmd.Parent().Context().Value(app.Context{}).(app.Context)

	path := flagInput
	if path == "" {
		path = bestProfileFilename
	}

	prof, err := loadProfile(path)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	out, err := report.Generate(flagFormat, prof)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if flagFormat == report.FormatTxt {
		fmt.Println(string(out))
		return nil
	}

	outPath := filepath.Join(appCtx.OutputDir, "report."+flagFormat)
	if err := report.WriteReport(out, outPath); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	fmt.Printf("Wrote %s\n", outPath)
	return nil
}

// loadProfile reads either a plain Profile (best_profile.json) or a
// checkpoint envelope, whichever the input file turns out to be.
func loadProfile(path string) (*profile.Profile, error) {
	if prof, err := profile.LoadFromFile(path); err == nil && len(prof.BiosParameters) > 0 {
		return prof, nil
	}
	dir, name := filepath.Split(path)
	store, err := checkpoint.NewStore(dir)
	if err != nil {
		return nil, err
	}
	prof, _, _, err := store.Load(name)
	if err != nil {
		return nil, fmt.Errorf("loading %q as a profile or checkpoint: %w", path, err)
	}
	return prof, nil
}
