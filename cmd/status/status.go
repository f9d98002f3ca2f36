// Package status implements the "status" subcommand: a one-shot read
// of the Monitor's current temperature, power, and load — a smoke test
// for the hardware sensor chain, independent of any tuning run.
package status

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"

	"github.com/spf13/cobra"

	"cputuner/internal/app"
)

const cmdName = "status"

var flagBiosTool string

var Cmd = &cobra.Command{
	Use:   cmdName,
	Short: "Print the current CPU temperature, power, and load",
	RunE:  run,
}

func init() {
	Cmd.Flags().StringVar(&flagBiosTool, app.FlagBiosToolName, app.DefaultBiosToolPath, "path to the vendor firmware setup utility")
}

func run(cmd *cobra.Command, args []string) error {
	appCtx := cmd.Parent().Context().Value(app.Context{}).(app.Context)

	stack, err := app.NewStack(flagBiosTool, appCtx.LocalTempDir, appCtx.CheckpointDir)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	info := stack.Monitor.CollectSystemInfo()
	fmt.Printf("CPU:         %s\n", info.CPUModel)
	fmt.Printf("Logical CPUs: %d\n", info.LogicalCores)
	fmt.Printf("Temperature: %.1f C\n", info.Temperature)
	fmt.Printf("Power:       %s\n", app.FormatWatts(int64(info.Power)))
	fmt.Printf("Load:        %.0f%%\n", info.Load)
	if len(info.Frequencies) > 0 {
		fmt.Println("Frequencies:")
		for core, freq := range info.Frequencies {
			fmt.Printf("  %-12s %.0f MHz\n", core, freq)
		}
	}
	return nil
}
