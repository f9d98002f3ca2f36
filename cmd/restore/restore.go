// Package restore implements the "restore" subcommand: reverting BIOS
// settings to the snapshot taken at the start of the last tuning run.
package restore

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cputuner/internal/app"
)

const cmdName = "restore"

var (
	flagBiosTool string
	flagInput    string
	flagYes      bool
)

var Cmd = &cobra.Command{
	Use:   cmdName,
	Short: "Restore BIOS settings from the pre-tuning firmware backup",
	RunE:  run,
}

func init() {
	Cmd.Flags().StringVar(&flagBiosTool, app.FlagBiosToolName, app.DefaultBiosToolPath, "path to the vendor firmware setup utility")
	Cmd.Flags().StringVar(&flagInput, app.FlagInputName, "", "path to the firmware dump to restore (defaults to the last tuning run's backup)")
	Cmd.Flags().BoolVar(&flagYes, "yes", false, "skip the confirmation prompt")
}

func run(cmd *cobra.Command, args []string) error {
	appCtx := cmd.Parent().Context().Value(app.Context{}).(app.Context)

	stack, err := app.NewStack(flagBiosTool, appCtx.LocalTempDir, appCtx.CheckpointDir)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	backupPath := flagInput
	if backupPath == "" {
		backupPath = stack.Settings.BackupPath()
	}

	if !flagYes {
		fmt.Printf("This will overwrite the current BIOS settings with %s. Continue? [y/N] ", backupPath)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if !stack.Settings.RestoreFrom(backupPath) {
		return fmt.Errorf("restore: failed to restore firmware settings from %q", backupPath)
	}
	fmt.Println("BIOS settings restored.")
	return nil
}
