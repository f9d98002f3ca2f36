// Package resume implements the "resume" subcommand: continuing a
// tuning run from a saved checkpoint after an interruption or crash.
package resume

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"cputuner/internal/app"
	"cputuner/internal/engine"
	"cputuner/internal/progress"
	"cputuner/internal/report"
)

const cmdName = "resume"

var examples = []string{
	fmt.Sprintf("  Resume from the most recent checkpoint:  $ %s %s latest", app.Name, cmdName),
	fmt.Sprintf("  Resume from a named checkpoint:          $ %s %s checkpoint_power_limits_20260101_120000.json", app.Name, cmdName),
}

var flagBiosTool string

var Cmd = &cobra.Command{
	Use:     cmdName + " [checkpoint|latest]",
	Short:   "Resume a tuning run from a checkpoint",
	Example: strings.Join(examples, "\n"),
	Args:    cobra.MaximumNArgs(1),
	RunE:    run,
}

func init() {
	Cmd.Flags().StringVar(&flagBiosTool, app.FlagBiosToolName, app.DefaultBiosToolPath, "path to the vendor firmware setup utility")
}

func run(cmd *cobra.Command, args []string) error {
	appCtx := cmd.Parent().Context().Value(app.Context{}).(app.Context)

	stack, err := app.NewStack(flagBiosTool, appCtx.LocalTempDir, appCtx.CheckpointDir)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}

	var arg string
	if len(args) == 1 {
		arg = args[0]
	}
	checkpointName, err := app.ParseCheckpointArg(arg, stack.Checkpoints.Latest)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	slog.Info("resuming", slog.String("checkpoint", checkpointName))

	constants, err := engine.LoadConstants(appCtx.ConfigPath)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}

	spin := progress.New(stack.CPUModel)
	spin.Start()
	defer spin.Finish()

	logFn := func(msg string) {
		slog.Info(msg)
		spin.Update(msg)
	}
	eng := stack.NewEngine(constants, logFn)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("received interrupt; requesting clean stop")
		eng.Abort()
	}()
	defer signal.Stop(sigCh)

	prof, err := eng.ExecuteTuning(context.Background(), checkpointName)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}

	fmt.Println(report.Text(prof))
	return nil
}
