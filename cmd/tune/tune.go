// Package tune implements the "tune" subcommand: a cold-start run of
// the Tuning Engine's full staged search.
package tune

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"cputuner/internal/app"
	"cputuner/internal/engine"
	"cputuner/internal/progress"
	"cputuner/internal/report"
)

const cmdName = "tune"

var examples = []string{
	fmt.Sprintf("  Run a cold-start tuning search:              $ %s %s", app.Name, cmdName),
	fmt.Sprintf("  Tune against a non-default firmware tool:    $ %s %s --bios-tool /opt/dell/dcc/syscfg", app.Name, cmdName),
}

var flagBiosTool string
var flagMetricsAddr string

var Cmd = &cobra.Command{
	Use:     cmdName,
	Short:   "Run a cold-start BIOS tuning search",
	Example: strings.Join(examples, "\n"),
	RunE:    run,
}

func init() {
	Cmd.Flags().StringVar(&flagBiosTool, app.FlagBiosToolName, app.DefaultBiosToolPath, "path to the vendor firmware setup utility")
	Cmd.Flags().StringVar(&flagMetricsAddr, app.FlagMetricsAddrName, "", "expose a Prometheus /metrics endpoint at this address (e.g. :9090)")
}

func run(cmd *cobra.Command, args []string) error {
	appCtx := cmd.Parent().Context().Value(app.Context{}).(app.Context)

	stack, err := app.NewStack(flagBiosTool, appCtx.LocalTempDir, appCtx.CheckpointDir)
	if err != nil {
		return fmt.Errorf("tune: %w", err)
	}

	if flagMetricsAddr != "" {
		stack.Monitor.EnableMetrics(prometheus.DefaultRegisterer)
		go func() {
			slog.Info("serving metrics", slog.String("addr", flagMetricsAddr))
			if err := http.ListenAndServe(flagMetricsAddr, promhttp.Handler()); err != nil { // #nosec G114
				slog.Error("metrics server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	constants, err := engine.LoadConstants(appCtx.ConfigPath)
	if err != nil {
		return fmt.Errorf("tune: %w", err)
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

	prof, err := eng.ExecuteTuning(context.Background(), "")
	if err != nil {
		return fmt.Errorf("tune: %w", err)
	}

	fmt.Println(report.Text(prof))
	return nil
}
