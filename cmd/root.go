// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package cmd provides the command line interface for the application.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"log/syslog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"cputuner/cmd/report"
	"cputuner/cmd/restore"
	"cputuner/cmd/resume"
	"cputuner/cmd/status"
	"cputuner/cmd/tune"
	"cputuner/internal/app"
	"cputuner/internal/util"

	"github.com/spf13/cobra"
)

var gLogFile *os.File
var gVersion = "9.9.9" // can be overwritten at build time with -ldflags

const LongAppName = "cputuner"

var examples = []string{
	fmt.Sprintf("  Run a cold-start tuning search:           $ %s tune", app.Name),
	fmt.Sprintf("  Resume after an interruption:             $ %s resume latest", app.Name),
	fmt.Sprintf("  Print the last optimized profile:         $ %s report", app.Name),
	fmt.Sprintf("  Restore the pre-tuning BIOS backup:       $ %s restore", app.Name),
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:                app.Name,
	Short:              app.Name,
	Long:               fmt.Sprintf(`%s is an automatic CPU BIOS performance tuner: it discovers firmware settings, stress-tests candidate values, and keeps the best stable result.`, LongAppName),
	Example:            strings.Join(examples, "\n"),
	PersistentPreRunE:  initializeApplication,
	PersistentPostRunE: terminateApplication,
	Version:            gVersion,
}

var (
	// logging
	flagDebug     bool
	flagSyslog    bool
	flagLogStdOut bool
	// output
	flagOutputDir     string
	flagCheckpointDir string
	flagConfigPath    string
)

func init() {
	rootCmd.SetUsageTemplate(`Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command] [flags]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

Available Commands:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}
`)
	rootCmd.SetHelpCommand(&cobra.Command{}) // block the help command
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.AddGroup([]*cobra.Group{{ID: "primary", Title: "Commands:"}}...)
	rootCmd.AddCommand(tune.Cmd)
	rootCmd.AddCommand(resume.Cmd)
	rootCmd.AddCommand(status.Cmd)
	rootCmd.AddCommand(report.Cmd)
	rootCmd.AddCommand(restore.Cmd)
	// Global (persistent) flags
	rootCmd.PersistentFlags().BoolVar(&flagDebug, app.FlagDebugName, false, "enable debug logging and retain temporary directories")
	rootCmd.PersistentFlags().BoolVar(&flagSyslog, app.FlagSyslogName, false, "write logs to syslog instead of a file")
	rootCmd.PersistentFlags().BoolVar(&flagLogStdOut, app.FlagLogStdOutName, false, "write logs to stdout")
	rootCmd.PersistentFlags().StringVar(&flagOutputDir, app.FlagOutputDirName, "", "override the output directory")
	rootCmd.PersistentFlags().StringVar(&flagCheckpointDir, app.FlagCheckpointDirName, "", "override the checkpoint directory")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, app.FlagConfigName, "", "path to a tuner.yaml overriding the default tuning constants")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.EnableCommandSorting = false
	cobra.EnableCaseInsensitive = true
	if err := rootCmd.Execute(); err != nil {
		if terminateErr := terminateApplication(rootCmd, os.Args); terminateErr != nil {
			slog.Error("error terminating application", slog.String("error", terminateErr.Error()))
		}
		os.Exit(1)
	}
}

func initializeApplication(cmd *cobra.Command, args []string) error {
	timestamp := time.Now().Local().Format("2006-01-02_15-04-05")

	var outputDir string
	var err error
	if flagOutputDir != "" {
		outputDir, err = util.AbsPath(flagOutputDir)
	} else {
		outputDir, err = util.AbsPath(app.Name + "_" + timestamp)
	}
	if err != nil {
		fmt.Printf("Error: failed to expand output dir %v\n", err)
		os.Exit(1)
	}

	checkpointDir := flagCheckpointDir
	if checkpointDir == "" {
		checkpointDir = filepath.Join(outputDir, "checkpoints")
	} else if checkpointDir, err = util.AbsPath(checkpointDir); err != nil {
		fmt.Printf("Error: failed to expand checkpoint dir %v\n", err)
		os.Exit(1)
	}

	var logOpts slog.HandlerOptions
	if flagDebug {
		logOpts.Level = slog.LevelDebug
		logOpts.AddSource = true
	} else {
		logOpts.Level = slog.LevelInfo
	}
	switch {
	case flagSyslog && flagLogStdOut:
		fmt.Println("Error: both syslog handler and stdout output specified. Please pick one only.")
		os.Exit(1)
	case flagSyslog:
		handler, err := NewSyslogHandler(&logOpts)
		if err != nil {
			fmt.Printf("Error: failed to create syslog handler: %v\n", err)
			os.Exit(1)
		}
		slog.SetDefault(slog.New(handler))
	case flagLogStdOut:
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &logOpts)))
	default:
		gLogFile, err = os.OpenFile(app.Name+".log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644) // #nosec G302
		if err != nil {
			fmt.Printf("Error: failed to open log file: %v\n", err)
			os.Exit(1)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(gLogFile, &logOpts)))
	}
	slog.Info("starting up", slog.String("app", app.Name), slog.String("version", gVersion), slog.Int("PID", os.Getpid()), slog.String("arguments", strings.Join(os.Args, " ")))

	localTempDir, err := os.MkdirTemp(os.TempDir(), fmt.Sprintf("%s.tmp.", app.Name))
	if err != nil {
		fmt.Printf("Error: failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	var logFilePath string
	if gLogFile != nil {
		logFilePath = gLogFile.Name()
	}

	cmd.Parent().SetContext(
		context.WithValue(
			context.Background(),
			app.Context{},
			app.Context{
				Timestamp:     timestamp,
				OutputDir:     outputDir,
				CheckpointDir: checkpointDir,
				LocalTempDir:  localTempDir,
				LogFilePath:   logFilePath,
				ConfigPath:    flagConfigPath,
				Version:       gVersion,
				Debug:         flagDebug,
			},
		),
	)
	return nil
}

// terminateApplication cleans up the application context and closes the log file
// and removes the local temp directory if it was created
func terminateApplication(cmd *cobra.Command, args []string) error {
	var ctx context.Context
	if cmd.Parent() == nil {
		ctx = cmd.Context()
	} else {
		ctx = cmd.Parent().Context()
	}
	if ctx == nil {
		return nil
	}
	ctxValue := ctx.Value(app.Context{})
	if ctxValue == nil {
		return nil
	}
	appContext, ok := ctxValue.(app.Context)
	if !ok {
		return nil
	}
	if appContext.LocalTempDir != "" && !flagDebug {
		archiveTempDir(appContext)
		if err := os.RemoveAll(appContext.LocalTempDir); err != nil {
			slog.Error("error cleaning up temp directory", slog.String("tempDir", appContext.LocalTempDir), slog.String("error", err.Error()))
		}
	}
	slog.Info("shutting down", slog.String("app", app.Name), slog.String("version", gVersion), slog.Int("PID", os.Getpid()))
	if gLogFile != nil {
		if err := gLogFile.Close(); err != nil {
			slog.Error("error closing log file", slog.String("logFile", gLogFile.Name()), slog.String("error", err.Error()))
			return err
		}
	}
	return nil
}

// archiveTempDir durably copies the run's scratch directory (the
// firmware export/script/backup files the Setting Store writes) into
// the checkpoint directory before it's deleted, so the pre-tuning
// firmware backup "restore" defaults to survives past the run that
// took it.
func archiveTempDir(appContext app.Context) {
	isDir, err := util.DirectoryExists(appContext.LocalTempDir)
	if err != nil || !isDir {
		return
	}
	dest := filepath.Join(appContext.CheckpointDir, "temp_artifacts_"+appContext.Timestamp)
	if err := util.CreateIfNotExists(dest, 0755); err != nil {
		slog.Warn("failed to prepare temp directory archive", slog.String("error", err.Error()))
		return
	}
	if err := util.CopyDirectory(appContext.LocalTempDir, dest); err != nil {
		slog.Warn("failed to archive temp directory before cleanup", slog.String("error", err.Error()))
	}
}

// SyslogHandler is a slog.Handler that logs to syslog.
type SyslogHandler struct {
	writer     *syslog.Writer
	logLeveler slog.Leveler
	addSource  bool
}

func NewSyslogHandler(logOpts *slog.HandlerOptions) (*SyslogHandler, error) {
	writer, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, filepath.Base(os.Args[0]))
	if err != nil {
		return nil, err
	}
	return &SyslogHandler{writer: writer, logLeveler: logOpts.Level, addSource: logOpts.AddSource}, nil
}

func (h *SyslogHandler) Handle(ctx context.Context, r slog.Record) error {
	var msg string
	if r.PC != 0 && h.addSource {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		filePath := f.File
		if strings.HasPrefix(filePath, "/") {
			if wd, err := os.Getwd(); err == nil {
				if rel, err := filepath.Rel(wd, filePath); err == nil {
					_, lastWd := filepath.Split(wd)
					filePath = filepath.Join(lastWd, rel)
				}
			}
		}
		msg = fmt.Sprintf("level=%s source=%s:%d msg=\"%s\"", r.Level.String(), filePath, f.Line, r.Message)
	} else {
		msg = fmt.Sprintf("level=%s msg=\"%s\"", r.Level.String(), r.Message)
	}
	r.Attrs(func(attr slog.Attr) bool {
		msg += fmt.Sprintf(" %s=\"%s\"", attr.Key, attr.Value)
		return true
	})
	switch r.Level {
	case slog.LevelDebug:
		return h.writer.Debug(msg)
	case slog.LevelInfo:
		return h.writer.Info(msg)
	case slog.LevelWarn:
		return h.writer.Warning(msg)
	case slog.LevelError:
		return h.writer.Err(msg)
	default:
		return h.writer.Info(msg)
	}
}

func (h *SyslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *SyslogHandler) WithGroup(name string) slog.Handler       { return h }
func (h *SyslogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.logLeveler.Level()
}
