/*
Package target runs subprocess commands on the local machine with a bounded
timeout, the substrate every firmware-tool invocation and sensor read in the
tuner goes through.
*/
package target

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Target runs commands on a machine. The only implementation is LocalTarget;
// the interface exists so the Monitor and Setting Store can be tested
// against a fake that never touches real hardware.
type Target interface {
	// RunCommand runs cmd with a timeout in seconds (0 means no timeout) and
	// returns its stdout, stderr, exit code, and any error starting/waiting
	// on the process.
	RunCommand(cmd *exec.Cmd, timeoutSeconds int) (stdout string, stderr string, exitCode int, err error)
}

// LocalTarget runs commands as subprocesses of the current process.
type LocalTarget struct {
	host string
}

// NewLocalTarget creates a new LocalTarget.
func NewLocalTarget() *LocalTarget {
	hostName, err := os.Hostname()
	if err != nil {
		hostName = "localhost"
	}
	return &LocalTarget{host: hostName}
}

// GetName returns the target's hostname.
func (t *LocalTarget) GetName() string {
	return t.host
}

// RunCommand executes cmd with a timeout and returns its output and exit code.
func (t *LocalTarget) RunCommand(cmd *exec.Cmd, timeoutSeconds int) (stdout string, stderr string, exitCode int, err error) {
	slog.Debug("running local command", slog.String("cmd", cmd.String()), slog.Int("timeout", timeoutSeconds))
	if timeoutSeconds > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
		defer cancel()
		withCtx := exec.CommandContext(ctx, cmd.Path, cmd.Args[1:]...)
		withCtx.Env = cmd.Env
		cmd = withCtx
	}
	var outbuf, errbuf strings.Builder
	cmd.Stdout = &outbuf
	cmd.Stderr = &errbuf
	err = cmd.Run()
	stdout = outbuf.String()
	stderr = errbuf.String()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}
	return
}
