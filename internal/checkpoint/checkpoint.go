/*
Package checkpoint provides atomic, timestamped snapshots of
(Profile, stage, detail) for the Tuning Engine to resume from after a
crash — the Checkpoint Store (C5).
*/
package checkpoint

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"cputuner/internal/profile"
	"cputuner/internal/util"
)

// filenamePattern recognizes checkpoint_<stage>_<yyyymmdd_HHMMSS>.json,
// capturing the stage (which may itself contain underscores, e.g.
// "power_limits_start") and the sortable timestamp suffix separately.
var filenamePattern = regexp.MustCompile(`^checkpoint_(.+)_(\d{8}_\d{6})\.json$`)

// Record is the persisted checkpoint envelope.
type Record struct {
	Timestamp string           `json:"timestamp"`
	Stage     string           `json:"stage"`
	Detail    string           `json:"detail"`
	Profile   *profile.Profile `json:"profile"`
}

// Store writes and reads checkpoint files in a directory. Checkpoints
// are append-only: Store never deletes or rewrites a file once saved.
type Store struct {
	dir string
}

// NewStore creates the checkpoint directory (if absent) and returns a
// Store bound to it. Using DirectoryExists rather than a bare Exists
// check catches the misconfiguration where dir names an existing
// regular file, rather than silently treating it as a directory.
func NewStore(dir string) (*Store, error) {
	isDir, err := util.DirectoryExists(dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	if !isDir {
		if err := util.CreateIfNotExists(dir, 0755); err != nil {
			return nil, fmt.Errorf("checkpoint: creating directory %q: %w", dir, err)
		}
	}
	return &Store{dir: dir}, nil
}

// Save atomically writes a checkpoint and returns its filename.
func (s *Store) Save(p *profile.Profile, stage, detail string) (string, error) {
	now := time.Now()
	filename := fmt.Sprintf("checkpoint_%s_%s.json", stage, now.Format("20060102_150405"))
	rec := Record{
		Timestamp: now.UTC().Format(time.RFC3339),
		Stage:     stage,
		Detail:    detail,
		Profile:   p,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("checkpoint: marshaling: %w", err)
	}
	path := filepath.Join(s.dir, filename)
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("checkpoint: writing %q: %w", path, err)
	}
	return filename, nil
}

// Load reads back a checkpoint by filename.
func (s *Store) Load(filename string) (*profile.Profile, string, string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		return nil, "", "", fmt.Errorf("checkpoint: reading %q: %w", filename, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, "", "", fmt.Errorf("checkpoint: parsing %q: %w", filename, err)
	}
	return rec.Profile, rec.Stage, rec.Detail, nil
}

// Latest scans the checkpoint directory and returns the filename with
// the newest embedded timestamp, for `resume latest`.
func (s *Store) Latest() (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("checkpoint: listing %q: %w", s.dir, err)
	}
	var best, bestStamp string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := filenamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		stamp := m[2]
		if stamp > bestStamp {
			bestStamp = stamp
			best = e.Name()
		}
	}
	if best == "" {
		return "", fmt.Errorf("checkpoint: no checkpoints found in %q", s.dir)
	}
	return best, nil
}
