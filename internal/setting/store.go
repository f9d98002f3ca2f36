package setting

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"cputuner/internal/target"
	"cputuner/internal/util"
)

const (
	exportTimeoutSeconds = 60
	importTimeoutSeconds = 60
)

// Store reads and writes firmware setup questions through an external
// vendor tool, caching the last parsed dump and invalidating it on every
// write (spec §9's second open question, resolved in favor of caching).
type Store struct {
	toolPath   string
	dumpPath   string
	scriptPath string
	backupPath string
	target     target.Target

	mu         sync.Mutex
	cache      []block
	cacheValid bool
}

// block is one "Setup Question" record as a contiguous run of raw lines,
// preserved verbatim so WriteValue can re-emit every field untouched
// except the one "Value" line it changes.
type block struct {
	name  string // the exact text after "Setup Question ="
	lines []string
}

// NewStore constructs a Store bound to the vendor tool at toolPath.
// Tool-missing is fatal at construction per spec §7's taxonomy. tempDir
// holds the dump/script/backup scratch files.
func NewStore(toolPath, tempDir string, t target.Target) (*Store, error) {
	exists, err := util.FileExists(toolPath)
	if err != nil {
		return nil, errors.Wrap(err, "checking firmware tool path")
	}
	if !exists {
		return nil, errors.Wrapf(ErrToolMissing, "path %q", toolPath)
	}
	s := &Store{
		toolPath:   toolPath,
		dumpPath:   filepath.Join(tempDir, "bios_out.txt"),
		scriptPath: filepath.Join(tempDir, "bios_set.txt"),
		backupPath: filepath.Join(tempDir, "bios_backup.txt"),
		target:     t,
	}
	return s, nil
}

// BackupPath returns the path of the one-time full-dump backup taken at
// initialization.
func (s *Store) BackupPath() string {
	return s.backupPath
}

// exportAll invokes the vendor tool's export mode and returns the dump
// contents, failing with ErrToolIO on any non-zero exit or empty output.
func (s *Store) exportAll(outPath string) (string, error) {
	cmd := exec.Command(s.toolPath, "/o", "/s", outPath)
	_, stderr, exitCode, err := s.target.RunCommand(cmd, exportTimeoutSeconds)
	if err != nil || exitCode != 0 {
		return "", errors.Wrapf(ErrToolIO, "export: exit=%d stderr=%q err=%v", exitCode, stderr, err)
	}
	exists, err := util.FileExists(outPath)
	if err != nil {
		return "", errors.Wrap(err, "checking export output")
	}
	if !exists {
		return "", errors.Wrapf(ErrToolIO, "export produced no output file at %q", outPath)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		return "", errors.Wrap(err, "reading export output")
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.Wrap(ErrToolIO, "export produced an empty file")
	}
	return string(data), nil
}

// importScript invokes the vendor tool's import mode against scriptPath.
func (s *Store) importScript(scriptPath string) error {
	cmd := exec.Command(s.toolPath, "/i", "/s", scriptPath)
	_, stderr, exitCode, err := s.target.RunCommand(cmd, importTimeoutSeconds)
	if err != nil || exitCode != 0 {
		return errors.Wrapf(ErrToolIO, "import: exit=%d stderr=%q err=%v", exitCode, stderr, err)
	}
	return nil
}

// SnapshotBackup backs up the current full dump to backupPath, taken
// exactly once at engine initialization per spec §4.2.
func (s *Store) SnapshotBackup() error {
	_, err := s.exportAll(s.backupPath)
	return err
}

// RestoreFrom re-imports a previously captured dump file, returning
// whether the import succeeded.
func (s *Store) RestoreFrom(path string) bool {
	exists, err := util.FileExists(path)
	if err != nil || !exists {
		return false
	}
	return s.importScript(path) == nil
}

// dump returns the cached parsed blocks, re-exporting only when the
// cache has been invalidated by a prior write (or never populated).
func (s *Store) dump() ([]block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cacheValid {
		return s.cache, nil
	}
	content, err := s.exportAll(s.dumpPath)
	if err != nil {
		return nil, err
	}
	blocks := parseBlocks(content)
	s.cache = blocks
	s.cacheValid = true
	return blocks, nil
}

func (s *Store) invalidate() {
	s.mu.Lock()
	s.cacheValid = false
	s.mu.Unlock()
}

// parseBlocks splits a raw dump into per-setting blocks, each starting
// at a "Setup Question" line and ending at a blank line or the next
// "Setup Question" line.
func parseBlocks(dump string) []block {
	var blocks []block
	var cur *block
	for _, raw := range strings.Split(dump, "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Setup Question") {
			if cur != nil {
				blocks = append(blocks, *cur)
			}
			parts := strings.SplitN(trimmed, "=", 2)
			name := ""
			if len(parts) == 2 {
				name = strings.TrimSpace(parts[1])
			}
			cur = &block{name: name, lines: []string{line}}
			continue
		}
		if trimmed == "" {
			if cur != nil {
				blocks = append(blocks, *cur)
				cur = nil
			}
			continue
		}
		if cur != nil {
			cur.lines = append(cur.lines, line)
		}
	}
	if cur != nil {
		blocks = append(blocks, *cur)
	}
	return blocks
}

// findByContains finds the first block whose raw "Setup Question" line
// contains name as a case-insensitive substring, matching
// bios_service.py's forgiving get_setting_value/set_setting_value
// lookup (it tests containment against the whole line, not just the
// parsed name).
func findByContains(blocks []block, name string) int {
	lowerName := strings.ToLower(name)
	for i, b := range blocks {
		if len(b.lines) == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(b.lines[0]), lowerName) {
			return i
		}
	}
	return -1
}

func fieldValue(line string) (key, value string, ok bool) {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

// valueLine returns the index (within b.lines) of the first "Value"
// field, searched within the first 10 lines like the Python original.
func (b block) valueLine() (int, string, bool) {
	limit := len(b.lines)
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		trimmed := strings.TrimSpace(b.lines[i])
		if strings.HasPrefix(trimmed, "Value") {
			_, v, ok := fieldValue(trimmed)
			return i, v, ok
		}
	}
	return -1, "", false
}

// ReadValue returns a setting's current value as an integer, falling
// back to a hash of the string for unparseable text values.
func (s *Store) ReadValue(name string) (int64, error) {
	blocks, err := s.dump()
	if err != nil {
		return 0, err
	}
	idx := findByContains(blocks, name)
	if idx < 0 {
		return 0, errors.Wrapf(ErrSettingNotFound, "%q", name)
	}
	_, raw, ok := blocks[idx].valueLine()
	if !ok {
		return 0, errors.Wrapf(ErrValueFormat, "%q", name)
	}
	return parseValue(raw).AsInt(), nil
}

// ReadType returns a setting's declared type.
func (s *Store) ReadType(name string) (DeclaredType, error) {
	blocks, err := s.dump()
	if err != nil {
		return "", err
	}
	idx := findByContains(blocks, name)
	if idx < 0 {
		return "", errors.Wrapf(ErrSettingNotFound, "%q", name)
	}
	_, raw, ok := blocks[idx].valueLine()
	if !ok {
		return "", errors.Wrapf(ErrValueFormat, "%q", name)
	}
	return parseValue(raw).Kind, nil
}

// WriteValue sets a setting to newValue, preserving its prior textual
// format (hex stays hex, bool stays "0"/"1"), by emitting a minimal
// script containing only that setting's block and invoking the vendor
// tool's import mode.
func (s *Store) WriteValue(name string, newValue any) error {
	blocks, err := s.dump()
	if err != nil {
		return err
	}
	idx := findByContains(blocks, name)
	if idx < 0 {
		return errors.Wrapf(ErrSettingNotFound, "%q", name)
	}
	b := blocks[idx]
	valIdx, oldRaw, ok := b.valueLine()
	if !ok {
		return errors.Wrapf(ErrValueFormat, "%q", name)
	}
	newRaw, err := formatValue(newValue, oldRaw)
	if err != nil {
		return errors.Wrapf(err, "formatting new value for %q", name)
	}

	lines := make([]string, len(b.lines))
	copy(lines, b.lines)
	prefix := lines[valIdx][:strings.Index(lines[valIdx], "=")+1]
	lines[valIdx] = prefix + " " + newRaw

	script := strings.Join(lines, "\n")
	if err := os.WriteFile(s.scriptPath, []byte(script), 0644); err != nil {
		return errors.Wrap(err, "writing script file")
	}
	if err := s.importScript(s.scriptPath); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// ParseAll parses the full dump into a map of setting name to Setting,
// classifying category/performance-relatedness/reboot-requirement along
// the way.
func (s *Store) ParseAll() (map[string]*Setting, error) {
	blocks, err := s.dump()
	if err != nil {
		return nil, err
	}
	result := make(map[string]*Setting, len(blocks))
	for _, b := range blocks {
		if b.name == "" {
			continue
		}
		st := &Setting{
			Name:               b.name,
			Category:           categorize(b.name),
			PerformanceRelated: isPerformanceRelated(b.name),
			RebootRequired:     requiresReboot(b.name),
		}
		for _, line := range b.lines[1:] {
			key, val, ok := fieldValue(strings.TrimSpace(line))
			if !ok {
				continue
			}
			switch key {
			case "Value":
				v := parseValue(val)
				st.Value = v
				st.DeclaredType = v.Kind
			case "BIOS Default":
				st.Default = val
			case "Token":
				st.Token = val
			case "Offset":
				st.Offset = val
			case "Width":
				st.Width = val
			}
		}
		result[b.name] = st
	}
	return result, nil
}
