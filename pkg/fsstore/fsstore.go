// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fsstore reads and writes the on-disk migration tree: one
// directory per migration, named "id=<millisecond-timestamp>", each
// holding up.sql, down.sql, and an optional meta.toml.
package fsstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const dirPrefix = "id="

// Meta is the decoded meta.toml. Its absence is equivalent to
// Meta{Comment: nil, Locked: false}.
type Meta struct {
	Comment *string `toml:"comment"`
	Locked  bool    `toml:"locked"`
}

// Migration is one fully-read on-disk migration.
type Migration struct {
	ID   string
	Up   string
	Down string
	Meta Meta
}

// Store reads and writes migrations rooted at a single directory (the
// directory containing qop.toml).
type Store struct {
	root string
}

// New returns a Store rooted at root.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) migrationDir(id string) string {
	return filepath.Join(s.root, dirPrefix+id)
}

// GetLocalIDs lists subdirectories of the root whose names start with
// "id=", stripping the prefix. Non-matching entries are ignored.
func (s *Store) GetLocalIDs() (map[string]struct{}, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations root %s: %w", s.root, err)
	}

	ids := make(map[string]struct{})
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if id, ok := strings.CutPrefix(e.Name(), dirPrefix); ok {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// ReadMigration reads up.sql, down.sql, and meta.toml for id. up.sql and
// down.sql are required (may be empty); a missing meta.toml yields
// Meta{}.
func (s *Store) ReadMigration(id string) (Migration, error) {
	dir := s.migrationDir(id)

	up, err := readRequired(filepath.Join(dir, "up.sql"))
	if err != nil {
		return Migration{}, err
	}
	down, err := readRequired(filepath.Join(dir, "down.sql"))
	if err != nil {
		return Migration{}, err
	}

	meta, err := readMeta(filepath.Join(dir, "meta.toml"))
	if err != nil {
		return Migration{}, err
	}

	return Migration{ID: id, Up: up, Down: down, Meta: meta}, nil
}

func readRequired(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("missing required file %s", path)
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(b), nil
}

func readMeta(path string) (Meta, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, nil
		}
		return Meta{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var m Meta
	if err := toml.Unmarshal(b, &m); err != nil {
		return Meta{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return m, nil
}

// nowMillisUTC returns the current UTC time as a millisecond-precision
// UNIX timestamp string; overridable in tests.
var nowMillisUTC = func() string {
	return strconv.FormatInt(time.Now().UTC().UnixMilli(), 10)
}

// maxCreateAttempts bounds the collision-retry loop in CreateMigration.
const maxCreateAttempts = 20

// CreateMigration creates a new `id=<ms>/` directory with empty
// up.sql/down.sql and a meta.toml, retrying with the next millisecond if
// the computed ID's directory already exists (back-to-back invocations
// within the same millisecond are otherwise indistinguishable).
func (s *Store) CreateMigration(user string, comment *string, locked bool) (string, error) {
	var id string
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		candidate := nowMillisUTC()
		if attempt > 0 {
			// Force forward progress when the clock hasn't ticked yet.
			ms, _ := strconv.ParseInt(candidate, 10, 64)
			candidate = strconv.FormatInt(ms+int64(attempt), 10)
		}
		if _, err := os.Stat(s.migrationDir(candidate)); os.IsNotExist(err) {
			id = candidate
			break
		}
	}
	if id == "" {
		return "", fmt.Errorf("failed to allocate a unique migration id after %d attempts", maxCreateAttempts)
	}

	dir := s.migrationDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create migration directory %s: %w", dir, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "up.sql"), nil, 0o644); err != nil {
		return "", fmt.Errorf("failed to write up.sql: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "down.sql"), nil, 0o644); err != nil {
		return "", fmt.Errorf("failed to write down.sql: %w", err)
	}

	meta := Meta{Locked: locked}
	if comment != nil {
		meta.Comment = comment
	} else {
		generated := fmt.Sprintf("Created by %s at %s", user, time.Now().UTC().Format(time.RFC3339))
		meta.Comment = &generated
	}
	if err := writeMeta(filepath.Join(dir, "meta.toml"), meta); err != nil {
		return "", err
	}

	return id, nil
}

func writeMeta(path string, meta Meta) error {
	b, err := toml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode meta.toml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// RenameMigration renames `id=<old>` to `id=<new>`, used by `history
// fix` to re-sequence pending migrations.
func (s *Store) RenameMigration(oldID, newID string) error {
	oldDir := s.migrationDir(oldID)
	newDir := s.migrationDir(newID)
	if _, err := os.Stat(newDir); err == nil {
		return fmt.Errorf("cannot rename %s to %s: target already exists", oldID, newID)
	}
	if err := os.Rename(oldDir, newDir); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", oldDir, newDir, err)
	}
	return nil
}

// UpsertLocal writes up.sql/down.sql and meta.toml for id, creating the
// directory if absent and overwriting existing up.sql/down.sql contents.
// meta.toml keeps its existing fields; its comment is replaced only when
// comment is non-nil. Used by `history sync` to materialise ledger-only
// migrations onto the filesystem.
func (s *Store) UpsertLocal(id, upSQL, downSQL string, comment *string) error {
	dir := s.migrationDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create migration directory %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "up.sql"), []byte(upSQL), 0o644); err != nil {
		return fmt.Errorf("failed to write up.sql: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "down.sql"), []byte(downSQL), 0o644); err != nil {
		return fmt.Errorf("failed to write down.sql: %w", err)
	}

	metaPath := filepath.Join(dir, "meta.toml")
	existing, err := readMeta(metaPath)
	if err != nil {
		return err
	}
	if comment != nil {
		existing.Comment = comment
	}
	return writeMeta(metaPath, existing)
}
