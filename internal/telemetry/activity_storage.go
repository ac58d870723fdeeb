// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/cognilib/internal/util"
)

// =============================================================================
// ACTIVITY STORAGE
// =============================================================================

// ActivityStorage persists finished sessions as one JSON file each.
type ActivityStorage struct {
	dir string
}

// NewActivityStorage creates the storage directory if needed.
func NewActivityStorage(dir string) (*ActivityStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("activity storage: empty directory")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("activity storage: %w", err)
	}
	return &ActivityStorage{dir: dir}, nil
}

// Save writes a session atomically.
func (as *ActivityStorage) Save(s *ActivitySession) error {
	if s == nil {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(filepath.Join(as.dir, s.ID+".json"), data, 0600)
}

// Load reads a session by id.
func (as *ActivityStorage) Load(id string) (*ActivitySession, error) {
	data, err := os.ReadFile(filepath.Join(as.dir, id+".json"))
	if err != nil {
		return nil, err
	}
	var s ActivitySession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("activity %s: %w", id, err)
	}
	return &s, nil
}

// List returns session ids started within [from, to], oldest first.
func (as *ActivityStorage) List(from, to time.Time) ([]string, error) {
	entries, err := os.ReadDir(as.dir)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		started, ok := sessionStart(id)
		if !ok || started.Before(from) || started.After(to) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteBefore removes sessions that started before the cutoff.
func (as *ActivityStorage) DeleteBefore(before time.Time) error {
	ids, err := as.List(time.Time{}, before)
	if err != nil {
		return err
	}
	for _, id := range ids {
		_ = os.Remove(filepath.Join(as.dir, id+".json"))
	}
	return nil
}

// sessionStart parses the timestamp prefix of a session id (YYYYMMDD-HHMMSS-n).
func sessionStart(id string) (time.Time, bool) {
	parts := strings.SplitN(id, "-", 3)
	if len(parts) < 2 {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("20060102-150405", parts[0]+"-"+parts[1], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
