// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package indexer

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/knowlib/knowlib/internal/integrity"
)

// FileState is the persisted checksum/timestamp record for one library file.
type FileState struct {
	Checksum  string    `json:"checksum"`
	IndexedAt time.Time `json:"indexed_at"`
}

// IndexState is the atomically-persisted {file_path -> FileState} map
// living alongside the library.
type IndexState struct {
	mu    sync.RWMutex
	path  string
	Files map[string]FileState `json:"files"`
}

// LoadIndexState reads path if present, or returns a fresh empty state.
func LoadIndexState(path string) (*IndexState, error) {
	state := &IndexState{path: path, Files: make(map[string]FileState)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(raw, state); err != nil {
		return nil, err
	}
	if state.Files == nil {
		state.Files = make(map[string]FileState)
	}
	return state, nil
}

// Get returns the stored state for path, if any.
func (s *IndexState) Get(path string) (FileState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fs, ok := s.Files[path]
	return fs, ok
}

// Set records path's checksum and indexing timestamp.
func (s *IndexState) Set(path, checksum string, indexedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Files[path] = FileState{Checksum: checksum, IndexedAt: indexedAt}
}

// Remove drops path's entry.
func (s *IndexState) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Files, path)
}

// Paths returns every tracked file path.
func (s *IndexState) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	return paths
}

// Save persists the state atomically via internal/integrity's
// write-temp-fsync-rename primitive, so a crash mid-write never leaves a
// corrupt index file behind.
func (s *IndexState) Save() error {
	s.mu.RLock()
	raw, err := json.MarshalIndent(s, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return integrity.WriteAtomic(s.path, raw)
}
