// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package integrity enforces STRICT vs REFINEMENT write rules, performs
// atomic filesystem writes, and rejects path-traversal destinations.
package integrity

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knowlib/knowlib/internal/errs"
)

// WriteAtomic writes data to path via a temp sibling file followed by an
// fsync and rename, so readers never observe a partially-written file.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, ".knowlib-write-*.tmp")
	if err != nil {
		return errs.Wrap(errs.KindTransportError, "create temp file", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return errs.Wrap(errs.KindTransportError, "write temp file", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return errs.Wrap(errs.KindTransportError, "sync temp file", err)
	}
	if err := tempFile.Close(); err != nil {
		return errs.Wrap(errs.KindTransportError, "close temp file", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return errs.Wrap(errs.KindTransportError, "rename into place", err)
	}

	success = true
	return nil
}

// BackupExisting copies an existing file at path to a timestamped sibling
// before it is overwritten. A missing source file is not an error.
func BackupExisting(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.KindTransportError, "read file for backup", err)
	}
	backupPath := fmt.Sprintf("%s.bak.%s", path, time.Now().UTC().Format("20060102T150405Z"))
	return WriteAtomic(backupPath, data)
}
