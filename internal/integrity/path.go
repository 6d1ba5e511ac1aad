// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package integrity

import (
	"path/filepath"
	"strings"

	"github.com/knowlib/knowlib/internal/errs"
)

// ResolveWithinRoot normalizes dest (which may be relative, contain `..`
// components, or be absolute) against libraryRoot and rejects any result
// that escapes the root.
func ResolveWithinRoot(libraryRoot, dest string) (string, error) {
	absRoot, err := filepath.Abs(libraryRoot)
	if err != nil {
		return "", errs.Wrap(errs.KindPathTraversal, "resolve library root", err)
	}
	absRoot = filepath.Clean(absRoot)

	var candidate string
	if filepath.IsAbs(dest) {
		candidate = filepath.Clean(dest)
	} else {
		candidate = filepath.Clean(filepath.Join(absRoot, dest))
	}

	if candidate != absRoot && !strings.HasPrefix(candidate, absRoot+string(filepath.Separator)) {
		return "", errs.New(errs.KindPathTraversal, "path traversal detected: "+dest)
	}

	return candidate, nil
}
