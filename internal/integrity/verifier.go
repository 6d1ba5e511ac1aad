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
	"github.com/knowlib/knowlib/internal/block"
	"github.com/knowlib/knowlib/internal/errs"
)

// Mode selects how strictly a write is checked against a block's
// recorded checksums.
type Mode int

const (
	// Strict enforces checksum agreement: code blocks must match byte
	// for byte; prose blocks must match after canonicalization.
	Strict Mode = iota

	// Refinement accepts the write unconditionally; checksums are
	// recorded but not enforced.
	Refinement
)

// WriteResult reports the outcome of a verified write.
type WriteResult struct {
	IntegrityVerified bool
	IsExecuted        bool
	Path              string
}

// Verifier enforces STRICT/REFINEMENT write rules and performs the
// resulting atomic, path-traversal-safe file write. Concurrent writes to
// the same destination are serialized by a per-file mutex.
type Verifier struct {
	LibraryRoot string

	// Backup, when true, snapshots an existing destination file before
	// it is overwritten.
	Backup bool

	locks *fileLocks
}

// NewVerifier constructs a Verifier rooted at libraryRoot.
func NewVerifier(libraryRoot string) *Verifier {
	return &Verifier{LibraryRoot: libraryRoot, locks: newFileLocks()}
}

// Write verifies writtenContent against b's checksums under mode, then
// writes it atomically to dest (resolved relative to the library root).
// Any path that would escape the library root is rejected before any I/O
// happens.
func (v *Verifier) Write(b block.Block, writtenContent, dest string, mode Mode) (WriteResult, error) {
	resolved, err := ResolveWithinRoot(v.LibraryRoot, dest)
	if err != nil {
		return WriteResult{}, err
	}

	lock := v.locks.lockFor(resolved)
	lock.Lock()
	defer lock.Unlock()

	if mode == Strict {
		if !v.verify(b, writtenContent) {
			return WriteResult{}, errs.New(errs.KindIntegrityViolation,
				"written bytes do not match expected checksum for "+b.ID)
		}
	}

	if v.Backup {
		if err := BackupExisting(resolved); err != nil {
			return WriteResult{}, err
		}
	}

	if err := WriteAtomic(resolved, []byte(writtenContent)); err != nil {
		return WriteResult{}, err
	}

	return WriteResult{IntegrityVerified: true, IsExecuted: true, Path: resolved}, nil
}

// verify applies the STRICT rule: code blocks must match checksum_exact
// byte-for-byte; prose blocks may differ in whitespace but must match
// checksum_canonical after canonicalization.
func (v *Verifier) verify(b block.Block, content string) bool {
	if b.IsCode() {
		return block.VerifyChecksum(content, b.ChecksumExact)
	}
	return block.VerifyCanonicalChecksum(content, b.ChecksumCanonical)
}
