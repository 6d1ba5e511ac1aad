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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowlib/knowlib/internal/block"
	"github.com/knowlib/knowlib/internal/errs"
)

func proseBlock(raw string) block.Block {
	exact, canonical := block.GenerateChecksums(raw, false)
	return block.Block{
		ID:                "block_001",
		Kind:              block.KindParagraph,
		Raw:               raw,
		Canonical:         block.CanonicalizeProseV1(raw),
		ChecksumExact:     exact,
		ChecksumCanonical: canonical,
	}
}

func TestStrictProseToleratesWhitespaceChanges(t *testing.T) {
	root := t.TempDir()
	v := NewVerifier(root)
	b := proseBlock("Hello   world")

	res, err := v.Write(b, "Hello world", "out.md", Strict)
	require.NoError(t, err)
	assert.True(t, res.IntegrityVerified)

	data, err := os.ReadFile(filepath.Join(root, "out.md"))
	require.NoError(t, err)
	assert.Equal(t, "Hello world", string(data))
}

func TestStrictProseRejectsChangedWords(t *testing.T) {
	root := t.TempDir()
	v := NewVerifier(root)
	b := proseBlock("Hello   world")

	_, err := v.Write(b, "Goodbye", "out.md", Strict)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindIntegrityViolation))
}

func TestWriteRejectsPathTraversal(t *testing.T) {
	root := t.TempDir()
	v := NewVerifier(root)
	b := proseBlock("anything")

	_, err := v.Write(b, "anything", "../secret.txt", Strict)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindPathTraversal))

	_, statErr := os.Stat(filepath.Join(filepath.Dir(root), "secret.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRefinementAcceptsAnyContent(t *testing.T) {
	root := t.TempDir()
	v := NewVerifier(root)
	b := proseBlock("original content")

	res, err := v.Write(b, "wildly different content", "out.md", Refinement)
	require.NoError(t, err)
	assert.True(t, res.IntegrityVerified)
}

func TestStrictCodeRequiresExactBytes(t *testing.T) {
	root := t.TempDir()
	v := NewVerifier(root)
	raw := "```python\nprint('hi')\n```"
	exact, canonical := block.GenerateChecksums(raw, true)
	b := block.Block{ID: "block_001", Kind: block.KindCode, Raw: raw, Canonical: raw, ChecksumExact: exact, ChecksumCanonical: canonical}

	_, err := v.Write(b, raw+"\n", "out.md", Strict)
	require.Error(t, err, "code blocks must match byte-for-byte under STRICT")
}
