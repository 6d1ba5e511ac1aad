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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowlib/knowlib/internal/block"
	"github.com/knowlib/knowlib/internal/errs"
)

func sampleBlock(t *testing.T, content string) block.Block {
	t.Helper()
	parser := block.NewParser("notes/source.md")
	blocks := parser.Parse(content)
	require.Len(t, blocks, 1)
	return blocks[0]
}

func TestRenderMarkedRoundTrip(t *testing.T) {
	b := sampleBlock(t, "The quick brown fox jumps over the lazy dog.")
	written := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	rendered := RenderMarked(b, b.Raw, "sess-42", written)

	extracted, err := ExtractMarked(rendered)
	require.NoError(t, err)
	require.Len(t, extracted, 1)

	mb := extracted[0]
	assert.Equal(t, b.ID, mb.ID)
	assert.Equal(t, "notes/source.md", mb.SourceFile)
	assert.Equal(t, "sess-42", mb.SessionID)
	assert.Equal(t, b.ChecksumCanonical, mb.Checksum)
	assert.True(t, written.Equal(mb.WrittenAt))
	assert.Equal(t, b.Raw, mb.Content)
	assert.True(t, VerifyMarked(mb))
}

func TestExtractMarkedMultipleBlocks(t *testing.T) {
	b1 := sampleBlock(t, "First paragraph of prose.")
	b2 := sampleBlock(t, "Second paragraph of prose.")
	written := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	text := "# Heading\n\n" +
		RenderMarked(b1, b1.Raw, "sess-1", written) + "\n\n" +
		"Interstitial text outside any marker.\n\n" +
		RenderMarked(b2, b2.Raw, "sess-1", written) + "\n"

	extracted, err := ExtractMarked(text)
	require.NoError(t, err)
	require.Len(t, extracted, 2)
	assert.Equal(t, "First paragraph of prose.", extracted[0].Content)
	assert.Equal(t, "Second paragraph of prose.", extracted[1].Content)
}

func TestExtractMarkedUnterminatedStart(t *testing.T) {
	b := sampleBlock(t, "Orphaned content.")
	rendered := RenderMarked(b, b.Raw, "sess-1", time.Now().UTC())
	truncated := rendered[:len(rendered)-len("<!-- BLOCK_END id="+b.ID+" -->")]

	_, err := ExtractMarked(truncated)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindParseError))
}

func TestExtractMarkedMismatchedEndID(t *testing.T) {
	text := "<!-- BLOCK_START id=block_001 source=a.md session=s checksum=0123456789abcdef written=2025-06-01T12:30:00Z -->\n" +
		"content\n" +
		"<!-- BLOCK_END id=block_999 -->"

	_, err := ExtractMarked(text)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindParseError))
}

func TestExtractMarkedNoMarkers(t *testing.T) {
	extracted, err := ExtractMarked("Plain markdown with no markers at all.\n")
	require.NoError(t, err)
	assert.Empty(t, extracted)
}

func TestVerifyMarkedDetectsTamper(t *testing.T) {
	b := sampleBlock(t, "Original content here.")
	rendered := RenderMarked(b, b.Raw, "sess-1", time.Now().UTC())

	extracted, err := ExtractMarked(rendered)
	require.NoError(t, err)
	require.Len(t, extracted, 1)

	tampered := extracted[0]
	tampered.Content = "Replaced content."
	assert.False(t, VerifyMarked(tampered))
}
