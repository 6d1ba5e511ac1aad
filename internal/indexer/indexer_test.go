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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowlib/knowlib/internal/embedding"
	"github.com/knowlib/knowlib/internal/vectorstore"
)

type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(texts))
	for i := range texts {
		out[i] = make(embedding.Vector, f.dims)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) (embedding.Vector, error) {
	vecs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }

func newTestChunker(t *testing.T) *Chunker {
	t.Helper()
	c, err := NewChunker(5, 200, 10)
	require.NoError(t, err)
	return c
}

func writeLibrary(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func bigMarkdown(section string) string {
	var b strings.Builder
	b.WriteString("# " + section + "\n\n")
	for i := 0; i < 40; i++ {
		b.WriteString("This is paragraph number " + string(rune('a'+i%26)) + " with enough words to cross the minimum token threshold for indexing purposes here today.\n\n")
	}
	return b.String()
}

func TestIndexFileUpsertsChunksAndReplacesPriorPoints(t *testing.T) {
	dir := writeLibrary(t, map[string]string{"doc.md": bigMarkdown("Intro")})
	store := vectorstore.NewMemStore(4)
	embedder := &fakeEmbedder{dims: 4}
	idx, err := New(dir, filepath.Join(dir, ".index_state.json"), store, embedder, newTestChunker(t), nil)
	require.NoError(t, err)

	n1, err := idx.IndexFile(context.Background(), "doc.md")
	require.NoError(t, err)
	assert.Greater(t, n1, 0)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, n1, stats.TotalPoints)

	n2, err := idx.IndexFile(context.Background(), "doc.md")
	require.NoError(t, err)

	stats, err = store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, n2, stats.TotalPoints, "reindexing the same file must not duplicate points")
}

func TestIndexAllSkipsUnderscoreAndNonMarkdownFiles(t *testing.T) {
	dir := writeLibrary(t, map[string]string{
		"doc.md":    bigMarkdown("Kept"),
		"_draft.md": bigMarkdown("Skipped"),
		"notes.txt": bigMarkdown("Skipped"),
	})
	store := vectorstore.NewMemStore(4)
	embedder := &fakeEmbedder{dims: 4}
	idx, err := New(dir, filepath.Join(dir, ".index_state.json"), store, embedder, newTestChunker(t), nil)
	require.NoError(t, err)

	_, err = idx.IndexAll(context.Background(), false)
	require.NoError(t, err)

	assert.Contains(t, idx.state.Paths(), "doc.md")
	assert.NotContains(t, idx.state.Paths(), "_draft.md")
	assert.NotContains(t, idx.state.Paths(), "notes.txt")
}

func TestIndexAllSkipsUnchangedChecksumUnlessForced(t *testing.T) {
	dir := writeLibrary(t, map[string]string{"doc.md": bigMarkdown("Stable")})
	store := vectorstore.NewMemStore(4)
	embedder := &fakeEmbedder{dims: 4}
	idx, err := New(dir, filepath.Join(dir, ".index_state.json"), store, embedder, newTestChunker(t), nil)
	require.NoError(t, err)

	n1, err := idx.IndexAll(context.Background(), false)
	require.NoError(t, err)
	assert.Greater(t, n1, 0)

	n2, err := idx.IndexAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, n2, "unchanged checksum must not trigger reindex")

	n3, err := idx.IndexAll(context.Background(), true)
	require.NoError(t, err)
	assert.Greater(t, n3, 0, "force must always reindex")
}

func TestRemoveDeletedFilesDropsStateAndPoints(t *testing.T) {
	dir := writeLibrary(t, map[string]string{"doc.md": bigMarkdown("Temp")})
	store := vectorstore.NewMemStore(4)
	embedder := &fakeEmbedder{dims: 4}
	idx, err := New(dir, filepath.Join(dir, ".index_state.json"), store, embedder, newTestChunker(t), nil)
	require.NoError(t, err)

	_, err = idx.IndexAll(context.Background(), false)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "doc.md")))

	removed, err := idx.RemoveDeletedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NotContains(t, idx.state.Paths(), "doc.md")

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalPoints)
}
