// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowlib/knowlib/internal/embedding"
	"github.com/knowlib/knowlib/internal/payload"
)

func samplePayload(path, fullPath, hash string) payload.Payload {
	p := payload.New(path, hash, 0, 1)
	p.Taxonomy = payload.NewTaxonomy(fullPath)
	return p
}

func TestMemStoreSearchOrdersByScoreDescending(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(3)

	require.NoError(t, store.Upsert(ctx, "a", embedding.Vector{1, 0, 0}, samplePayload("a.md", "lang/go", "h1")))
	require.NoError(t, store.Upsert(ctx, "b", embedding.Vector{0, 1, 0}, samplePayload("b.md", "lang/go", "h2")))
	require.NoError(t, store.Upsert(ctx, "c", embedding.Vector{0.9, 0.1, 0}, samplePayload("c.md", "lang/go", "h3")))

	results, err := store.Search(ctx, embedding.Vector{1, 0, 0}, 2, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestMemStoreSearchFiltersByTaxonomy(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(3)

	require.NoError(t, store.Upsert(ctx, "a", embedding.Vector{1, 0, 0}, samplePayload("a.md", "lang/go", "h1")))
	require.NoError(t, store.Upsert(ctx, "b", embedding.Vector{1, 0, 0}, samplePayload("b.md", "lang/rust", "h2")))

	results, err := store.Search(ctx, embedding.Vector{1, 0, 0}, 10, SearchFilter{TaxonomyLevel2: "rust"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestMemStoreDeleteByFileRemovesAllChunks(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(3)

	require.NoError(t, store.Upsert(ctx, "a1", embedding.Vector{1, 0, 0}, samplePayload("a.md", "lang/go", "h1")))
	require.NoError(t, store.Upsert(ctx, "a2", embedding.Vector{1, 0, 0}, samplePayload("a.md", "lang/go", "h2")))
	require.NoError(t, store.Upsert(ctx, "b1", embedding.Vector{1, 0, 0}, samplePayload("b.md", "lang/go", "h3")))

	require.NoError(t, store.DeleteByFile(ctx, "a.md"))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalPoints)
}

func TestMemStoreFindDuplicatesMatchesContentHash(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(3)

	require.NoError(t, store.Upsert(ctx, "a", embedding.Vector{1, 0, 0}, samplePayload("a.md", "lang/go", "dup")))
	require.NoError(t, store.Upsert(ctx, "b", embedding.Vector{1, 0, 0}, samplePayload("b.md", "lang/go", "dup")))
	require.NoError(t, store.Upsert(ctx, "c", embedding.Vector{1, 0, 0}, samplePayload("c.md", "lang/go", "unique")))

	dupes, err := store.FindDuplicates(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, dupes, 2)
}

func TestMemStoreIterByTaxonomyPaginates(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(3)

	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		require.NoError(t, store.Upsert(ctx, id, embedding.Vector{1, 0, 0}, samplePayload(id+".md", "lang/go", id)))
	}

	cursor, err := store.IterByTaxonomy(ctx, "lang/go", 2)
	require.NoError(t, err)

	total := 0
	for {
		page, err := cursor.Next()
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		total += len(page)
	}
	assert.Equal(t, 5, total)
}

func TestMemStoreUpdatePayloadAppliesPartial(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(3)
	require.NoError(t, store.Upsert(ctx, "a", embedding.Vector{1, 0, 0}, samplePayload("a.md", "lang/go", "h1")))

	newClassification := payload.Classification{Confidence: 0.9, TierUsed: payload.TierLLM}
	require.NoError(t, store.UpdatePayload(ctx, "a", PartialPayload{Classification: &newClassification}))

	results, err := store.SearchByTaxonomy(ctx, "lang", 10, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, payload.TierLLM, results[0].Payload.Classification.TierUsed)
}

func TestMemStoreSearchFiltersByRelationship(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(3)

	linked := samplePayload("a.md", "lang/go", "h1")
	linked.Relationships = []payload.Relationship{
		{SourceID: linked.ContentID, TargetID: "target-1", Kind: payload.References},
	}
	require.NoError(t, store.Upsert(ctx, "a", embedding.Vector{1, 0, 0}, linked))
	require.NoError(t, store.Upsert(ctx, "b", embedding.Vector{1, 0, 0}, samplePayload("b.md", "lang/go", "h2")))

	results, err := store.Search(ctx, embedding.Vector{1, 0, 0}, 10, SearchFilter{RelatedTo: "target-1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}
