// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vectorstore defines the collection abstraction the indexer,
// classifier, and retriever build on: a named collection of
// {id, vector, payload} points supporting similarity search, taxonomy
// filtering, and restartable scroll.
package vectorstore

import (
	"context"

	"github.com/knowlib/knowlib/internal/embedding"
	"github.com/knowlib/knowlib/internal/payload"
)

// Point is one stored item.
type Point struct {
	ID      string
	Vector  embedding.Vector
	Payload payload.Payload
}

// SearchFilter narrows a search or scroll to a subset of points. Zero
// values mean "no constraint" on that field.
type SearchFilter struct {
	TaxonomyLevel1 string
	TaxonomyLevel2 string
	ContentType    payload.ContentType
	FilePath       string

	// RelatedTo keeps only points carrying a relationship whose target
	// is this content id.
	RelatedTo string
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ID      string
	Score   float64
	Payload payload.Payload
	Vector  embedding.Vector // only populated when requested
}

// PartialPayload carries only the fields an UpdatePayload caller wishes to
// overwrite; a nil field is left untouched.
type PartialPayload struct {
	Classification *payload.Classification
	Taxonomy       *payload.Taxonomy
	ContentType    *payload.ContentType
	Relationships  *[]payload.Relationship
}

// Stats summarizes collection health.
type Stats struct {
	TotalPoints int
	Indexed     int
	Dimensions  int
	Status      string
}

// Store is the collection contract every backend (Weaviate, in-memory)
// satisfies identically.
type Store interface {
	// Upsert inserts or replaces a single point.
	Upsert(ctx context.Context, id string, vec embedding.Vector, p payload.Payload) error

	// UpsertBatch is the batched variant; batch size is a caller concern.
	UpsertBatch(ctx context.Context, items []Point) error

	// Search returns the top n points by cosine similarity to queryVec,
	// narrowed by filter, sorted by score descending.
	Search(ctx context.Context, queryVec embedding.Vector, n int, filter SearchFilter) ([]SearchResult, error)

	// SearchByTaxonomy filters by exact taxonomy full-path prefix.
	SearchByTaxonomy(ctx context.Context, path string, limit int, withVectors bool) ([]SearchResult, error)

	// IterByTaxonomy returns a finite, restartable scroll cursor over all
	// points matching path, paginated in batchSize chunks.
	IterByTaxonomy(ctx context.Context, path string, batchSize int) (*ScrollCursor, error)

	// Delete removes a single point by id.
	Delete(ctx context.Context, id string) error

	// DeleteByFile removes every point whose payload.FilePath equals path.
	DeleteByFile(ctx context.Context, path string) error

	// UpdatePayload applies partial to the stored point's payload.
	UpdatePayload(ctx context.Context, id string, partial PartialPayload) error

	// FindDuplicates scrolls over every point sharing contentHash.
	FindDuplicates(ctx context.Context, contentHash string) ([]SearchResult, error)

	// Stats reports collection-level counters.
	Stats(ctx context.Context) (Stats, error)
}
