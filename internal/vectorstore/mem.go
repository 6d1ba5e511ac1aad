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
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/knowlib/knowlib/internal/embedding"
	"github.com/knowlib/knowlib/internal/payload"
)

// MemStore is an in-memory, brute-force cosine Store, used by tests and
// by callers without a running Weaviate instance.
type MemStore struct {
	mu         sync.RWMutex
	points     map[string]Point
	dimensions int
}

// NewMemStore constructs an empty store accepting vectors of dimensions size.
func NewMemStore(dimensions int) *MemStore {
	return &MemStore{points: make(map[string]Point), dimensions: dimensions}
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) Upsert(_ context.Context, id string, vec embedding.Vector, p payload.Payload) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid payload for %s: %w", id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[id] = Point{ID: id, Vector: vec, Payload: p}
	return nil
}

func (m *MemStore) UpsertBatch(ctx context.Context, items []Point) error {
	for _, it := range items {
		if err := m.Upsert(ctx, it.ID, it.Vector, it.Payload); err != nil {
			return err
		}
	}
	return nil
}

func matches(p payload.Payload, f SearchFilter) bool {
	if f.TaxonomyLevel1 != "" && p.Taxonomy.Level1 != f.TaxonomyLevel1 {
		return false
	}
	if f.TaxonomyLevel2 != "" && p.Taxonomy.Level2 != f.TaxonomyLevel2 {
		return false
	}
	if f.ContentType != "" && p.ContentType != f.ContentType {
		return false
	}
	if f.FilePath != "" && p.FilePath != f.FilePath {
		return false
	}
	if f.RelatedTo != "" {
		found := false
		for _, r := range p.Relationships {
			if r.TargetID == f.RelatedTo {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *MemStore) Search(_ context.Context, queryVec embedding.Vector, n int, filter SearchFilter) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []SearchResult
	for _, pt := range m.points {
		if !matches(pt.Payload, filter) {
			continue
		}
		score := cosineSimilarity(queryVec, pt.Vector)
		results = append(results, SearchResult{ID: pt.ID, Score: score, Payload: pt.Payload})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if n > 0 && len(results) > n {
		results = results[:n]
	}
	return results, nil
}

func (m *MemStore) SearchByTaxonomy(_ context.Context, path string, limit int, withVectors bool) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []SearchResult
	for _, pt := range m.points {
		full := pt.Payload.Taxonomy.FullPath
		if full != path && !strings.HasPrefix(full, path+"/") {
			continue
		}
		sr := SearchResult{ID: pt.ID, Payload: pt.Payload}
		if withVectors {
			sr.Vector = pt.Vector
		}
		results = append(results, sr)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MemStore) IterByTaxonomy(ctx context.Context, path string, batchSize int) (*ScrollCursor, error) {
	all, err := m.SearchByTaxonomy(ctx, path, 0, false)
	if err != nil {
		return nil, err
	}

	return NewScrollCursor(batchSize, func(offset, limit int) ([]SearchResult, error) {
		if offset >= len(all) {
			return nil, nil
		}
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		return all[offset:end], nil
	}), nil
}

func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, id)
	return nil
}

func (m *MemStore) DeleteByFile(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, pt := range m.points {
		if pt.Payload.FilePath == path {
			delete(m.points, id)
		}
	}
	return nil
}

func (m *MemStore) UpdatePayload(_ context.Context, id string, partial PartialPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pt, ok := m.points[id]
	if !ok {
		return nil
	}
	if partial.Classification != nil {
		pt.Payload.Classification = *partial.Classification
	}
	if partial.Taxonomy != nil {
		pt.Payload.Taxonomy = *partial.Taxonomy
	}
	if partial.ContentType != nil {
		pt.Payload.ContentType = *partial.ContentType
	}
	if partial.Relationships != nil {
		pt.Payload.Relationships = *partial.Relationships
	}
	m.points[id] = pt
	return nil
}

func (m *MemStore) FindDuplicates(_ context.Context, contentHash string) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []SearchResult
	for _, pt := range m.points {
		if pt.Payload.ContentHash == contentHash {
			results = append(results, SearchResult{ID: pt.ID, Payload: pt.Payload})
		}
	}
	return results, nil
}

func (m *MemStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		TotalPoints: len(m.points),
		Indexed:     len(m.points),
		Dimensions:  m.dimensions,
		Status:      "ready",
	}, nil
}

// cosineSimilarity returns the cosine similarity of a and b, or 0 if
// either is the zero vector.
func cosineSimilarity(a, b embedding.Vector) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
