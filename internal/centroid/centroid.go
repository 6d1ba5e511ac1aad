// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package centroid computes and caches per-category centroid vectors,
// the backbone of the classifier's fast tier.
package centroid

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/knowlib/knowlib/internal/embedding"
	"github.com/knowlib/knowlib/internal/integrity"
	"github.com/knowlib/knowlib/internal/vectorstore"
	"github.com/knowlib/knowlib/pkg/logging"
)

// Manager maintains an in-memory {path -> centroid vector} map, backed
// by a JSON cache file on disk.
type Manager struct {
	cacheDir string
	logger   *logging.Logger

	mu        sync.RWMutex
	centroids map[string]embedding.Vector
}

// NewManager constructs a Manager caching under cacheDir.
func NewManager(cacheDir string, logger *logging.Logger) (*Manager, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating centroid cache dir: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{cacheDir: cacheDir, logger: logger, centroids: make(map[string]embedding.Vector)}, nil
}

func (m *Manager) cacheFile() string {
	return filepath.Join(m.cacheDir, "centroids.json")
}

// LoadCentroids reads the cached centroids from disk, if present, and
// returns how many were loaded.
func (m *Manager) LoadCentroids() (int, error) {
	raw, err := os.ReadFile(m.cacheFile())
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.Info("no cached centroids found", "path", m.cacheFile())
			return 0, nil
		}
		return 0, fmt.Errorf("reading centroid cache: %w", err)
	}

	var data map[string][]float32
	if err := json.Unmarshal(raw, &data); err != nil {
		return 0, fmt.Errorf("parsing centroid cache: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.centroids = make(map[string]embedding.Vector, len(data))
	for path, vec := range data {
		m.centroids[path] = embedding.Vector(vec)
	}
	m.logger.Info("loaded centroids from cache", "count", len(m.centroids))
	return len(m.centroids), nil
}

// SaveCentroids atomically persists the in-memory centroids to disk.
func (m *Manager) SaveCentroids() error {
	m.mu.RLock()
	data := make(map[string][]float32, len(m.centroids))
	for path, vec := range m.centroids {
		data[path] = []float32(vec)
	}
	count := len(data)
	m.mu.RUnlock()

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling centroid cache: %w", err)
	}
	if err := integrity.WriteAtomic(m.cacheFile(), raw); err != nil {
		return err
	}
	m.logger.Info("saved centroids to cache", "count", count)
	return nil
}

// computeFanOut bounds how many category scrolls run concurrently
// during a full centroid recompute.
const computeFanOut = 4

// ComputeCentroids recomputes every taxonomy path's centroid from the
// points currently indexed in store, skipping categories with fewer
// than minSamples vectors. A category whose scroll fails is logged and
// skipped; the recompute is idempotent and can simply be re-run.
func (m *Manager) ComputeCentroids(ctx context.Context, store vectorstore.Store, paths []string, minSamples int) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(computeFanOut)

	var computed atomic.Int64
	for _, path := range paths {
		path := path
		g.Go(func() error {
			vec, err := m.computeCategoryCentroid(gctx, store, path, minSamples)
			if err != nil {
				m.logger.Warn("failed to query category", "path", path, "error", err)
				return nil
			}
			if vec == nil {
				return nil
			}

			m.mu.Lock()
			m.centroids[path] = vec
			m.mu.Unlock()
			computed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(computed.Load()), err
	}

	m.logger.Info("computed centroids", "computed", computed.Load(), "total_categories", len(paths))
	return int(computed.Load()), nil
}

func (m *Manager) computeCategoryCentroid(ctx context.Context, store vectorstore.Store, path string, minSamples int) (embedding.Vector, error) {
	results, err := store.SearchByTaxonomy(ctx, path, 1000, true)
	if err != nil {
		return nil, err
	}
	if len(results) < minSamples {
		return nil, nil
	}

	var vectors []embedding.Vector
	for _, r := range results {
		if r.Vector != nil {
			vectors = append(vectors, r.Vector)
		}
	}
	if len(vectors) < minSamples {
		return nil, nil
	}

	return meanVector(vectors), nil
}

func meanVector(vectors []embedding.Vector) embedding.Vector {
	dims := len(vectors[0])
	sum := make([]float64, dims)
	for _, v := range vectors {
		for i, f := range v {
			sum[i] += float64(f)
		}
	}
	mean := make(embedding.Vector, dims)
	for i, s := range sum {
		mean[i] = float32(s / float64(len(vectors)))
	}
	return mean
}

// GetCentroid returns the centroid for path, or nil if not computed.
func (m *Manager) GetCentroid(path string) embedding.Vector {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.centroids[path]
}

// HasCentroid reports whether path has a computed centroid.
func (m *Manager) HasCentroid(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.centroids[path]
	return ok
}

// Match is one (path, similarity) result from FindNearestCategories.
type Match struct {
	Path       string
	Similarity float64
}

// FindNearestCategories returns the topK centroids closest to vec by
// cosine similarity, sorted descending.
func (m *Manager) FindNearestCategories(vec embedding.Vector, topK int) []Match {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.centroids) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(m.centroids))
	for path, centroid := range m.centroids {
		matches = append(matches, Match{Path: path, Similarity: cosineSimilarity(vec, centroid)})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// UpdateCentroidIncremental folds a newly-classified embedding into
// path's running-mean centroid: new = old + (vec - old) / currentCount.
// The first item for a path simply becomes its centroid.
func (m *Manager) UpdateCentroidIncremental(path string, vec embedding.Vector, currentCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.centroids[path]
	if !ok {
		cp := make(embedding.Vector, len(vec))
		copy(cp, vec)
		m.centroids[path] = cp
		return
	}

	updated := make(embedding.Vector, len(old))
	for i := range old {
		updated[i] = old[i] + (vec[i]-old[i])/float32(currentCount)
	}
	m.centroids[path] = updated
}

// ClearCentroid removes path's centroid, e.g. when its category is deleted.
func (m *Manager) ClearCentroid(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.centroids, path)
}

// CentroidCount reports how many categories currently have a centroid.
func (m *Manager) CentroidCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.centroids)
}

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
