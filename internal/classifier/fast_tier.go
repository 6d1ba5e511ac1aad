// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classifier

import (
	"time"

	"github.com/knowlib/knowlib/internal/centroid"
	"github.com/knowlib/knowlib/internal/embedding"
	"github.com/knowlib/knowlib/internal/taxonomy"
)

const defaultFastTierTopK = 5

// FastTierClassifier classifies content by comparing its embedding
// against cached per-category centroids, aiming for sub-100ms latency.
type FastTierClassifier struct {
	taxonomyManager *taxonomy.Manager
	centroidManager *centroid.Manager
}

// NewFastTierClassifier constructs a FastTierClassifier.
func NewFastTierClassifier(taxonomyManager *taxonomy.Manager, centroidManager *centroid.Manager) *FastTierClassifier {
	return &FastTierClassifier{taxonomyManager: taxonomyManager, centroidManager: centroidManager}
}

// Classify returns the nearest categories to vec by cosine similarity
// against cached centroids. If no centroids are loaded, it returns an
// uncategorized result with zero confidence rather than an error.
func (c *FastTierClassifier) Classify(vec embedding.Vector, topK int) Result {
	if topK <= 0 {
		topK = defaultFastTierTopK
	}
	start := time.Now()

	matches := c.centroidManager.FindNearestCategories(vec, topK)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	if len(matches) == 0 {
		return Result{
			PrimaryPath:       uncategorizedPath,
			PrimaryConfidence: 0.0,
			TierUsed:          TierFast,
			ProcessingTimeMS:  elapsed,
		}
	}

	alternatives := make([]Match, 0, len(matches)-1)
	for _, m := range matches[1:] {
		alternatives = append(alternatives, Match{Path: m.Path, Confidence: m.Similarity})
	}

	return Result{
		PrimaryPath:       matches[0].Path,
		PrimaryConfidence: matches[0].Similarity,
		Alternatives:      alternatives,
		TierUsed:          TierFast,
		ProcessingTimeMS:  elapsed,
	}
}

// GetConfidenceForPath reports the cosine similarity between vec and
// path's cached centroid, or 0.0 if path has no centroid.
func (c *FastTierClassifier) GetConfidenceForPath(vec embedding.Vector, path string) float64 {
	centroidVec := c.centroidManager.GetCentroid(path)
	if centroidVec == nil {
		return 0.0
	}
	matches := c.centroidManager.FindNearestCategories(vec, 0)
	for _, m := range matches {
		if m.Path == path {
			return m.Similarity
		}
	}
	return 0.0
}

// IsReady reports whether the fast tier has any centroids loaded.
func (c *FastTierClassifier) IsReady() bool {
	return c.centroidManager.CentroidCount() > 0
}

// GetCategoryCoverage reports, for every taxonomy path, whether a
// centroid has been computed for it.
func (c *FastTierClassifier) GetCategoryCoverage() (map[string]bool, error) {
	paths, err := c.taxonomyManager.GetAllPaths()
	if err != nil {
		return nil, err
	}
	coverage := make(map[string]bool, len(paths))
	for _, p := range paths {
		coverage[p] = c.centroidManager.HasCentroid(p)
	}
	return coverage, nil
}
