// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ranker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowlib/knowlib/internal/payload"
)

func payloadWithTaxonomyAndAge(t *testing.T, fullPath string, age time.Duration, now time.Time) payload.Payload {
	t.Helper()
	p := payload.New("doc.md", "hash", 0, 1)
	p.Taxonomy = payload.NewTaxonomy(fullPath)
	p.AuditTrail = []payload.AuditEntry{{Action: "created", Actor: "system", Timestamp: now.Add(-age)}}
	return p
}

func TestRankingWeightsNormalizeRescalesToSumOne(t *testing.T) {
	w := RankingWeights{SimilarityWeight: 3, TaxonomyWeight: 1, RecencyWeight: 1, RecencyHalfLifeDays: 30}
	normalized := w.Normalize()
	assert.True(t, normalized.ValidateWeights())
	assert.InDelta(t, 0.6, normalized.SimilarityWeight, 1e-9)
	assert.InDelta(t, 0.2, normalized.TaxonomyWeight, 1e-9)
	assert.InDelta(t, 0.2, normalized.RecencyWeight, 1e-9)
}

func TestRankingWeightsNormalizeZeroTotalFallsBackToDefaults(t *testing.T) {
	w := RankingWeights{}
	normalized := w.Normalize()
	assert.Equal(t, DefaultRankingWeights().SimilarityWeight, normalized.SimilarityWeight)
}

func TestWithDecayPresetSetsHalfLife(t *testing.T) {
	w := DefaultRankingWeights().WithDecayPreset(DecayAggressive)
	assert.InDelta(t, 6.93, w.RecencyHalfLifeDays, 1e-9)
}

func TestTaxonomyOverlapScoreFullMatch(t *testing.T) {
	assert.Equal(t, 1.0, taxonomyOverlapScore("a/b/c", "a/b/c"))
}

func TestTaxonomyOverlapScoreNoMatch(t *testing.T) {
	assert.Equal(t, 0.0, taxonomyOverlapScore("a/b", "x/y"))
}

func TestTaxonomyOverlapScoreChildIsHigherThanSibling(t *testing.T) {
	child := taxonomyOverlapScore("a/b", "a/b/c")
	sibling := taxonomyOverlapScore("a/b", "a/c")
	assert.Greater(t, child, sibling)
}

func TestTaxonomyOverlapScoreParentIsLowerThanChild(t *testing.T) {
	child := taxonomyOverlapScore("a/b", "a/b/c")
	parent := taxonomyOverlapScore("a/b/c", "a/b")
	assert.Greater(t, child, parent)
}

func TestTaxonomyOverlapScoreEmptyPathsScoreZero(t *testing.T) {
	assert.Equal(t, 0.0, taxonomyOverlapScore("", "a/b"))
	assert.Equal(t, 0.0, taxonomyOverlapScore("a/b", ""))
}

func TestCompositeScoreStaysWithinUnitBounds(t *testing.T) {
	now := time.Now().UTC()
	ranker := NewCompositeRanker(DefaultRankingWeights())
	candidates := []Candidate{
		{ContentID: "1", SimilarityScore: 1.0, Payload: payloadWithTaxonomyAndAge(t, "a/b/c", 0, now)},
		{ContentID: "2", SimilarityScore: 0.0, Payload: payloadWithTaxonomyAndAge(t, "x/y", 365*24*time.Hour, now)},
	}

	results := ranker.Rank(candidates, "a/b/c", now)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.CompositeScore, 0.0)
		assert.LessOrEqual(t, r.CompositeScore, 1.0)
	}
}

func TestRankSortsDescendingByCompositeScore(t *testing.T) {
	now := time.Now().UTC()
	ranker := NewCompositeRanker(DefaultRankingWeights())
	candidates := []Candidate{
		{ContentID: "low", SimilarityScore: 0.1, Payload: payloadWithTaxonomyAndAge(t, "x/y", 365*24*time.Hour, now)},
		{ContentID: "high", SimilarityScore: 0.95, Payload: payloadWithTaxonomyAndAge(t, "a/b/c", time.Hour, now)},
	}

	results := ranker.Rank(candidates, "a/b/c", now)
	require.Len(t, results, 2)
	assert.Equal(t, "high", results[0].ContentID)
	assert.Equal(t, "low", results[1].ContentID)
}

func TestRecencyScoreHalvesAtHalfLife(t *testing.T) {
	now := time.Now().UTC()
	p := payloadWithTaxonomyAndAge(t, "a/b", 30*24*time.Hour, now)
	score := recencyScore(p, now, 30.0)
	assert.InDelta(t, 0.5, score, 0.01)
}

func TestRecencyScoreDefaultsToPointFiveWithoutHistory(t *testing.T) {
	p := payload.Payload{}
	score := recencyScore(p, time.Now().UTC(), 30.0)
	assert.Equal(t, 0.5, score)
}

func TestRerankAppliesBoostAndResorts(t *testing.T) {
	ranker := NewCompositeRanker(DefaultRankingWeights())
	results := []RankedResult{
		{ContentID: "a", CompositeScore: 0.5},
		{ContentID: "b", CompositeScore: 0.4},
	}

	boosted := ranker.Rerank(results, map[string]float64{"b": 2.0})
	require.Len(t, boosted, 2)
	assert.Equal(t, "b", boosted[0].ContentID)
	assert.InDelta(t, 0.8, boosted[0].CompositeScore, 1e-9)
}

func TestRerankWithoutBoostsIsNoOp(t *testing.T) {
	ranker := NewCompositeRanker(DefaultRankingWeights())
	results := []RankedResult{{ContentID: "a", CompositeScore: 0.5}}
	assert.Equal(t, results, ranker.Rerank(results, nil))
}

func TestExplainRankingIncludesAllSignals(t *testing.T) {
	ranker := NewCompositeRanker(DefaultRankingWeights())
	explanation := ranker.ExplainRanking(RankedResult{
		CompositeScore:  0.8,
		SimilarityScore: 0.9,
		TaxonomyScore:   0.6,
		RecencyScore:    0.7,
	})
	assert.Contains(t, explanation, "Composite Score: 0.800")
	assert.Contains(t, explanation, "Similarity: 0.900")
	assert.Contains(t, explanation, "Taxonomy: 0.600")
	assert.Contains(t, explanation, "Recency: 0.700")
}
