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
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/knowlib/knowlib/internal/payload"
)

// Candidate is one unranked input to CompositeRanker.Rank: a raw
// similarity hit plus the payload metadata needed to score it.
type Candidate struct {
	ContentID       string
	SimilarityScore float64
	Payload         payload.Payload
}

// RankedResult is a Candidate after composite scoring.
type RankedResult struct {
	ContentID       string
	CompositeScore  float64
	SimilarityScore float64
	TaxonomyScore   float64
	RecencyScore    float64
	Payload         payload.Payload
	ScoreBreakdown  map[string]float64
}

// CompositeRanker combines similarity, taxonomy overlap, and recency
// into a single composite score.
type CompositeRanker struct {
	weights RankingWeights
}

// NewCompositeRanker constructs a ranker with weights normalized to
// sum to 1.0.
func NewCompositeRanker(weights RankingWeights) *CompositeRanker {
	return &CompositeRanker{weights: weights.Normalize()}
}

// Weights returns the ranker's current (normalized) weights.
func (r *CompositeRanker) Weights() RankingWeights {
	return r.weights
}

// SetWeights replaces the ranker's weights, normalizing them first.
func (r *CompositeRanker) SetWeights(weights RankingWeights) {
	r.weights = weights.Normalize()
}

// Rank scores every candidate and returns them sorted by composite
// score descending. queryTaxonomyPath may be empty, in which case the
// taxonomy score contributes 0 for every candidate.
func (r *CompositeRanker) Rank(candidates []Candidate, queryTaxonomyPath string, now time.Time) []RankedResult {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ranked := make([]RankedResult, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, r.scoreCandidate(c, queryTaxonomyPath, now))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompositeScore > ranked[j].CompositeScore
	})
	return ranked
}

func (r *CompositeRanker) scoreCandidate(c Candidate, queryTaxonomyPath string, now time.Time) RankedResult {
	taxonomyScore := taxonomyOverlapScore(queryTaxonomyPath, c.Payload.Taxonomy.FullPath)
	recencyScore := recencyScore(c.Payload, now, r.weights.RecencyHalfLifeDays)

	simWeighted := r.weights.SimilarityWeight * c.SimilarityScore
	taxWeighted := r.weights.TaxonomyWeight * taxonomyScore
	recWeighted := r.weights.RecencyWeight * recencyScore

	return RankedResult{
		ContentID:       c.ContentID,
		CompositeScore:  clamp01(simWeighted + taxWeighted + recWeighted),
		SimilarityScore: c.SimilarityScore,
		TaxonomyScore:   taxonomyScore,
		RecencyScore:    recencyScore,
		Payload:         c.Payload,
		ScoreBreakdown: map[string]float64{
			"similarity_weighted": simWeighted,
			"taxonomy_weighted":   taxWeighted,
			"recency_weighted":    recWeighted,
		},
	}
}

// taxonomyOverlapScore measures path overlap between the query and
// result taxonomy paths:
// full match 1.0; result more specific than query (child) 0.6-1.0;
// result more general than query (parent) 0.4-0.8; siblings 0.3-0.6;
// any other shared-prefix ratio at its raw overlap ratio; no shared
// top-level category 0.0.
func taxonomyOverlapScore(queryPath, resultPath string) float64 {
	if queryPath == "" || resultPath == "" {
		return 0.0
	}

	queryParts := splitPath(queryPath)
	resultParts := splitPath(resultPath)

	if equalParts(queryParts, resultParts) {
		return 1.0
	}

	commonLength := 0
	for i := 0; i < len(queryParts) && i < len(resultParts); i++ {
		if queryParts[i] != resultParts[i] {
			break
		}
		commonLength++
	}

	if commonLength == 0 {
		return 0.0
	}

	maxLength := len(queryParts)
	if len(resultParts) > maxLength {
		maxLength = len(resultParts)
	}
	baseScore := float64(commonLength) / float64(maxLength)

	switch {
	case len(resultParts) > len(queryParts) && commonLength == len(queryParts):
		return 0.6 + 0.4*baseScore
	case len(queryParts) > len(resultParts) && commonLength == len(resultParts):
		return 0.4 + 0.4*baseScore
	case commonLength == len(queryParts)-1 && commonLength == len(resultParts)-1:
		return 0.3 + 0.3*baseScore
	default:
		return baseScore
	}
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func equalParts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// recencyScore applies half-life exponential decay to the payload's
// most recent audit timestamp: score = 0.5^(age_days / halfLifeDays).
// A payload with no audit history scores 0.5 (unknown age). A future
// timestamp scores 1.0.
func recencyScore(p payload.Payload, now time.Time, halfLifeDays float64) float64 {
	ts := mostRecentAuditTimestamp(p)
	if ts.IsZero() {
		return 0.5
	}

	ageDays := now.Sub(ts).Hours() / 24.0
	if ageDays < 0 {
		return 1.0
	}
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultRankingWeights().RecencyHalfLifeDays
	}

	score := math.Pow(0.5, ageDays/halfLifeDays)
	return clamp01(score)
}

func mostRecentAuditTimestamp(p payload.Payload) time.Time {
	var latest time.Time
	for _, entry := range p.AuditTrail {
		if entry.Timestamp.After(latest) {
			latest = entry.Timestamp
		}
	}
	return latest
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Rerank multiplies each result's composite score by its boost factor
// (default 1.0 if absent from boosts, keyed by content id), re-sorting
// by the boosted score descending. Scores are clamped back to [0, 1].
func (r *CompositeRanker) Rerank(results []RankedResult, boosts map[string]float64) []RankedResult {
	if len(boosts) == 0 {
		return results
	}

	for i := range results {
		boost, ok := boosts[results[i].ContentID]
		if !ok {
			boost = 1.0
		}
		results[i].CompositeScore = clamp01(results[i].CompositeScore * boost)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CompositeScore > results[j].CompositeScore
	})
	return results
}

// ExplainRanking renders a human-readable breakdown of a RankedResult's
// composite score for debugging and query-tuning.
func (r *CompositeRanker) ExplainRanking(result RankedResult) string {
	return fmt.Sprintf(
		"Composite Score: %.3f\n  - Similarity: %.3f (weight: %.2f)\n  - Taxonomy: %.3f (weight: %.2f)\n  - Recency: %.3f (weight: %.2f)",
		result.CompositeScore,
		result.SimilarityScore, r.weights.SimilarityWeight,
		result.TaxonomyScore, r.weights.TaxonomyWeight,
		result.RecencyScore, r.weights.RecencyWeight,
	)
}
