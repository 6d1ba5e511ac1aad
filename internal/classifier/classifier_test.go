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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowlib/knowlib/internal/centroid"
	"github.com/knowlib/knowlib/internal/embedding"
	"github.com/knowlib/knowlib/internal/taxonomy"
)

const testYAML = `
version: "1.0"
classification:
  fast_tier_confidence_threshold: 0.75
  new_category_confidence_threshold: 0.85
  auto_approve_level3_plus: true
categories:
  technical:
    description: Technical content
    locked: true
    children:
      programming:
        description: Programming languages and frameworks
        locked: true
        children:
          go:
            description: Go-specific content
          python:
            description: Python-specific content
proposed_categories: []
evolution:
  min_content_for_split: 10
  max_items_per_category: 50
  similarity_threshold: 0.85
`

func writeTestTaxonomy(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0o644))
	return path
}

func newTestManagers(t *testing.T) (*taxonomy.Manager, *centroid.Manager) {
	t.Helper()
	taxMgr := taxonomy.NewManager(writeTestTaxonomy(t), nil)
	require.NoError(t, taxMgr.Load())

	centMgr, err := centroid.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	return taxMgr, centMgr
}

// fakeEmbedder always returns a fixed vector, regardless of input.
type fakeEmbedder struct {
	vec embedding.Vector
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) (embedding.Vector, error) {
	return f.vec, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }

// fakeLLMClient returns canned responses and records the last prompt.
type fakeLLMClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLMClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestFastTierClassifyReturnsUncategorizedWithoutCentroids(t *testing.T) {
	taxMgr, centMgr := newTestManagers(t)
	fast := NewFastTierClassifier(taxMgr, centMgr)

	result := fast.Classify(embedding.Vector{1, 0}, 5)
	assert.Equal(t, uncategorizedPath, result.PrimaryPath)
	assert.Equal(t, 0.0, result.PrimaryConfidence)
	assert.Equal(t, TierFast, result.TierUsed)
}

func TestFastTierClassifyRanksCentroidsByCosine(t *testing.T) {
	taxMgr, centMgr := newTestManagers(t)
	centMgr.UpdateCentroidIncremental("technical/programming/go", embedding.Vector{1, 0}, 1)
	centMgr.UpdateCentroidIncremental("technical/programming/python", embedding.Vector{0, 1}, 1)

	fast := NewFastTierClassifier(taxMgr, centMgr)
	result := fast.Classify(embedding.Vector{1, 0}, 5)

	assert.Equal(t, "technical/programming/go", result.PrimaryPath)
	assert.InDelta(t, 1.0, result.PrimaryConfidence, 1e-6)
	require.Len(t, result.Alternatives, 1)
	assert.Equal(t, "technical/programming/python", result.Alternatives[0].Path)
}

func TestServiceClassifyAcceptsFastTierAboveThreshold(t *testing.T) {
	taxMgr, centMgr := newTestManagers(t)
	centMgr.UpdateCentroidIncremental("technical/programming/go", embedding.Vector{1, 0}, 1)

	svc := NewService(taxMgr, centMgr, &fakeEmbedder{vec: embedding.Vector{1, 0}}, &fakeLLMClient{}, 0, nil)

	result, err := svc.Classify(context.Background(), "title", "content", nil, false)
	require.NoError(t, err)
	assert.Equal(t, TierFast, result.TierUsed)
	assert.Equal(t, "technical/programming/go", result.PrimaryPath)
}

func TestServiceClassifyEscalatesToLLMBelowThreshold(t *testing.T) {
	taxMgr, centMgr := newTestManagers(t)
	centMgr.UpdateCentroidIncremental("technical/programming/go", embedding.Vector{1, 0}, 1)

	llmClient := &fakeLLMClient{response: `{"primary_path":"technical/programming/python","confidence":0.92,"alternatives":[],"reasoning":"ok","new_category_proposal":null}`}
	svc := NewService(taxMgr, centMgr, &fakeEmbedder{vec: embedding.Vector{0.1, 0.99}}, llmClient, 0, nil)

	result, err := svc.Classify(context.Background(), "title", "content", nil, false)
	require.NoError(t, err)
	assert.Equal(t, TierLLM, result.TierUsed)
	assert.Equal(t, "technical/programming/python", result.PrimaryPath)
	assert.Equal(t, 1, llmClient.calls)
}

func TestServiceClassifyForceLLMSkipsFastTier(t *testing.T) {
	taxMgr, centMgr := newTestManagers(t)
	centMgr.UpdateCentroidIncremental("technical/programming/go", embedding.Vector{1, 0}, 1)

	llmClient := &fakeLLMClient{response: `{"primary_path":"technical/programming/go","confidence":0.99,"alternatives":[]}`}
	svc := NewService(taxMgr, centMgr, &fakeEmbedder{vec: embedding.Vector{1, 0}}, llmClient, 0, nil)

	result, err := svc.Classify(context.Background(), "title", "content", nil, true)
	require.NoError(t, err)
	assert.Equal(t, TierLLM, result.TierUsed)
	assert.Equal(t, 1, llmClient.calls)
}

func TestServiceClassifyForwardsAutoApprovedProposal(t *testing.T) {
	taxMgr, centMgr := newTestManagers(t)

	llmClient := &fakeLLMClient{response: `{
		"primary_path": "technical/programming/rust",
		"confidence": 0.4,
		"alternatives": [],
		"new_category_proposal": {"name": "rust", "description": "Rust content", "parent_path": "technical/programming", "confidence": 0.95}
	}`}
	svc := NewService(taxMgr, centMgr, &fakeEmbedder{vec: embedding.Vector{1, 0}}, llmClient, 0, nil)

	result, err := svc.Classify(context.Background(), "title", "content", nil, true)
	require.NoError(t, err)
	require.NotNil(t, result.NewCategoryProposed, "only rejected proposals are dropped; accepted ones stay on the result")

	ok, err := taxMgr.ValidatePath("technical/programming/rust")
	require.NoError(t, err)
	assert.True(t, ok, "auto-approved proposal must land in the live taxonomy tree")
}

func TestServiceClassifyDropsRejectedProposal(t *testing.T) {
	taxMgr, centMgr := newTestManagers(t)

	llmClient := &fakeLLMClient{response: `{
		"primary_path": "technical",
		"confidence": 0.4,
		"alternatives": [],
		"new_category_proposal": {"name": "bogus", "description": "should fail", "parent_path": "technical", "confidence": 0.99}
	}`}
	svc := NewService(taxMgr, centMgr, &fakeEmbedder{vec: embedding.Vector{1, 0}}, llmClient, 0, nil)

	result, err := svc.Classify(context.Background(), "title", "content", nil, true)
	require.NoError(t, err)
	assert.Nil(t, result.NewCategoryProposed, "rejected proposals must not remain on the result")
}

func TestLLMTierClassifyDowngradesOnUnparsableResponse(t *testing.T) {
	taxMgr, _ := newTestManagers(t)
	llmClient := &fakeLLMClient{response: "not json at all"}
	tier := NewLLMTierClassifier(taxMgr, llmClient, nil)

	result, err := tier.Classify(context.Background(), "title", "content")
	require.NoError(t, err, "parse failures downgrade, they never error")
	assert.Equal(t, uncategorizedPath, result.PrimaryPath)
	assert.Equal(t, 0.0, result.PrimaryConfidence)
	assert.Equal(t, TierLLM, result.TierUsed)
}

func TestLLMTierClassifyPropagatesTransportErrors(t *testing.T) {
	taxMgr, _ := newTestManagers(t)
	llmClient := &fakeLLMClient{err: fmt.Errorf("connection reset")}
	tier := NewLLMTierClassifier(taxMgr, llmClient, nil)

	_, err := tier.Classify(context.Background(), "title", "content")
	require.Error(t, err)
}

func TestLLMTierClassifyParsesFencedJSON(t *testing.T) {
	taxMgr, _ := newTestManagers(t)
	llmClient := &fakeLLMClient{response: "Here is my answer:\n```json\n{\"primary_path\":\"technical/programming/go\",\"confidence\":0.8,\"alternatives\":[{\"path\":\"technical/programming/python\",\"confidence\":0.3}]}\n```\nDone."}
	tier := NewLLMTierClassifier(taxMgr, llmClient, nil)

	result, err := tier.Classify(context.Background(), "title", "content")
	require.NoError(t, err)
	assert.Equal(t, "technical/programming/go", result.PrimaryPath)
	assert.InDelta(t, 0.8, result.PrimaryConfidence, 1e-9)
	require.Len(t, result.Alternatives, 1)
	assert.Equal(t, "technical/programming/python", result.Alternatives[0].Path)
}

func TestReclassifySilentWhenPathUnchanged(t *testing.T) {
	taxMgr, centMgr := newTestManagers(t)
	centMgr.UpdateCentroidIncremental("technical/programming/go", embedding.Vector{1, 0}, 1)
	svc := NewService(taxMgr, centMgr, &fakeEmbedder{vec: embedding.Vector{1, 0}}, &fakeLLMClient{}, 0, nil)

	_, changed, err := svc.Reclassify(context.Background(), "c1", "title", "content", "technical/programming/go")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestReclassifySilentWhenConfidenceBelowThreshold(t *testing.T) {
	taxMgr, centMgr := newTestManagers(t)
	centMgr.UpdateCentroidIncremental("technical/programming/go", embedding.Vector{1, 0}, 1)
	llmClient := &fakeLLMClient{response: `{"primary_path":"technical/programming/python","confidence":0.5,"alternatives":[]}`}
	svc := NewService(taxMgr, centMgr, &fakeEmbedder{vec: embedding.Vector{0.5, 0.5}}, llmClient, 0, nil)

	_, changed, err := svc.Reclassify(context.Background(), "c1", "title", "content", "technical/programming/go")
	require.NoError(t, err)
	assert.False(t, changed, "low-confidence reclassification must not report a move")
}

func TestReclassifyReportsConfidentMove(t *testing.T) {
	taxMgr, centMgr := newTestManagers(t)
	centMgr.UpdateCentroidIncremental("technical/programming/python", embedding.Vector{0, 1}, 1)
	svc := NewService(taxMgr, centMgr, &fakeEmbedder{vec: embedding.Vector{0, 1}}, &fakeLLMClient{}, 0, nil)

	result, changed, err := svc.Reclassify(context.Background(), "c1", "title", "content", "technical/programming/go")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "technical/programming/python", result.PrimaryPath)
}

func TestGetClassificationStatsReportsCoverage(t *testing.T) {
	taxMgr, centMgr := newTestManagers(t)
	centMgr.UpdateCentroidIncremental("technical/programming/go", embedding.Vector{1, 0}, 1)
	svc := NewService(taxMgr, centMgr, &fakeEmbedder{vec: embedding.Vector{1, 0}}, &fakeLLMClient{}, 0, nil)

	stats, err := svc.GetClassificationStats()
	require.NoError(t, err)
	assert.True(t, stats.FastTierReady)
	assert.Equal(t, 1, stats.CentroidCount)
	assert.True(t, stats.CategoryCoverage["technical/programming/go"])
	assert.False(t, stats.CategoryCoverage["technical/programming/python"])
}

func TestLLMTierClampsOutOfRangeConfidence(t *testing.T) {
	taxMgr, _ := newTestManagers(t)
	llmClient := &fakeLLMClient{response: `{"primary_path":"technical/programming/go","confidence":-4,"alternatives":[{"path":"technical/programming/python","confidence":7}]}`}
	tier := NewLLMTierClassifier(taxMgr, llmClient, nil)

	result, err := tier.Classify(context.Background(), "title", "content")
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.PrimaryConfidence)
	require.Len(t, result.Alternatives, 1)
	assert.Equal(t, 1.0, result.Alternatives[0].Confidence)
}

func TestLLMTierDefaultsMissingConfidence(t *testing.T) {
	taxMgr, _ := newTestManagers(t)
	llmClient := &fakeLLMClient{response: `{"primary_path":"technical/programming/go","alternatives":[]}`}
	tier := NewLLMTierClassifier(taxMgr, llmClient, nil)

	result, err := tier.Classify(context.Background(), "title", "content")
	require.NoError(t, err)
	assert.Equal(t, 0.5, result.PrimaryConfidence)
}
