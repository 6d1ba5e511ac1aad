// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
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
          python:
            description: Python-specific content
            locked: false
proposed_categories: []
evolution:
  min_content_for_split: 10
  max_items_per_category: 50
  similarity_threshold: 0.85
`

func writeSampleTaxonomy(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func TestValidatePathRecognizesExistingNodes(t *testing.T) {
	path := writeSampleTaxonomy(t)
	mgr := NewManager(path, nil)
	require.NoError(t, mgr.Load())

	ok, err := mgr.ValidatePath("technical/programming/python")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mgr.ValidatePath("technical/nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetAllPathsEnumeratesEveryNode(t *testing.T) {
	path := writeSampleTaxonomy(t)
	mgr := NewManager(path, nil)
	require.NoError(t, mgr.Load())

	paths, err := mgr.GetAllPaths()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"technical",
		"technical/programming",
		"technical/programming/python",
	}, paths)
}

func TestProposeCategoryAutoApprovesAboveThresholdUnderLevel2Plus(t *testing.T) {
	path := writeSampleTaxonomy(t)
	mgr := NewManager(path, nil)
	require.NoError(t, mgr.Load())

	proposed, err := mgr.ProposeCategory(Proposal{
		Name:        "django",
		Description: "Django web framework",
		ParentPath:  "technical/programming",
		Confidence:  0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, ProposalApproved, proposed.Status)

	ok, err := mgr.ValidatePath("technical/programming/django")
	require.NoError(t, err)
	assert.True(t, ok, "approved proposal must be reflected in the live tree")
}

func TestProposeCategoryQueuesPendingBelowThreshold(t *testing.T) {
	path := writeSampleTaxonomy(t)
	mgr := NewManager(path, nil)
	require.NoError(t, mgr.Load())

	proposed, err := mgr.ProposeCategory(Proposal{
		Name:        "flask",
		Description: "Flask web framework",
		ParentPath:  "technical/programming",
		Confidence:  0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, ProposalPending, proposed.Status)
	assert.True(t, mgr.NeedsSave())

	pending, err := mgr.GetPendingProposals()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "technical/programming/flask", pending[0].Path)
}

func TestProposeCategoryRejectsUnderLevel1Parent(t *testing.T) {
	path := writeSampleTaxonomy(t)
	mgr := NewManager(path, nil)
	require.NoError(t, mgr.Load())

	_, err := mgr.ProposeCategory(Proposal{
		Name:        "bogus",
		Description: "should fail",
		ParentPath:  "technical",
		Confidence:  0.99,
	})
	require.Error(t, err)
}

func TestProposeCategoryRejectsUnknownParent(t *testing.T) {
	path := writeSampleTaxonomy(t)
	mgr := NewManager(path, nil)
	require.NoError(t, mgr.Load())

	_, err := mgr.ProposeCategory(Proposal{
		Name:       "x",
		ParentPath: "nonexistent/parent",
		Confidence: 0.99,
	})
	require.Error(t, err)
}

func TestApproveAndRejectProposal(t *testing.T) {
	path := writeSampleTaxonomy(t)
	mgr := NewManager(path, nil)
	require.NoError(t, mgr.Load())

	_, err := mgr.ProposeCategory(Proposal{
		Name:       "flask",
		ParentPath: "technical/programming",
		Confidence: 0.5,
	})
	require.NoError(t, err)

	ok, err := mgr.ApproveProposal("technical/programming/flask", "looks good")
	require.NoError(t, err)
	assert.True(t, ok)

	valid, err := mgr.ValidatePath("technical/programming/flask")
	require.NoError(t, err)
	assert.True(t, valid)

	_, err = mgr.ProposeCategory(Proposal{
		Name:       "rejectme",
		ParentPath: "technical/programming",
		Confidence: 0.1,
	})
	require.NoError(t, err)

	ok, err = mgr.RejectProposal("technical/programming/rejectme", "not needed")
	require.NoError(t, err)
	assert.True(t, ok)

	valid, err = mgr.ValidatePath("technical/programming/rejectme")
	require.NoError(t, err)
	assert.False(t, valid, "rejected proposals must not enter the live tree")
}

func TestSaveRoundTripsViaYAML(t *testing.T) {
	path := writeSampleTaxonomy(t)
	mgr := NewManager(path, nil)
	require.NoError(t, mgr.Load())

	_, err := mgr.ProposeCategory(Proposal{
		Name:       "flask",
		ParentPath: "technical/programming",
		Confidence: 0.5,
	})
	require.NoError(t, err)
	require.NoError(t, mgr.Save())
	assert.False(t, mgr.NeedsSave())

	reloaded := NewManager(path, nil)
	require.NoError(t, reloaded.Load())

	pending, err := reloaded.GetPendingProposals()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "technical/programming/flask", pending[0].Path)
}

func TestProposeCategoryClampsOutOfRangeConfidence(t *testing.T) {
	path := writeSampleTaxonomy(t)
	mgr := NewManager(path, nil)
	require.NoError(t, mgr.Load())

	// A runaway confidence of 9 clamps to 1.0 and auto-approves.
	proposed, err := mgr.ProposeCategory(Proposal{
		Name:       "clamped",
		ParentPath: "technical/programming",
		Confidence: 9,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, proposed.Confidence)
	assert.Equal(t, ProposalApproved, proposed.Status)

	// A negative confidence clamps to 0 and stays pending.
	proposed, err = mgr.ProposeCategory(Proposal{
		Name:       "negative",
		ParentPath: "technical/programming",
		Confidence: -3,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, proposed.Confidence)
	assert.Equal(t, ProposalPending, proposed.Status)
}
