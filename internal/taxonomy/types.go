// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package taxonomy loads, validates, and evolves the hierarchical
// category tree content is classified against.
package taxonomy

import "time"

// CategoryStatus is a node's lifecycle state.
type CategoryStatus string

const (
	StatusActive     CategoryStatus = "active"
	StatusProposed   CategoryStatus = "proposed"
	StatusDeprecated CategoryStatus = "deprecated"
)

// ProposalStatus is a ProposedCategory's review state.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
)

// Node is one taxonomy category.
type Node struct {
	Name         string           `yaml:"-"`
	Description  string           `yaml:"description"`
	Locked       bool             `yaml:"locked"`
	Level        int              `yaml:"-"`
	ParentPath   string           `yaml:"-"`
	Children     map[string]*Node `yaml:"children"`
	Status       CategoryStatus   `yaml:"status,omitempty"`
	ContentCount int              `yaml:"content_count,omitempty"`
	CreatedAt    *time.Time       `yaml:"created_at,omitempty"`
	CreatedBy    string           `yaml:"created_by,omitempty"`
}

// FullPath returns the node's slash-joined path from the taxonomy root.
func (n *Node) FullPath() string {
	if n.ParentPath == "" {
		return n.Name
	}
	return n.ParentPath + "/" + n.Name
}

// AddChild attaches child under n, setting its parent-derived fields.
func (n *Node) AddChild(child *Node) {
	if n.Children == nil {
		n.Children = make(map[string]*Node)
	}
	child.ParentPath = n.FullPath()
	child.Level = n.Level + 1
	n.Children[child.Name] = child
}

// ClassificationSettings is the taxonomy document's classification block.
type ClassificationSettings struct {
	FastTierConfidenceThreshold    float64 `yaml:"fast_tier_confidence_threshold"`
	NewCategoryConfidenceThreshold float64 `yaml:"new_category_confidence_threshold"`
	AutoApproveLevel3Plus          bool    `yaml:"auto_approve_level3_plus"`
}

// EvolutionSettings is the taxonomy document's evolution block: the
// knobs governing when a crowded category should be split or merged.
type EvolutionSettings struct {
	MinContentForSplit  int     `yaml:"min_content_for_split"`
	MaxItemsPerCategory int     `yaml:"max_items_per_category"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// ProposedCategory is a pending or resolved AI-initiated category proposal.
type ProposedCategory struct {
	Path        string         `yaml:"path"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	ParentPath  string         `yaml:"parent_path"`
	Confidence  float64        `yaml:"confidence"`
	Evidence    []string       `yaml:"evidence,omitempty"`
	ProposedAt  time.Time      `yaml:"proposed_at"`
	ProposedBy  string         `yaml:"proposed_by"`
	Status      ProposalStatus `yaml:"status"`
	ReviewNotes string         `yaml:"review_notes,omitempty"`
}

// Proposal is the input to ProposeCategory: a new category an upstream
// classifier or operator wants added under an existing parent.
type Proposal struct {
	Name        string
	Description string
	ParentPath  string
	Confidence  float64
	EvidenceIDs []string
}

// Config is the fully parsed taxonomy document.
type Config struct {
	Version            string                 `yaml:"version"`
	Classification     ClassificationSettings `yaml:"classification"`
	Categories         map[string]*Node       `yaml:"categories"`
	ProposedCategories []*ProposedCategory    `yaml:"proposed_categories"`
	Evolution          EvolutionSettings      `yaml:"evolution"`
}
