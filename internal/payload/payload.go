// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package payload

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentType enumerates the content semantics a chunk's source material
// represents. The mapping between these values and downstream rendering
// is left to the host application; the core only carries the tag.
type ContentType string

const (
	ContentGeneral   ContentType = "general"
	ContentBlueprint ContentType = "blueprint"
	ContentReference ContentType = "reference"
)

// ClassificationTier records which classifier tier produced a result.
type ClassificationTier string

const (
	TierNone ClassificationTier = "none"
	TierFast ClassificationTier = "fast"
	TierLLM  ClassificationTier = "llm"
)

// CategoryMatch is a (path, confidence) alternative classification.
type CategoryMatch struct {
	Path       string  `validate:"required"`
	Confidence float64 `validate:"gte=0,lte=1"`
}

// Classification carries the result of running content through the
// two-tier classifier.
type Classification struct {
	Confidence   float64 `validate:"gte=0,lte=1"`
	TierUsed     ClassificationTier
	Alternatives []CategoryMatch
}

// Taxonomy resolves a content item's classification path into levels.
type Taxonomy struct {
	FullPath string `validate:"taxonomypath"`
	Level1   string
	Level2   string
}

// NewTaxonomy splits a slash-separated full path into its first two levels.
func NewTaxonomy(fullPath string) Taxonomy {
	parts := strings.Split(strings.Trim(fullPath, "/"), "/")
	t := Taxonomy{FullPath: fullPath}
	if len(parts) > 0 {
		t.Level1 = parts[0]
	}
	if len(parts) > 1 {
		t.Level2 = parts[1]
	}
	return t
}

// Provenance records where a chunk's content originated.
type Provenance struct {
	SourceFile          string
	SourceURL           string
	ExtractionMethod    string
	Version             string
	OriginalHeadingPath []string
}

// AuditEntry is one append-only record in a Payload's history. Hash and
// PrevHash are populated only when the chained audit mode is used; see
// AppendChainedAudit.
type AuditEntry struct {
	Action    string
	Actor     string
	Timestamp time.Time
	Details   map[string]any
	Hash      string
	PrevHash  string
}

// Payload is the metadata attached to each indexed item.
type Payload struct {
	ContentID string `validate:"required"`
	FilePath  string `validate:"required"`
	Section   string

	ChunkIndex int `validate:"gte=0"`
	ChunkTotal int `validate:"gte=1"`

	ContentHash string `validate:"required"`

	Taxonomy Taxonomy

	ContentType ContentType

	Classification Classification

	Relationships []Relationship

	Provenance Provenance

	// AuditTrail is append-only; every Payload is created with exactly one
	// "created" entry and every relationship change appends an entry.
	AuditTrail []AuditEntry
}

// New constructs a Payload with a fresh content id and its single
// "created" audit entry.
func New(filePath, contentHash string, chunkIndex, chunkTotal int) Payload {
	now := time.Now().UTC()
	return Payload{
		ContentID:   uuid.NewString(),
		FilePath:    filePath,
		ChunkIndex:  chunkIndex,
		ChunkTotal:  chunkTotal,
		ContentHash: contentHash,
		ContentType: ContentGeneral,
		Classification: Classification{
			TierUsed: TierNone,
		},
		Provenance: Provenance{SourceFile: filePath},
		AuditTrail: []AuditEntry{
			{Action: "created", Actor: "system", Timestamp: now},
		},
	}
}

// RecordRelationshipChange appends an audit entry documenting a
// relationship mutation, per the invariant that every relationship
// change is audited.
func (p *Payload) RecordRelationshipChange(action, actor string, details map[string]any) {
	p.AuditTrail = append(p.AuditTrail, AuditEntry{
		Action:    action,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Details:   details,
	})
}

// NormalizeConfidence clamps a confidence value to [0,1], defaulting
// missing/non-finite values to 0.5 per the error-handling design's
// confidence normalization rule.
func NormalizeConfidence(v float64, present bool) float64 {
	if !present || v-v != 0 { // v-v is NaN for NaN and for ±Inf
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
