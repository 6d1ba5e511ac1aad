// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classifier implements the two-tier (fast centroid / LLM
// fallback) classification pipeline that assigns content to a taxonomy
// path.
package classifier

import (
	"github.com/knowlib/knowlib/internal/taxonomy"
)

// Tier identifies which classifier tier produced a Result.
type Tier string

const (
	TierNone Tier = "none"
	TierFast Tier = "fast"
	TierLLM  Tier = "llm"
)

// Match is a (path, confidence) alternative classification candidate.
type Match struct {
	Path       string
	Confidence float64
}

// Result is the outcome of running content through the classifier.
type Result struct {
	PrimaryPath         string
	PrimaryConfidence   float64
	Alternatives        []Match
	TierUsed            Tier
	Reasoning           string
	NewCategoryProposed *taxonomy.Proposal
	ProcessingTimeMS    float64
}

// uncategorizedPath is returned whenever neither tier can produce a
// confident match.
const uncategorizedPath = "uncategorized"
