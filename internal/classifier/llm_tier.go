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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/knowlib/knowlib/internal/llm"
	"github.com/knowlib/knowlib/internal/payload"
	"github.com/knowlib/knowlib/internal/taxonomy"
	"github.com/knowlib/knowlib/pkg/logging"
)

const defaultMaxContentLengthForLLM = 2000

const classificationSystemPrompt = "You are a content classification expert. Classify the given content into the most appropriate taxonomy category."

const classificationPromptTemplate = `Available taxonomy categories:
%s

Content to classify:
Title: %s
Content (excerpt): %s

Instructions:
1. Analyze the content and determine the best matching category path
2. Provide your confidence (0.0-1.0) in the classification
3. List 2-3 alternative category paths if applicable
4. If no existing category fits well (confidence < 0.7), you may propose a new Level 3+ subcategory

Respond in JSON format:
{
    "primary_path": "path/to/category",
    "confidence": 0.85,
    "alternatives": [
        {"path": "alternative/path", "confidence": 0.6}
    ],
    "reasoning": "Brief explanation",
    "new_category_proposal": null OR {
        "name": "category_name",
        "description": "Description of the new category",
        "parent_path": "path/to/parent",
        "confidence": 0.9
    }
}`

// LLMTierClassifier falls back to an external language model for
// content the fast tier can't confidently place.
type LLMTierClassifier struct {
	taxonomyManager  *taxonomy.Manager
	client           llm.Client
	maxContentLength int
	logger           *logging.Logger
}

// NewLLMTierClassifier constructs an LLMTierClassifier.
func NewLLMTierClassifier(taxonomyManager *taxonomy.Manager, client llm.Client, logger *logging.Logger) *LLMTierClassifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMTierClassifier{
		taxonomyManager:  taxonomyManager,
		client:           client,
		maxContentLength: defaultMaxContentLengthForLLM,
		logger:           logger,
	}
}

// Classify asks the LLM to place (title, content) into the taxonomy.
// Parse failures are never surfaced as errors: they downgrade to an
// uncategorized result per the LLMParseError recovery policy. Transport
// errors from the underlying client propagate unchanged.
func (c *LLMTierClassifier) Classify(ctx context.Context, title, content string) (Result, error) {
	start := time.Now()

	tree, err := c.buildTaxonomyTree()
	if err != nil {
		return Result{}, err
	}

	excerpt := content
	if len(content) > c.maxContentLength {
		excerpt = content[:c.maxContentLength] + "..."
	}

	userPrompt := fmt.Sprintf(classificationPromptTemplate, tree, title, excerpt)

	response, err := c.client.Complete(ctx, classificationSystemPrompt, userPrompt)
	if err != nil {
		return Result{}, err
	}

	result, parseErr := parseClassificationResponse(response)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	if parseErr != nil {
		c.logger.Warn("failed to parse LLM classification response", "error", parseErr)
		return Result{
			PrimaryPath:       uncategorizedPath,
			PrimaryConfidence: 0.0,
			TierUsed:          TierLLM,
			ProcessingTimeMS:  elapsed,
		}, nil
	}

	result.TierUsed = TierLLM
	result.ProcessingTimeMS = elapsed
	return result, nil
}

func (c *LLMTierClassifier) buildTaxonomyTree() (string, error) {
	paths, err := c.taxonomyManager.GetAllPaths()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, path := range paths {
		depth := strings.Count(path, "/")
		indent := strings.Repeat("  ", depth)
		node, _ := c.taxonomyManager.GetCategory(path)
		description := ""
		if node != nil {
			description = node.Description
		}
		fmt.Fprintf(&b, "%s- %s: %s\n", indent, path, description)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Confidence fields are pointers so an absent value is distinguishable
// from an explicit 0 and can default to 0.5 during normalization.
type classificationAlternative struct {
	Path       string   `json:"path"`
	Confidence *float64 `json:"confidence"`
}

type newCategoryProposalJSON struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ParentPath  string   `json:"parent_path"`
	Confidence  *float64 `json:"confidence"`
}

type classificationResponseJSON struct {
	PrimaryPath         string                      `json:"primary_path"`
	Confidence          *float64                    `json:"confidence"`
	Alternatives        []classificationAlternative `json:"alternatives"`
	Reasoning           string                      `json:"reasoning"`
	NewCategoryProposal *newCategoryProposalJSON    `json:"new_category_proposal"`
}

// normalizedConfidence clamps an externally-supplied confidence to
// [0,1], defaulting an absent value to 0.5.
func normalizedConfidence(v *float64) float64 {
	if v == nil {
		return payload.NormalizeConfidence(0, false)
	}
	return payload.NormalizeConfidence(*v, true)
}

// parseClassificationResponse extracts the JSON object from an LLM
// response, tolerating triple-backtick fences (with or without a
// "json" language tag) around the body.
func parseClassificationResponse(response string) (Result, error) {
	jsonStr, err := extractJSONObject(response)
	if err != nil {
		return Result{}, err
	}

	var data classificationResponseJSON
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return Result{}, fmt.Errorf("invalid LLM response format: %w", err)
	}

	primaryPath := data.PrimaryPath
	if primaryPath == "" {
		primaryPath = uncategorizedPath
	}

	alternatives := make([]Match, 0, len(data.Alternatives))
	for _, alt := range data.Alternatives {
		if alt.Path == "" {
			continue
		}
		alternatives = append(alternatives, Match{Path: alt.Path, Confidence: normalizedConfidence(alt.Confidence)})
	}

	var proposal *taxonomy.Proposal
	if data.NewCategoryProposal != nil {
		p := data.NewCategoryProposal
		proposal = &taxonomy.Proposal{
			Name:        p.Name,
			Description: p.Description,
			ParentPath:  p.ParentPath,
			Confidence:  normalizedConfidence(p.Confidence),
		}
	}

	return Result{
		PrimaryPath:         primaryPath,
		PrimaryConfidence:   normalizedConfidence(data.Confidence),
		Alternatives:        alternatives,
		Reasoning:           data.Reasoning,
		NewCategoryProposed: proposal,
	}, nil
}

// extractJSONObject pulls the JSON body out of response, preferring a
// ```json fenced block, falling back to a bare ``` fence, and finally
// to the first '{' .. last '}' span.
func extractJSONObject(response string) (string, error) {
	if idx := strings.Index(response, "```json"); idx != -1 {
		start := idx + len("```json")
		end := strings.Index(response[start:], "```")
		if end == -1 {
			return "", fmt.Errorf("unterminated ```json fence in LLM response")
		}
		return strings.TrimSpace(response[start : start+end]), nil
	}
	if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + len("```")
		end := strings.Index(response[start:], "```")
		if end == -1 {
			return "", fmt.Errorf("unterminated ``` fence in LLM response")
		}
		return strings.TrimSpace(response[start : start+end]), nil
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found in LLM response")
	}
	return response[start : end+1], nil
}

// ValidateClassification asks the LLM whether a proposed classification
// of (title, contentExcerpt) under path is appropriate. Any parse or
// transport failure is treated as "skip validation": a classification is
// never blocked by a broken validator.
func (c *LLMTierClassifier) ValidateClassification(ctx context.Context, path, title, contentExcerpt string) (bool, string) {
	userPrompt := fmt.Sprintf(`Validate if the following content classification is appropriate.

Classification: %s
Title: %s
Content: %s

Is this classification appropriate? Respond with:
{"valid": true/false, "reason": "brief explanation"}`, path, title, contentExcerpt)

	response, err := c.client.Complete(ctx, "You validate content taxonomy classifications.", userPrompt)
	if err != nil {
		c.logger.Warn("classification validation transport error", "error", err)
		return true, "validation skipped due to error"
	}

	jsonStr, err := extractJSONObject(response)
	if err != nil {
		return true, "validation skipped due to invalid response format"
	}

	var data struct {
		Valid  *bool  `json:"valid"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil || data.Valid == nil {
		return true, "validation skipped due to invalid response format"
	}
	return *data.Valid, data.Reason
}
