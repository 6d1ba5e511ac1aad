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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/knowlib/knowlib/internal/centroid"
	"github.com/knowlib/knowlib/internal/embedding"
	"github.com/knowlib/knowlib/internal/llm"
	"github.com/knowlib/knowlib/internal/taxonomy"
	"github.com/knowlib/knowlib/pkg/logging"
)

const defaultConfidenceThreshold = 0.75

// Tracer for classification operations.
var classifierTracer = otel.Tracer("knowlib.classifier")

// Prometheus metrics for classification operations.
var (
	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knowlib_classifications_total",
		Help: "Total classifications by tier that produced the result",
	}, []string{"tier"})

	classificationEscalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "knowlib_classification_escalations_total",
		Help: "Fast-tier results below threshold that escalated to the LLM tier",
	})
)

// Service orchestrates the two-tier classification pipeline: fast
// centroid lookup first, escalating to the LLM tier when confidence is
// below threshold.
type Service struct {
	taxonomyManager     *taxonomy.Manager
	centroidManager     *centroid.Manager
	embedder            embedding.Provider
	fastTier            *FastTierClassifier
	llmTier             *LLMTierClassifier
	confidenceThreshold float64
	logger              *logging.Logger
}

// NewService constructs a Service. If confidenceThreshold is 0, the
// taxonomy document's fast_tier_confidence_threshold is used once
// Load()-ed; falling back to 0.75 if the taxonomy is unavailable.
func NewService(
	taxonomyManager *taxonomy.Manager,
	centroidManager *centroid.Manager,
	embedder embedding.Provider,
	llmClient llm.Client,
	confidenceThreshold float64,
	logger *logging.Logger,
) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if confidenceThreshold == 0 {
		confidenceThreshold = defaultConfidenceThreshold
		if settings, err := taxonomyManager.ClassificationSettings(); err == nil && settings.FastTierConfidenceThreshold > 0 {
			confidenceThreshold = settings.FastTierConfidenceThreshold
		}
	}

	return &Service{
		taxonomyManager:     taxonomyManager,
		centroidManager:     centroidManager,
		embedder:            embedder,
		fastTier:            NewFastTierClassifier(taxonomyManager, centroidManager),
		llmTier:             NewLLMTierClassifier(taxonomyManager, llmClient, logger),
		confidenceThreshold: confidenceThreshold,
		logger:              logger,
	}
}

// Classify classifies (title, content) into a taxonomy path. If vec is
// nil, an embedding is computed from "title\n\ncontent". Fast tier runs
// first unless forceLLM is set; falling below confidenceThreshold
// escalates to the LLM tier. A new-category proposal returned by the
// LLM tier is forwarded to the taxonomy manager; a rejected proposal is
// dropped from the result rather than treated as fatal.
func (s *Service) Classify(ctx context.Context, title, content string, vec embedding.Vector, forceLLM bool) (Result, error) {
	ctx, span := classifierTracer.Start(ctx, "classifier.Classify")
	defer span.End()

	if vec == nil {
		combined := title + "\n\n" + content
		v, err := s.embedder.EmbedSingle(ctx, combined)
		if err != nil {
			return Result{}, fmt.Errorf("embedding content for classification: %w", err)
		}
		vec = v
	}

	if !forceLLM && s.fastTier.IsReady() {
		fastResult := s.fastTier.Classify(vec, defaultFastTierTopK)
		if fastResult.PrimaryConfidence >= s.confidenceThreshold {
			s.logger.Debug("fast tier accepted",
				"confidence", fastResult.PrimaryConfidence, "threshold", s.confidenceThreshold)
			span.SetAttributes(attribute.String("classify.tier", "fast"))
			classificationsTotal.WithLabelValues("fast").Inc()
			return fastResult, nil
		}
		s.logger.Debug("fast tier confidence below threshold, escalating to LLM",
			"confidence", fastResult.PrimaryConfidence, "threshold", s.confidenceThreshold)
		classificationEscalations.Inc()
	}

	llmResult, err := s.llmTier.Classify(ctx, title, content)
	if err != nil {
		return Result{}, err
	}
	span.SetAttributes(attribute.String("classify.tier", "llm"))
	classificationsTotal.WithLabelValues("llm").Inc()

	if llmResult.NewCategoryProposed != nil {
		proposed, err := s.taxonomyManager.ProposeCategory(*llmResult.NewCategoryProposed)
		if err != nil {
			s.logger.Warn("category proposal rejected", "error", err)
			llmResult.NewCategoryProposed = nil
		} else {
			s.logger.Info("new category proposed", "path", proposed.Path, "status", proposed.Status)
		}
	}

	return llmResult, nil
}

// ClassifyBatch classifies a slice of (title, content) pairs in order,
// returning results positionally aligned with items.
func (s *Service) ClassifyBatch(ctx context.Context, items []struct {
	Title   string
	Content string
}) ([]Result, error) {
	results := make([]Result, 0, len(items))
	for _, item := range items {
		result, err := s.Classify(ctx, item.Title, item.Content, nil, false)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Reclassify runs full classification for already-indexed content and
// reports a new Result only if the new primary path differs from
// currentPath AND its confidence meets confidenceThreshold — the
// reclassification silence rule. Otherwise it returns (Result{}, false).
func (s *Service) Reclassify(ctx context.Context, contentID, title, content, currentPath string) (Result, bool, error) {
	result, err := s.Classify(ctx, title, content, nil, false)
	if err != nil {
		return Result{}, false, err
	}

	if result.PrimaryPath == currentPath {
		return Result{}, false, nil
	}
	if result.PrimaryConfidence < s.confidenceThreshold {
		return Result{}, false, nil
	}

	s.logger.Info("content should move category",
		"content_id", contentID, "from", currentPath, "to", result.PrimaryPath,
		"confidence", result.PrimaryConfidence)
	return result, true, nil
}

// Stats summarizes the classifier's operating state.
type Stats struct {
	FastTierReady       bool
	CentroidCount       int
	ConfidenceThreshold float64
	TaxonomyPaths       int
	CategoryCoverage    map[string]bool
}

// GetClassificationStats reports current classifier readiness and
// taxonomy coverage.
func (s *Service) GetClassificationStats() (Stats, error) {
	paths, err := s.taxonomyManager.GetAllPaths()
	if err != nil {
		return Stats{}, err
	}
	coverage, err := s.fastTier.GetCategoryCoverage()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		FastTierReady:       s.fastTier.IsReady(),
		CentroidCount:       s.centroidManager.CentroidCount(),
		ConfidenceThreshold: s.confidenceThreshold,
		TaxonomyPaths:       len(paths),
		CategoryCoverage:    coverage,
	}, nil
}

// ValidatePath reports whether path names an existing taxonomy node.
func (s *Service) ValidatePath(path string) (bool, error) {
	return s.taxonomyManager.ValidatePath(path)
}
