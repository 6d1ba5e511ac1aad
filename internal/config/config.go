// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the runtime configuration for the knowledge-retrieval
// core from environment variables, with library-friendly defaults.
//
// Configuration loading itself is a pure function of the environment
// (FromEnv); nothing in this package performs file I/O or talks to a
// transport. Wiring a config into an HTTP façade or CLI flag parser is left
// to the host binary.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Library configures where Markdown source documents live.
type Library struct {
	Path      string
	IndexFile string
}

// Embeddings configures the embedding provider.
type Embeddings struct {
	Provider     string
	Model        string
	APIKey       string
	APIKeyEnvVar string
	BaseURL      string
	Dimensions   int
}

// Vector configures the vector store connection.
type Vector struct {
	URL            string
	Port           int
	APIKey         string
	CollectionName string
}

// Chunking configures how source text is split before embedding.
type Chunking struct {
	MinTokens     int
	MaxTokens     int
	OverlapTokens int
	Strategy      string
}

// Classification configures the two-tier classifier's thresholds.
type Classification struct {
	FastTierConfidenceThreshold    float64
	NewCategoryConfidenceThreshold float64
	AutoApproveLevel3Plus          bool
	MaxContentLengthForLLM         int
}

// Ranking configures the composite ranker's signal weights.
type Ranking struct {
	SimilarityWeight    float64
	TaxonomyWeight      float64
	RecencyWeight       float64
	RecencyHalfLifeDays float64
}

// Taxonomy configures where the taxonomy document and centroid cache live.
type Taxonomy struct {
	ConfigPath            string
	CentroidsCacheDir     string
	MinSamplesForCentroid int
}

// Config is the fully resolved configuration for a knowlib instance.
type Config struct {
	Library        Library
	Embeddings     Embeddings
	Vector         Vector
	Chunking       Chunking
	Classification Classification
	Ranking        Ranking
	Taxonomy       Taxonomy
}

// Default returns a Config populated with the documented defaults.
func Default() Config {
	return Config{
		Library: Library{
			Path:      "./library",
			IndexFile: ".index_state.json",
		},
		Embeddings: Embeddings{
			Provider: "openai",
		},
		Vector: Vector{
			CollectionName: "knowledge_library",
		},
		Chunking: Chunking{
			MinTokens:     512,
			MaxTokens:     2048,
			OverlapTokens: 128,
			Strategy:      "semantic",
		},
		Classification: Classification{
			FastTierConfidenceThreshold:    0.75,
			NewCategoryConfidenceThreshold: 0.85,
			AutoApproveLevel3Plus:          true,
			MaxContentLengthForLLM:         2000,
		},
		Ranking: Ranking{
			SimilarityWeight:    0.6,
			TaxonomyWeight:      0.25,
			RecencyWeight:       0.15,
			RecencyHalfLifeDays: 30.0,
		},
		Taxonomy: Taxonomy{
			ConfigPath:            "./configs/taxonomy.yaml",
			CentroidsCacheDir:     "./data/centroids",
			MinSamplesForCentroid: 3,
		},
	}
}

// FromEnv builds a Config by overlaying environment variables onto Default.
// Empty env values are treated as unset (the default is kept). Invalid
// integer/float env values return an error so a misconfigured process
// fails before startup instead of running with silent fallbacks.
func FromEnv() (Config, error) {
	cfg := Default()

	if v := getenv("LIBRARY_PATH"); v != "" {
		cfg.Library.Path = v
	}
	if v := getenv("LIBRARY_INDEX_FILE"); v != "" {
		cfg.Library.IndexFile = v
	}

	if v := getenv("EMBEDDINGS_PROVIDER"); v != "" {
		cfg.Embeddings.Provider = v
	}
	if v := getenv("EMBEDDINGS_MODEL"); v != "" {
		cfg.Embeddings.Model = v
	}
	if v := getenv("EMBEDDINGS_API_KEY"); v != "" {
		cfg.Embeddings.APIKey = v
	}
	if v := getenv("EMBEDDINGS_API_KEY_ENV_VAR"); v != "" {
		cfg.Embeddings.APIKeyEnvVar = v
	}
	if v := getenv("EMBEDDINGS_BASE_URL"); v != "" {
		cfg.Embeddings.BaseURL = v
	}
	if err := setInt("EMBEDDINGS_DIMENSIONS", &cfg.Embeddings.Dimensions); err != nil {
		return cfg, err
	}

	if v := getenv("VECTOR_URL"); v != "" {
		cfg.Vector.URL = v
	}
	if err := setInt("VECTOR_PORT", &cfg.Vector.Port); err != nil {
		return cfg, err
	}
	if v := getenv("VECTOR_API_KEY"); v != "" {
		cfg.Vector.APIKey = v
	}
	if v := getenv("VECTOR_COLLECTION_NAME"); v != "" {
		cfg.Vector.CollectionName = v
	}

	if err := setInt("CHUNKING_MIN_TOKENS", &cfg.Chunking.MinTokens); err != nil {
		return cfg, err
	}
	if err := setInt("CHUNKING_MAX_TOKENS", &cfg.Chunking.MaxTokens); err != nil {
		return cfg, err
	}
	if err := setInt("CHUNKING_OVERLAP_TOKENS", &cfg.Chunking.OverlapTokens); err != nil {
		return cfg, err
	}
	if v := getenv("CHUNKING_STRATEGY"); v != "" {
		cfg.Chunking.Strategy = v
	}

	if err := setFloat("CLASSIFICATION_FAST_TIER_CONFIDENCE_THRESHOLD", &cfg.Classification.FastTierConfidenceThreshold); err != nil {
		return cfg, err
	}
	if err := setFloat("CLASSIFICATION_NEW_CATEGORY_CONFIDENCE_THRESHOLD", &cfg.Classification.NewCategoryConfidenceThreshold); err != nil {
		return cfg, err
	}
	if err := setBool("CLASSIFICATION_AUTO_APPROVE_LEVEL3_PLUS", &cfg.Classification.AutoApproveLevel3Plus); err != nil {
		return cfg, err
	}
	if err := setInt("CLASSIFICATION_MAX_CONTENT_LENGTH_FOR_LLM", &cfg.Classification.MaxContentLengthForLLM); err != nil {
		return cfg, err
	}

	if err := setFloat("RANKING_SIMILARITY_WEIGHT", &cfg.Ranking.SimilarityWeight); err != nil {
		return cfg, err
	}
	if err := setFloat("RANKING_TAXONOMY_WEIGHT", &cfg.Ranking.TaxonomyWeight); err != nil {
		return cfg, err
	}
	if err := setFloat("RANKING_RECENCY_WEIGHT", &cfg.Ranking.RecencyWeight); err != nil {
		return cfg, err
	}
	if err := setFloat("RANKING_RECENCY_HALF_LIFE_DAYS", &cfg.Ranking.RecencyHalfLifeDays); err != nil {
		return cfg, err
	}

	if v := getenv("TAXONOMY_CONFIG_PATH"); v != "" {
		cfg.Taxonomy.ConfigPath = v
	}
	if v := getenv("TAXONOMY_CENTROIDS_CACHE_DIR"); v != "" {
		cfg.Taxonomy.CentroidsCacheDir = v
	}
	if err := setInt("TAXONOMY_MIN_SAMPLES_FOR_CENTROID", &cfg.Taxonomy.MinSamplesForCentroid); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// getenv treats an empty value as unset.
func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setInt(key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: invalid integer for %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(key string, dst *float64) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("config: invalid float for %s: %w", key, err)
	}
	*dst = f
	return nil
}

func setBool(key string, dst *bool) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: invalid bool for %s: %w", key, err)
	}
	*dst = b
	return nil
}

// ResolveAPIKey implements the embedding/LLM API-key resolution order:
// explicit config value, then provider-specific env var, then the given
// default env var name.
func ResolveAPIKey(explicit, providerEnvVar, defaultEnvVar string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	if providerEnvVar != "" {
		if v := getenv(providerEnvVar); v != "" {
			return v, true
		}
	}
	if defaultEnvVar != "" {
		if v := getenv(defaultEnvVar); v != "" {
			return v, true
		}
	}
	return "", false
}
