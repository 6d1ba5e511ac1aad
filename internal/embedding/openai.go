// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package embedding

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/knowlib/knowlib/internal/config"
	"github.com/knowlib/knowlib/internal/errs"
)

// defaultOpenAIKeyEnvVar is the provider-family default, consulted only
// after the explicit config value and the provider-specific env var name.
const defaultOpenAIKeyEnvVar = "OPENAI_API_KEY"

// defaultModel is cheap, capable, and widely available.
const defaultModel = "text-embedding-3-small"

// defaultEmbedRatePerSecond caps outbound embedding calls so a bulk
// reindex cannot trip the provider's rate limits.
const defaultEmbedRatePerSecond = 10

// OpenAICompatibleProvider talks to any OpenAI-embeddings-API-compatible
// endpoint (OpenAI itself, or a self-hosted gateway via BaseURL).
type OpenAICompatibleProvider struct {
	client     *openai.Client
	model      string
	dimensions int
	limiter    *rate.Limiter
}

// NewOpenAICompatibleProvider resolves an API key via the documented
// order (explicit config value -> provider env var -> OPENAI_API_KEY) and
// constructs a client, optionally pointed at a custom BaseURL.
func NewOpenAICompatibleProvider(cfg config.Embeddings) (*OpenAICompatibleProvider, error) {
	key, ok := config.ResolveAPIKey(cfg.APIKey, cfg.APIKeyEnvVar, defaultOpenAIKeyEnvVar)
	if !ok {
		return nil, errs.New(errs.KindMissingCredential, "no API key resolved for embeddings provider")
	}

	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = 1536
	}

	return &OpenAICompatibleProvider{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: dims,
		limiter:    rate.NewLimiter(rate.Limit(defaultEmbedRatePerSecond), 1),
	}, nil
}

// Embed implements Provider.
func (p *OpenAICompatibleProvider) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errs.Wrap(errs.KindTimeout, "rate limiter wait", err)
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindTransportError, "create embeddings", err)
	}

	out := make([]Vector, len(resp.Data))
	for _, d := range resp.Data {
		vec := make(Vector, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = f
		}
		out[d.Index] = vec
	}
	return out, nil
}

// EmbedSingle implements Provider.
func (p *OpenAICompatibleProvider) EmbedSingle(ctx context.Context, text string) (Vector, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errs.New(errs.KindTransportError, "embedding provider returned no vectors")
	}
	return vecs[0], nil
}

// Dimensions implements Provider.
func (p *OpenAICompatibleProvider) Dimensions() int {
	return p.dimensions
}

var _ Provider = (*OpenAICompatibleProvider)(nil)
