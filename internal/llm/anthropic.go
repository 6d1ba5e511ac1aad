// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/knowlib/knowlib/internal/config"
	"github.com/knowlib/knowlib/internal/errs"
)

const (
	defaultAnthropicModel     = anthropic.ModelClaudeSonnet4_5
	defaultAnthropicMaxTokens = 1024
)

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client  anthropic.Client
	model   anthropic.Model
	limiter *rate.Limiter
}

// NewAnthropicClient resolves an API key via the documented order (explicit
// config value -> provider env var -> ANTHROPIC_API_KEY) and constructs a
// client rate-limited to ratePerSecond requests.
func NewAnthropicClient(cfg config.Embeddings, ratePerSecond float64) (*AnthropicClient, error) {
	key, ok := config.ResolveAPIKey(cfg.APIKey, cfg.APIKeyEnvVar, "ANTHROPIC_API_KEY")
	if !ok {
		return nil, errs.New(errs.KindMissingCredential, "no API key resolved for LLM client")
	}

	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = defaultAnthropicModel
	}

	return &AnthropicClient{
		client:  anthropic.NewClient(opts...),
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1),
	}, nil
}

// Complete implements Client.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errs.Wrap(errs.KindTimeout, "rate limiter wait", err)
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: defaultAnthropicMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", errs.Wrap(errs.KindTransportError, "anthropic messages.new", err)
	}

	for _, block := range msg.Content {
		if text := block.Text; text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("anthropic returned no text content")
}

var _ Client = (*AnthropicClient)(nil)
