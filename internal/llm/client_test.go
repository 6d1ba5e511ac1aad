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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowlib/knowlib/internal/config"
	"github.com/knowlib/knowlib/internal/errs"
)

func TestNewOpenAIClientFailsWithoutCredential(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIClient(config.Embeddings{}, 1)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindMissingCredential))
}

func TestNewOpenAIClientResolvesExplicitKey(t *testing.T) {
	client, err := NewOpenAIClient(config.Embeddings{APIKey: "sk-test", Model: "gpt-4o-mini"}, 5)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", client.model)
}

func TestNewOpenAIClientDefaultsModel(t *testing.T) {
	client, err := NewOpenAIClient(config.Embeddings{APIKey: "sk-test"}, 5)
	require.NoError(t, err)
	assert.Equal(t, defaultOpenAIChatModel, client.model)
}

func TestNewAnthropicClientFailsWithoutCredential(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewAnthropicClient(config.Embeddings{}, 1)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindMissingCredential))
}

func TestNewAnthropicClientResolvesExplicitKey(t *testing.T) {
	client, err := NewAnthropicClient(config.Embeddings{APIKey: "sk-ant-test"}, 5)
	require.NoError(t, err)
	assert.Equal(t, defaultAnthropicModel, client.model)
}
