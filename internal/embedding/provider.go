// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package embedding defines the pluggable embedding-provider contract and
// its concrete implementations.
package embedding

import "context"

// Vector is a fixed-dimension embedding.
type Vector []float32

// Provider yields fixed-dimension vectors for a batch of strings, in
// order. Implementations are interchangeable: an OpenAI-compatible HTTP
// provider, a cached decorator, or a test double all satisfy this
// contract identically.
type Provider interface {
	// Embed returns one vector per input string, in the same order.
	Embed(ctx context.Context, texts []string) ([]Vector, error)

	// EmbedSingle is a convenience wrapper around Embed for one string.
	EmbedSingle(ctx context.Context, text string) (Vector, error)

	// Dimensions returns the provider's fixed vector size.
	Dimensions() int
}
