// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm abstracts the LLM backend the classifier's slow tier calls
// to produce structured classification JSON. Backends implement a single
// contract: a system/user prompt pair in, the raw completion text out;
// the caller parses the JSON out of that text.
package llm

import "context"

// Client is the contract the classifier's LLM tier depends on: one
// system/user prompt pair in, one completion string out. Implementations
// must be safe for concurrent use.
type Client interface {
	// Complete sends systemPrompt and userPrompt to the backend and
	// returns its raw text response. Callers are responsible for parsing
	// structure (e.g. JSON) out of the response.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
