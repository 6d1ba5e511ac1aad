// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package indexer keeps a vector store synchronized with a directory
// tree of Markdown files: chunking, checksum-gated reindexing, and
// IndexState persistence.
package indexer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/textsplitter"
)

// markdownSeparators are the split boundaries fed to the recursive
// splitter, ordered from strongest (headings) to weakest.
var markdownSeparators = []string{
	"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
	"\n\n", "\n", " ", "",
}

// tokenEncoding is a stand-in tokenizer; cl100k_base is the encoding
// tiktoken-go ships for every modern embedding/chat model the provider
// wiring in internal/embedding/internal/llm targets.
const tokenEncoding = "cl100k_base"

// Chunk is one windowed unit of a source document, prior to being
// wrapped into a payload.Payload.
type Chunk struct {
	Text    string
	Section string
	Index   int
	Total   int
}

// Chunker splits Markdown text into heading-aware, token-windowed chunks.
type Chunker struct {
	minTokens     int
	maxTokens     int
	overlapTokens int
	enc           *tiktoken.Tiktoken
}

// NewChunker builds a Chunker honoring the configured min/max/overlap
// token window (defaults: 512-2048, overlap 128).
func NewChunker(minTokens, maxTokens, overlapTokens int) (*Chunker, error) {
	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer %s: %w", tokenEncoding, err)
	}
	return &Chunker{minTokens: minTokens, maxTokens: maxTokens, overlapTokens: overlapTokens, enc: enc}, nil
}

// tokenCount returns the number of tokens in s under the chunker's encoding.
func (c *Chunker) tokenCount(s string) int {
	return len(c.enc.Encode(s, nil, nil))
}

// Split splits the document's full body into chunks on heading (then
// paragraph, line, word) boundaries via the recursive character splitter.
// The max window and overlap are applied as character budgets of four
// characters per token, so a chunk's exact token count can exceed
// maxTokens. Pieces whose exact token count is below minTokens are
// dropped entirely; undersized pieces are not merged with neighbours.
func (c *Chunker) Split(body string) ([]Chunk, error) {
	// langchaingo's character-count knobs approximate our token window;
	// four characters per token is a standard cl100k_base rule of thumb.
	// The exact tiktoken count is used below only for the minimum.
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.maxTokens*4),
		textsplitter.WithChunkOverlap(c.overlapTokens*4),
		textsplitter.WithSeparators(markdownSeparators),
	)

	pieces, err := splitter.SplitText(body)
	if err != nil {
		return nil, fmt.Errorf("splitting document: %w", err)
	}

	sections := headingsForPieces(body, pieces)

	var kept []Chunk
	for i, piece := range pieces {
		trimmed := strings.TrimSpace(piece)
		if trimmed == "" {
			continue
		}
		if c.tokenCount(trimmed) < c.minTokens {
			continue
		}
		kept = append(kept, Chunk{Text: trimmed, Section: sections[i]})
	}

	for i := range kept {
		kept[i].Index = i
		kept[i].Total = len(kept)
	}
	return kept, nil
}

// headingsForPieces assigns each split piece the last Markdown heading
// line that precedes it in body, so a chunk's Section names the heading
// immediately above it in the source document.
func headingsForPieces(body string, pieces []string) []string {
	lines := strings.Split(body, "\n")
	lineHeadings := make([]string, len(lines))
	current := ""
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			current = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
			current = strings.TrimSpace(current)
		}
		lineHeadings[i] = current
	}

	sections := make([]string, len(pieces))
	searchFrom := 0
	for i, piece := range pieces {
		idx := strings.Index(body[searchFrom:], firstNonEmptyLine(piece))
		if idx < 0 {
			continue
		}
		pos := searchFrom + idx
		lineNum := strings.Count(body[:pos], "\n")
		if lineNum < len(lineHeadings) {
			sections[i] = lineHeadings[lineNum]
		}
		searchFrom = pos
	}
	return sections
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return s
}
