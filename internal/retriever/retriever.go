// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retriever wraps vector-store search with deduplication,
// content hydration, and lightweight re-ranking, producing the chunks a
// RAG-style query ultimately answers from.
package retriever

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/knowlib/knowlib/internal/block"
	"github.com/knowlib/knowlib/internal/embedding"
	"github.com/knowlib/knowlib/internal/indexer"
	"github.com/knowlib/knowlib/internal/payload"
	"github.com/knowlib/knowlib/internal/vectorstore"
	"github.com/knowlib/knowlib/pkg/logging"
)

var tracer = otel.Tracer("knowlib.retriever")

const (
	defaultTopK          = 20
	defaultMinSimilarity = 0.3
	defaultMaxChunks     = 10
)

// RetrievedChunk is an enriched chunk returned by the retriever.
type RetrievedChunk struct {
	Content            string
	SourceFile         string
	Section            string
	Similarity         float64
	ContentFingerprint string
	Metadata           map[string]string
}

// Retriever wraps a vectorstore.Store with re-ranking, deduplication,
// and content hydration.
type Retriever struct {
	store         vectorstore.Store
	embedder      embedding.Provider
	libraryPath   string
	chunker       *indexer.Chunker
	minSimilarity float64
	maxChunks     int
	logger        *logging.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithMinSimilarity overrides the default minimum similarity threshold.
func WithMinSimilarity(min float64) Option {
	return func(r *Retriever) { r.minSimilarity = min }
}

// WithMaxChunks overrides the default max chunks returned per query.
func WithMaxChunks(max int) Option {
	return func(r *Retriever) { r.maxChunks = max }
}

// New constructs a Retriever. libraryPath and chunker are used only for
// hydration, when a raw hit's store doesn't carry inline chunk content.
func New(store vectorstore.Store, embedder embedding.Provider, libraryPath string, chunker *indexer.Chunker, logger *logging.Logger, opts ...Option) *Retriever {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Retriever{
		store:         store,
		embedder:      embedder,
		libraryPath:   libraryPath,
		chunker:       chunker,
		minSimilarity: defaultMinSimilarity,
		maxChunks:     defaultMaxChunks,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve embeds query, searches the store, dedupes by content
// fingerprint, re-ranks, and truncates to maxChunks. fileFilter, if
// non-empty, restricts results to that file path.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, fileFilter string) ([]RetrievedChunk, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	ctx, span := tracer.Start(ctx, "retriever.Retrieve",
		trace.WithAttributes(
			attribute.Int("retrieve.top_k", topK),
			attribute.Bool("retrieve.file_filtered", fileFilter != ""),
		),
	)
	defer span.End()

	queryVec, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	filter := vectorstore.SearchFilter{}
	if fileFilter != "" {
		filter.FilePath = fileFilter
	}

	hits, err := r.store.Search(ctx, queryVec, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("searching store: %w", err)
	}

	filtered := make([]vectorstore.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Score < r.minSimilarity {
			continue
		}
		filtered = append(filtered, h)
	}

	chunks := make([]RetrievedChunk, 0, len(filtered))
	for _, h := range filtered {
		chunks = append(chunks, r.toRetrievedChunk(h))
	}

	chunks = deduplicate(chunks)
	chunks = r.rerank(chunks, query)

	if len(chunks) > r.maxChunks {
		chunks = chunks[:r.maxChunks]
	}
	span.SetAttributes(attribute.Int("retrieve.result_count", len(chunks)))
	return chunks, nil
}

// RetrieveForFile retrieves chunks from a specific file only.
func (r *Retriever) RetrieveForFile(ctx context.Context, query, filePath string, topK int) ([]RetrievedChunk, error) {
	return r.Retrieve(ctx, query, topK, filePath)
}

func (r *Retriever) toRetrievedChunk(hit vectorstore.SearchResult) RetrievedChunk {
	content := r.hydrateContent(hit.Payload)

	metadata := map[string]string{}
	if hit.Payload.Taxonomy.FullPath != "" {
		metadata["taxonomy_path"] = hit.Payload.Taxonomy.FullPath
	}
	if hit.Payload.ContentType != "" {
		metadata["content_type"] = string(hit.Payload.ContentType)
	}

	return RetrievedChunk{
		Content:            content,
		SourceFile:         hit.Payload.FilePath,
		Section:            hit.Payload.Section,
		Similarity:         hit.Score,
		ContentFingerprint: contentFingerprint(content),
		Metadata:           metadata,
	}
}

// hydrateContent reconstructs chunk text by re-chunking the source file
// and matching by chunk_index, then falling back to content_hash. It
// never raises: missing files, re-chunk failures, or no match all
// degrade to a placeholder string.
func (r *Retriever) hydrateContent(p payload.Payload) string {
	if r.libraryPath == "" || r.chunker == nil {
		return "[Content unavailable: hydration not configured]"
	}

	raw, err := os.ReadFile(filepath.Join(r.libraryPath, p.FilePath))
	if err != nil {
		return fmt.Sprintf("[Content unavailable: %v]", err)
	}

	chunks, err := r.chunker.Split(string(raw))
	if err != nil {
		return fmt.Sprintf("[Content unavailable: %v]", err)
	}
	if len(chunks) == 0 {
		return "[Content unavailable: source produced no chunks]"
	}

	if p.ChunkIndex >= 0 && p.ChunkIndex < len(chunks) {
		return chunks[p.ChunkIndex].Text
	}

	for _, c := range chunks {
		if block.GenerateChecksum(c.Text) == p.ContentHash {
			return c.Text
		}
	}

	return "[Content unavailable: no matching chunk found]"
}

func contentFingerprint(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

func deduplicate(chunks []RetrievedChunk) []RetrievedChunk {
	seen := make(map[string]struct{}, len(chunks))
	unique := make([]RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.ContentFingerprint]; ok {
			continue
		}
		seen[c.ContentFingerprint] = struct{}{}
		unique = append(unique, c)
	}
	return unique
}

// rerank scores each chunk by similarity plus a length bonus, a section
// bonus, and a query-term-overlap bonus, then sorts descending.
func (r *Retriever) rerank(chunks []RetrievedChunk, query string) []RetrievedChunk {
	queryTerms := strings.Fields(strings.ToLower(query))

	scores := make([]float64, len(chunks))
	for i, c := range chunks {
		scores[i] = rerankScore(c, queryTerms)
	}

	indices := make([]int, len(chunks))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return scores[indices[i]] > scores[indices[j]]
	})

	reranked := make([]RetrievedChunk, len(chunks))
	for i, idx := range indices {
		reranked[i] = chunks[idx]
	}
	return reranked
}

func rerankScore(c RetrievedChunk, queryTerms []string) float64 {
	score := c.Similarity

	lengthBonus := float64(len(c.Content)) / 2000.0
	if lengthBonus > 0.1 {
		lengthBonus = 0.1
	}
	score += lengthBonus

	if c.Section != "" {
		score += 0.05
	}

	contentLower := strings.ToLower(c.Content)
	overlap := 0
	for _, term := range queryTerms {
		if strings.Contains(contentLower, term) {
			overlap++
		}
	}
	termBonus := float64(overlap) * 0.02
	if termBonus > 0.1 {
		termBonus = 0.1
	}
	score += termBonus

	return score
}
