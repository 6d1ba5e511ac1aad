// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/knowlib/knowlib/internal/block"
	"github.com/knowlib/knowlib/internal/embedding"
	"github.com/knowlib/knowlib/internal/payload"
	"github.com/knowlib/knowlib/internal/vectorstore"
	"github.com/knowlib/knowlib/pkg/logging"
)

// upsertFanOut bounds how many files are embedded and upserted
// concurrently during a full reindex.
const upsertFanOut = 4

// Prometheus metrics for indexing operations.
var (
	filesIndexedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knowlib_indexer_files_total",
		Help: "Files processed by outcome",
	}, []string{"outcome"})

	indexFileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "knowlib_indexer_file_duration_seconds",
		Help:    "Time spent chunking, embedding, and upserting one file",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
)

// Indexer keeps a vectorstore.Store synchronized with a directory tree
// of Markdown files.
type Indexer struct {
	libraryPath string
	store       vectorstore.Store
	embedder    embedding.Provider
	chunker     *Chunker
	state       *IndexState
	logger      *logging.Logger
}

// New constructs an Indexer. statePath is where IndexState is persisted
// (spec calls for it to live alongside the library).
func New(libraryPath, statePath string, store vectorstore.Store, embedder embedding.Provider, chunker *Chunker, logger *logging.Logger) (*Indexer, error) {
	state, err := LoadIndexState(statePath)
	if err != nil {
		return nil, fmt.Errorf("loading index state: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Indexer{
		libraryPath: libraryPath,
		store:       store,
		embedder:    embedder,
		chunker:     chunker,
		state:       state,
		logger:      logger,
	}, nil
}

// IndexFile reads path, chunks it, deletes any existing points for that
// file, and upserts the fresh batch. path is relative to libraryPath.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (int, error) {
	start := time.Now()
	defer func() { indexFileDuration.Observe(time.Since(start).Seconds()) }()

	full := filepath.Join(idx.libraryPath, path)
	raw, err := os.ReadFile(full)
	if err != nil {
		filesIndexedTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	chunks, err := idx.chunker.Split(string(raw))
	if err != nil {
		return 0, fmt.Errorf("chunking %s: %w", path, err)
	}
	if len(chunks) == 0 {
		idx.logger.Warn("no chunks produced after splitting", "file", path)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := idx.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %s: %w", path, err)
	}

	if err := idx.store.DeleteByFile(ctx, path); err != nil {
		return 0, fmt.Errorf("clearing existing points for %s: %w", path, err)
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		p := payload.New(path, block.GenerateChecksum(c.Text), c.Index, c.Total)
		p.Section = c.Section
		points[i] = vectorstore.Point{ID: p.ContentID, Vector: vectors[i], Payload: p}
	}

	if err := idx.store.UpsertBatch(ctx, points); err != nil {
		filesIndexedTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("upserting %s: %w", path, err)
	}

	filesIndexedTotal.WithLabelValues("indexed").Inc()
	idx.logger.Info("indexed file", "file", path, "chunks", len(points))
	return len(points), nil
}

// IndexAll walks the library directory, skipping underscore-prefixed and
// non-Markdown files, reindexing anything whose checksum changed (or
// unconditionally, when force is true), and persists the resulting
// IndexState.
func (idx *Indexer) IndexAll(ctx context.Context, force bool) (int, error) {
	var toIndex []string

	err := filepath.WalkDir(idx.libraryPath, func(full string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "_") || !strings.EqualFold(filepath.Ext(name), ".md") {
			return nil
		}

		rel, err := filepath.Rel(idx.libraryPath, full)
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(full)
		if err != nil {
			return err
		}
		checksum := block.GenerateChecksum(string(raw))

		prior, ok := idx.state.Get(rel)
		if !force && ok && prior.Checksum == checksum {
			return nil
		}

		toIndex = append(toIndex, rel)
		idx.state.Set(rel, checksum, time.Now().UTC())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walking library: %w", err)
	}

	total, err := idx.indexBatchConcurrently(ctx, toIndex)
	if err != nil {
		return total, err
	}

	if err := idx.state.Save(); err != nil {
		return total, fmt.Errorf("persisting index state: %w", err)
	}
	return total, nil
}

func (idx *Indexer) indexBatchConcurrently(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertFanOut)

	counts := make([]int, len(paths))
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			n, err := idx.IndexFile(gctx, p)
			if err != nil {
				return fmt.Errorf("indexing %s: %w", p, err)
			}
			counts[i] = n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// RemoveDeletedFiles drops every IndexState entry whose file no longer
// exists on disk, deleting its points from the store first.
func (idx *Indexer) RemoveDeletedFiles(ctx context.Context) (int, error) {
	removed := 0
	for _, path := range idx.state.Paths() {
		full := filepath.Join(idx.libraryPath, path)
		if _, err := os.Stat(full); err == nil {
			continue
		}

		if err := idx.store.DeleteByFile(ctx, path); err != nil {
			return removed, fmt.Errorf("deleting points for removed file %s: %w", path, err)
		}
		idx.state.Remove(path)
		removed++
	}

	if removed > 0 {
		if err := idx.state.Save(); err != nil {
			return removed, fmt.Errorf("persisting index state: %w", err)
		}
	}
	return removed, nil
}
