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
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/dgraph-io/badger/v4"

	"github.com/knowlib/knowlib/internal/errs"
	"github.com/knowlib/knowlib/pkg/logging"
)

// Cached wraps a Provider with a BadgerDB-backed hot cache keyed by a
// 64-bit FNV-1a hash of each input string, avoiding repeat embedding
// calls for unchanged chunks across indexer runs.
type Cached struct {
	inner  Provider
	db     *badger.DB
	logger *logging.Logger
}

// NewCached opens (or creates) a Badger store at dir and wraps inner.
func NewCached(inner Provider, dir string, logger *logging.Logger) (*Cached, error) {
	if logger == nil {
		logger = logging.Default()
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransportError, "open embedding cache", err)
	}
	return &Cached{inner: inner, db: db, logger: logger}, nil
}

// Close releases the underlying Badger store.
func (c *Cached) Close() error {
	return c.db.Close()
}

// Embed implements Provider, serving cache hits and embedding only the
// misses in a single batched call to the wrapped provider.
func (c *Cached) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if v, ok := c.lookup(t); ok {
			out[i] = v
		} else {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, t)
		}
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range missIdx {
		out[idx] = fresh[j]
		if err := c.store(missTexts[j], fresh[j]); err != nil {
			c.logger.Warn("embedding cache store failed", "error", err)
		}
	}

	return out, nil
}

// EmbedSingle implements Provider.
func (c *Cached) EmbedSingle(ctx context.Context, text string) (Vector, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimensions implements Provider.
func (c *Cached) Dimensions() int {
	return c.inner.Dimensions()
}

func (c *Cached) cacheKey(text string) []byte {
	return []byte("embed:" + contentFingerprint(text))
}

func (c *Cached) lookup(text string) (Vector, bool) {
	var vec Vector
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.cacheKey(text))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			vec = decodeVector(val)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	return vec, true
}

func (c *Cached) store(text string, vec Vector) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(c.cacheKey(text), encodeVector(vec))
	})
}

func encodeVector(vec Vector) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) Vector {
	vec := make(Vector, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// contentFingerprint is used only for cache keys, not for checksum/audit
// semantics, so a JSON-stable hash of the raw string is sufficient here.
func contentFingerprint(text string) string {
	b, _ := json.Marshal(text)
	sum := fnv64(b)
	return sum
}

func fnv64(b []byte) string {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	var h uint64 = offset
	for _, c := range b {
		h ^= uint64(c)
		h *= prime
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, h)
	return string(buf)
}

var _ Provider = (*Cached)(nil)
