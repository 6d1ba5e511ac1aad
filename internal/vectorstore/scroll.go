// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vectorstore

// ScrollCursor is a finite, restartable paginated scroll: each call to
// Next returns the next batch, in page order, until the underlying
// result set is exhausted. A fresh call to IterByTaxonomy always starts
// from the beginning; only the cursor's internal offset advances between
// Next calls, per the suspending-scroll model.
type ScrollCursor struct {
	batchSize int
	offset    int
	fetch     func(offset, limit int) ([]SearchResult, error)
}

// NewScrollCursor builds a cursor backed by fetch, a store-specific page
// fetcher (offset/limit -> page).
func NewScrollCursor(batchSize int, fetch func(offset, limit int) ([]SearchResult, error)) *ScrollCursor {
	return &ScrollCursor{batchSize: batchSize, fetch: fetch}
}

// Next returns the next page, or an empty (possibly nil) slice once exhausted.
func (c *ScrollCursor) Next() ([]SearchResult, error) {
	page, err := c.fetch(c.offset, c.batchSize)
	if err != nil {
		return nil, err
	}
	c.offset += len(page)
	return page, nil
}

// Done reports whether the last Next call returned a short page,
// meaning the scroll is exhausted.
func (c *ScrollCursor) Done(lastPageLen int) bool {
	return lastPageLen < c.batchSize
}
