// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package jsonl

import (
	"fmt"
	"sort"
)

// MultiReader presents an ordered sequence of JSONL files as one
// logically contiguous sequence of lines.  Global indices are mapped to
// a (reader, local index) pair through prefix sums of the members'
// line counts.
type MultiReader struct {
	readers []*Reader
	// cumulative[i] is the total line count of readers[0..i]; derived,
	// recomputed whenever a member's line count can have changed.
	cumulative []int
}

// NewMulti builds a Reader for each source path and composes them in
// order.  Cache handling options apply to every file; WithCachePaths
// supplies per-file cache locations.  A failure on any file aborts
// construction with that file's path wrapped in the error.
func NewMulti(sourcePaths []string, opts ...Option) (*MultiReader, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.cachePaths != nil && len(o.cachePaths) != len(sourcePaths) {
		return nil, fmt.Errorf("got %d cache paths for %d source paths", len(o.cachePaths), len(sourcePaths))
	}

	readers := make([]*Reader, 0, len(sourcePaths))
	for i, path := range sourcePaths {
		ro := o
		ro.cachePath = ""
		if o.cachePaths != nil {
			ro.cachePath = o.cachePaths[i]
		}
		r, err := newReader(path, ro)
		if err != nil {
			for _, built := range readers {
				_ = built.Close()
			}
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		readers = append(readers, r)
	}

	m := &MultiReader{readers: readers}
	m.recount()
	return m, nil
}

func (m *MultiReader) recount() {
	m.cumulative = make([]int, len(m.readers))
	total := 0
	for i, r := range m.readers {
		total += r.Len()
		m.cumulative[i] = total
	}
}

// Len returns the total line count across all member files.
func (m *MultiReader) Len() int {
	if len(m.cumulative) == 0 {
		return 0
	}
	return m.cumulative[len(m.cumulative)-1]
}

// Readers exposes the member readers in composition order.
func (m *MultiReader) Readers() []*Reader {
	return m.readers
}

// locate maps a non-negative global index to its owning reader and the
// index local to that reader's file.
func (m *MultiReader) locate(i int) (ri, li int) {
	ri = sort.SearchInts(m.cumulative, i+1)
	li = i
	if ri > 0 {
		li -= m.cumulative[ri-1]
	}
	return ri, li
}

// Get returns one line by global index.  Negative indices count from
// the end of the composed sequence.
func (m *MultiReader) Get(index int) ([]byte, error) {
	n := m.Len()
	i := index
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return nil, fmt.Errorf("%w: %d with length %d", ErrIndexOutOfRange, index, n)
	}
	ri, li := m.locate(i)
	return m.readers[ri].readLine(li)
}

// Slice returns the lines selected by [start:stop:step] over the
// composed sequence, with the same semantics as Reader.Slice, including
// reversal across file boundaries for negative steps.
func (m *MultiReader) Slice(start, stop, step int) ([][]byte, error) {
	indices, err := sliceIndices(start, stop, step, m.Len())
	if err != nil {
		return nil, err
	}
	lines := make([][]byte, 0, len(indices))
	for _, i := range indices {
		ri, li := m.locate(i)
		line, err := m.readers[ri].readLine(li)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Iter returns a fresh iterator over the composed sequence, walking
// each member file in order.  Make sure to `defer it.Close()`.
func (m *MultiReader) Iter() *MultiIter {
	return &MultiIter{m: m}
}

// Recache forcibly rebuilds every member's cache and recomputes the
// prefix sums, so composition reflects the files' current content.
func (m *MultiReader) Recache(opts ...Option) error {
	for _, r := range m.readers {
		if err := r.Recache(opts...); err != nil {
			return fmt.Errorf("%s: %w", r.SourcePath(), err)
		}
	}
	m.recount()
	return nil
}

// Close closes every member reader, returning the first error.
func (m *MultiReader) Close() error {
	var firstErr error
	for _, r := range m.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MultiIter iterates a MultiReader's members in order.
type MultiIter struct {
	m    *MultiReader
	next int
	cur  *Iter
	err  error
}

// Next returns the next line without its terminator, crossing file
// boundaries transparently.
func (it *MultiIter) Next() ([]byte, bool) {
	for {
		if it.err != nil {
			return nil, false
		}
		if it.cur == nil {
			if it.next >= len(it.m.readers) {
				return nil, false
			}
			cur, err := it.m.readers[it.next].Iter()
			if err != nil {
				it.err = err
				return nil, false
			}
			it.cur = cur
			it.next++
		}
		line, ok := it.cur.Next()
		if ok {
			return line, true
		}
		it.err = it.cur.Err()
		_ = it.cur.Close()
		it.cur = nil
	}
}

// Err returns the first error encountered during iteration, if any.
func (it *MultiIter) Err() error {
	return it.err
}

// Close releases any member iterator still open.
func (it *MultiIter) Close() error {
	if it.cur == nil {
		return nil
	}
	err := it.cur.Close()
	it.cur = nil
	return err
}
