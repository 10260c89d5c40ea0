// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package jsonl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jsonl-cache/jsonl/internal/cachefile"
	"github.com/jsonl-cache/jsonl/internal/cachepath"
	"github.com/jsonl-cache/jsonl/internal/flock"
	"github.com/jsonl-cache/jsonl/internal/scan"
)

// Reader provides random and sliced line access into one JSONL file
// through a persisted table of per-line byte offsets.  Lines are
// returned as raw bytes with the terminator stripped; JSON decoding is
// the caller's business.
//
// A Reader is not safe for concurrent use by multiple goroutines.  Each
// worker should construct its own Reader; cache files are shared safely
// between them.
type Reader struct {
	sourcePath string
	cachePath  string
	opts       options
	f          *os.File
	rec        *cachefile.Record
}

// New opens the JSONL file at sourcePath for offset-indexed reads,
// loading its offset cache or building one if no valid cache exists.
func New(sourcePath string, opts ...Option) (*Reader, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newReader(sourcePath, o)
}

func newReader(sourcePath string, o options) (*Reader, error) {
	abs, cachePath, err := resolvePaths(sourcePath, o.cachePath)
	if err != nil {
		return nil, err
	}
	rec, err := initCache(abs, cachePath, &o)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", abs, err)
	}
	return &Reader{
		sourcePath: abs,
		cachePath:  cachePath,
		opts:       o,
		f:          f,
		rec:        rec,
	}, nil
}

// resolvePaths makes both paths absolute, verifies the source exists,
// and refuses a cache path that resolves to the source file itself.
func resolvePaths(sourcePath, cacheOverride string) (abs, cachePath string, err error) {
	abs, err = filepath.Abs(sourcePath)
	if err != nil {
		return "", "", fmt.Errorf("filepath.Abs: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", fmt.Errorf("%w: %s", ErrSourceNotFound, abs)
		}
		return "", "", fmt.Errorf("os.Stat: %w", err)
	}

	if cacheOverride != "" {
		cachePath, err = filepath.Abs(cacheOverride)
		if err != nil {
			return "", "", fmt.Errorf("filepath.Abs: %w", err)
		}
	} else {
		cachePath, err = cachepath.For(abs)
		if err != nil {
			return "", "", fmt.Errorf("cachepath.For: %w", err)
		}
	}
	if cachePath == abs {
		return "", "", fmt.Errorf("cache path %s resolves to the source file", cachePath)
	}
	return abs, cachePath, nil
}

// initCache loads the record at cachePath, or (re)builds it when the
// configured checks say it cannot be trusted.  Building is serialized
// across processes by an advisory lock scoped to cachePath.
func initCache(sourcePath, cachePath string, o *options) (*cachefile.Record, error) {
	checks := o.checks()

	rec, err := loadRecord(cachePath, o)
	if err != nil {
		return nil, err
	}
	ok, err := cachefile.Valid(rec, sourcePath, checks)
	if err != nil {
		return nil, fmt.Errorf("cachefile.Valid: %w", err)
	}
	if ok {
		o.logger.Debug("offset cache hit", "source", sourcePath, "cache", cachePath)
		return rec, nil
	}

	lock, err := flock.Acquire(cachePath)
	if err != nil {
		if errors.Is(err, flock.ErrContention) {
			return nil, fmt.Errorf("%w: %s", ErrLockContention, cachePath)
		}
		return nil, fmt.Errorf("flock.Acquire: %w", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	// another process may have finished a build while we waited on the
	// lock; re-read its result rather than rebuilding
	if rec, err := loadRecord(cachePath, o); err == nil && rec != nil {
		if ok, err := cachefile.Valid(rec, sourcePath, checks); err == nil && ok {
			o.logger.Debug("offset cache built concurrently", "cache", cachePath)
			return rec, nil
		}
	}

	o.logger.Info("building offset cache", "source", sourcePath, "cache", cachePath)
	rec, err = buildRecord(sourcePath)
	if err != nil {
		return nil, err
	}
	if err := cachefile.Save(cachePath, rec); err != nil {
		return nil, fmt.Errorf("cachefile.Save: %w", err)
	}
	return rec, nil
}

// loadRecord treats a missing or corrupt cache file as absent; anything
// else that stops the load is a real error.
func loadRecord(cachePath string, o *options) (*cachefile.Record, error) {
	rec, err := cachefile.Load(cachePath)
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, cachefile.ErrNotFound):
		return nil, nil
	case errors.Is(err, cachefile.ErrCorrupt):
		o.logger.Warn("discarding corrupt offset cache", "cache", cachePath, "err", err)
		return nil, nil
	default:
		return nil, fmt.Errorf("cachefile.Load: %w", err)
	}
}

// buildRecord scans the source file once, producing offsets and the
// content fingerprint in the same pass.
func buildRecord(sourcePath string) (*cachefile.Record, error) {
	f, err := os.Open(sourcePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourcePath)
		}
		return nil, fmt.Errorf("os.Open: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("f.Stat: %w", err)
	}
	res, err := scan.File(f)
	if err != nil {
		return nil, fmt.Errorf("scan.File: %w", err)
	}
	return &cachefile.Record{
		Offsets: res.Offsets,
		Fingerprint: cachefile.Fingerprint{
			SizeBytes: res.Size,
			ModTime:   st.ModTime().UnixNano(),
			Hash:      res.Hash,
			HasHash:   true,
		},
	}, nil
}

// Len returns the number of lines recorded in the bound cache.
func (r *Reader) Len() int {
	return r.rec.LineCount()
}

// SourcePath returns the absolute path of the underlying JSONL file.
func (r *Reader) SourcePath() string {
	return r.sourcePath
}

// CachePath returns the resolved location of the offset cache.
func (r *Reader) CachePath() string {
	return r.cachePath
}

// Get returns the raw content of one line, without its terminator.
// Negative indices count from the end, -1 being the last line.  An
// index outside [-Len, Len-1] fails with ErrIndexOutOfRange.
func (r *Reader) Get(index int) ([]byte, error) {
	if r.f == nil {
		return nil, ErrClosed
	}
	n := r.Len()
	i := index
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return nil, fmt.Errorf("%w: %d with length %d", ErrIndexOutOfRange, index, n)
	}
	return r.readLine(i)
}

// readLine seeks to the cached offset for line i and reads up to the
// next line's offset (or the recorded file size for the last line).
// The caller has already bounds-checked i.
func (r *Reader) readLine(i int) ([]byte, error) {
	// checked here as well as in Get: MultiReader delegates straight to
	// readLine, and a member may have been closed underneath it
	if r.f == nil {
		return nil, ErrClosed
	}
	start := r.rec.Offsets[i]
	var end int64
	if i+1 < len(r.rec.Offsets) {
		end = r.rec.Offsets[i+1]
	} else {
		end = r.rec.Fingerprint.SizeBytes
	}

	buf := make([]byte, end-start)
	n, err := r.f.ReadAt(buf, start)
	if n < len(buf) {
		if err == io.EOF || err == nil {
			return nil, fmt.Errorf("%w: line %d needs bytes [%d, %d)", ErrTruncatedSource, i, start, end)
		}
		return nil, fmt.Errorf("f.ReadAt(%d): %w", start, err)
	}
	if len(buf) > 0 && buf[len(buf)-1] == '\n' {
		buf = buf[:len(buf)-1]
	}
	return buf, nil
}

// Slice returns the lines selected by [start:stop:step] with list-slice
// semantics: negative indices count from the end, out-of-range bounds
// are clamped rather than failing, and a negative step walks in reverse.
// Pass Open to leave a bound unset.  A step of 0 fails with ErrZeroStep.
func (r *Reader) Slice(start, stop, step int) ([][]byte, error) {
	if r.f == nil {
		return nil, ErrClosed
	}
	indices, err := sliceIndices(start, stop, step, r.Len())
	if err != nil {
		return nil, err
	}
	lines := make([][]byte, 0, len(indices))
	for _, i := range indices {
		line, err := r.readLine(i)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Iter returns a fresh iterator positioned at line 0.  Iteration reads
// the file sequentially with its own handle, so iterators don't disturb
// concurrent Get calls on the Reader.  Make sure to `defer it.Close()`.
func (r *Reader) Iter() (*Iter, error) {
	if r.f == nil {
		return nil, ErrClosed
	}
	f, err := os.Open(r.sourcePath)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", r.sourcePath, err)
	}
	return &Iter{
		f:         f,
		r:         bufio.NewReaderSize(f, 64*1024),
		remaining: r.Len(),
	}, nil
}

// Recache discards the bound record, rebuilds it from the current file
// content regardless of validity, persists it, and rebinds.  A
// WithCachePath option redirects future cache reads and writes; the
// source path never changes.
func (r *Reader) Recache(opts ...Option) error {
	if r.f == nil {
		return ErrClosed
	}
	o := r.opts
	o.cachePath = r.cachePath
	for _, opt := range opts {
		opt(&o)
	}

	abs, cachePath, err := resolvePaths(r.sourcePath, o.cachePath)
	if err != nil {
		return err
	}

	lock, err := flock.Acquire(cachePath)
	if err != nil {
		if errors.Is(err, flock.ErrContention) {
			return fmt.Errorf("%w: %s", ErrLockContention, cachePath)
		}
		return fmt.Errorf("flock.Acquire: %w", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	rec, err := buildRecord(abs)
	if err != nil {
		return err
	}
	if err := cachefile.Save(cachePath, rec); err != nil {
		return fmt.Errorf("cachefile.Save: %w", err)
	}

	// reopen so a replaced file (rename over the old inode) is picked up
	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("os.Open(%s): %w", abs, err)
	}
	_ = r.f.Close()
	r.f = f
	r.rec = rec
	r.cachePath = cachePath
	return nil
}

// Close releases the Reader's file handle.  The persisted cache is left
// in place for future readers.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	r.rec = nil
	return err
}

// Iter is a forward-only iterator over a Reader's lines.  It is bounded
// by the line count recorded at cache-build time, so a file that grew
// since caching yields exactly the cached number of lines.
type Iter struct {
	f         *os.File
	r         *bufio.Reader
	remaining int
	err       error
}

// Next returns the next line without its terminator.  It returns false
// at the end of iteration or on error; check Err afterwards.
func (it *Iter) Next() ([]byte, bool) {
	if it.err != nil || it.remaining == 0 {
		return nil, false
	}
	line, err := it.r.ReadBytes('\n')
	if err != nil && err != io.EOF {
		it.err = fmt.Errorf("bufio.ReadBytes: %w", err)
		return nil, false
	}
	if err == io.EOF && len(line) == 0 {
		// the cache promised more lines than the file now holds
		it.err = fmt.Errorf("%w: file ended early", ErrTruncatedSource)
		return nil, false
	}
	it.remaining--
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	return line, true
}

// Err returns the first error encountered during iteration, if any.
func (it *Iter) Err() error {
	return it.err
}

// Close releases the iterator's file handle.
func (it *Iter) Close() error {
	if it.f == nil {
		return nil
	}
	err := it.f.Close()
	it.f = nil
	return err
}
