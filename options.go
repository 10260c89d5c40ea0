// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package jsonl

import (
	"io"
	"log/slog"

	"github.com/jsonl-cache/jsonl/internal/cachefile"
)

// Option configures reader construction, Recache and Precache.
type Option func(*options)

type options struct {
	cachePath   string
	cachePaths  []string
	force       bool
	checkTime   bool
	checkHash   bool
	concurrency int
	logger      *slog.Logger
}

func defaultOptions() options {
	return options{
		concurrency: 1,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (o *options) checks() cachefile.Checks {
	return cachefile.Checks{
		Force: o.force,
		Time:  o.checkTime,
		Hash:  o.checkHash,
	}
}

// WithCachePath overrides the default cache location for a single
// source file.
func WithCachePath(path string) Option {
	return func(o *options) {
		o.cachePath = path
	}
}

// WithCachePaths overrides the default cache locations for a
// MultiReader, one entry per source path.  An empty string keeps the
// default for that file.
func WithCachePaths(paths []string) Option {
	return func(o *options) {
		o.cachePaths = paths
	}
}

// WithForceCache rebuilds the cache unconditionally, ignoring any
// existing record.
func WithForceCache() Option {
	return func(o *options) {
		o.force = true
	}
}

// WithCheckTime rebuilds the cache when the source file's modification
// time no longer matches the cached fingerprint.
func WithCheckTime() Option {
	return func(o *options) {
		o.checkTime = true
	}
}

// WithCheckHash rebuilds the cache when the source file's content hash
// no longer matches the cached fingerprint.  The whole file is hashed,
// so this is the slowest but most reliable check.
func WithCheckHash() Option {
	return func(o *options) {
		o.checkHash = true
	}
}

// WithConcurrency bounds how many files Precache works on at once.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger sets an optional logger for progress updates.  If not
// provided, no logging output is produced.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
