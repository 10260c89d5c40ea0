// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package jsonl

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Precache builds or refreshes the offset cache for each path without
// constructing readers, e.g. to warm caches in a build step ahead of
// training runs.  Files are processed with at most WithConcurrency
// workers.  A failure on one file doesn't stop the others; all failures
// are joined into the returned error.
func Precache(ctx context.Context, sourcePaths []string, opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.cachePath != "" && len(sourcePaths) > 1 {
		return errors.New("WithCachePath covers a single file; use WithCachePaths")
	}
	if o.cachePaths != nil && len(o.cachePaths) != len(sourcePaths) {
		return fmt.Errorf("got %d cache paths for %d source paths", len(o.cachePaths), len(sourcePaths))
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, path := range sourcePaths {
		path := path
		fo := o
		fo.cachePath = ""
		if o.cachePath != "" {
			fo.cachePath = o.cachePath
		}
		if o.cachePaths != nil {
			fo.cachePath = o.cachePaths[i]
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := precacheOne(path, fo); err != nil {
				o.logger.Error("precache failed", "source", path, "err", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				mu.Unlock()
				return nil
			}
			o.logger.Info("precache done", "source", path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func precacheOne(sourcePath string, o options) (err error) {
	abs, cachePath, err := resolvePaths(sourcePath, o.cachePath)
	if err != nil {
		return err
	}
	_, err = initCache(abs, cachePath, &o)
	return err
}
