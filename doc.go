// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package jsonl provides random and sliced line access into large
// line-delimited JSON files without loading them into memory.
//
// On first open, a Reader scans the file once and persists the byte
// offset of every line start to a small side-channel cache file.  Later
// opens load that cache and serve Get, Slice and Iter by seeking
// straight to the requested lines:
//
//	r, err := jsonl.New("train.jsonl")
//	if err != nil { ... }
//	defer r.Close()
//
//	line, err := r.Get(-1)           // last line, raw bytes
//	head, err := r.Slice(0, 100, 1)  // first hundred lines
//
// Lines come back as raw bytes with the terminator stripped; decode
// them with whatever JSON package the application already uses.
//
// The cache records a fingerprint (size, mtime, content hash) of the
// file it was built from.  By default an existing cache is trusted
// unconditionally; pass WithCheckTime or WithCheckHash to revalidate
// against the current file, or WithForceCache to always rebuild.
// Concurrent builds of the same cache are serialized with an advisory
// file lock, and cache writes are atomic, so readers never observe a
// partially written cache.
//
// MultiReader composes several files into one logically contiguous
// sequence, and Precache warms caches for a batch of files ahead of
// time (also available as the jsonl-precache command).
package jsonl
