// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package jsonl

import "errors"

// Sentinel errors returned by readers.
var (
	// ErrSourceNotFound is returned when the JSONL file does not exist
	// at construction or recache time.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrIndexOutOfRange is returned by Get for an index outside
	// [-length, length-1].  Get is strict; Slice clamps instead.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrZeroStep is returned by Slice when step is 0.
	ErrZeroStep = errors.New("slice step cannot be zero")

	// ErrLockContention is returned when the cache build lock stayed
	// held elsewhere for the whole bounded wait.
	ErrLockContention = errors.New("timed out waiting for cache build lock")

	// ErrTruncatedSource is returned when the source file has shrunk
	// below what its offset cache describes.  The file changed since
	// caching; Recache or construct with a check flag.
	ErrTruncatedSource = errors.New("source file shorter than its offset cache")

	// ErrClosed is returned when operating on a closed reader.
	ErrClosed = errors.New("reader is closed")
)
