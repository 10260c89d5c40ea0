// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package scan produces line-offset tables for newline-delimited files
// in a single buffered pass.  It interprets only the terminator byte --
// any other byte value is legal and passed over untouched.
package scan

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

const (
	terminator        = '\n'
	defaultBufferSize = 1 << 20
)

// Result holds everything a single pass over a source file produces.
type Result struct {
	// Offsets[i] is the byte position where line i begins.  Strictly
	// increasing, and Offsets[0] == 0 whenever the file is non-empty.
	Offsets []int64
	// Size is the total number of bytes scanned.
	Size int64
	// Hash is the xxhash64 digest of every byte scanned, used as the
	// source file's content fingerprint.
	Hash uint64
}

// File scans r from its current position to EOF.  A trailing terminator
// starts no new line; a final line without a terminator is still counted,
// with an implicit end at EOF.
func File(r io.Reader) (*Result, error) {
	digest := xxhash.New()

	var (
		offsets []int64
		size    int64
	)
	buf := make([]byte, defaultBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			_, _ = digest.Write(chunk)
			if size == 0 {
				offsets = append(offsets, 0)
			}
			rel := 0
			for {
				i := bytes.IndexByte(chunk[rel:], terminator)
				if i < 0 {
					break
				}
				rel += i + 1
				offsets = append(offsets, size+int64(rel))
			}
			size += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
	}

	// a terminator as the file's last byte ends the final line rather
	// than starting an empty one
	if n := len(offsets); n > 0 && offsets[n-1] == size {
		offsets = offsets[:n-1]
	}

	return &Result{
		Offsets: offsets,
		Size:    size,
		Hash:    digest.Sum64(),
	}, nil
}

// Hash digests r to EOF without recording offsets.  It produces the same
// value File would for identical content.
func Hash(r io.Reader) (uint64, error) {
	digest := xxhash.New()
	if _, err := io.Copy(digest, r); err != nil {
		return 0, fmt.Errorf("io.Copy: %w", err)
	}
	return digest.Sum64(), nil
}
