// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package cachepath derives default cache-file locations.  The mapping
// is a pure function of the source path: any caller can reproduce the
// same default without relying on process state.
package cachepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgryski/go-farm"
)

// Ext is the extension given to cache files at default locations.
const Ext = ".jlc"

const cacheSubdir = "jsonl"

// For returns the default cache path for the file at sourcePath: the
// user's cache directory, the absolute source path with separators
// replaced by "--", and a short hash of the unmangled path.  The mangled
// name keeps entries human-readable; the hash prevents collisions the
// mangling could otherwise introduce.
func For(sourcePath string) (string, error) {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return "", fmt.Errorf("filepath.Abs: %w", err)
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("os.UserCacheDir: %w", err)
	}

	mangled := strings.NewReplacer(
		string(filepath.Separator), "--",
		":", "--",
	).Replace(abs)
	mangled = strings.TrimPrefix(mangled, "--")

	short := farm.Hash64([]byte(abs))
	name := fmt.Sprintf("%s-%016x%s", mangled, short, Ext)
	return filepath.Join(base, cacheSubdir, name), nil
}
