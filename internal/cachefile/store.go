// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cachefile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jsonl-cache/jsonl/internal/scan"
)

var (
	// ErrNotFound is returned by Load when no cache file exists.
	ErrNotFound = errors.New("cache file not found")
	// ErrCorrupt is returned by Load when a cache file exists but fails
	// structural or version validation.
	ErrCorrupt = errors.New("cache file corrupt")
)

// Load reads and validates the cache file at path.  A structurally
// invalid or version-mismatched file is reported as ErrCorrupt, never
// silently repaired.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("os.ReadFile: %w", err)
	}
	return decode(data)
}

// Save writes rec to path atomically: the encoded record goes to a
// temporary file in the target directory, is synced, and is then renamed
// into place, so a concurrent Load never observes a partial write.
// Parent directories are created as needed.
func Save(path string, rec *Record) error {
	data, err := rec.encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("os.MkdirAll: %w", err)
	}

	f, err := os.CreateTemp(dir, "jsonl-cache.*.tmp")
	if err != nil {
		return fmt.Errorf("os.CreateTemp: %w", err)
	}
	tmpPath := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("f.Write: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("f.Sync: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("f.Close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("os.Rename: %w", err)
	}
	return nil
}

// Checks selects which fingerprint comparisons Valid performs.  The
// flags are not mutually exclusive; every requested check must pass.
type Checks struct {
	// Force treats any record as invalid, forcing a rebuild.
	Force bool
	// Time invalidates the record when the source file's modification
	// time differs from the recorded one.
	Time bool
	// Hash invalidates the record when the source file's content hash
	// differs from the recorded one.
	Hash bool
}

// Valid reports whether rec can serve reads for the file at sourcePath.
// A nil rec (not found or corrupt) is never valid.  With no checks
// requested any loaded record is trusted as-is -- staleness is the
// caller's responsibility unless they opt into a check.
func Valid(rec *Record, sourcePath string, checks Checks) (bool, error) {
	if checks.Force || rec == nil {
		return false, nil
	}
	if checks.Time {
		st, err := os.Stat(sourcePath)
		if err != nil {
			return false, fmt.Errorf("os.Stat: %w", err)
		}
		if st.ModTime().UnixNano() != rec.Fingerprint.ModTime {
			return false, nil
		}
	}
	if checks.Hash {
		if !rec.Fingerprint.HasHash {
			return false, nil
		}
		h, err := hashFile(sourcePath)
		if err != nil {
			return false, err
		}
		if h != rec.Fingerprint.Hash {
			return false, nil
		}
	}
	return true, nil
}

func hashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("os.Open: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return scan.Hash(f)
}
