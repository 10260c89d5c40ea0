// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cachefile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	// parent directories are created as needed
	path := filepath.Join(dir, "nested", "deeper", "source.jlc")

	orig := testRecord()
	require.NoError(t, Save(path, orig))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, orig, got)

	// no stray temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestStore_SaveReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.jlc")

	require.NoError(t, Save(path, testRecord()))

	updated := testRecord()
	updated.Offsets = append(updated.Offsets, 9000)
	require.NoError(t, Save(path, updated))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestStore_LoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jlc"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LoadGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.jlc")
	require.NoError(t, os.WriteFile(path, []byte("not a cache file"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func recordFor(t *testing.T, path string) *Record {
	t.Helper()
	st, err := os.Stat(path)
	require.NoError(t, err)
	h, err := hashFile(path)
	require.NoError(t, err)
	return &Record{
		Offsets: []int64{0, 8},
		Fingerprint: Fingerprint{
			SizeBytes: st.Size(),
			ModTime:   st.ModTime().UnixNano(),
			Hash:      h,
			HasHash:   true,
		},
	}
}

func TestValid_TrustByDefault(t *testing.T) {
	path := writeSource(t, "{\"a\":1}\n{\"b\":2}\n")
	rec := recordFor(t, path)

	ok, err := Valid(rec, path, Checks{})
	require.NoError(t, err)
	assert.True(t, ok)

	// without any check requested, a changed file is still trusted
	require.NoError(t, os.WriteFile(path, []byte("{\"c\":3}\n"), 0o644))
	ok, err = Valid(rec, path, Checks{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValid_Force(t *testing.T) {
	path := writeSource(t, "{\"a\":1}\n")
	rec := recordFor(t, path)

	ok, err := Valid(rec, path, Checks{Force: true})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValid_NilRecord(t *testing.T) {
	path := writeSource(t, "{\"a\":1}\n")
	ok, err := Valid(nil, path, Checks{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValid_Time(t *testing.T) {
	path := writeSource(t, "{\"a\":1}\n{\"b\":2}\n")
	rec := recordFor(t, path)

	ok, err := Valid(rec, path, Checks{Time: true})
	require.NoError(t, err)
	assert.True(t, ok)

	newTime := time.Unix(0, rec.Fingerprint.ModTime).Add(3 * time.Second)
	require.NoError(t, os.Chtimes(path, newTime, newTime))

	ok, err = Valid(rec, path, Checks{Time: true})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValid_Hash(t *testing.T) {
	path := writeSource(t, "{\"a\":1}\n{\"b\":2}\n")
	rec := recordFor(t, path)

	ok, err := Valid(rec, path, Checks{Hash: true})
	require.NoError(t, err)
	assert.True(t, ok)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"c\":3}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ok, err = Valid(rec, path, Checks{Hash: true})
	require.NoError(t, err)
	assert.False(t, ok)

	// a record persisted without a content hash can never satisfy a
	// hash check
	rec.Fingerprint.HasHash = false
	ok, err = Valid(rec, path, Checks{Hash: true})
	require.NoError(t, err)
	assert.False(t, ok)
}
