// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cachefile

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *Record {
	return &Record{
		Offsets: []int64{0, 8, 16, 512, 4096},
		Fingerprint: Fingerprint{
			SizeBytes: 4200,
			ModTime:   1700000000123456789,
			Hash:      0xDEADBEEFCAFE,
			HasHash:   true,
		},
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	orig := testRecord()

	data, err := orig.encode()
	require.NoError(t, err)

	got, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, orig, got)

	// encoding is deterministic: save(load(save(r))) == save(r)
	again, err := got.encode()
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestRecord_RoundTripEmpty(t *testing.T) {
	orig := &Record{
		Fingerprint: Fingerprint{ModTime: 1700000000000000000, HasHash: true},
	}
	data, err := orig.encode()
	require.NoError(t, err)
	got, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
	assert.Zero(t, got.LineCount())
}

func TestRecord_DecodeRejectsCorruption(t *testing.T) {
	valid, err := testRecord().encode()
	require.NoError(t, err)

	corrupt := func(mutate func(data []byte) []byte) []byte {
		data := make([]byte, len(valid))
		copy(data, valid)
		return mutate(data)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "short", data: valid[:headerSize-1]},
		{name: "bad magic", data: corrupt(func(d []byte) []byte {
			d[0] ^= 0xff
			return d
		})},
		{name: "future version", data: corrupt(func(d []byte) []byte {
			binary.LittleEndian.PutUint32(d[4:8], FormatVersion+1)
			return d
		})},
		{name: "truncated payload", data: valid[:len(valid)-1]},
		{name: "checksum mismatch", data: corrupt(func(d []byte) []byte {
			d[len(d)-1] ^= 0xff
			return d
		})},
		{name: "line count mismatch", data: corrupt(func(d []byte) []byte {
			binary.LittleEndian.PutUint64(d[headerLineCountOff:], 99)
			return d
		})},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := decode(test.data)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestRecord_DecodeRejectsOverflowedLineCount(t *testing.T) {
	// an empty offset table with a line count of 1<<61 makes the
	// 8*lineCount byte total wrap to 0; decode must still report the
	// header as corrupt rather than trying to allocate the table
	rec := &Record{Fingerprint: Fingerprint{HasHash: true}}
	data, err := rec.encode()
	require.NoError(t, err)
	binary.LittleEndian.PutUint64(data[headerLineCountOff:], 1<<61)

	_, err = decode(data)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRecord_DecodeRejectsBadOffsets(t *testing.T) {
	rec := &Record{Offsets: []int64{0, 16, 8}}
	data, err := rec.encode()
	require.NoError(t, err)
	// strictly-increasing validation happens at decode time
	_, err = decode(data)
	assert.ErrorIs(t, err, ErrCorrupt)

	rec = &Record{Offsets: []int64{4, 8}}
	data, err = rec.encode()
	require.NoError(t, err)
	_, err = decode(data)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRecord_EncodeRejectsNegativeOffset(t *testing.T) {
	rec := &Record{Offsets: []int64{0, -5}}
	_, err := rec.encode()
	assert.Error(t, err)
}
