// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package cachefile persists line-offset tables to disk and decides
// whether a persisted table is still valid for its source file.
//
// A cache file looks like:
//
//	┌─────────────────────────┐
//	│ file header (64 bytes)  │
//	├─────────────────────────┤
//	│ s2-compressed block of  │
//	│ 8-byte LE line offsets  │
//	└─────────────────────────┘
//
// The header carries a magic number, the format version, the line count,
// the source-file fingerprint and an xxhash64 checksum of the compressed
// payload, so a truncated or bit-flipped cache file is always reported as
// corrupt rather than yielding garbage offsets.
package cachefile

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/s2"
)

const (
	magicCacheHeader = 0x0FF5E7CA
	// FormatVersion is the cache file format this package reads and
	// writes.  A file with any other version is corrupt as far as this
	// reader is concerned.
	FormatVersion = 1

	headerSize = 64

	headerLineCountOff   = 8
	headerSourceSizeOff  = 16
	headerSourceMtimeOff = 24
	headerSourceHashOff  = 32
	headerHasHashOff     = 40
	headerPayloadLenOff  = 48
	headerChecksumOff    = 56
)

// Fingerprint captures the state of a source file at cache-build time.
type Fingerprint struct {
	SizeBytes int64
	// ModTime is the source file's modification time in nanoseconds
	// since the Unix epoch.
	ModTime int64
	// Hash is the xxhash64 digest of the source file's content, present
	// only when HasHash is set.
	Hash    uint64
	HasHash bool
}

// Record is the in-memory form of a persisted offset table.  It is
// meaningful only paired with the exact file state it was built from;
// validity is re-derived via Valid, never incrementally repaired.
type Record struct {
	Offsets     []int64
	Fingerprint Fingerprint
}

// LineCount reports the number of lines in the source file at build time.
func (r *Record) LineCount() int {
	return len(r.Offsets)
}

func (r *Record) encode() ([]byte, error) {
	payload := make([]byte, 8*len(r.Offsets))
	for i, off := range r.Offsets {
		if off < 0 {
			return nil, fmt.Errorf("negative offset %d at line %d", off, i)
		}
		binary.LittleEndian.PutUint64(payload[8*i:], uint64(off))
	}
	compressed := s2.Encode(nil, payload)

	buf := make([]byte, headerSize+len(compressed))
	binary.LittleEndian.PutUint32(buf[:4], magicCacheHeader)
	binary.LittleEndian.PutUint32(buf[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(buf[headerLineCountOff:], uint64(len(r.Offsets)))
	binary.LittleEndian.PutUint64(buf[headerSourceSizeOff:], uint64(r.Fingerprint.SizeBytes))
	binary.LittleEndian.PutUint64(buf[headerSourceMtimeOff:], uint64(r.Fingerprint.ModTime))
	binary.LittleEndian.PutUint64(buf[headerSourceHashOff:], r.Fingerprint.Hash)
	if r.Fingerprint.HasHash {
		buf[headerHasHashOff] = 1
	}
	binary.LittleEndian.PutUint64(buf[headerPayloadLenOff:], uint64(len(compressed)))
	binary.LittleEndian.PutUint64(buf[headerChecksumOff:], xxhash.Sum64(compressed))
	copy(buf[headerSize:], compressed)

	return buf, nil
}

func decode(data []byte) (*Record, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: file too short (%d < %d)", ErrCorrupt, len(data), headerSize)
	}

	magic := binary.LittleEndian.Uint32(data[:4])
	if magic != magicCacheHeader {
		return nil, fmt.Errorf("%w: bad magic number %#x", ErrCorrupt, magic)
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: can only read v%d cache files; found v%d", ErrCorrupt, FormatVersion, version)
	}

	lineCount := binary.LittleEndian.Uint64(data[headerLineCountOff:])
	payloadLen := binary.LittleEndian.Uint64(data[headerPayloadLenOff:])
	if uint64(len(data)-headerSize) != payloadLen {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(data)-headerSize, payloadLen)
	}

	compressed := data[headerSize:]
	expectedChecksum := binary.LittleEndian.Uint64(data[headerChecksumOff:])
	if checksum := xxhash.Sum64(compressed); checksum != expectedChecksum {
		return nil, fmt.Errorf("%w: payload checksum failed (%d != %d)", ErrCorrupt, checksum, expectedChecksum)
	}

	payload, err := s2.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: s2.Decode: %v", ErrCorrupt, err)
	}
	// compare via division: multiplying an attacker-controlled line
	// count by 8 can wrap around and slip past an equality check
	if uint64(len(payload))/8 != lineCount || len(payload)%8 != 0 {
		return nil, fmt.Errorf("%w: offset table is %d bytes for %d lines", ErrCorrupt, len(payload), lineCount)
	}

	offsets := make([]int64, lineCount)
	for i := range offsets {
		offsets[i] = int64(binary.LittleEndian.Uint64(payload[8*i:]))
	}
	if len(offsets) > 0 && offsets[0] != 0 {
		return nil, fmt.Errorf("%w: first offset is %d, not 0", ErrCorrupt, offsets[0])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			return nil, fmt.Errorf("%w: offsets not strictly increasing at line %d", ErrCorrupt, i)
		}
	}
	if len(offsets) == 0 {
		offsets = nil
	}

	rec := &Record{
		Offsets: offsets,
		Fingerprint: Fingerprint{
			SizeBytes: int64(binary.LittleEndian.Uint64(data[headerSourceSizeOff:])),
			ModTime:   int64(binary.LittleEndian.Uint64(data[headerSourceMtimeOff:])),
			Hash:      binary.LittleEndian.Uint64(data[headerSourceHashOff:]),
			HasHash:   data[headerHasHashOff] == 1,
		},
	}
	return rec, nil
}
