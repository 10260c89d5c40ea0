// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package jsonl

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceIndices(t *testing.T) {
	tests := []struct {
		name              string
		start, stop, step int
		n                 int
		want              []int
	}{
		{name: "full forward", start: Open, stop: Open, step: 1, n: 5, want: []int{0, 1, 2, 3, 4}},
		{name: "full forward open step", start: Open, stop: Open, step: Open, n: 3, want: []int{0, 1, 2}},
		{name: "full reverse", start: Open, stop: Open, step: -1, n: 5, want: []int{4, 3, 2, 1, 0}},
		{name: "bounded", start: 1, stop: 4, step: 1, n: 10, want: []int{1, 2, 3}},
		{name: "stride two", start: 2, stop: 9, step: 2, n: 10, want: []int{2, 4, 6, 8}},
		{name: "negative start", start: -3, stop: Open, step: 1, n: 10, want: []int{7, 8, 9}},
		{name: "negative stop", start: 0, stop: -7, step: 1, n: 10, want: []int{0, 1, 2}},
		{name: "reverse bounded", start: 8, stop: 2, step: -2, n: 10, want: []int{8, 6, 4}},
		{name: "reverse from last", start: -1, stop: Open, step: -1, n: 3, want: []int{2, 1, 0}},
		{name: "clamp high stop", start: 0, stop: 100, step: 1, n: 4, want: []int{0, 1, 2, 3}},
		{name: "clamp low start", start: -100, stop: 3, step: 1, n: 10, want: []int{0, 1, 2}},
		{name: "clamp reverse start", start: 100, stop: Open, step: -1, n: 3, want: []int{2, 1, 0}},
		{name: "clamp reverse stop", start: Open, stop: -100, step: -1, n: 3, want: []int{2, 1, 0}},
		{name: "empty window", start: 5, stop: 5, step: 1, n: 10, want: nil},
		{name: "inverted window forward", start: 7, stop: 3, step: 1, n: 10, want: nil},
		{name: "inverted window reverse", start: 3, stop: 7, step: -1, n: 10, want: nil},
		{name: "empty sequence", start: Open, stop: Open, step: 1, n: 0, want: nil},
		{name: "empty sequence reverse", start: Open, stop: Open, step: -1, n: 0, want: nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := sliceIndices(test.start, test.stop, test.step, test.n)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestSliceIndices_ZeroStep(t *testing.T) {
	_, err := sliceIndices(0, 5, 0, 10)
	assert.ErrorIs(t, err, ErrZeroStep)
}

func TestReader_Slice(t *testing.T) {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = fmt.Sprintf(`{"i":%d}`, i)
	}
	source, cache := writeJSONL(t, lines, true)

	r, err := New(source, WithCachePath(cache))
	require.NoError(t, err)
	defer func() {
		_ = r.Close()
	}()

	asStrings := func(b [][]byte) []string {
		out := make([]string, len(b))
		for i, line := range b {
			out[i] = string(line)
		}
		return out
	}

	got, err := r.Slice(2, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, lines[2:5], asStrings(got))

	// full reversal
	got, err = r.Slice(Open, Open, -1)
	require.NoError(t, err)
	want := make([]string, 0, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		want = append(want, lines[i])
	}
	assert.Equal(t, want, asStrings(got))

	// out-of-range bounds clamp instead of failing
	got, err = r.Slice(-100, 100, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{lines[0], lines[3], lines[6], lines[9]}, asStrings(got))

	_, err = r.Slice(0, 5, 0)
	assert.ErrorIs(t, err, ErrZeroStep)
}
