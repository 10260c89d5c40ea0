// Copyright 2024 The jsonl Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package jsonl

import "math"

// Open marks an omitted slice bound or step.  With a positive step an
// open start means 0 and an open stop means the end; with a negative
// step they flip.  An open step means 1.
const Open = math.MinInt

// sliceIndices expands [start:stop:step] over a sequence of length n
// into the effective index order, with list-slice normalization:
// negative indices count from the end and out-of-range bounds clamp to
// the sequence instead of failing.
func sliceIndices(start, stop, step, n int) ([]int, error) {
	if step == Open {
		step = 1
	}
	if step == 0 {
		return nil, ErrZeroStep
	}

	// clamp bounds to [0, n] for forward steps and [-1, n-1] for
	// reverse steps
	lower, upper := 0, n
	if step < 0 {
		lower, upper = -1, n-1
	}
	clamp := func(i, omitted int) int {
		if i == Open {
			return omitted
		}
		if i < 0 {
			i += n
			if i < lower {
				return lower
			}
			return i
		}
		if i > upper {
			return upper
		}
		return i
	}

	if step > 0 {
		start = clamp(start, 0)
		stop = clamp(stop, n)
	} else {
		start = clamp(start, n-1)
		stop = clamp(stop, -1)
	}

	var indices []int
	if step > 0 {
		for i := start; i < stop; i += step {
			indices = append(indices, i)
		}
	} else {
		for i := start; i > stop; i += step {
			indices = append(indices, i)
		}
	}
	return indices, nil
}
