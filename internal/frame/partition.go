// Copyright 2022 Sogang University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frame

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Partition splits total pixels into len(weights) consecutive ranges, each
// proportional to its weight.  Every rank but the last gets the floor of its
// share; the last absorbs the rounding remainder, which makes the ranges cover
// [0, total) exactly regardless of floating-point error.  A rank reached after
// the workload is exhausted gets an idle range at the end of the buffer.
// Non-positive or non-finite weights count as zero; if no weight is usable,
// the ranks are weighted equally.
func Partition(total int, weights []float64) []Range {
	shares := make([]float64, len(weights))
	for rank, weight := range weights {
		if 0 < weight && !math.IsInf(weight, 0) {
			shares[rank] = weight
		}
	}
	if sum := sum(shares); sum <= 0 || math.IsInf(sum, 0) {
		for rank := range shares {
			shares[rank] = 1.
		}
	}
	totalShare := sum(shares)

	ranges := make([]Range, 0, len(shares))
	offset := 0
	for rank, share := range shares {
		left := total - offset
		var amount int
		switch {
		case left <= 0:
			offset = total
		case rank == len(shares)-1:
			amount = left
		default:
			amount = min(max(int(float64(total)*(share/totalShare)), 0), left)
		}
		ranges = append(ranges, Range{Offset: offset, Amount: amount})
		offset += amount
	}
	return ranges
}

// sum returns the sum of the given values.
func sum[T constraints.Integer | constraints.Float](values []T) (sum T) {
	for _, v := range values {
		sum += v
	}
	return
}
