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
	"bytes"
	"fmt"
	"image"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func init() {
	seed := time.Now().Unix()
	fmt.Println(seed)
	rand.Seed(seed)
}

// covers reports whether the given ranges partition [0, total) in order.
func covers(ranges []Range, total int) error {
	offset := 0
	for rank, r := range ranges {
		if r.Amount < 0 {
			return fmt.Errorf("rank %d: negative amount %d", rank, r.Amount)
		}
		if r.Offset != offset {
			return fmt.Errorf("rank %d: got offset %d want %d", rank, r.Offset, offset)
		}
		offset = r.End()
	}
	if offset != total {
		return fmt.Errorf("covered %d of %d", offset, total)
	}
	return nil
}

func amounts(ranges []Range) []int {
	out := make([]int, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, r.Amount)
	}
	return out
}

func TestPartitionProportional(t *testing.T) {
	for _, tc := range []struct {
		total   int
		weights []float64
		want    []int
	}{
		{600, []float64{10, 20, 30}, []int{100, 200, 300}},
		{601, []float64{10, 20, 30}, []int{100, 200, 301}},
		{1000, []float64{1}, []int{1000}},
		{7, []float64{1, 1, 1}, []int{2, 2, 3}},
		{2, []float64{1, 1, 1}, []int{0, 0, 2}},
		{0, []float64{1, 2}, []int{0, 0}},
		{100, []float64{0, 0}, []int{50, 50}},
		{100, []float64{math.NaN(), 1}, []int{0, 100}},
		{100, []float64{math.Inf(1), 1}, []int{0, 100}},
		{1000, []float64{1e306, 1}, []int{1000, 0}},
		{1000, []float64{1, math.MaxFloat64 / 4}, []int{0, 1000}},
	} {
		got := Partition(tc.total, tc.weights)
		if !reflect.DeepEqual(amounts(got), tc.want) {
			t.Errorf("Partition(%d, %v): got %v want %v", tc.total, tc.weights, amounts(got), tc.want)
		}
		if err := covers(got, tc.total); err != nil {
			t.Errorf("Partition(%d, %v): %v", tc.total, tc.weights, err)
		}
	}
}

func TestPartitionCoverage(t *testing.T) {
	for trial := 0; trial < 1<<12; trial++ {
		total := rand.Intn(1 << 20)
		weights := make([]float64, rand.Intn(16)+1)
		for rank := range weights {
			weights[rank] = rand.ExpFloat64() * math.Pow(10, float64(rand.Intn(12)-6))
		}
		ranges := Partition(total, weights)
		if len(ranges) != len(weights) {
			t.Fatalf("got %d ranges for %d weights", len(ranges), len(weights))
		}
		if err := covers(ranges, total); err != nil {
			t.Fatalf("total %d weights %v: %v", total, weights, err)
		}
	}
}

func TestPartitionIdempotent(t *testing.T) {
	weights := []float64{3.7, 1.2, 9.9, 0.4}
	first := Partition(1920*1080, weights)
	second := Partition(1920*1080, weights)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("partition changed without new weights: %v != %v", first, second)
	}
}

func TestAssign(t *testing.T) {
	buf, err := NewBuffer(4, 3)
	if err != nil {
		t.Fatal(err)
	}
	views, err := buf.Assign([]Range{{0, 5}, {5, 0}, {5, 7}})
	if err != nil {
		t.Fatal(err)
	}
	if len(views[0]) != 5 || len(views[1]) != 0 || len(views[2]) != 7 {
		t.Fatalf("unexpected view sizes %d %d %d", len(views[0]), len(views[1]), len(views[2]))
	}
	for rank, view := range views {
		if cap(view) != len(view) {
			t.Fatalf("rank %d: view is not capacity-capped", rank)
		}
		for index := range view {
			view[index] = uint32(rank)
		}
	}
	for index := 0; index < buf.Len(); index++ {
		want := uint32(0)
		if 5 <= index {
			want = 2
		}
		if got := buf.At(index); got != want {
			t.Fatalf("pixel %d: got %d want %d", index, got, want)
		}
	}

	for _, ranges := range [][]Range{
		{{0, 5}, {6, 6}},
		{{0, 5}, {5, 6}},
		{{0, 13}},
		{{0, -1}, {0, 12}},
	} {
		if _, err := buf.Assign(ranges); err == nil {
			t.Errorf("Assign(%v) accepted an invalid partition", ranges)
		}
	}
}

func TestNewBufferInvalid(t *testing.T) {
	if _, err := NewBuffer(0, 10); err == nil {
		t.Fatal("accepted zero width")
	}
}

func TestImageFlip(t *testing.T) {
	buf, err := NewBuffer(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	views, err := buf.Assign([]Range{{0, 2}, {2, 2}})
	if err != nil {
		t.Fatal(err)
	}
	views[0][0] = Pack(255, 0, 0)
	views[1][1] = Pack(0, 0, 255)

	img := buf.Image()
	if got := img.RGBAAt(0, 1); got.R != 255 || got.B != 0 {
		t.Fatalf("bottom-left: got %v", got)
	}
	if got := img.RGBAAt(1, 0); got.B != 255 || got.R != 0 {
		t.Fatalf("top-right: got %v", got)
	}
}

func TestEncode(t *testing.T) {
	buf, err := NewBuffer(8, 4)
	if err != nil {
		t.Fatal(err)
	}
	img := buf.Image()

	for _, format := range []string{"png", "bmp", "tiff"} {
		var out bytes.Buffer
		if err := Encode(&out, img, format); err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		var decoded image.Image
		switch format {
		case "bmp":
			decoded, err = bmp.Decode(&out)
		case "tiff":
			decoded, err = tiff.Decode(&out)
		default:
			decoded, _, err = image.Decode(&out)
		}
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if decoded.Bounds() != img.Bounds() {
			t.Fatalf("%s: got bounds %v want %v", format, decoded.Bounds(), img.Bounds())
		}
	}

	if err := Encode(new(bytes.Buffer), img, "gif"); err == nil {
		t.Fatal("accepted an unsupported format")
	}
	if got := Format("out/frame.TIFF"); got != "tiff" {
		t.Fatalf("Format: got %q", got)
	}
}

func BenchmarkPartition(b *testing.B) {
	b.StopTimer()
	weights := make([]float64, 8)
	for rank := range weights {
		weights[rank] = rand.Float64()
	}
	b.StartTimer()

	for i := 0; i < b.N; i++ {
		Partition(3840*2160, weights)
	}
}
