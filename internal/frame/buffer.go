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

// Package frame provides the shared pixel arena that the device workers
// render into.  The arena is indexed by flattened pixel position and is handed
// out as disjoint slices, one per worker, so that no two workers ever alias
// the same pixels.
package frame

import (
	"fmt"
	"image"
	"image/color"
)

// Range represents the workload [Offset, Offset+Amount) of a single worker
// over the flattened pixel index space.
type Range struct {
	Offset int
	Amount int
}

// End returns the index one past the last pixel in the range.
func (r Range) End() int {
	return r.Offset + r.Amount
}

// Idle reports whether the range holds no pixels.
func (r Range) Idle() bool {
	return r.Amount == 0
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Offset, r.End())
}

// Buffer represents the frame pixels, packed as 0xAABBGGRR.
type Buffer struct {
	width  int
	height int
	pix    []uint32
}

// NewBuffer creates a new buffer with the given dimensions.  Each pixel is
// initialized with its own index so that unrendered regions are visible.
func NewBuffer(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	pix := make([]uint32, width*height)
	for index := range pix {
		pix[index] = uint32(index)
	}
	return &Buffer{
		width:  width,
		height: height,
		pix:    pix,
	}, nil
}

// Width returns the frame width in pixels.
func (b *Buffer) Width() int {
	return b.width
}

// Height returns the frame height in pixels.
func (b *Buffer) Height() int {
	return b.height
}

// Len returns the total workload, i.e., the number of pixels.
func (b *Buffer) Len() int {
	return len(b.pix)
}

// At returns the packed pixel at the given flattened index.
func (b *Buffer) At(index int) uint32 {
	return b.pix[index]
}

// Assign hands out one view per range.  The ranges must partition the buffer
// exactly once and in order; idle ranges receive an empty view.  Each view is
// capacity-capped so that appending to it can never spill into a neighbor.
func (b *Buffer) Assign(ranges []Range) ([][]uint32, error) {
	views := make([][]uint32, 0, len(ranges))
	offset := 0
	for rank, r := range ranges {
		if r.Amount < 0 {
			return nil, fmt.Errorf("rank %d: negative amount %d", rank, r.Amount)
		}
		if r.Offset != offset {
			return nil, fmt.Errorf("rank %d: range %v does not start at %d", rank, r, offset)
		}
		if len(b.pix) < r.End() {
			return nil, fmt.Errorf("rank %d: range %v exceeds %d pixels", rank, r, len(b.pix))
		}
		views = append(views, b.pix[r.Offset:r.End():r.End()])
		offset = r.End()
	}
	if offset != len(b.pix) {
		return nil, fmt.Errorf("ranges cover %d of %d pixels", offset, len(b.pix))
	}
	return views, nil
}

// Image converts the buffer into an RGBA image.  Row 0 of the buffer is the
// bottom of the frame, hence the rows are flipped.
func (b *Buffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	for y := 0; y < b.height; y++ {
		row := b.pix[(b.height-1-y)*b.width : (b.height-y)*b.width]
		for x, p := range row {
			img.SetRGBA(x, y, Unpack(p))
		}
	}
	return img
}

// Pack packs the given 8-bit channels into a single pixel.
func Pack(r, g, b uint8) uint32 {
	return uint32(r) | uint32(g)<<8 | uint32(b)<<16 | 0xff<<24
}

// Unpack unpacks the given pixel; the alpha channel is always opaque.
func Unpack(p uint32) color.RGBA {
	return color.RGBA{R: uint8(p), G: uint8(p >> 8), B: uint8(p >> 16), A: 0xff}
}
