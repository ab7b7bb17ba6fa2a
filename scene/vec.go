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

package scene

import "math"

// Vec represents a position, a direction or an RGB color.
type Vec struct {
	X, Y, Z float64
}

func (v Vec) Add(u Vec) Vec {
	return Vec{v.X + u.X, v.Y + u.Y, v.Z + u.Z}
}

func (v Vec) Sub(u Vec) Vec {
	return Vec{v.X - u.X, v.Y - u.Y, v.Z - u.Z}
}

func (v Vec) Scale(s float64) Vec {
	return Vec{v.X * s, v.Y * s, v.Z * s}
}

// Mul multiplies the given vectors component-wise.
func (v Vec) Mul(u Vec) Vec {
	return Vec{v.X * u.X, v.Y * u.Y, v.Z * u.Z}
}

func (v Vec) Dot(u Vec) float64 {
	return v.X*u.X + v.Y*u.Y + v.Z*u.Z
}

func (v Vec) Cross(u Vec) Vec {
	return Vec{v.Y*u.Z - v.Z*u.Y, v.Z*u.X - v.X*u.Z, v.X*u.Y - v.Y*u.X}
}

// Norm returns the unit vector with the same direction.
func (v Vec) Norm() Vec {
	return v.Scale(1 / math.Sqrt(v.Dot(v)))
}

// Max returns the largest component.
func (v Vec) Max() float64 {
	return math.Max(v.X, math.Max(v.Y, v.Z))
}
