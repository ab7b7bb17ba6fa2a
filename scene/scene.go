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

// Package scene provides the scene description shared by every device:
// a list of spheres and a pinhole camera.  Scenes are read from a simple
// line-oriented text format:
//
//	camera ox oy oz  tx ty tz
//	size N
//	sphere radius  px py pz  ex ey ez  cx cy cz  material
//
// where material is 0 (diffuse), 1 (specular) or 2 (refractive).
package scene

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrMaterial is returned when a sphere has an unknown material kind.
var ErrMaterial = errors.New("unknown material")

// Material represents the reflection type of a sphere.
type Material int32

const (
	DIFFUSE Material = iota
	SPECULAR
	REFRACTIVE
)

func (m Material) String() string {
	switch m {
	case DIFFUSE:
		return "diffuse"
	case SPECULAR:
		return "specular"
	case REFRACTIVE:
		return "refractive"
	default:
		return fmt.Sprintf("Material(%d)", int32(m))
	}
}

// Sphere represents a single object in the scene.
type Sphere struct {
	Radius   float64
	Position Vec
	Emission Vec
	Color    Vec
	Material Material
}

// Intersect returns the distance along the ray from origin o in unit
// direction d to the nearest hit, or 0 if the ray misses the sphere.
func (s Sphere) Intersect(o, d Vec) float64 {
	const eps = 1e-2
	op := s.Position.Sub(o)
	b := op.Dot(d)
	det := b*b - op.Dot(op) + s.Radius*s.Radius
	if det < 0 {
		return 0
	}
	det = math.Sqrt(det)
	if t := b - det; eps < t {
		return t
	}
	if t := b + det; eps < t {
		return t
	}
	return 0
}

// fov is the vertical field of view of the camera.
const fov = math.Pi / 180 * 45

// maxPrealloc bounds the spheres allocated ahead of reading them.
const maxPrealloc = 1 << 10

// Camera represents a pinhole camera.  Origin and Target are user defined;
// Dir, X and Y are derived by Update.
type Camera struct {
	Origin Vec
	Target Vec

	Dir Vec
	X   Vec
	Y   Vec
}

// Update recomputes the derived vectors for the given frame dimensions.
func (c *Camera) Update(width, height int) {
	up := Vec{0, 1, 0}

	c.Dir = c.Target.Sub(c.Origin).Norm()
	c.X = c.Dir.Cross(up).Norm().Scale(float64(width) * fov / float64(height))
	c.Y = c.X.Cross(c.Dir).Norm().Scale(fov)
}

// Dolly moves the camera along its viewing direction, keeping the target at
// the same relative position.
func (c *Camera) Dolly(delta float64) {
	step := c.Target.Sub(c.Origin).Norm().Scale(delta)
	c.Origin = c.Origin.Add(step)
	c.Target = c.Target.Add(step)
}

// Scene represents the camera and the objects to render.
type Scene struct {
	Camera  Camera
	Spheres []Sphere
}

// Load reads the scene from the file with the given name.
func Load(name string) (*Scene, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// Parse reads the scene from the given reader.  Blank lines are ignored.
func Parse(r io.Reader) (*Scene, error) {
	scanner := bufio.NewScanner(r)
	line := 0

	// next returns the fields of the next non-blank line
	next := func() ([]string, error) {
		for scanner.Scan() {
			line++
			if fields := strings.Fields(scanner.Text()); 0 < len(fields) {
				return fields, nil
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.ErrUnexpectedEOF
	}

	fields, err := next()
	if err != nil {
		return nil, fmt.Errorf("failed to read camera: %w", err)
	}
	values, err := record(fields, "camera", 6)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", line, err)
	}
	s := &Scene{
		Camera: Camera{
			Origin: Vec{values[0], values[1], values[2]},
			Target: Vec{values[3], values[4], values[5]},
		},
	}

	if fields, err = next(); err != nil {
		return nil, fmt.Errorf("failed to read sphere count: %w", err)
	}
	if len(fields) != 2 || fields[0] != "size" {
		return nil, fmt.Errorf("line %d: failed to read sphere count", line)
	}
	count, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("line %d: failed to read sphere count: %w", line, err)
	}

	s.Spheres = make([]Sphere, 0, min(count, maxPrealloc))
	for uint64(len(s.Spheres)) < count {
		if fields, err = next(); err != nil {
			return nil, fmt.Errorf("failed to read sphere #%d: %w", len(s.Spheres), err)
		}
		values, err = record(fields, "sphere", 11)
		if err != nil {
			return nil, fmt.Errorf("line %d: sphere #%d: %w", line, len(s.Spheres), err)
		}
		material := Material(values[10])
		if float64(material) != values[10] || material < DIFFUSE || REFRACTIVE < material {
			return nil, fmt.Errorf("line %d: sphere #%d: %w %v", line, len(s.Spheres), ErrMaterial, values[10])
		}
		s.Spheres = append(s.Spheres, Sphere{
			Radius:   values[0],
			Position: Vec{values[1], values[2], values[3]},
			Emission: Vec{values[4], values[5], values[6]},
			Color:    Vec{values[7], values[8], values[9]},
			Material: material,
		})
	}

	return s, nil
}

// record parses a record with the given keyword and number of values.
func record(fields []string, keyword string, n int) ([]float64, error) {
	if fields[0] != keyword {
		return nil, fmt.Errorf("expected %s record, got %q", keyword, fields[0])
	}
	if len(fields)-1 != n {
		return nil, fmt.Errorf("failed to read %d %s parameters: %d", n, keyword, len(fields)-1)
	}
	values := make([]float64, 0, n)
	for _, field := range fields[1:] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// cornell is the classic Cornell box with a mirror and a glass sphere.
const cornell = `camera 50 45 205.6  50 44.957388 204.6
size 9
sphere 1e5  100001 40.8 81.6  0 0 0  .75 .25 .25  0
sphere 1e5  -99901 40.8 81.6  0 0 0  .25 .25 .75  0
sphere 1e5  50 40.8 1e5  0 0 0  .75 .75 .75  0
sphere 1e5  50 40.8 -99730  0 0 0  0 0 0  0
sphere 1e5  50 1e5 81.6  0 0 0  .75 .75 .75  0
sphere 1e5  50 -99918.4 81.6  0 0 0  .75 .75 .75  0
sphere 16.5  27 16.5 47  0 0 0  .9 .9 .9  1
sphere 16.5  73 16.5 78  0 0 0  .9 .9 .9  2
sphere 7  50 66.1 81.6  12 12 12  0 0 0  0
`

// Cornell returns the built-in Cornell box scene.
func Cornell() *Scene {
	s, err := Parse(strings.NewReader(cornell))
	if err != nil {
		panic(err)
	}
	return s
}
