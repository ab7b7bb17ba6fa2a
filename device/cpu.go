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

package device

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/9rum/flatray/internal/frame"
	"github.com/9rum/flatray/scene"
	"github.com/golang/glog"
)

const (
	// cpuWorkGroupSize is the suggested work-group size of the host CPU.
	cpuWorkGroupSize = 64

	// maxDepth bounds the number of bounces of a path.
	maxDepth = 6
)

// cpu implements Executor with a software path tracer that spreads the work
// groups of a pass over the compute units of the device.
type cpu struct {
	name          string
	units         int
	workGroupSize int
	rng           *rand.Rand

	camera  scene.Camera
	spheres []scene.Sphere

	width  int
	height int
	amount int
	colors []scene.Vec
	pixels []uint32
	seeds  []uint32
}

func openCPU(dev Device, cfg Config) (Executor, error) {
	e := &cpu{
		name:          dev.Name,
		units:         max(dev.Units, 1),
		workGroupSize: dev.workGroupSize(cpuWorkGroupSize, cfg),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		camera:        cfg.Scene.Camera,
		spheres:       append([]scene.Sphere(nil), cfg.Scene.Spheres...),
	}
	if e.workGroupSize <= 0 {
		return nil, fmt.Errorf("[Device::%s] invalid work group size %d", e.name, e.workGroupSize)
	}
	return e, nil
}

func (e *cpu) ConfigureBuffers(amount, width, height int) error {
	if amount <= 0 {
		return fmt.Errorf("[Device::%s] cannot allocate buffers for %d pixels", e.name, amount)
	}
	e.width, e.height, e.amount = width, height, amount

	e.colors = make([]scene.Vec, amount)
	glog.V(1).Infof("[Device::%s] ColorBuffer size: %d Kb", e.name, 24*amount/1024)
	e.pixels = make([]uint32, amount)
	glog.V(1).Infof("[Device::%s] PixelBuffer size: %d Kb", e.name, 4*amount/1024)
	e.seeds = newSeeds(amount, e.rng)
	glog.V(1).Infof("[Device::%s] SeedsBuffer size: %d Kb", e.name, 4*len(e.seeds)/1024)

	return nil
}

func (e *cpu) Submit(sample, offset, amount int) (Event, error) {
	if amount != e.amount {
		return nil, fmt.Errorf("[Device::%s] submitted %d pixels to buffers of %d", e.name, amount, e.amount)
	}

	// round the global size up to a multiple of the work-group size
	groups := ceil(amount, e.workGroupSize)
	ev := newEvent()

	go func() {
		start := time.Now()
		var (
			wg    sync.WaitGroup
			next  atomic.Int64
			once  sync.Once
			fault error
		)
		for unit := 0; unit < e.units; unit++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						once.Do(func() {
							fault = fmt.Errorf("[Device::%s] kernel fault: %v", e.name, r)
						})
					}
				}()
				for group := int(next.Add(1) - 1); group < groups; group = int(next.Add(1) - 1) {
					base := group * e.workGroupSize
					for gid := base; gid < base+e.workGroupSize; gid++ {
						if gid < amount {
							e.kernel(gid, offset+gid, sample)
						}
					}
				}
			}()
		}
		wg.Wait()

		ev.complete(time.Since(start), fault)
	}()

	return ev, nil
}

// kernel renders one sample of the pixel with the given global index and
// folds it into the running average.
func (e *cpu) kernel(gid, index, sample int) {
	s0, s1 := &e.seeds[2*gid], &e.seeds[2*gid+1]
	x, y := index%e.width, index/e.width

	kcx := (float64(x)+random(s0, s1)-.5)/float64(e.width) - .5
	kcy := (float64(y)+random(s0, s1)-.5)/float64(e.height) - .5
	dir := e.camera.X.Scale(kcx).Add(e.camera.Y.Scale(kcy)).Add(e.camera.Dir)
	orig := e.camera.Origin.Add(dir.Scale(.1))

	c := e.radiance(orig, dir.Norm(), s0, s1)
	if 0 < sample {
		k := float64(sample)
		c = e.colors[gid].Scale(k).Add(c).Scale(1 / (k + 1))
	}
	e.colors[gid] = c
	e.pixels[gid] = frame.Pack(toByte(c.X), toByte(c.Y), toByte(c.Z))
}

// intersect returns the distance to and the index of the nearest sphere hit
// by the given ray, or -1 if none.
func (e *cpu) intersect(o, d scene.Vec) (float64, int) {
	nearest, id := math.Inf(1), -1
	for index, s := range e.spheres {
		if t := s.Intersect(o, d); 0 < t && t < nearest {
			nearest, id = t, index
		}
	}
	return nearest, id
}

// radiance traces a path from o in direction d.
func (e *cpu) radiance(o, d scene.Vec, s0, s1 *uint32) scene.Vec {
	var (
		rad        scene.Vec
		throughput = scene.Vec{X: 1, Y: 1, Z: 1}
	)

	for depth := 0; depth < maxDepth; depth++ {
		t, id := e.intersect(o, d)
		if id < 0 {
			break
		}
		obj := e.spheres[id]
		hit := o.Add(d.Scale(t))
		n := hit.Sub(obj.Position).Norm()
		nl := n
		if 0 <= n.Dot(d) {
			nl = n.Scale(-1)
		}

		rad = rad.Add(throughput.Mul(obj.Emission))
		throughput = throughput.Mul(obj.Color)
		o = hit

		switch obj.Material {
		case scene.SPECULAR:
			d = d.Sub(n.Scale(2 * n.Dot(d)))

		case scene.REFRACTIVE:
			refl := d.Sub(n.Scale(2 * n.Dot(d)))
			into := 0 < n.Dot(nl)
			nc, nt := 1., 1.5
			nnt := nt / nc
			if into {
				nnt = nc / nt
			}
			ddn := d.Dot(nl)
			cos2t := 1 - nnt*nnt*(1-ddn*ddn)
			if cos2t < 0 {
				// total internal reflection
				d = refl
				continue
			}

			sign := -1.
			if into {
				sign = 1.
			}
			tdir := d.Scale(nnt).Sub(n.Scale(sign * (ddn*nnt + math.Sqrt(cos2t)))).Norm()
			a, b := nt-nc, nt+nc
			r0 := a * a / (b * b)
			c := 1 - tdir.Dot(n)
			if into {
				c = 1 + ddn
			}
			re := r0 + (1-r0)*c*c*c*c*c
			p := .25 + .5*re
			if random(s0, s1) < p {
				throughput = throughput.Scale(re / p)
				d = refl
			} else {
				throughput = throughput.Scale((1 - re) / (1 - p))
				d = tdir
			}

		default:
			// cosine-weighted hemisphere sampling
			r1 := 2 * math.Pi * random(s0, s1)
			r2 := random(s0, s1)
			r2s := math.Sqrt(r2)

			w := nl
			u := scene.Vec{X: 1}
			if .1 < math.Abs(w.X) {
				u = scene.Vec{Y: 1}
			}
			u = u.Cross(w).Norm()
			v := w.Cross(u)
			d = u.Scale(math.Cos(r1) * r2s).Add(v.Scale(math.Sin(r1) * r2s)).Add(w.Scale(math.Sqrt(1 - r2))).Norm()
		}
	}

	return rad
}

// random returns a pseudo-random number in [0, 1) using two
// multiply-with-carry generators.
func random(s0, s1 *uint32) float64 {
	*s0 = 36969*(*s0&65535) + (*s0 >> 16)
	*s1 = 18000*(*s1&65535) + (*s1 >> 16)
	ires := (*s0 << 16) + *s1

	// build a float in [2, 4) from the mantissa bits
	f := math.Float32frombits(ires&0x007fffff | 0x40000000)
	return float64(f-2) / 2
}

// toByte converts a linear color channel to a gamma-corrected byte.
func toByte(x float64) uint8 {
	x = math.Max(0, math.Min(1, x))
	return uint8(math.Pow(x, 1/2.2)*255 + .5)
}

func (e *cpu) ReadBack(dst []uint32) error {
	if len(dst) != len(e.pixels) {
		return fmt.Errorf("[Device::%s] read back %d pixels into %d", e.name, len(e.pixels), len(dst))
	}
	copy(dst, e.pixels)
	return nil
}

func (e *cpu) PushCamera(camera scene.Camera) error {
	e.camera = camera
	return nil
}

func (e *cpu) PushScene(spheres []scene.Sphere) error {
	e.spheres = append(e.spheres[:0], spheres...)
	return nil
}

func (e *cpu) Finish() error {
	return nil
}

func (e *cpu) Release() error {
	e.colors, e.pixels, e.seeds = nil, nil, nil
	return nil
}
