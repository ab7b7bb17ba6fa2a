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
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/9rum/flatray/internal/frame"
	"github.com/9rum/flatray/scene"
)

// Simulated describes a device whose pass time follows a fixed throughput
// model instead of real computation.  Each pass paints the workload with a
// color derived from the device name, which makes the partition visible.
type Simulated struct {
	Name string
	Kind Kind

	// Throughput is the number of pixels rendered per second.
	Throughput float64

	// Sleep makes passes take their modeled time in wall-clock time.
	Sleep bool

	// FailAfter makes every pass after the first FailAfter passes fail,
	// if positive.
	FailAfter int

	// OnSubmit, if not nil, is called on every submitted pass.
	OnSubmit func(sample, offset, amount int)

	// OnConfigure, if not nil, is called on every buffer allocation; an
	// error fails the allocation.
	OnConfigure func(amount, width, height int) error
}

// Device returns the descriptor of the simulated device.
func (s Simulated) Device() Device {
	return Device{
		Name:  s.Name,
		Kind:  s.Kind,
		Units: 1,
		open: func(dev Device, cfg Config) (Executor, error) {
			if s.Throughput <= 0 {
				return nil, fmt.Errorf("[Device::%s] invalid throughput %v", s.Name, s.Throughput)
			}
			h := fnv.New32a()
			h.Write([]byte(s.Name))
			sum := h.Sum32()
			return &simulated{
				Simulated: s,
				color:     frame.Pack(uint8(sum), uint8(sum>>8), uint8(sum>>16)),
			}, nil
		},
	}
}

// ParseSimulated parses a comma-separated list of simulated devices in the
// form kind:name:throughput, e.g., "gpu:Radeon:4e6,cpu:Xeon:1e6".
func ParseSimulated(list string) ([]Simulated, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}

	sims := make([]Simulated, 0, strings.Count(list, ",")+1)
	for _, item := range strings.Split(list, ",") {
		fields := strings.Split(strings.TrimSpace(item), ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid simulated device %q", item)
		}

		var kind Kind
		switch strings.ToLower(fields[0]) {
		case "cpu":
			kind = CPU
		case "gpu":
			kind = GPU
		default:
			return nil, fmt.Errorf("invalid device kind %q", fields[0])
		}

		throughput, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid throughput %q: %w", fields[2], err)
		}
		if throughput <= 0 {
			return nil, fmt.Errorf("invalid throughput %v", throughput)
		}

		sims = append(sims, Simulated{
			Name:       fields[1],
			Kind:       kind,
			Throughput: throughput,
			Sleep:      true,
		})
	}
	return sims, nil
}

// simulated implements Executor for a simulated device.
type simulated struct {
	Simulated
	color  uint32
	passes int
	pixels []uint32
}

func (e *simulated) ConfigureBuffers(amount, width, height int) error {
	if amount <= 0 {
		return fmt.Errorf("[Device::%s] cannot allocate buffers for %d pixels", e.Name, amount)
	}
	if e.OnConfigure != nil {
		if err := e.OnConfigure(amount, width, height); err != nil {
			return err
		}
	}
	e.pixels = make([]uint32, amount)
	return nil
}

func (e *simulated) Submit(sample, offset, amount int) (Event, error) {
	if amount != len(e.pixels) {
		return nil, fmt.Errorf("[Device::%s] submitted %d pixels to buffers of %d", e.Name, amount, len(e.pixels))
	}
	if e.OnSubmit != nil {
		e.OnSubmit(sample, offset, amount)
	}
	e.passes++

	var err error
	if 0 < e.FailAfter && e.FailAfter < e.passes {
		err = fmt.Errorf("[Device::%s] simulated failure on pass %d", e.Name, e.passes)
	}
	for index := range e.pixels {
		e.pixels[index] = e.color
	}

	elapsed := time.Duration(float64(amount) / e.Throughput * float64(time.Second))
	ev := newEvent()
	if e.Sleep {
		go func() {
			time.Sleep(elapsed)
			ev.complete(elapsed, err)
		}()
	} else {
		ev.complete(elapsed, err)
	}
	return ev, nil
}

func (e *simulated) ReadBack(dst []uint32) error {
	if len(dst) != len(e.pixels) {
		return fmt.Errorf("[Device::%s] read back %d pixels into %d", e.Name, len(e.pixels), len(dst))
	}
	copy(dst, e.pixels)
	return nil
}

func (e *simulated) PushCamera(scene.Camera) error {
	return nil
}

func (e *simulated) PushScene([]scene.Sphere) error {
	return nil
}

func (e *simulated) Finish() error {
	return nil
}

func (e *simulated) Release() error {
	e.pixels = nil
	return nil
}
