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

// Package device defines the contract between the scheduler and the compute
// devices it drives.  An Executor owns the device-side buffers of a single
// device worker: it renders one pass over the worker's workload per Submit
// and copies the resulting pixels back on ReadBack.  Two executors are
// provided: a software path tracer running on the host CPU and a simulated
// device with a configurable throughput.
package device

import (
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/9rum/flatray/scene"
	"github.com/golang/glog"
	"golang.org/x/exp/constraints"
)

// ErrNoDevice is returned when no device matches the selection.
var ErrNoDevice = errors.New("unable to find an appropriate device")

// Kind represents the class of a device.
type Kind int32

const (
	CPU Kind = iota
	GPU
)

func (k Kind) String() string {
	switch k {
	case CPU:
		return "TYPE_CPU"
	case GPU:
		return "TYPE_GPU"
	default:
		return "TYPE_UNKNOWN"
	}
}

// Event represents a pass in flight on a device.
type Event interface {
	// Wait blocks until the pass completes and returns the elapsed device time.
	Wait() (time.Duration, error)
}

// Executor represents the device-side state of a single device worker.
// Methods other than Event.Wait are never called concurrently; ReadBack,
// PushCamera, PushScene and ConfigureBuffers are only called when no pass is
// in flight.
type Executor interface {
	// ConfigureBuffers (re)allocates the buffers for the given workload
	// amount and frame dimensions, including 2*amount random seeds.
	ConfigureBuffers(amount, width, height int) error

	// Submit starts a pass with the given sample index over the pixels
	// [offset, offset+amount).
	Submit(sample, offset, amount int) (Event, error)

	// ReadBack copies the pixels of the last pass into dst.
	ReadBack(dst []uint32) error

	// PushCamera updates the camera used by the following passes.
	PushCamera(camera scene.Camera) error

	// PushScene updates the spheres used by the following passes.
	PushScene(spheres []scene.Sphere) error

	// Finish blocks until every pending update has been applied.
	Finish() error

	// Release frees the device-side buffers.
	Release() error
}

// Config represents the arguments used to open a device.
type Config struct {
	// ForceGPUWorkSize overrides the suggested work-group size of GPU devices
	// if positive.
	ForceGPUWorkSize int

	// Scene provides the initial camera and spheres.
	Scene *scene.Scene
}

// Device describes a single compute device.
type Device struct {
	Name  string
	Kind  Kind
	Units int
	open  func(Device, Config) (Executor, error)
}

// Open creates a new executor on the device.
func (d Device) Open(cfg Config) (Executor, error) {
	if d.open == nil {
		return nil, fmt.Errorf("[Device::%s] no executor available", d.Name)
	}
	if cfg.Scene == nil {
		return nil, fmt.Errorf("[Device::%s] no scene given", d.Name)
	}
	return d.open(d, cfg)
}

// workGroupSize returns the work-group size to use on the device.
func (d Device) workGroupSize(suggested int, cfg Config) int {
	glog.Infof("[Device::%s] Suggested work group size: %d", d.Name, suggested)
	if 0 < cfg.ForceGPUWorkSize && d.Kind == GPU {
		glog.Infof("[Device::%s] Forced work group size: %d", d.Name, cfg.ForceGPUWorkSize)
		return cfg.ForceGPUWorkSize
	}
	return suggested
}

// Options represents the device selection.
type Options struct {
	UseCPUs   bool
	UseGPUs   bool
	Simulated []Simulated
}

// Host returns the host CPU device.
func Host() Device {
	return Device{
		Name:  fmt.Sprintf("Host CPU (%s/%s)", runtime.GOOS, runtime.GOARCH),
		Kind:  CPU,
		Units: runtime.NumCPU(),
		open:  openCPU,
	}
}

// Discover lists the available devices and returns those that match the
// given selection.
func Discover(opts Options) ([]Device, error) {
	devices := []Device{Host()}
	for _, sim := range opts.Simulated {
		devices = append(devices, sim.Device())
	}

	selected := make([]Device, 0, len(devices))
	for index, dev := range devices {
		glog.Infof("Device name %d: %s", index, dev.Name)
		glog.Infof("Device type %d: %s", index, dev.Kind)
		glog.Infof("Device units %d: %d", index, dev.Units)

		if (dev.Kind == CPU && opts.UseCPUs) || (dev.Kind == GPU && opts.UseGPUs) {
			selected = append(selected, dev)
		}
	}

	if len(selected) == 0 {
		return nil, ErrNoDevice
	}
	return selected, nil
}

// ceil returns the least integer value greater than or equal to numerator / denominator.
func ceil[T constraints.Integer](numerator, denominator T) T {
	if numerator%denominator == 0 {
		return numerator / denominator
	}
	return numerator/denominator + 1
}

// newSeeds returns 2*amount random seeds.  The device random number generator
// requires every seed to be at least 2.
func newSeeds(amount int, rng *rand.Rand) []uint32 {
	seeds := make([]uint32, 2*amount)
	for index := range seeds {
		if seeds[index] = rng.Uint32(); seeds[index] < 2 {
			seeds[index] = 2
		}
	}
	return seeds
}

// event implements Event for executors that complete a pass in a goroutine.
type event struct {
	done    chan struct{}
	elapsed time.Duration
	err     error
}

func newEvent() *event {
	return &event{done: make(chan struct{})}
}

func (e *event) Wait() (time.Duration, error) {
	<-e.done
	return e.elapsed, e.err
}

// complete marks the pass as finished.
func (e *event) complete(elapsed time.Duration, err error) {
	e.elapsed, e.err = elapsed, err
	close(e.done)
}
