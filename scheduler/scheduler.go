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

// Package scheduler provides primitives for rendering a frame across a
// heterogeneous pool of devices.  A fixed set of device workers is driven
// through synchronized rounds; every round renders one sample of every pixel.
// In addition to an even static split of the frame, it supports a
// feedback-directed optimization that measures the throughput of each device
// and adjusts its share of the frame accordingly.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/9rum/flatray/device"
	"github.com/9rum/flatray/internal/barrier"
	"github.com/9rum/flatray/internal/frame"
	"github.com/9rum/flatray/scene"
	"github.com/golang/glog"
)

var (
	// ErrNoWorkers is returned when every device worker has failed.
	ErrNoWorkers = errors.New("no device worker left")

	// ErrClosed is returned when the scheduler has been closed.
	ErrClosed = errors.New("scheduler closed")
)

const (
	// DefaultWarmup is the number of samples rendered one round per call.
	DefaultWarmup = 10000

	// DefaultBatchTime is the longest time spent batching rounds in a call.
	DefaultBatchTime = 500 * time.Millisecond
)

// Option configures a Scheduler during creation.
type Option func(*options)

type options struct {
	policy           Policy
	now              func() time.Time
	warmup           int
	batchTime        time.Duration
	forceGPUWorkSize int
}

func defaultOptions() options {
	return options{
		policy:    NewPolicy(int32(ONESHOT), DefaultWindow),
		now:       time.Now,
		warmup:    DefaultWarmup,
		batchTime: DefaultBatchTime,
	}
}

// WithPolicy sets the rebalancing policy.
func WithPolicy(policy Policy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithClock sets the clock used for batching and measurement windows.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithWarmup sets the number of samples rendered one round per call before
// switching to adaptive batching.
func WithWarmup(samples int) Option {
	return func(o *options) {
		o.warmup = samples
	}
}

// WithBatchTime sets the longest time spent batching rounds in a call.
func WithBatchTime(d time.Duration) Option {
	return func(o *options) {
		o.batchTime = d
	}
}

// WithForceGPUWorkSize forces the work-group size of GPU devices.
func WithForceGPUWorkSize(size int) Option {
	return func(o *options) {
		o.forceGPUWorkSize = size
	}
}

// Scheduler drives the device workers through rounds and balances the
// workload between them.  All methods are safe for concurrent use; they are
// serialized, so the workers are always parked when a method returns.
type Scheduler struct {
	mu     sync.Mutex
	opts   options
	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	start   *barrier.Barrier
	end     *barrier.Barrier
	workers []*Worker
	perf    []float64
	retired []*DeviceError

	frame   *frame.Buffer
	camera  scene.Camera
	spheres []scene.Sphere
	sample  int

	elapsed time.Duration
	total   time.Duration
	passes  int
}

// New creates a new scheduler that renders the given scene on the given
// devices.
func New(devices []device.Device, scn *scene.Scene, width, height int, opts ...Option) (*Scheduler, error) {
	if len(devices) == 0 {
		return nil, device.ErrNoDevice
	}
	if scn == nil {
		return nil, errors.New("no scene given")
	}
	buf, err := frame.NewBuffer(width, height)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		opts:    defaultOptions(),
		camera:  scn.Camera,
		spheres: append([]scene.Sphere(nil), scn.Spheres...),
		frame:   buf,
	}
	for _, opt := range opts {
		opt(&s.opts)
	}

	// workers + the scheduler itself
	if s.start, err = barrier.New(uint(len(devices) + 1)); err != nil {
		return nil, err
	}
	if s.end, err = barrier.New(uint(len(devices) + 1)); err != nil {
		return nil, err
	}

	// open every device before starting any worker so that a failure here
	// never leaves a goroutine parked on a barrier
	cfg := device.Config{
		ForceGPUWorkSize: s.opts.forceGPUWorkSize,
		Scene:            &scene.Scene{Camera: s.camera, Spheres: s.spheres},
	}
	execs := make([]device.Executor, 0, len(devices))
	for _, dev := range devices {
		exec, err := dev.Open(cfg)
		if err != nil {
			for _, e := range execs {
				e.Release()
			}
			return nil, err
		}
		execs = append(execs, exec)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	names := make([]string, 0, len(devices))
	for rank, dev := range devices {
		w := newWorker(rank, dev, execs[rank], s.start, s.end)
		s.workers = append(s.workers, w)
		s.perf = append(s.perf, 1.)
		names = append(names, "["+dev.Name+"]")
		go w.run(s.ctx)
	}
	glog.Infof("Device used: %s", strings.Join(names, ""))
	glog.Infof("Create done, width: %d, height: %d", width, height)

	if err = s.updateWorkload(true); err != nil {
		s.Close()
		return nil, err
	}
	if err = s.reinitScene(); err != nil {
		s.Close()
		return nil, err
	}
	if err = s.reinit(false); err != nil {
		s.Close()
		return nil, err
	}
	s.opts.policy.Start(s.opts.now(), len(s.workers))

	return s, nil
}

// ExecuteFrame advances rendering by one or more rounds.  During warm-up it
// renders a single round; afterwards it keeps rendering rounds until the
// batch time has elapsed.  The workload is rebalanced afterwards if the
// policy asks for it.
func (s *Scheduler) ExecuteFrame() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.sample == 0 {
		s.total = 0
	}

	begin := s.opts.now()
	passes := 0
	if s.sample < s.opts.warmup {
		if err := s.runRound(); err != nil {
			return err
		}
		passes++
	} else {
		threshold := s.batchThreshold()
		for {
			if err := s.runRound(); err != nil {
				return err
			}
			passes++
			if threshold < s.opts.now().Sub(begin) {
				break
			}
		}
	}
	s.elapsed = s.opts.now().Sub(begin)
	s.total += s.elapsed
	s.passes = passes

	return s.checkWorkloadDrift()
}

// batchThreshold returns how long to keep batching rounds.  It grows with the
// sample count up to the batch time.
func (s *Scheduler) batchThreshold() time.Duration {
	k := float64(min(max(s.sample-20, 0), 100)) / 100
	return time.Duration(float64(s.opts.batchTime) * k)
}

// runRound runs a single round: every worker renders its workload once.  It
// returns after every worker has copied its pixels into the frame.
func (s *Scheduler) runRound() error {
	if len(s.workers) == 0 {
		return ErrNoWorkers
	}
	for _, w := range s.workers {
		w.SetSample(s.sample)
	}

	// trigger the workers and wait for the job done signal
	s.start.Wait()
	s.end.Wait()
	s.sample++

	return s.retire()
}

// retire removes the workers that failed in the last round and splits their
// workload between the remaining ones.
func (s *Scheduler) retire() error {
	workers := make([]*Worker, 0, len(s.workers))
	perf := make([]float64, 0, len(s.perf))
	var last *DeviceError
	for index, w := range s.workers {
		if err := w.Err(); err != nil {
			<-w.done
			if rerr := w.exec.Release(); rerr != nil {
				glog.Warningf("[Device::%s] release: %v", w.dev.Name, rerr)
			}
			glog.Warningf("[Device::%s] retired: %v", w.dev.Name, err.Err)
			s.retired = append(s.retired, err)
			last = err
			continue
		}
		workers = append(workers, w)
		perf = append(perf, s.perf[index])
	}
	if last == nil {
		return nil
	}

	s.workers, s.perf = workers, perf
	if len(s.workers) == 0 {
		return fmt.Errorf("%w: %w", ErrNoWorkers, last)
	}
	return s.updateWorkload(false)
}

// checkWorkloadDrift rebalances the workload if the policy asks for it.
func (s *Scheduler) checkWorkloadDrift() error {
	if !s.opts.policy.Check(s.opts.now()) {
		return nil
	}
	glog.Infof("Rebalancing workload across %d devices", len(s.workers))
	if err := s.updateWorkload(true); err != nil {
		return err
	}

	// a policy that keeps profiling measures the new partition from scratch
	if s.opts.policy.Profiling() {
		for _, w := range s.workers {
			w.ResetPerformance()
		}
	}
	return nil
}

// updateWorkload splits the frame between the workers in proportion to their
// performance indices, optionally remeasuring them first.  A worker whose
// buffers cannot be allocated is failed and the frame is split again between
// the others, so no two workers ever hold overlapping ranges; it is retired
// after the next round.
func (s *Scheduler) updateWorkload(remeasure bool) error {
	if remeasure {
		for index, w := range s.workers {
			if w.Err() == nil {
				s.perf[index] = w.Performance()
			}
		}
	}

	var last *DeviceError
	for {
		active := make([]*Worker, 0, len(s.workers))
		weights := make([]float64, 0, len(s.perf))
		for index, w := range s.workers {
			if w.Err() == nil {
				active = append(active, w)
				weights = append(weights, s.perf[index])
			}
		}
		if len(active) == 0 {
			if last == nil {
				return ErrNoWorkers
			}
			return fmt.Errorf("%w: %w", ErrNoWorkers, last)
		}

		ranges := frame.Partition(s.frame.Len(), weights)
		views, err := s.frame.Assign(ranges)
		if err != nil {
			return err
		}

		last = nil
		for index, w := range active {
			if err = w.Configure(ranges[index], views[index], s.frame.Width(), s.frame.Height()); err != nil {
				if !errors.As(err, &last) {
					last = &DeviceError{Rank: w.Rank(), Device: w.Device().Name, Err: err}
				}
				glog.Errorf("[Device::%s] ERROR: %v", w.Device().Name, last.Err)
				w.fail(last, s.frame.Len())
				break
			}
		}
		if last == nil {
			break
		}
	}

	s.sample = 0
	return nil
}

// flush blocks until every device has applied its pending updates.
func (s *Scheduler) flush() error {
	for _, w := range s.workers {
		if err := w.exec.Finish(); err != nil {
			return err
		}
	}
	return nil
}

// reinitScene pushes the spheres to every device.
func (s *Scheduler) reinitScene() error {
	if err := s.flush(); err != nil {
		return err
	}
	s.sample = 0

	for _, w := range s.workers {
		if err := w.exec.PushScene(s.spheres); err != nil {
			return err
		}
	}
	return nil
}

// reinit recomputes the camera and pushes it to every device, reallocating
// the frame first if requested.
func (s *Scheduler) reinit(realloc bool, size ...int) error {
	if err := s.flush(); err != nil {
		return err
	}
	s.sample = 0

	if realloc {
		buf, err := frame.NewBuffer(size[0], size[1])
		if err != nil {
			return err
		}
		s.frame = buf
		if err = s.updateWorkload(false); err != nil {
			return err
		}
	}

	return s.updateCamera()
}

func (s *Scheduler) updateCamera() error {
	s.camera.Update(s.frame.Width(), s.frame.Height())
	for _, w := range s.workers {
		if err := w.exec.PushCamera(s.camera); err != nil {
			return err
		}
	}
	return nil
}

// Resize changes the frame dimensions.  The frame is reallocated and the
// workload re-partitioned if the dimensions change.
func (s *Scheduler) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	glog.Infof("Resize to %dx%d", width, height)

	realloc := width != s.frame.Width() || height != s.frame.Height()
	return s.reinit(realloc, width, height)
}

// SetCamera replaces the camera position and target.
func (s *Scheduler) SetCamera(origin, target scene.Vec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.camera.Origin, s.camera.Target = origin, target
	return s.reinit(false)
}

// MoveCamera moves the camera along its viewing direction.
func (s *Scheduler) MoveCamera(delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.camera.Dolly(delta)
	return s.reinit(false)
}

// Camera returns the current camera.
func (s *Scheduler) Camera() scene.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

// UpdateScene replaces the spheres of the scene.
func (s *Scheduler) UpdateScene(spheres []scene.Sphere) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.spheres = append(s.spheres[:0:0], spheres...)
	return s.reinitScene()
}

// IncPerformanceIndex increases the share of the worker at the given index.
func (s *Scheduler) IncPerformanceIndex(index int) error {
	return s.scalePerformanceIndex(index, 1.05)
}

// DecPerformanceIndex decreases the share of the worker at the given index.
func (s *Scheduler) DecPerformanceIndex(index int) error {
	return s.scalePerformanceIndex(index, .95)
}

func (s *Scheduler) scalePerformanceIndex(index int, factor float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if index < 0 || len(s.perf) <= index {
		return fmt.Errorf("invalid device index %d", index)
	}
	s.perf[index] *= factor
	return s.updateWorkload(false)
}

// RestartProfiling clears the performance counters and opens a new
// measurement window.
func (s *Scheduler) RestartProfiling() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	for _, w := range s.workers {
		w.ResetPerformance()
	}
	s.opts.policy.Start(s.opts.now(), len(s.workers))
	glog.Info("Restart workload profiling")
	return nil
}

// Sample returns the number of rounds rendered since the last reset.
func (s *Scheduler) Sample() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample
}

// Image returns a copy of the current frame.
func (s *Scheduler) Image() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame.Image()
}

// Close stops every worker and releases the devices.  The workers observe
// the cancellation after a final release of the start barrier.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	s.start.Wait()

	var errs []error
	for _, w := range s.workers {
		<-w.done
		if err := w.exec.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	s.workers = nil
	glog.Info("Scheduler closed")

	return errors.Join(errs...)
}
