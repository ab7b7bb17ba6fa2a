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

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/9rum/flatray/device"
	"github.com/9rum/flatray/internal/barrier"
	"github.com/9rum/flatray/internal/frame"
	"github.com/golang/glog"
	"github.com/google/uuid"
)

// DeviceError represents the failure of a device worker.  A failed worker
// leaves both barriers and never takes part in a round again.
type DeviceError struct {
	Rank   int
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("[Device::%s] rank %d: %v", e.Device, e.Rank, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Worker represents a single device in the pool.  Each worker owns one
// goroutine that renders the assigned workload once per round, gated by the
// start and end barriers shared with the scheduler.
//
// The workload, view and sample are written by the scheduler only while the
// worker is parked at the start barrier; the performance counters are written
// by the worker goroutine only.  The barriers order the two.
type Worker struct {
	rank  int
	id    uuid.UUID
	dev   device.Device
	exec  device.Executor
	start *barrier.Barrier
	end   *barrier.Barrier

	workload frame.Range
	view     []uint32
	width    int
	height   int
	sample   int

	units   float64
	elapsed time.Duration
	err     *DeviceError

	done chan struct{}
}

// newWorker creates a new worker with the given arguments.  The worker
// goroutine is not started until run is called.
func newWorker(rank int, dev device.Device, exec device.Executor, start, end *barrier.Barrier) *Worker {
	return &Worker{
		rank:  rank,
		id:    uuid.New(),
		dev:   dev,
		exec:  exec,
		start: start,
		end:   end,
		done:  make(chan struct{}),
	}
}

// Rank returns the position of the worker in the original device list.
func (w *Worker) Rank() int {
	return w.rank
}

// ID returns the unique ID of the worker.
func (w *Worker) ID() uuid.UUID {
	return w.id
}

// Device returns the device the worker is bound to.
func (w *Worker) Device() device.Device {
	return w.dev
}

// Workload returns the assigned pixel range.
func (w *Worker) Workload() frame.Range {
	return w.workload
}

// Configure binds the worker to the given workload over a frame of the given
// dimensions.  The device buffers are reallocated unless the workload is idle.
func (w *Worker) Configure(workload frame.Range, view []uint32, width, height int) error {
	if len(view) != workload.Amount {
		return fmt.Errorf("[Device::%s] view of %d pixels for workload %v", w.dev.Name, len(view), workload)
	}
	w.workload, w.view = workload, view
	w.width, w.height = width, height
	w.sample = 0

	glog.Infof("[Device::%s] Offset: %d Amount: %d", w.dev.Name, workload.Offset, workload.Amount)

	if workload.Idle() {
		return nil
	}
	if err := w.exec.ConfigureBuffers(workload.Amount, width, height); err != nil {
		return &DeviceError{Rank: w.rank, Device: w.dev.Name, Err: err}
	}
	return nil
}

// fail marks the worker as failed and parks it on an idle range past the end
// of a frame of the given size.  The worker leaves both barriers in the next
// round.
func (w *Worker) fail(err *DeviceError, total int) {
	w.err = err
	w.workload, w.view = frame.Range{Offset: total}, nil
}

// SetSample sets the sample index of the next round.
func (w *Worker) SetSample(sample int) {
	w.sample = sample
}

// Performance returns the measured throughput in pixels per second, or 1 if
// nothing has been measured yet.
func (w *Worker) Performance() float64 {
	if w.units == 0 || w.elapsed == 0 {
		return 1.
	}
	return w.units / w.elapsed.Seconds()
}

// ResetPerformance clears the performance counters.
func (w *Worker) ResetPerformance() {
	w.units, w.elapsed = 0, 0
}

// Err returns the failure of the worker, if any.
func (w *Worker) Err() *DeviceError {
	return w.err
}

// run is the worker control loop.  It exits when ctx is cancelled and a
// round is released, or when the device fails.
func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	for {
		w.start.Wait()
		if ctx.Err() != nil {
			return
		}

		if w.err == nil {
			if err := w.render(); err != nil {
				glog.Errorf("[Device::%s] ERROR: %v", w.dev.Name, err)
				w.err = &DeviceError{Rank: w.rank, Device: w.dev.Name, Err: err}
			}
		}
		if w.err != nil {
			// leave the start barrier first; nobody waits there mid-round
			w.start.Detach()
			w.end.Detach()
			return
		}

		w.end.Wait()
	}
}

// render executes one pass over the workload and copies the result into the
// frame.
func (w *Worker) render() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if w.workload.Idle() {
		return nil
	}

	ev, err := w.exec.Submit(w.sample, w.workload.Offset, w.workload.Amount)
	if err != nil {
		return err
	}
	elapsed, err := ev.Wait()
	if err != nil {
		return err
	}
	w.units += float64(w.workload.Amount)
	w.elapsed += elapsed

	if err = w.exec.ReadBack(w.view); err != nil {
		return err
	}
	return w.exec.Finish()
}
