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
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeviceStats is a snapshot of a single device worker.
type DeviceStats struct {
	ID   uuid.UUID
	Rank int
	Name string
	Kind string

	// Performance is the measured throughput relative to the slowest worker.
	Performance float64

	// Assigned is the share of the performance index the current partition
	// is based on, out of the total of all workers.
	Assigned float64

	// Workload is the share of the frame in percent.
	Workload float64
	Offset   int
	Amount   int
}

// Stats is a snapshot of the scheduler.
type Stats struct {
	Width   int
	Height  int
	Sample  int
	Passes  int
	Pixels  int
	Elapsed time.Duration

	TotalElapsed time.Duration
	Profiling    bool
	Devices      []DeviceStats
	Retired      []string
}

// AvgSamplesPerSec returns the average number of samples per pixel rendered
// per second since the last reset.
func (st Stats) AvgSamplesPerSec() float64 {
	if st.TotalElapsed <= 0 {
		return 0
	}
	return float64(st.Sample) * float64(st.Pixels) / st.TotalElapsed.Seconds()
}

// InstantSamplesPerSec returns the number of samples per pixel rendered per
// second by the last call to ExecuteFrame.
func (st Stats) InstantSamplesPerSec() float64 {
	if st.Elapsed <= 0 {
		return 0
	}
	return float64(st.Passes) * float64(st.Pixels) / st.Elapsed.Seconds()
}

// Caption renders the snapshot as human-readable lines.
func (st Stats) Caption() string {
	var b strings.Builder
	if st.Profiling {
		b.WriteString("[Profiling]")
	}
	fmt.Fprintf(&b, "[Rendering time %.3f sec (pass %d)][Avg. sample/sec %.1fK][Instant sample/sec %.1fK]",
		st.TotalElapsed.Seconds(), st.Sample, st.AvgSamplesPerSec()/1000, st.InstantSamplesPerSec()/1000)
	for _, dev := range st.Devices {
		fmt.Fprintf(&b, "\n[%s][Perf. Idx %.2f][Assigned Idx %.2f][Workload %.1f%%]",
			dev.Name, dev.Performance, dev.Assigned, dev.Workload)
	}
	for _, name := range st.Retired {
		fmt.Fprintf(&b, "\n[%s][Retired]", name)
	}
	return b.String()
}

// Stats returns a snapshot of the scheduler.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Width:        s.frame.Width(),
		Height:       s.frame.Height(),
		Sample:       s.sample,
		Passes:       s.passes,
		Pixels:       s.frame.Len(),
		Elapsed:      s.elapsed,
		TotalElapsed: s.total,
		Profiling:    s.opts.policy.Profiling(),
		Devices:      make([]DeviceStats, 0, len(s.workers)),
	}

	minPerf, totalAssigned := 0., 0.
	for index, w := range s.workers {
		if perf := w.Performance(); index == 0 || perf < minPerf {
			minPerf = perf
		}
		if w.Err() == nil {
			totalAssigned += s.perf[index]
		}
	}

	for index, w := range s.workers {
		workload := w.Workload()
		dev := DeviceStats{
			ID:     w.ID(),
			Rank:   w.Rank(),
			Name:   w.Device().Name,
			Kind:   w.Device().Kind.String(),
			Offset: workload.Offset,
			Amount: workload.Amount,
		}
		if 0 < minPerf {
			dev.Performance = w.Performance() / minPerf
		}
		if 0 < totalAssigned && w.Err() == nil {
			dev.Assigned = s.perf[index] / totalAssigned
		}
		if 0 < st.Pixels {
			dev.Workload = 100 * float64(workload.Amount) / float64(st.Pixels)
		}
		st.Devices = append(st.Devices, dev)
	}
	for _, err := range s.retired {
		st.Retired = append(st.Retired, err.Device)
	}

	return st
}
