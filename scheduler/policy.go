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

import "time"

const (
	STATIC = iota
	ONESHOT
	CONTINUOUS
)

// DefaultWindow is the default length of a measurement window.
const DefaultWindow = 15 * time.Second

// Policy decides when the device performance is remeasured and the workload
// rebalanced.  All implementations must embed PolicyBase for forward
// compatibility.
type Policy interface {
	// Start opens a new measurement window for the given number of workers.
	Start(now time.Time, workers int)

	// Check reports whether the workload should be remeasured now.
	Check(now time.Time) bool

	// Profiling reports whether a measurement window is open.
	Profiling() bool
}

// PolicyBase must be embedded to have forward compatible implementations.
type PolicyBase struct {
}

func (PolicyBase) Start(now time.Time, workers int) {}
func (PolicyBase) Check(now time.Time) (_ bool) {
	return
}
func (PolicyBase) Profiling() (_ bool) {
	return
}

// NewPolicy creates a new policy of the given type.
func NewPolicy[T ~int32](typ T, window time.Duration) Policy {
	switch typ {
	case STATIC:
		return &StaticPolicy{}
	case ONESHOT:
		return &OneShotPolicy{window: window}
	case CONTINUOUS:
		return &ContinuousPolicy{window: window}
	default:
		panic("invalid type")
	}
}

// StaticPolicy never rebalances; the workload is split evenly.
type StaticPolicy struct {
	PolicyBase
}

// OneShotPolicy measures the devices once, after the first window, and then
// holds the partition steady.
type OneShotPolicy struct {
	PolicyBase
	window    time.Duration
	since     time.Time
	profiling bool
}

// Start opens the window; profiling is pointless with a single worker.
func (p *OneShotPolicy) Start(now time.Time, workers int) {
	p.since, p.profiling = now, 1 < workers
}

// Check fires once the window has elapsed and closes it.
func (p *OneShotPolicy) Check(now time.Time) bool {
	if p.profiling && p.window < now.Sub(p.since) {
		p.profiling = false
		return true
	}
	return false
}

func (p *OneShotPolicy) Profiling() bool {
	return p.profiling
}

// ContinuousPolicy remeasures the devices at the end of every window and
// immediately opens the next one.
type ContinuousPolicy struct {
	PolicyBase
	window    time.Duration
	since     time.Time
	profiling bool
}

func (p *ContinuousPolicy) Start(now time.Time, workers int) {
	p.since, p.profiling = now, 1 < workers
}

// Check fires whenever a window has elapsed.
func (p *ContinuousPolicy) Check(now time.Time) bool {
	if p.profiling && p.window < now.Sub(p.since) {
		p.since = now
		return true
	}
	return false
}

func (p *ContinuousPolicy) Profiling() bool {
	return p.profiling
}
