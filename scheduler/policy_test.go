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
	"testing"
	"time"
)

func TestNewPolicy(t *testing.T) {
	if _, ok := NewPolicy(int32(STATIC), DefaultWindow).(*StaticPolicy); !ok {
		t.Fatal("expected static policy")
	}
	if _, ok := NewPolicy(int32(ONESHOT), DefaultWindow).(*OneShotPolicy); !ok {
		t.Fatal("expected one-shot policy")
	}
	if _, ok := NewPolicy(int32(CONTINUOUS), DefaultWindow).(*ContinuousPolicy); !ok {
		t.Fatal("expected continuous policy")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for an invalid type")
		}
	}()
	NewPolicy(int32(42), DefaultWindow)
}

func TestStaticPolicy(t *testing.T) {
	policy := NewPolicy(int32(STATIC), DefaultWindow)
	now := time.Unix(0, 0)
	policy.Start(now, 4)
	if policy.Profiling() {
		t.Fatal("static policy must not profile")
	}
	for step := 0; step < 10; step++ {
		if policy.Check(now.Add(time.Duration(step) * time.Minute)) {
			t.Fatal("static policy must not rebalance")
		}
	}
}

func TestOneShotPolicy(t *testing.T) {
	policy := NewPolicy(int32(ONESHOT), 15*time.Second)
	now := time.Unix(0, 0)
	policy.Start(now, 2)

	if !policy.Profiling() {
		t.Fatal("expected profiling")
	}
	if policy.Check(now.Add(15 * time.Second)) {
		t.Fatal("fired before the window elapsed")
	}
	if !policy.Check(now.Add(16 * time.Second)) {
		t.Fatal("did not fire after the window elapsed")
	}
	if policy.Profiling() {
		t.Fatal("profiling did not stop")
	}
	if policy.Check(now.Add(time.Hour)) {
		t.Fatal("fired twice")
	}

	// restart
	policy.Start(now.Add(time.Hour), 2)
	if !policy.Check(now.Add(time.Hour + 16*time.Second)) {
		t.Fatal("did not fire after restart")
	}

	policy.Start(now, 1)
	if policy.Profiling() || policy.Check(now.Add(time.Hour)) {
		t.Fatal("a single worker must not be profiled")
	}
}

func TestContinuousPolicy(t *testing.T) {
	policy := NewPolicy(int32(CONTINUOUS), 10*time.Second)
	now := time.Unix(0, 0)
	policy.Start(now, 3)

	fired := 0
	for step := 1; step <= 100; step++ {
		if policy.Check(now.Add(time.Duration(step) * time.Second)) {
			fired++
		}
		if !policy.Profiling() {
			t.Fatal("continuous policy stopped profiling")
		}
	}
	// fires on seconds 11, 22, ..., 99
	if fired != 9 {
		t.Fatalf("fired %d times want 9", fired)
	}
}
