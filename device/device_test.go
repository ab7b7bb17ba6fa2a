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
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/9rum/flatray/scene"
)

func TestDiscover(t *testing.T) {
	sims := []Simulated{
		{Name: "sim-gpu", Kind: GPU, Throughput: 1e6},
		{Name: "sim-cpu", Kind: CPU, Throughput: 1e5},
	}

	devices, err := Discover(Options{UseCPUs: true, Simulated: sims})
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 2 || devices[0].Kind != CPU || devices[1].Name != "sim-cpu" {
		t.Fatalf("cpu selection: got %+v", devices)
	}

	devices, err = Discover(Options{UseGPUs: true, Simulated: sims})
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 || devices[0].Name != "sim-gpu" {
		t.Fatalf("gpu selection: got %+v", devices)
	}

	if _, err = Discover(Options{UseGPUs: true}); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("got %v want %v", err, ErrNoDevice)
	}
}

func TestParseSimulated(t *testing.T) {
	sims, err := ParseSimulated("gpu:Radeon:4e6, cpu:Xeon:1000")
	if err != nil {
		t.Fatal(err)
	}
	if len(sims) != 2 {
		t.Fatalf("got %d devices want 2", len(sims))
	}
	if sims[0].Kind != GPU || sims[0].Name != "Radeon" || sims[0].Throughput != 4e6 {
		t.Fatalf("got %+v", sims[0])
	}
	if sims[1].Kind != CPU || sims[1].Throughput != 1000 {
		t.Fatalf("got %+v", sims[1])
	}

	if sims, err = ParseSimulated(""); err != nil || sims != nil {
		t.Fatalf("empty list: got %v, %v", sims, err)
	}
	for _, list := range []string{"gpu:x", "tpu:x:1", "gpu:x:fast", "gpu:x:0"} {
		if _, err = ParseSimulated(list); err == nil {
			t.Errorf("accepted %q", list)
		}
	}
}

func TestWorkGroupSize(t *testing.T) {
	cfg := Config{ForceGPUWorkSize: 128}
	if got := (Device{Kind: CPU}).workGroupSize(64, cfg); got != 64 {
		t.Fatalf("cpu: got %d want 64", got)
	}
	if got := (Device{Kind: GPU}).workGroupSize(64, cfg); got != 128 {
		t.Fatalf("gpu: got %d want 128", got)
	}
	if got := (Device{Kind: GPU}).workGroupSize(64, Config{}); got != 64 {
		t.Fatalf("gpu default: got %d want 64", got)
	}
}

func TestCeil(t *testing.T) {
	for _, tc := range [][3]int{{0, 64, 0}, {1, 64, 1}, {64, 64, 1}, {65, 64, 2}} {
		if got := ceil(tc[0], tc[1]); got != tc[2] {
			t.Errorf("ceil(%d, %d): got %d want %d", tc[0], tc[1], got, tc[2])
		}
	}
}

func TestSeeds(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	seeds := newSeeds(1000, rng)
	if len(seeds) != 2000 {
		t.Fatalf("got %d seeds want 2000", len(seeds))
	}
	for index, seed := range seeds {
		if seed < 2 {
			t.Fatalf("seed %d: got %d", index, seed)
		}
	}
}

func TestRandom(t *testing.T) {
	s0, s1 := uint32(2), uint32(3)
	for i := 0; i < 1<<16; i++ {
		if r := random(&s0, &s1); r < 0 || 1 <= r {
			t.Fatalf("random out of range: %v", r)
		}
	}
}

func TestCPUExecutor(t *testing.T) {
	const width, height = 16, 12
	s := scene.Cornell()
	s.Camera.Update(width, height)

	e, err := Host().Open(Config{Scene: s})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Release()

	if err = e.ConfigureBuffers(0, width, height); err == nil {
		t.Fatal("configured zero-sized buffers")
	}

	const offset, amount = 40, 100
	if err = e.ConfigureBuffers(amount, width, height); err != nil {
		t.Fatal(err)
	}
	if _, err = e.Submit(0, offset, amount+1); err == nil {
		t.Fatal("accepted a pass larger than the buffers")
	}

	for sample := 0; sample < 4; sample++ {
		ev, err := e.Submit(sample, offset, amount)
		if err != nil {
			t.Fatal(err)
		}
		elapsed, err := ev.Wait()
		if err != nil {
			t.Fatal(err)
		}
		if elapsed <= 0 {
			t.Fatalf("sample %d: non-positive elapsed time %v", sample, elapsed)
		}
	}

	pixels := make([]uint32, amount)
	if err = e.ReadBack(pixels); err != nil {
		t.Fatal(err)
	}
	for index, p := range pixels {
		if p>>24 != 0xff {
			t.Fatalf("pixel %d: not opaque: %#x", index, p)
		}
	}
	if err = e.ReadBack(make([]uint32, amount-1)); err == nil {
		t.Fatal("read back into a short slice")
	}
	if err = e.Finish(); err != nil {
		t.Fatal(err)
	}
}

func TestSimulatedExecutor(t *testing.T) {
	var submitted []int
	sim := Simulated{
		Name:       "sim",
		Kind:       GPU,
		Throughput: 1000,
		FailAfter:  2,
		OnSubmit: func(sample, offset, amount int) {
			submitted = append(submitted, sample)
		},
	}
	e, err := sim.Device().Open(Config{Scene: scene.Cornell()})
	if err != nil {
		t.Fatal(err)
	}
	if err = e.ConfigureBuffers(500, 50, 10); err != nil {
		t.Fatal(err)
	}

	for pass := 0; pass < 3; pass++ {
		ev, err := e.Submit(pass, 0, 500)
		if err != nil {
			t.Fatal(err)
		}
		elapsed, err := ev.Wait()
		if elapsed != 500*time.Millisecond {
			t.Fatalf("pass %d: got elapsed %v want 500ms", pass, elapsed)
		}
		if (err != nil) != (pass == 2) {
			t.Fatalf("pass %d: unexpected error state %v", pass, err)
		}
	}
	if len(submitted) != 3 || submitted[2] != 2 {
		t.Fatalf("OnSubmit: got %v", submitted)
	}

	if _, err = (Simulated{Name: "broken"}).Device().Open(Config{Scene: scene.Cornell()}); err == nil {
		t.Fatal("opened a device without throughput")
	}
	if _, err = (Device{Name: "none"}).Open(Config{Scene: scene.Cornell()}); err == nil {
		t.Fatal("opened a device without executor")
	}
}

func BenchmarkCPUExecutor(b *testing.B) {
	b.StopTimer()
	const width, height = 64, 48
	s := scene.Cornell()
	s.Camera.Update(width, height)
	e, _ := Host().Open(Config{Scene: s})
	e.ConfigureBuffers(width*height, width, height)
	b.StartTimer()

	for sample := 0; sample < b.N; sample++ {
		ev, _ := e.Submit(sample, 0, width*height)
		ev.Wait()
	}
}
