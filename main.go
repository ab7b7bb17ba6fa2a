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

// Package main implements the renderer.  The devices, scene and rebalancing
// policy are chosen by flags; the frame is rendered until the duration
// elapses, the process is interrupted, or a client calls Finalize on the
// control server.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/9rum/flatray/communicator"
	"github.com/9rum/flatray/device"
	"github.com/9rum/flatray/internal/frame"
	"github.com/9rum/flatray/scene"
	"github.com/9rum/flatray/scheduler"
	"github.com/golang/glog"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
)

func main() {
	useCPUs := flag.Bool("cpu", true, "Use CPU devices")
	useGPUs := flag.Bool("gpu", true, "Use GPU devices")
	workGroupSize := flag.Int("workgroup", 0, "Force the GPU work group size (0 for the device default)")
	width := flag.Int("width", 640, "The frame width")
	height := flag.Int("height", 480, "The frame height")
	path := flag.String("scene", "", "The scene file (empty for the Cornell box)")
	sims := flag.String("sim", "", "Simulated devices as kind:name:throughput,...")
	policy := flag.String("policy", "oneshot", "The rebalancing policy (static, oneshot or continuous)")
	window := flag.Duration("window", scheduler.DefaultWindow, "The profiling window")
	duration := flag.Duration("duration", 0, "How long to render (0 until stopped)")
	output := flag.String("o", "image.png", "The snapshot path (png, bmp or tiff)")
	port := flag.Int("p", 0, "The control server port (0 to disable)")
	caption := flag.Duration("caption", 5*time.Second, "The caption logging interval")
	flag.Parse()
	defer glog.Flush()

	simulated, err := device.ParseSimulated(*sims)
	if err != nil {
		glog.Fatalf("failed to parse simulated devices: %v", err)
	}
	devices, err := device.Discover(device.Options{
		UseCPUs:   *useCPUs,
		UseGPUs:   *useGPUs,
		Simulated: simulated,
	})
	if err != nil {
		glog.Fatalf("failed to discover devices: %v", err)
	}

	scn := scene.Cornell()
	if *path != "" {
		if scn, err = scene.Load(*path); err != nil {
			glog.Fatalf("failed to load scene: %v", err)
		}
	}

	typ, err := parsePolicy(*policy)
	if err != nil {
		glog.Fatalf("failed to parse policy: %v", err)
	}
	s, err := scheduler.New(devices, scn, *width, *height,
		scheduler.WithPolicy(scheduler.NewPolicy(typ, *window)),
		scheduler.WithForceGPUWorkSize(*workGroupSize))
	if err != nil {
		glog.Fatalf("failed to create scheduler: %v", err)
	}
	defer s.Close()

	done := make(chan os.Signal, 1)
	if 0 < *port {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
		if err != nil {
			glog.Fatalf("failed to listen: %v", err)
		}
		server := newServer(done, s)
		glog.Infof("server listening at %v", lis.Addr())
		go func() {
			if err := server.Serve(lis); err != nil {
				glog.Errorf("failed to serve: %v", err)
			}
		}()
		defer server.GracefulStop()
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	if err = render(s, *duration, *caption, done, interrupt); err != nil {
		glog.Errorf("failed to render: %v", err)
	}

	if *output != "" {
		if err = snapshot(s, *output); err != nil {
			glog.Errorf("failed to write snapshot: %v", err)
			return
		}
		glog.Infof("snapshot written to %s", *output)
	}
}

// parsePolicy returns the policy type with the given name.
func parsePolicy(name string) (int32, error) {
	switch strings.ToLower(name) {
	case "static":
		return scheduler.STATIC, nil
	case "oneshot":
		return scheduler.ONESHOT, nil
	case "continuous":
		return scheduler.CONTINUOUS, nil
	default:
		return 0, fmt.Errorf("invalid policy %q", name)
	}
}

// render executes frames until the duration elapses or either channel fires.
func render(s *scheduler.Scheduler, duration, interval time.Duration, done, interrupt <-chan os.Signal) error {
	var deadline <-chan time.Time
	if 0 < duration {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		deadline = timer.C
	}
	last := time.Now()

	for {
		select {
		case <-deadline:
			return nil
		case <-done:
			return nil
		case sig := <-interrupt:
			glog.Infof("received %v", sig)
			return nil
		default:
		}

		if err := s.ExecuteFrame(); err != nil {
			return err
		}
		if 0 < interval && interval < time.Since(last) {
			last = time.Now()
			glog.Info(s.Stats().Caption())
		}
	}
}

// snapshot writes the current frame to the given path.
func snapshot(s *scheduler.Scheduler, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = frame.Encode(f, s.Image(), frame.Format(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newServer(done chan os.Signal, s *scheduler.Scheduler) *grpc.Server {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_recovery.UnaryServerInterceptor(),
		),
	)
	communicator.RegisterCommunicatorServer(server, communicator.NewCommunicatorServer(done, s))

	return server
}
