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

// The communicator package implements the control surface of a running
// renderer.  A client may inspect the scheduler, resize the frame, move the
// camera, steer the workload balance and fetch snapshots of the frame.  The
// session ends with Finalize, which notifies the main goroutine.
package communicator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"

	"github.com/9rum/flatray/internal/frame"
	"github.com/9rum/flatray/scheduler"
	"github.com/golang/glog"
	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// communicatorServer implements the server API for Communicator service.
type communicatorServer struct {
	UnimplementedCommunicatorServer
	scheduler *scheduler.Scheduler
	done      chan<- os.Signal
	once      sync.Once
}

// NewCommunicatorServer creates a new communicator server that controls the
// given scheduler.  The done channel is closed on Finalize.
func NewCommunicatorServer(done chan<- os.Signal, s *scheduler.Scheduler) CommunicatorServer {
	return &communicatorServer{
		scheduler: s,
		done:      done,
	}
}

// convert maps a scheduler error to a status error.
func convert(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, scheduler.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, scheduler.ErrNoWorkers):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Stats returns a snapshot of the scheduler.
func (c *communicatorServer) Stats(ctx context.Context, in *empty.Empty) (*structpb.Struct, error) {
	st := c.scheduler.Stats()

	devices := make([]interface{}, 0, len(st.Devices))
	for _, dev := range st.Devices {
		devices = append(devices, map[string]interface{}{
			"id":          dev.ID.String(),
			"rank":        dev.Rank,
			"name":        dev.Name,
			"kind":        dev.Kind,
			"performance": dev.Performance,
			"assigned":    dev.Assigned,
			"workload":    dev.Workload,
			"offset":      dev.Offset,
			"amount":      dev.Amount,
		})
	}
	retired := make([]interface{}, 0, len(st.Retired))
	for _, name := range st.Retired {
		retired = append(retired, name)
	}

	out, err := structpb.NewStruct(map[string]interface{}{
		"width":                   st.Width,
		"height":                  st.Height,
		"sample":                  st.Sample,
		"passes":                  st.Passes,
		"elapsed":                 st.Elapsed.Seconds(),
		"total_elapsed":           st.TotalElapsed.Seconds(),
		"profiling":               st.Profiling,
		"avg_samples_per_sec":     st.AvgSamplesPerSec(),
		"instant_samples_per_sec": st.InstantSamplesPerSec(),
		"caption":                 st.Caption(),
		"devices":                 devices,
		"retired":                 retired,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Resize changes the frame dimensions.
func (c *communicatorServer) Resize(ctx context.Context, in *structpb.Struct) (*empty.Empty, error) {
	fields := in.GetFields()
	width, height := int(fields["width"].GetNumberValue()), int(fields["height"].GetNumberValue())
	glog.Infof("Resize called with width: %d height: %d", width, height)

	if width <= 0 || height <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "invalid frame size %dx%d", width, height)
	}
	if err := c.scheduler.Resize(width, height); err != nil {
		return nil, convert(err)
	}
	return new(empty.Empty), nil
}

// Dolly moves the camera along its viewing direction.
func (c *communicatorServer) Dolly(ctx context.Context, in *wrapperspb.DoubleValue) (*empty.Empty, error) {
	glog.Infof("Dolly called with delta: %v", in.GetValue())

	if err := c.scheduler.MoveCamera(in.GetValue()); err != nil {
		return nil, convert(err)
	}
	return new(empty.Empty), nil
}

// IncPerformanceIndex increases the share of the given device.
func (c *communicatorServer) IncPerformanceIndex(ctx context.Context, in *wrapperspb.Int32Value) (*empty.Empty, error) {
	glog.Infof("IncPerformanceIndex called for device %d", in.GetValue())

	if err := c.scheduler.IncPerformanceIndex(int(in.GetValue())); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return new(empty.Empty), nil
}

// DecPerformanceIndex decreases the share of the given device.
func (c *communicatorServer) DecPerformanceIndex(ctx context.Context, in *wrapperspb.Int32Value) (*empty.Empty, error) {
	glog.Infof("DecPerformanceIndex called for device %d", in.GetValue())

	if err := c.scheduler.DecPerformanceIndex(int(in.GetValue())); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return new(empty.Empty), nil
}

// RestartProfiling opens a new measurement window.
func (c *communicatorServer) RestartProfiling(ctx context.Context, in *empty.Empty) (*empty.Empty, error) {
	glog.Info("RestartProfiling called")

	if err := c.scheduler.RestartProfiling(); err != nil {
		return nil, convert(err)
	}
	return new(empty.Empty), nil
}

// Snapshot encodes the current frame in the given format.
func (c *communicatorServer) Snapshot(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	glog.Infof("Snapshot called with format: %q", in.GetValue())

	var buf bytes.Buffer
	if err := frame.Encode(&buf, c.scheduler.Image(), in.GetValue()); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return wrapperspb.Bytes(buf.Bytes()), nil
}

// Finalize notifies the main goroutine that the session has ended.
func (c *communicatorServer) Finalize(ctx context.Context, in *empty.Empty) (*empty.Empty, error) {
	glog.Info("Finalize called")
	defer glog.Flush()

	c.once.Do(func() {
		close(c.done)
	})
	return new(empty.Empty), nil
}
