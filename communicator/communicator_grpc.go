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

package communicator

import (
	"context"

	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// This is a compile-time assertion to ensure that this file is compatible
// with the grpc package it is being compiled against.
const _ = grpc.SupportPackageIsVersion7

const (
	Communicator_Stats_FullMethodName               = "/flatray.Communicator/Stats"
	Communicator_Resize_FullMethodName              = "/flatray.Communicator/Resize"
	Communicator_Dolly_FullMethodName               = "/flatray.Communicator/Dolly"
	Communicator_IncPerformanceIndex_FullMethodName = "/flatray.Communicator/IncPerformanceIndex"
	Communicator_DecPerformanceIndex_FullMethodName = "/flatray.Communicator/DecPerformanceIndex"
	Communicator_RestartProfiling_FullMethodName    = "/flatray.Communicator/RestartProfiling"
	Communicator_Snapshot_FullMethodName            = "/flatray.Communicator/Snapshot"
	Communicator_Finalize_FullMethodName            = "/flatray.Communicator/Finalize"
)

// CommunicatorClient is the client API for Communicator service.
type CommunicatorClient interface {
	Stats(ctx context.Context, in *empty.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	Resize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*empty.Empty, error)
	Dolly(ctx context.Context, in *wrapperspb.DoubleValue, opts ...grpc.CallOption) (*empty.Empty, error)
	IncPerformanceIndex(ctx context.Context, in *wrapperspb.Int32Value, opts ...grpc.CallOption) (*empty.Empty, error)
	DecPerformanceIndex(ctx context.Context, in *wrapperspb.Int32Value, opts ...grpc.CallOption) (*empty.Empty, error)
	RestartProfiling(ctx context.Context, in *empty.Empty, opts ...grpc.CallOption) (*empty.Empty, error)
	Snapshot(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Finalize(ctx context.Context, in *empty.Empty, opts ...grpc.CallOption) (*empty.Empty, error)
}

type communicatorClient struct {
	cc grpc.ClientConnInterface
}

func NewCommunicatorClient(cc grpc.ClientConnInterface) CommunicatorClient {
	return &communicatorClient{cc}
}

func (c *communicatorClient) Stats(ctx context.Context, in *empty.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Communicator_Stats_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *communicatorClient) Resize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*empty.Empty, error) {
	out := new(empty.Empty)
	if err := c.cc.Invoke(ctx, Communicator_Resize_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *communicatorClient) Dolly(ctx context.Context, in *wrapperspb.DoubleValue, opts ...grpc.CallOption) (*empty.Empty, error) {
	out := new(empty.Empty)
	if err := c.cc.Invoke(ctx, Communicator_Dolly_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *communicatorClient) IncPerformanceIndex(ctx context.Context, in *wrapperspb.Int32Value, opts ...grpc.CallOption) (*empty.Empty, error) {
	out := new(empty.Empty)
	if err := c.cc.Invoke(ctx, Communicator_IncPerformanceIndex_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *communicatorClient) DecPerformanceIndex(ctx context.Context, in *wrapperspb.Int32Value, opts ...grpc.CallOption) (*empty.Empty, error) {
	out := new(empty.Empty)
	if err := c.cc.Invoke(ctx, Communicator_DecPerformanceIndex_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *communicatorClient) RestartProfiling(ctx context.Context, in *empty.Empty, opts ...grpc.CallOption) (*empty.Empty, error) {
	out := new(empty.Empty)
	if err := c.cc.Invoke(ctx, Communicator_RestartProfiling_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *communicatorClient) Snapshot(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, Communicator_Snapshot_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *communicatorClient) Finalize(ctx context.Context, in *empty.Empty, opts ...grpc.CallOption) (*empty.Empty, error) {
	out := new(empty.Empty)
	if err := c.cc.Invoke(ctx, Communicator_Finalize_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// CommunicatorServer is the server API for Communicator service.
// All implementations must embed UnimplementedCommunicatorServer
// for forward compatibility
type CommunicatorServer interface {
	Stats(context.Context, *empty.Empty) (*structpb.Struct, error)
	Resize(context.Context, *structpb.Struct) (*empty.Empty, error)
	Dolly(context.Context, *wrapperspb.DoubleValue) (*empty.Empty, error)
	IncPerformanceIndex(context.Context, *wrapperspb.Int32Value) (*empty.Empty, error)
	DecPerformanceIndex(context.Context, *wrapperspb.Int32Value) (*empty.Empty, error)
	RestartProfiling(context.Context, *empty.Empty) (*empty.Empty, error)
	Snapshot(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Finalize(context.Context, *empty.Empty) (*empty.Empty, error)
	mustEmbedUnimplementedCommunicatorServer()
}

// UnimplementedCommunicatorServer must be embedded to have forward compatible implementations.
type UnimplementedCommunicatorServer struct {
}

func (UnimplementedCommunicatorServer) Stats(context.Context, *empty.Empty) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Stats not implemented")
}
func (UnimplementedCommunicatorServer) Resize(context.Context, *structpb.Struct) (*empty.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Resize not implemented")
}
func (UnimplementedCommunicatorServer) Dolly(context.Context, *wrapperspb.DoubleValue) (*empty.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Dolly not implemented")
}
func (UnimplementedCommunicatorServer) IncPerformanceIndex(context.Context, *wrapperspb.Int32Value) (*empty.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method IncPerformanceIndex not implemented")
}
func (UnimplementedCommunicatorServer) DecPerformanceIndex(context.Context, *wrapperspb.Int32Value) (*empty.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DecPerformanceIndex not implemented")
}
func (UnimplementedCommunicatorServer) RestartProfiling(context.Context, *empty.Empty) (*empty.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RestartProfiling not implemented")
}
func (UnimplementedCommunicatorServer) Snapshot(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Snapshot not implemented")
}
func (UnimplementedCommunicatorServer) Finalize(context.Context, *empty.Empty) (*empty.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Finalize not implemented")
}
func (UnimplementedCommunicatorServer) mustEmbedUnimplementedCommunicatorServer() {}

// RegisterCommunicatorServer registers the given implementation on the server.
func RegisterCommunicatorServer(s grpc.ServiceRegistrar, srv CommunicatorServer) {
	s.RegisterService(&Communicator_ServiceDesc, srv)
}

// unaryHandler adapts a typed server method to a grpc.MethodDesc handler.
func unaryHandler[In, Out any, PIn interface{ *In }](method string, call func(CommunicatorServer, context.Context, PIn) (Out, error)) grpc.MethodDesc {
	name := method[len("/flatray.Communicator/"):]
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := PIn(new(In))
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CommunicatorServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: method,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(CommunicatorServer), ctx, req.(PIn))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Communicator_ServiceDesc is the grpc.ServiceDesc for Communicator service.
var Communicator_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "flatray.Communicator",
	HandlerType: (*CommunicatorServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(Communicator_Stats_FullMethodName, CommunicatorServer.Stats),
		unaryHandler(Communicator_Resize_FullMethodName, CommunicatorServer.Resize),
		unaryHandler(Communicator_Dolly_FullMethodName, CommunicatorServer.Dolly),
		unaryHandler(Communicator_IncPerformanceIndex_FullMethodName, CommunicatorServer.IncPerformanceIndex),
		unaryHandler(Communicator_DecPerformanceIndex_FullMethodName, CommunicatorServer.DecPerformanceIndex),
		unaryHandler(Communicator_RestartProfiling_FullMethodName, CommunicatorServer.RestartProfiling),
		unaryHandler(Communicator_Snapshot_FullMethodName, CommunicatorServer.Snapshot),
		unaryHandler(Communicator_Finalize_FullMethodName, CommunicatorServer.Finalize),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "communicator.proto",
}
