// Copyright 2025 Tom Barlow
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

package grpc

import (
	"context"

	grpclib "google.golang.org/grpc"
)

// serviceDesc wires Service's methods into grpc's dispatch table directly,
// standing in for a protoc-generated _grpc.pb.go: the control plane has no
// upstream .proto schema to generate from, so the ServiceDesc is authored
// by hand against grpc's documented MethodDesc/StreamDesc contract, the
// same contract protoc-gen-go-grpc emits into.
const serviceName = "golem.workerexecutor.v1.WorkerExecutor"

var serviceDesc = grpclib.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Service)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "CreateWorker", Handler: createWorkerHandler},
		{MethodName: "GetWorker", Handler: getWorkerHandler},
		{MethodName: "DeleteWorker", Handler: deleteWorkerHandler},
		{MethodName: "Invoke", Handler: invokeHandler},
		{MethodName: "InvokeAndAwait", Handler: invokeAndAwaitHandler},
		{MethodName: "Interrupt", Handler: interruptHandler},
		{MethodName: "Resume", Handler: resumeHandler},
		{MethodName: "ListDirectory", Handler: listDirectoryHandler},
		{MethodName: "GetFileContents", Handler: getFileContentsHandler},
		{MethodName: "GetOplog", Handler: getOplogHandler},
	},
	Streams: []grpclib.StreamDesc{
		{StreamName: "Connect", Handler: connectHandler, ServerStreams: true},
	},
	Metadata: "golem/workerexecutor/v1/worker_executor.proto",
}

func unaryHandler[Req, Resp any](call func(*Service, context.Context, *Req) (*Resp, error)) grpclib.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		svc := srv.(*Service)
		if interceptor == nil {
			return call(svc, ctx, req)
		}
		info := &grpclib.UnaryServerInfo{Server: svc, FullMethod: serviceName}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(svc, ctx, req.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

var createWorkerHandler = unaryHandler((*Service).CreateWorker)
var getWorkerHandler = unaryHandler((*Service).GetWorker)
var deleteWorkerHandler = unaryHandler((*Service).DeleteWorker)
var invokeHandler = unaryHandler((*Service).Invoke)
var invokeAndAwaitHandler = unaryHandler((*Service).InvokeAndAwait)
var interruptHandler = unaryHandler((*Service).Interrupt)
var resumeHandler = unaryHandler((*Service).Resume)
var listDirectoryHandler = unaryHandler((*Service).ListDirectory)
var getFileContentsHandler = unaryHandler((*Service).GetFileContents)
var getOplogHandler = unaryHandler((*Service).GetOplog)

// connectHandler adapts grpc's raw ServerStream into the narrow
// connectStream interface Service.Connect depends on, so that interface can
// be faked in tests without a live grpc.Server.
func connectHandler(srv interface{}, stream grpclib.ServerStream) error {
	req := new(ConnectRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(*Service).Connect(req, grpcConnectStream{stream})
}

type grpcConnectStream struct {
	grpclib.ServerStream
}

func (s grpcConnectStream) Send(frame *ConnectFrame) error {
	return s.SendMsg(frame)
}
