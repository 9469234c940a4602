package tracking_api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/BearBump/CrewTrack/internal/broker/messages"
	"github.com/BearBump/CrewTrack/internal/models"
)

const ServiceName = "crewtrack.v1.TrackingService"

const (
	methodAdvanceCheckpoint = "/" + ServiceName + "/AdvanceCheckpoint"
	methodIngestLocation    = "/" + ServiceName + "/IngestLocation"
	methodGetSnapshot       = "/" + ServiceName + "/GetSnapshot"
	methodWatchJob          = "/" + ServiceName + "/WatchJob"
	methodSubmitSignOff     = "/" + ServiceName + "/SubmitSignOff"
	methodGetSignOff        = "/" + ServiceName + "/GetSignOff"
)

type TrackingServer interface {
	AdvanceCheckpoint(context.Context, *AdvanceCheckpointRequest) (*AdvanceCheckpointResponse, error)
	IngestLocation(context.Context, *IngestLocationRequest) (*IngestLocationResponse, error)
	GetSnapshot(context.Context, *JobRequest) (*models.LiveSnapshot, error)
	WatchJob(*JobRequest, WatchJobStream) error
	SubmitSignOff(context.Context, *SubmitSignOffRequest) (*models.ClientSignOff, error)
	GetSignOff(context.Context, *GetSignOffRequest) (*models.ClientSignOff, error)
}

type WatchJobStream interface {
	Send(*messages.LiveEvent) error
	Context() context.Context
}

type watchJobServerStream struct {
	grpc.ServerStream
}

func (s watchJobServerStream) Send(ev *messages.LiveEvent) error {
	return s.ServerStream.SendMsg(ev)
}

func RegisterTrackingServer(s grpc.ServiceRegistrar, srv TrackingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary[Req any, Resp any](method string, call func(TrackingServer, context.Context, *Req) (Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		if interceptor == nil {
			return call(srv.(TrackingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TrackingServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchJobHandler(srv any, stream grpc.ServerStream) error {
	in := new(JobRequest)
	if err := stream.RecvMsg(in); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return srv.(TrackingServer).WatchJob(in, watchJobServerStream{stream})
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TrackingServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "AdvanceCheckpoint",
			Handler: unary(methodAdvanceCheckpoint, func(s TrackingServer, ctx context.Context, in *AdvanceCheckpointRequest) (*AdvanceCheckpointResponse, error) {
				return s.AdvanceCheckpoint(ctx, in)
			}),
		},
		{
			MethodName: "IngestLocation",
			Handler: unary(methodIngestLocation, func(s TrackingServer, ctx context.Context, in *IngestLocationRequest) (*IngestLocationResponse, error) {
				return s.IngestLocation(ctx, in)
			}),
		},
		{
			MethodName: "GetSnapshot",
			Handler: unary(methodGetSnapshot, func(s TrackingServer, ctx context.Context, in *JobRequest) (*models.LiveSnapshot, error) {
				return s.GetSnapshot(ctx, in)
			}),
		},
		{
			MethodName: "SubmitSignOff",
			Handler: unary(methodSubmitSignOff, func(s TrackingServer, ctx context.Context, in *SubmitSignOffRequest) (*models.ClientSignOff, error) {
				return s.SubmitSignOff(ctx, in)
			}),
		},
		{
			MethodName: "GetSignOff",
			Handler: unary(methodGetSignOff, func(s TrackingServer, ctx context.Context, in *GetSignOffRequest) (*models.ClientSignOff, error) {
				return s.GetSignOff(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchJob",
			Handler:       watchJobHandler,
			ServerStreams: true,
		},
	},
	Metadata: "crewtrack/v1/tracking.json",
}
