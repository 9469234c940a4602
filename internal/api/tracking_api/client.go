package tracking_api

import (
	"context"

	"google.golang.org/grpc"

	"github.com/BearBump/CrewTrack/internal/broker/messages"
	"github.com/BearBump/CrewTrack/internal/models"
)

// Client calls TrackingService over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *Client) AdvanceCheckpoint(ctx context.Context, in *AdvanceCheckpointRequest, opts ...grpc.CallOption) (*AdvanceCheckpointResponse, error) {
	out := new(AdvanceCheckpointResponse)
	if err := c.invoke(ctx, methodAdvanceCheckpoint, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) IngestLocation(ctx context.Context, in *IngestLocationRequest, opts ...grpc.CallOption) error {
	return c.invoke(ctx, methodIngestLocation, in, new(IngestLocationResponse), opts)
}

func (c *Client) GetSnapshot(ctx context.Context, jobID string, opts ...grpc.CallOption) (*models.LiveSnapshot, error) {
	out := new(models.LiveSnapshot)
	if err := c.invoke(ctx, methodGetSnapshot, &JobRequest{JobID: jobID}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SubmitSignOff(ctx context.Context, in *SubmitSignOffRequest, opts ...grpc.CallOption) (*models.ClientSignOff, error) {
	out := new(models.ClientSignOff)
	if err := c.invoke(ctx, methodSubmitSignOff, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetSignOff(ctx context.Context, in *GetSignOffRequest, opts ...grpc.CallOption) (*models.ClientSignOff, error) {
	out := new(models.ClientSignOff)
	if err := c.invoke(ctx, methodGetSignOff, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchJobClient yields live events until the server ends the stream or ctx
// is cancelled.
type WatchJobClient struct {
	stream grpc.ClientStream
}

func (w *WatchJobClient) Recv() (*messages.LiveEvent, error) {
	ev := new(messages.LiveEvent)
	if err := w.stream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (c *Client) WatchJob(ctx context.Context, jobID string, opts ...grpc.CallOption) (*WatchJobClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], methodWatchJob, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&JobRequest{JobID: jobID}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchJobClient{stream: stream}, nil
}
