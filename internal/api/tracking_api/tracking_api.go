package tracking_api

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/BearBump/CrewTrack/internal/auth"
	"github.com/BearBump/CrewTrack/internal/models"
	"github.com/BearBump/CrewTrack/internal/services/checkpoints"
	"github.com/BearBump/CrewTrack/internal/services/live"
	"github.com/BearBump/CrewTrack/internal/services/locations"
)

type JobReader interface {
	Get(ctx context.Context, id string) (*models.Job, error)
}

type CheckpointService interface {
	Advance(ctx context.Context, in checkpoints.AdvanceInput) (*checkpoints.AdvanceResult, error)
}

type LocationService interface {
	Ingest(ctx context.Context, in locations.IngestInput) error
}

type SnapshotReader interface {
	GetSnapshot(ctx context.Context, jobID string) (*models.LiveSnapshot, error)
}

type StreamSource interface {
	Subscribe(jobID string) *live.Subscription
}

type SignOffService interface {
	Submit(ctx context.Context, in models.SignOffInput) (*models.ClientSignOff, error)
	Get(ctx context.Context, jobID string, jobType models.JobType) (*models.ClientSignOff, error)
}

// TrackingAPI is the crew-device and observer surface over gRPC.
type TrackingAPI struct {
	jobs        JobReader
	checkpoints CheckpointService
	locations   LocationService
	snapshots   SnapshotReader
	stream      StreamSource
	signoffs    SignOffService
}

func New(jobs JobReader, cps CheckpointService, locs LocationService, snaps SnapshotReader, stream StreamSource, signoffs SignOffService) *TrackingAPI {
	return &TrackingAPI{
		jobs:        jobs,
		checkpoints: cps,
		locations:   locs,
		snapshots:   snaps,
		stream:      stream,
		signoffs:    signoffs,
	}
}

// NewServer builds a gRPC server with tracing, failure logging and
// bearer-token auth, and registers api on it.
func NewServer(a *auth.Authenticator, api *TrackingAPI) *grpc.Server {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(LoggingInterceptor(), auth.UnaryServerInterceptor(a)),
		grpc.ChainStreamInterceptor(auth.StreamServerInterceptor(a)),
	)
	RegisterTrackingServer(s, api)
	return s
}

func crewOrAdmin(ctx context.Context) (*auth.Identity, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	if id.Role != auth.RoleAdmin && id.Role != auth.RoleCrew {
		return nil, models.ErrForbidden
	}
	return id, nil
}

func (a *TrackingAPI) AdvanceCheckpoint(ctx context.Context, req *AdvanceCheckpointRequest) (*AdvanceCheckpointResponse, error) {
	id, err := crewOrAdmin(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	in := checkpoints.AdvanceInput{
		SessionID:  req.SessionID,
		JobID:      req.JobID,
		JobType:    req.JobType,
		Status:     req.Status,
		Lat:        req.Lat,
		Lng:        req.Lng,
		Note:       req.Note,
		CrewTeamID: id.CrewTeam(),
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}
	res, err := a.checkpoints.Advance(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &AdvanceCheckpointResponse{
		Session:    res.Session,
		Checkpoint: res.Checkpoint,
		Applied:    res.Applied,
		Started:    res.Started,
	}
	if res.Session != nil {
		if next, ok := res.Session.AllowedNext(); ok {
			out.AllowedNext = next
		}
	}
	return out, nil
}

func (a *TrackingAPI) IngestLocation(ctx context.Context, req *IngestLocationRequest) (*IngestLocationResponse, error) {
	id, err := crewOrAdmin(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	in := locations.IngestInput{
		SessionID:  req.SessionID,
		Lat:        req.Lat,
		Lng:        req.Lng,
		CrewTeamID: id.CrewTeam(),
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}
	if err := a.locations.Ingest(ctx, in); err != nil {
		return nil, toStatus(err)
	}
	return &IngestLocationResponse{}, nil
}

func (a *TrackingAPI) readable(ctx context.Context, jobID string) (*models.Job, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	job, err := a.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !id.CanRead(job) {
		return nil, models.ErrForbidden
	}
	return job, nil
}

func (a *TrackingAPI) GetSnapshot(ctx context.Context, req *JobRequest) (*models.LiveSnapshot, error) {
	job, err := a.readable(ctx, req.JobID)
	if err != nil {
		return nil, toStatus(err)
	}
	snap, err := a.snapshots.GetSnapshot(ctx, job.ID)
	return snap, toStatus(err)
}

// WatchJob streams live events for one job until the client goes away or the
// subscription is evicted for falling behind.
func (a *TrackingAPI) WatchJob(req *JobRequest, stream WatchJobStream) error {
	ctx := stream.Context()
	job, err := a.readable(ctx, req.JobID)
	if err != nil {
		return toStatus(err)
	}
	sub := a.stream.Subscribe(job.ID)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := stream.Send(&ev); err != nil {
				return err
			}
		}
	}
}

func (a *TrackingAPI) SubmitSignOff(ctx context.Context, req *SubmitSignOffRequest) (*models.ClientSignOff, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return nil, toStatus(auth.ErrUnauthenticated)
	}
	if !id.CanSignOff(req.JobID, req.JobType) {
		return nil, toStatus(models.ErrForbidden)
	}
	so, err := a.signoffs.Submit(ctx, models.SignOffInput{
		JobID:          req.JobID,
		JobType:        req.JobType,
		SignerName:     req.SignerName,
		Signature:      req.Signature,
		SignedLocation: req.SignedLocation,
		Attestations:   req.Attestations,
	})
	return so, toStatus(err)
}

func (a *TrackingAPI) GetSignOff(ctx context.Context, req *GetSignOffRequest) (*models.ClientSignOff, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return nil, toStatus(auth.ErrUnauthenticated)
	}
	if !id.CanSignOff(req.JobID, req.JobType) {
		return nil, toStatus(models.ErrForbidden)
	}
	so, err := a.signoffs.Get(ctx, req.JobID, req.JobType)
	return so, toStatus(err)
}

var _ TrackingServer = (*TrackingAPI)(nil)
