package tracking_api

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/BearBump/CrewTrack/internal/auth"
	"github.com/BearBump/CrewTrack/internal/broker/messages"
	"github.com/BearBump/CrewTrack/internal/models"
	"github.com/BearBump/CrewTrack/internal/services/checkpoints"
	"github.com/BearBump/CrewTrack/internal/services/live"
	"github.com/BearBump/CrewTrack/internal/services/locations"
)

type fakeJobs struct{ jobs map[string]*models.Job }

func (f *fakeJobs) Get(_ context.Context, id string) (*models.Job, error) {
	if j, ok := f.jobs[id]; ok {
		return j, nil
	}
	return nil, models.ErrNotFound
}

type fakeCheckpoints struct {
	got checkpoints.AdvanceInput
	err error
}

func (f *fakeCheckpoints) Advance(_ context.Context, in checkpoints.AdvanceInput) (*checkpoints.AdvanceResult, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	rec := models.CheckpointRecord{Status: in.Status, Timestamp: time.Now().UTC()}
	return &checkpoints.AdvanceResult{
		Session: &models.TrackingSession{
			ID: "sess-1", JobID: in.JobID, JobType: in.JobType, IsActive: true,
			Checkpoints: []models.CheckpointRecord{rec},
		},
		Checkpoint: rec,
		Applied:    true,
		Started:    true,
	}, nil
}

type fakeLocations struct{ got []locations.IngestInput }

func (f *fakeLocations) Ingest(_ context.Context, in locations.IngestInput) error {
	f.got = append(f.got, in)
	return nil
}

type fakeSnapshots struct{}

func (fakeSnapshots) GetSnapshot(_ context.Context, jobID string) (*models.LiveSnapshot, error) {
	return &models.LiveSnapshot{JobID: jobID, JobType: models.JobTypeMove}, nil
}

type fakeSignOffs struct{ submitted int }

func (f *fakeSignOffs) Submit(_ context.Context, in models.SignOffInput) (*models.ClientSignOff, error) {
	f.submitted++
	if f.submitted > 1 {
		return nil, models.ErrAlreadySigned
	}
	return &models.ClientSignOff{ID: "so-1", JobID: in.JobID, JobType: in.JobType, SignerName: in.SignerName}, nil
}

func (f *fakeSignOffs) Get(_ context.Context, jobID string, jobType models.JobType) (*models.ClientSignOff, error) {
	return nil, models.ErrNotFound
}

type env struct {
	authn *auth.Authenticator
	hub   *live.Hub
	cps   *fakeCheckpoints
	locs  *fakeLocations
	conn  *grpc.ClientConn
}

func setup(t *testing.T) *env {
	t.Helper()
	authn, err := auth.New("grpc-secret", "crewtrack")
	require.NoError(t, err)

	team := "team-a"
	e := &env{
		authn: authn,
		hub:   live.NewHub(8),
		cps:   &fakeCheckpoints{},
		locs:  &fakeLocations{},
	}
	jobs := &fakeJobs{jobs: map[string]*models.Job{
		"job-1": {ID: "job-1", Type: models.JobTypeMove, CrewTeamID: &team},
	}}
	api := New(jobs, e.cps, e.locs, fakeSnapshots{}, e.hub, &fakeSignOffs{})

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(authn, api)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	e.conn = conn
	return e
}

func (e *env) creds(t *testing.T, id auth.Identity) grpc.CallOption {
	t.Helper()
	tok, err := e.authn.Issue(id, time.Hour)
	require.NoError(t, err)
	return grpc.PerRPCCredentials(auth.PerRPCToken{Token: tok, Insecure: true})
}

func TestAdvanceCheckpoint_CrewTeamFromToken(t *testing.T) {
	e := setup(t)
	c := NewClient(e.conn)

	resp, err := c.AdvanceCheckpoint(context.Background(), &AdvanceCheckpointRequest{
		JobID: "job-1", JobType: models.JobTypeMove, Status: models.CheckpointEnRouteToPickup,
	}, e.creds(t, auth.Identity{Subject: "c1", Role: auth.RoleCrew, TeamID: "team-a"}))
	require.NoError(t, err)
	require.True(t, resp.Started)
	require.Equal(t, models.CheckpointArrivedAtPickup, resp.AllowedNext)
	require.NotNil(t, e.cps.got.CrewTeamID)
	require.Equal(t, "team-a", *e.cps.got.CrewTeamID)
}

func TestAdvanceCheckpoint_ErrorCodes(t *testing.T) {
	e := setup(t)
	c := NewClient(e.conn)
	admin := e.creds(t, auth.Identity{Subject: "ops", Role: auth.RoleAdmin})

	cases := map[error]codes.Code{
		models.ErrInvalidTransition:     codes.FailedPrecondition,
		models.ErrSessionClosed:         codes.FailedPrecondition,
		models.ErrConflict:              codes.Aborted,
		models.ErrNotFound:              codes.NotFound,
		models.Invalid("status", "bad"): codes.InvalidArgument,
		models.ErrForbidden:             codes.PermissionDenied,
	}
	for in, want := range cases {
		e.cps.err = in
		_, err := c.AdvanceCheckpoint(context.Background(), &AdvanceCheckpointRequest{SessionID: "s", Status: "loading"}, admin)
		require.Equal(t, want, status.Code(err), in.Error())
	}
}

func TestUnauthenticatedAndBadToken(t *testing.T) {
	e := setup(t)
	c := NewClient(e.conn)

	_, err := c.AdvanceCheckpoint(context.Background(), &AdvanceCheckpointRequest{SessionID: "s", Status: "loading"})
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = c.GetSnapshot(context.Background(), "job-1",
		grpc.PerRPCCredentials(auth.PerRPCToken{Token: "nope", Insecure: true}))
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestIngestLocation_ClientForbidden(t *testing.T) {
	e := setup(t)
	c := NewClient(e.conn)

	tok, err := e.authn.IssueTrackingToken("job-1", models.JobTypeMove, time.Hour)
	require.NoError(t, err)
	err = c.IngestLocation(context.Background(), &IngestLocationRequest{SessionID: "s", Lat: 1, Lng: 2},
		grpc.PerRPCCredentials(auth.PerRPCToken{Token: tok, Insecure: true}))
	require.Equal(t, codes.PermissionDenied, status.Code(err))
	require.Empty(t, e.locs.got)
}

func TestWatchJob_StreamsHubEvents(t *testing.T) {
	e := setup(t)
	c := NewClient(e.conn)

	tok, err := e.authn.IssueTrackingToken("job-1", models.JobTypeMove, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	w, err := c.WatchJob(ctx, "job-1", grpc.PerRPCCredentials(auth.PerRPCToken{Token: tok, Insecure: true}))
	require.NoError(t, err)

	// the server subscribes asynchronously; publish until the event lands
	received := make(chan *messages.LiveEvent, 1)
	go func() {
		ev, err := w.Recv()
		if err == nil {
			received <- ev
		}
	}()
	ts := time.Now().UTC()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case ev := <-received:
			require.Equal(t, messages.KindLocation, ev.Kind)
			require.Equal(t, "job-1", ev.JobID)
			return
		case <-tick.C:
			ts = ts.Add(time.Second)
			_ = e.hub.Publish(context.Background(),
				messages.LocationEvent("job-1", models.JobTypeMove, "sess-1", 52.1, 4.3, ts))
		case <-ctx.Done():
			t.Fatal("no event received")
		}
	}
}

func TestWatchJob_OtherClientForbidden(t *testing.T) {
	e := setup(t)
	c := NewClient(e.conn)

	tok, err := e.authn.IssueTrackingToken("job-2", models.JobTypeMove, time.Hour)
	require.NoError(t, err)
	w, err := c.WatchJob(context.Background(), "job-1", grpc.PerRPCCredentials(auth.PerRPCToken{Token: tok, Insecure: true}))
	require.NoError(t, err)
	_, err = w.Recv()
	require.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestSubmitSignOff_DuplicateIsAlreadyExists(t *testing.T) {
	e := setup(t)
	c := NewClient(e.conn)

	tok, err := e.authn.IssueTrackingToken("job-1", models.JobTypeMove, time.Hour)
	require.NoError(t, err)
	creds := grpc.PerRPCCredentials(auth.PerRPCToken{Token: tok, Insecure: true})
	req := &SubmitSignOffRequest{JobID: "job-1", JobType: models.JobTypeMove, SignerName: "Ann", Signature: "x"}

	so, err := c.SubmitSignOff(context.Background(), req, creds)
	require.NoError(t, err)
	require.Equal(t, "so-1", so.ID)

	_, err = c.SubmitSignOff(context.Background(), req, creds)
	require.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = c.GetSignOff(context.Background(), &GetSignOffRequest{JobID: "job-1", JobType: models.JobTypeMove}, creds)
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	icpt := LoggingInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: methodGetSnapshot}

	resp, err := icpt(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", resp)

	_, err = icpt(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "nope")
	})
	require.Equal(t, codes.NotFound, status.Code(err))
}
