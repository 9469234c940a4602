package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/BearBump/CrewTrack/internal/models"
	"github.com/BearBump/CrewTrack/internal/services/checkpoints"
	"github.com/BearBump/CrewTrack/internal/services/locations"
	"github.com/BearBump/CrewTrack/internal/services/signoff"
)

type MockJobs struct {
	mock.Mock
}

func (m *MockJobs) Create(ctx context.Context, in models.JobCreateInput) (*models.Job, error) {
	args := m.Called(ctx, in)
	return ptr[models.Job](args.Get(0)), args.Error(1)
}

func (m *MockJobs) Get(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)
	return ptr[models.Job](args.Get(0)), args.Error(1)
}

func (m *MockJobs) Cancel(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)
	return ptr[models.Job](args.Get(0)), args.Error(1)
}

func (m *MockJobs) Activity(ctx context.Context, jobID string, limit int) ([]models.ActivityEntry, error) {
	args := m.Called(ctx, jobID, limit)
	return slice[models.ActivityEntry](args.Get(0)), args.Error(1)
}

type MockCheckpoints struct {
	mock.Mock
}

func (m *MockCheckpoints) Advance(ctx context.Context, in checkpoints.AdvanceInput) (*checkpoints.AdvanceResult, error) {
	args := m.Called(ctx, in)
	return ptr[checkpoints.AdvanceResult](args.Get(0)), args.Error(1)
}

func (m *MockCheckpoints) GetSession(ctx context.Context, id string) (*models.TrackingSession, error) {
	args := m.Called(ctx, id)
	return ptr[models.TrackingSession](args.Get(0)), args.Error(1)
}

type MockLocations struct {
	mock.Mock
}

func (m *MockLocations) Ingest(ctx context.Context, in locations.IngestInput) error {
	return m.Called(ctx, in).Error(0)
}

func (m *MockLocations) Summary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	args := m.Called(ctx, sessionID)
	return ptr[models.SessionSummary](args.Get(0)), args.Error(1)
}

type MockLive struct {
	mock.Mock
}

func (m *MockLive) GetSnapshot(ctx context.Context, jobID string) (*models.LiveSnapshot, error) {
	args := m.Called(ctx, jobID)
	return ptr[models.LiveSnapshot](args.Get(0)), args.Error(1)
}

func (m *MockLive) GetSnapshots(ctx context.Context, ids []string) ([]*models.LiveSnapshot, error) {
	args := m.Called(ctx, ids)
	return slice[*models.LiveSnapshot](args.Get(0)), args.Error(1)
}

func (m *MockLive) ListActive(ctx context.Context) ([]*models.LiveSnapshot, error) {
	args := m.Called(ctx)
	return slice[*models.LiveSnapshot](args.Get(0)), args.Error(1)
}

type MockSignOffs struct {
	mock.Mock
}

func (m *MockSignOffs) Submit(ctx context.Context, in models.SignOffInput) (*models.ClientSignOff, error) {
	args := m.Called(ctx, in)
	return ptr[models.ClientSignOff](args.Get(0)), args.Error(1)
}

func (m *MockSignOffs) Get(ctx context.Context, jobID string, jobType models.JobType) (*models.ClientSignOff, error) {
	args := m.Called(ctx, jobID, jobType)
	return ptr[models.ClientSignOff](args.Get(0)), args.Error(1)
}

func (m *MockSignOffs) ReportIncident(ctx context.Context, in signoff.IncidentInput) (*models.Incident, error) {
	args := m.Called(ctx, in)
	return ptr[models.Incident](args.Get(0)), args.Error(1)
}

func (m *MockSignOffs) ListIncidents(ctx context.Context, jobID string, jobType models.JobType) ([]models.Incident, error) {
	args := m.Called(ctx, jobID, jobType)
	return slice[models.Incident](args.Get(0)), args.Error(1)
}

type MockPresigner struct {
	mock.Mock
}

func (m *MockPresigner) PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

func ptr[T any](v any) *T {
	if v == nil {
		return nil
	}
	return v.(*T)
}

func slice[T any](v any) []T {
	if v == nil {
		return nil
	}
	return v.([]T)
}
