package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/BearBump/CrewTrack/internal/models"
	"github.com/BearBump/CrewTrack/internal/notify"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetJob(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)
	var j *models.Job
	if v := args.Get(0); v != nil {
		j = v.(*models.Job)
	}
	return j, args.Error(1)
}

func (m *MockRepository) GetSignOff(ctx context.Context, jobID string, jobType models.JobType) (*models.ClientSignOff, error) {
	args := m.Called(ctx, jobID, jobType)
	var so *models.ClientSignOff
	if v := args.Get(0); v != nil {
		so = v.(*models.ClientSignOff)
	}
	return so, args.Error(1)
}

func (m *MockRepository) InsertSignOff(ctx context.Context, so *models.ClientSignOff) error {
	args := m.Called(ctx, so)
	return args.Error(0)
}

func (m *MockRepository) SetDiscrepancyFlags(ctx context.Context, id string, flags []string) error {
	args := m.Called(ctx, id, flags)
	return args.Error(0)
}

func (m *MockRepository) CreateIncident(ctx context.Context, in *models.Incident) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

func (m *MockRepository) ListIncidents(ctx context.Context, jobID string, jobType models.JobType) ([]models.Incident, error) {
	args := m.Called(ctx, jobID, jobType)
	var out []models.Incident
	if v := args.Get(0); v != nil {
		out = v.([]models.Incident)
	}
	return out, args.Error(1)
}

func (m *MockRepository) FinalizeJob(ctx context.Context, jobID string, status models.JobStatus, at time.Time) (string, error) {
	args := m.Called(ctx, jobID, status, at)
	return args.String(0), args.Error(1)
}

type MockArtifactStore struct {
	mock.Mock
}

func (m *MockArtifactStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockArtifactStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockSnapshotInvalidator struct {
	mock.Mock
}

func (m *MockSnapshotInvalidator) Invalidate(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

type MockEscalator struct {
	mock.Mock
}

func (m *MockEscalator) Escalated(ctx context.Context, p notify.EscalationPayload) {
	m.Called(ctx, p)
}
