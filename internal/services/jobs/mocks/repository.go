package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/BearBump/CrewTrack/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateJob(ctx context.Context, in models.JobCreateInput) (*models.Job, error) {
	args := m.Called(ctx, in)
	return job(args.Get(0)), args.Error(1)
}

func (m *MockRepository) GetJob(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)
	return job(args.Get(0)), args.Error(1)
}

func (m *MockRepository) FinalizeJob(ctx context.Context, jobID string, status models.JobStatus, at time.Time) (string, error) {
	args := m.Called(ctx, jobID, status, at)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) ListActivity(ctx context.Context, jobID string, limit int) ([]models.ActivityEntry, error) {
	args := m.Called(ctx, jobID, limit)
	var out []models.ActivityEntry
	if v := args.Get(0); v != nil {
		out = v.([]models.ActivityEntry)
	}
	return out, args.Error(1)
}

func job(v any) *models.Job {
	if v == nil {
		return nil
	}
	return v.(*models.Job)
}
