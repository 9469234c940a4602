package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/BearBump/CrewTrack/internal/models"
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

func (m *MockRepository) GetJobsByIDs(ctx context.Context, ids []string) ([]*models.Job, error) {
	args := m.Called(ctx, ids)
	var out []*models.Job
	if v := args.Get(0); v != nil {
		out = v.([]*models.Job)
	}
	return out, args.Error(1)
}

func (m *MockRepository) GetLatestSession(ctx context.Context, jobID string) (*models.TrackingSession, error) {
	args := m.Called(ctx, jobID)
	var s *models.TrackingSession
	if v := args.Get(0); v != nil {
		s = v.(*models.TrackingSession)
	}
	return s, args.Error(1)
}

func (m *MockRepository) LatestLocation(ctx context.Context, sessionID string) (*models.LocationUpdate, error) {
	args := m.Called(ctx, sessionID)
	var u *models.LocationUpdate
	if v := args.Get(0); v != nil {
		u = v.(*models.LocationUpdate)
	}
	return u, args.Error(1)
}

func (m *MockRepository) ListActiveSessions(ctx context.Context) ([]*models.TrackingSession, error) {
	args := m.Called(ctx)
	var out []*models.TrackingSession
	if v := args.Get(0); v != nil {
		out = v.([]*models.TrackingSession)
	}
	return out, args.Error(1)
}
