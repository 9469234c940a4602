package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/BearBump/CrewTrack/internal/models"
	"github.com/BearBump/CrewTrack/internal/storage/pgtracking"
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

func (m *MockRepository) GetSession(ctx context.Context, id string) (*models.TrackingSession, error) {
	return m.session(m.Called(ctx, id))
}

func (m *MockRepository) GetActiveSession(ctx context.Context, jobID string) (*models.TrackingSession, error) {
	return m.session(m.Called(ctx, jobID))
}

func (m *MockRepository) GetLatestSession(ctx context.Context, jobID string) (*models.TrackingSession, error) {
	return m.session(m.Called(ctx, jobID))
}

func (m *MockRepository) CreateSession(ctx context.Context, sess *models.TrackingSession) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *MockRepository) AppendCheckpoint(ctx context.Context, a pgtracking.CheckpointAppend) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockRepository) session(args mock.Arguments) (*models.TrackingSession, error) {
	var s *models.TrackingSession
	if v := args.Get(0); v != nil {
		s = v.(*models.TrackingSession)
	}
	return s, args.Error(1)
}
