package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/BearBump/CrewTrack/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetSession(ctx context.Context, id string) (*models.TrackingSession, error) {
	args := m.Called(ctx, id)
	var s *models.TrackingSession
	if v := args.Get(0); v != nil {
		s = v.(*models.TrackingSession)
	}
	return s, args.Error(1)
}

func (m *MockRepository) InsertLocation(ctx context.Context, u models.LocationUpdate) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockRepository) ListLocations(ctx context.Context, sessionID string) ([]models.LocationUpdate, error) {
	args := m.Called(ctx, sessionID)
	var out []models.LocationUpdate
	if v := args.Get(0); v != nil {
		out = v.([]models.LocationUpdate)
	}
	return out, args.Error(1)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) AllowPerMinute(ctx context.Context, key string, limit int64) (bool, error) {
	args := m.Called(ctx, key, limit)
	return args.Bool(0), args.Error(1)
}
