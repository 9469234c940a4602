package mocks

import (
	"context"

	"github.com/hibiken/asynq"
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

func (m *MockRepository) InsertActivity(ctx context.Context, e models.ActivityEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Send(ctx context.Context, msg notify.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	var info *asynq.TaskInfo
	if v := args.Get(0); v != nil {
		info = v.(*asynq.TaskInfo)
	}
	return info, args.Error(1)
}
