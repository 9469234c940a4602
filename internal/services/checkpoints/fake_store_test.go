package checkpoints

import (
	"context"
	"sync"
	"time"

	"github.com/BearBump/CrewTrack/internal/broker/messages"
	"github.com/BearBump/CrewTrack/internal/models"
	"github.com/BearBump/CrewTrack/internal/storage/pgtracking"
)

// memStore mirrors the constraints of the Postgres store: one active session
// per job, dense checkpoint seq, closed sessions reject writes.
type memStore struct {
	mu       sync.Mutex
	jobs     map[string]*models.Job
	sessions map[string]*models.TrackingSession
	order    []string
	closes   int
}

func newMemStore(jobs ...*models.Job) *memStore {
	st := &memStore{jobs: map[string]*models.Job{}, sessions: map[string]*models.TrackingSession{}}
	for _, j := range jobs {
		st.jobs[j.ID] = j
	}
	return st
}

func cloneSession(s *models.TrackingSession) *models.TrackingSession {
	c := *s
	c.Checkpoints = append([]models.CheckpointRecord(nil), s.Checkpoints...)
	return &c
}

func (m *memStore) GetJob(_ context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *j
	return &c, nil
}

func (m *memStore) GetSession(_ context.Context, id string) (*models.TrackingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *memStore) GetActiveSession(_ context.Context, jobID string) (*models.TrackingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.JobID == jobID && s.IsActive {
			return cloneSession(s), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) GetLatestSession(_ context.Context, jobID string) (*models.TrackingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		if s := m.sessions[m.order[i]]; s.JobID == jobID {
			return cloneSession(s), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) CreateSession(_ context.Context, sess *models.TrackingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.JobID == sess.JobID && s.IsActive {
			return models.ErrSessionActive
		}
	}
	m.sessions[sess.ID] = cloneSession(sess)
	m.order = append(m.order, sess.ID)
	j := m.jobs[sess.JobID]
	j.Status = models.JobStatusInProgress
	stage := string(sess.Checkpoints[0].Status)
	j.Stage = &stage
	return nil
}

func (m *memStore) AppendCheckpoint(_ context.Context, a pgtracking.CheckpointAppend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[a.SessionID]
	if !ok {
		return models.ErrNotFound
	}
	if !s.IsActive {
		return models.ErrSessionClosed
	}
	if len(s.Checkpoints) != a.Seq {
		return models.ErrConflict
	}
	s.Checkpoints = append(s.Checkpoints, a.Record)
	j := m.jobs[a.JobID]
	stage := string(a.Record.Status)
	j.Stage = &stage
	if a.Close {
		s.IsActive = false
		at := a.Record.Timestamp
		s.CompletedAt = &at
		j.Status = a.JobStatus
		m.closes++
	}
	return nil
}

// finalize closes the active session without a checkpoint, as the sign-off
// path does through FinalizeJob.
func (m *memStore) finalize(jobID string, status models.JobStatus, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.JobID == jobID && s.IsActive {
			s.IsActive = false
			s.CompletedAt = &at
		}
	}
	m.jobs[jobID].Status = status
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []messages.LiveEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev messages.LiveEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []models.CheckpointTransition
}

func (n *recordingNotifier) CheckpointReached(_ context.Context, t models.CheckpointTransition) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, t)
}
