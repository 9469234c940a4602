package warmer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/CrewTrack/internal/models"
)

type fakeRepo struct {
	mu       sync.Mutex
	calls    int
	sessions []*models.TrackingSession
	err      error
}

func (r *fakeRepo) ListActiveSessions(context.Context) ([]*models.TrackingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.sessions, r.err
}

func (r *fakeRepo) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeRebuilder struct {
	mu   sync.Mutex
	jobs []string
	fail map[string]bool
}

func (b *fakeRebuilder) Rebuild(_ context.Context, jobID string) (*models.LiveSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs = append(b.jobs, jobID)
	if b.fail[jobID] {
		return nil, errors.New("store down")
	}
	return &models.LiveSnapshot{JobID: jobID}, nil
}

func TestWarmer_runOnce_RebuildsEachJobOnce(t *testing.T) {
	repo := &fakeRepo{sessions: []*models.TrackingSession{
		{ID: "s1", JobID: "j1"}, {ID: "s2", JobID: "j2"}, {ID: "s3", JobID: "j1"}, {ID: "s4", JobID: "j3"},
	}}
	rb := &fakeRebuilder{fail: map[string]bool{"j3": true}}
	w := New(repo, rb).WithSettings(time.Hour, 2)

	w.runOnce(context.Background())

	require.ElementsMatch(t, []string{"j1", "j2", "j3"}, rb.jobs)
	st := w.Stats()
	require.Equal(t, int64(4), st.TotalScanned)
	require.Equal(t, int64(2), st.TotalRebuilt)
	require.Equal(t, int64(1), st.TotalErrors)
	require.Equal(t, int64(0), st.InFlight)
	require.Equal(t, "store down", st.LastError)
	require.NotNil(t, st.LastCycleAt)
}

func TestWarmer_runOnce_ListError(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}
	w := New(repo, &fakeRebuilder{})
	w.runOnce(context.Background())
	require.Equal(t, "db down", w.Stats().LastError)
}

func TestWarmer_Run_TriggerAndCancel(t *testing.T) {
	repo := &fakeRepo{}
	w := New(repo, &fakeRebuilder{}).WithSettings(time.Hour, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return repo.Calls() >= 1 }, time.Second, 5*time.Millisecond)
	w.Trigger()
	require.Eventually(t, func() bool { return repo.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	require.NotNil(t, w.Stats().LastTriggerAt)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestWarmer_WithSettingsIgnoresZero(t *testing.T) {
	w := New(nil, nil).WithSettings(0, 0)
	require.Equal(t, 15*time.Second, w.interval)
	require.Equal(t, 8, w.concurrency)
}
