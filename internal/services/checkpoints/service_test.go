package checkpoints

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/CrewTrack/internal/models"
)

var t0 = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func moveJob(id string) *models.Job {
	team := "team-1"
	return &models.Job{ID: id, Type: models.JobTypeMove, Status: models.JobStatusScheduled, CrewTeamID: &team}
}

func newService(st *memStore) (*Service, *recordingPublisher, *recordingNotifier) {
	pub := &recordingPublisher{}
	n := &recordingNotifier{}
	svc := New(st, pub, n)
	var mu sync.Mutex
	clock := t0
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, pub, n
}

func byJob(jobID string, c models.Checkpoint) AdvanceInput {
	return AdvanceInput{JobID: jobID, JobType: models.JobTypeMove, Status: c}
}

func TestAdvance_FullMoveSequence(t *testing.T) {
	st := newMemStore(moveJob("j1"))
	svc, pub, n := newService(st)
	ctx := context.Background()

	seq := models.Sequence(models.JobTypeMove)
	res, err := svc.Advance(ctx, byJob("j1", seq[0]))
	require.NoError(t, err)
	require.True(t, res.Started)
	require.True(t, res.Applied)
	sessionID := res.Session.ID

	for _, c := range seq[1:] {
		res, err = svc.Advance(ctx, AdvanceInput{SessionID: sessionID, Status: c})
		require.NoError(t, err, c)
		require.True(t, res.Applied)
	}

	sess, err := svc.GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.False(t, sess.IsActive)
	require.NotNil(t, sess.CompletedAt)
	require.Len(t, sess.Checkpoints, len(seq))
	for i, c := range seq {
		require.Equal(t, c, sess.Checkpoints[i].Status)
		if i > 0 {
			require.False(t, sess.Checkpoints[i].Timestamp.Before(sess.Checkpoints[i-1].Timestamp))
		}
	}
	require.Equal(t, 1, st.closes)

	job, _ := st.GetJob(ctx, "j1")
	require.Equal(t, models.JobStatusCompleted, job.Status)
	require.Equal(t, string(models.CheckpointCompleted), *job.Stage)

	require.Len(t, pub.events, len(seq))
	require.True(t, pub.events[len(seq)-1].Terminal)
	require.Len(t, n.calls, len(seq))

	// retried completion is a no-op, anything else is rejected
	res, err = svc.Advance(ctx, AdvanceInput{SessionID: sessionID, Status: models.CheckpointCompleted})
	require.NoError(t, err)
	require.False(t, res.Applied)
	_, err = svc.Advance(ctx, AdvanceInput{SessionID: sessionID, Status: models.CheckpointUnloading})
	require.ErrorIs(t, err, models.ErrSessionClosed)
	_, err = svc.Advance(ctx, byJob("j1", models.CheckpointEnRouteToPickup))
	require.ErrorIs(t, err, models.ErrSessionClosed)
	res, err = svc.Advance(ctx, byJob("j1", models.CheckpointCompleted))
	require.NoError(t, err)
	require.False(t, res.Applied)

	require.Equal(t, 1, st.closes)
	require.Len(t, n.calls, len(seq))
}

func TestAdvance_FirstCheckpointMustBeInitial(t *testing.T) {
	st := newMemStore(moveJob("j1"))
	svc, pub, n := newService(st)

	_, err := svc.Advance(context.Background(), byJob("j1", models.CheckpointLoading))
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	require.Empty(t, st.sessions)
	require.Empty(t, pub.events)
	require.Empty(t, n.calls)
}

func TestAdvance_NoSkipNoBackward(t *testing.T) {
	st := newMemStore(moveJob("j1"))
	svc, _, _ := newService(st)
	ctx := context.Background()

	res, err := svc.Advance(ctx, byJob("j1", models.CheckpointEnRouteToPickup))
	require.NoError(t, err)
	id := res.Session.ID

	_, err = svc.Advance(ctx, AdvanceInput{SessionID: id, Status: models.CheckpointLoading})
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = svc.Advance(ctx, AdvanceInput{SessionID: id, Status: models.CheckpointArrivedAtPickup})
	require.NoError(t, err)
	_, err = svc.Advance(ctx, AdvanceInput{SessionID: id, Status: models.CheckpointEnRouteToPickup})
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	// delivery vocabulary is not valid on a move
	_, err = svc.Advance(ctx, AdvanceInput{SessionID: id, Status: models.CheckpointDelivering})
	require.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestAdvance_HeartbeatIsNoop(t *testing.T) {
	st := newMemStore(moveJob("j1"))
	svc, pub, n := newService(st)
	ctx := context.Background()

	res, err := svc.Advance(ctx, byJob("j1", models.CheckpointEnRouteToPickup))
	require.NoError(t, err)
	first := res.Checkpoint.Timestamp

	res, err = svc.Advance(ctx, AdvanceInput{SessionID: res.Session.ID, Status: models.CheckpointEnRouteToPickup, Timestamp: t0.Add(time.Hour)})
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.Equal(t, first, res.Checkpoint.Timestamp)
	require.Len(t, res.Session.Checkpoints, 1)
	require.Len(t, pub.events, 1)
	require.Len(t, n.calls, 1)
}

func TestAdvance_TimestampKeptMonotonic(t *testing.T) {
	st := newMemStore(moveJob("j1"))
	svc, _, _ := newService(st)
	ctx := context.Background()

	start := t0.Add(time.Hour)
	res, err := svc.Advance(ctx, AdvanceInput{JobID: "j1", JobType: models.JobTypeMove, Status: models.CheckpointEnRouteToPickup, Timestamp: start})
	require.NoError(t, err)
	require.Equal(t, start, res.Session.StartedAt)

	res, err = svc.Advance(ctx, AdvanceInput{SessionID: res.Session.ID, Status: models.CheckpointArrivedAtPickup, Timestamp: t0})
	require.NoError(t, err)
	require.Equal(t, start, res.Checkpoint.Timestamp)
}

func TestAdvance_DeliveryCompletesAsDelivered(t *testing.T) {
	j := &models.Job{ID: "d1", Type: models.JobTypeDelivery, Status: models.JobStatusScheduled}
	st := newMemStore(j)
	svc, _, _ := newService(st)
	ctx := context.Background()

	for _, c := range models.Sequence(models.JobTypeDelivery) {
		_, err := svc.Advance(ctx, AdvanceInput{JobID: "d1", JobType: models.JobTypeDelivery, Status: c})
		require.NoError(t, err, c)
	}
	job, _ := st.GetJob(ctx, "d1")
	require.Equal(t, models.JobStatusDelivered, job.Status)
}

func TestAdvance_CrewTeamMustMatch(t *testing.T) {
	st := newMemStore(moveJob("j1"))
	svc, _, _ := newService(st)

	other := "team-2"
	in := byJob("j1", models.CheckpointEnRouteToPickup)
	in.CrewTeamID = &other
	_, err := svc.Advance(context.Background(), in)
	require.ErrorIs(t, err, models.ErrForbidden)

	mine := "team-1"
	in.CrewTeamID = &mine
	_, err = svc.Advance(context.Background(), in)
	require.NoError(t, err)
}

func TestAdvance_CancelledAndFinishedJobs(t *testing.T) {
	cancelled := moveJob("c1")
	cancelled.Status = models.JobStatusCancelled
	done := moveJob("d1")
	done.Status = models.JobStatusCompleted
	st := newMemStore(cancelled, done)
	svc, _, _ := newService(st)

	_, err := svc.Advance(context.Background(), byJob("c1", models.CheckpointEnRouteToPickup))
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = svc.Advance(context.Background(), byJob("d1", models.CheckpointEnRouteToPickup))
	require.ErrorIs(t, err, models.ErrSessionClosed)
}

func TestAdvance_CompletedAfterSignOffClosedSession(t *testing.T) {
	for _, addressed := range []string{"session", "job"} {
		t.Run(addressed, func(t *testing.T) {
			st := newMemStore(moveJob("j1"))
			svc, pub, n := newService(st)
			ctx := context.Background()

			seq := models.Sequence(models.JobTypeMove)
			res, err := svc.Advance(ctx, byJob("j1", seq[0]))
			require.NoError(t, err)
			sessionID := res.Session.ID
			for _, c := range seq[1 : len(seq)-1] {
				_, err = svc.Advance(ctx, AdvanceInput{SessionID: sessionID, Status: c})
				require.NoError(t, err, c)
			}
			st.finalize("j1", models.JobStatusCompleted, t0.Add(time.Hour))
			events, calls := len(pub.events), len(n.calls)

			in := byJob("j1", models.CheckpointCompleted)
			if addressed == "session" {
				in = AdvanceInput{SessionID: sessionID, Status: models.CheckpointCompleted}
			}
			res, err = svc.Advance(ctx, in)
			require.NoError(t, err)
			require.False(t, res.Applied)
			require.Equal(t, models.CheckpointUnloading, res.Checkpoint.Status)
			require.Len(t, pub.events, events)
			require.Len(t, n.calls, calls)

			// the closed session still rejects anything but completion
			_, err = svc.Advance(ctx, AdvanceInput{SessionID: sessionID, Status: models.CheckpointUnloading})
			require.ErrorIs(t, err, models.ErrSessionClosed)
		})
	}
}

func TestAdvance_CompletedOnClosedSessionOfUnfinishedJob(t *testing.T) {
	st := newMemStore(moveJob("j1"))
	svc, _, _ := newService(st)
	ctx := context.Background()

	res, err := svc.Advance(ctx, byJob("j1", models.CheckpointEnRouteToPickup))
	require.NoError(t, err)
	st.finalize("j1", models.JobStatusInProgress, t0.Add(time.Hour))

	_, err = svc.Advance(ctx, AdvanceInput{SessionID: res.Session.ID, Status: models.CheckpointCompleted})
	require.ErrorIs(t, err, models.ErrSessionClosed)
}

func TestAdvance_Validation(t *testing.T) {
	svc, _, _ := newService(newMemStore(moveJob("j1")))
	ctx := context.Background()

	for _, in := range []AdvanceInput{
		{JobID: "j1", JobType: models.JobTypeMove},
		{Status: models.CheckpointLoading},
		{JobID: "j1", JobType: "truck", Status: models.CheckpointLoading},
		{JobID: "j1", JobType: models.JobTypeDelivery, Status: models.CheckpointEnRoute},
	} {
		_, err := svc.Advance(ctx, in)
		require.ErrorIs(t, err, models.ErrValidation)
	}

	_, err := svc.Advance(ctx, byJob("missing", models.CheckpointEnRouteToPickup))
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = svc.GetSession(ctx, "")
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestAdvance_SideEffectFailuresDoNotFailTransition(t *testing.T) {
	st := newMemStore(moveJob("j1"))
	svc, pub, _ := newService(st)
	pub.err = errors.New("redis down")

	res, err := svc.Advance(context.Background(), byJob("j1", models.CheckpointEnRouteToPickup))
	require.NoError(t, err)
	require.True(t, res.Applied)
}

func TestAdvance_ConcurrentDuplicatesYieldOneEntry(t *testing.T) {
	st := newMemStore(moveJob("j1"))
	svc, _, n := newService(st)
	ctx := context.Background()

	res, err := svc.Advance(ctx, byJob("j1", models.CheckpointEnRouteToPickup))
	require.NoError(t, err)
	id := res.Session.ID

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Advance(ctx, AdvanceInput{SessionID: id, Status: models.CheckpointArrivedAtPickup})
		}(i)
	}
	wg.Wait()
	for _, e := range errs {
		require.NoError(t, e)
	}

	sess, _ := st.GetSession(ctx, id)
	require.Len(t, sess.Checkpoints, 2)
	require.Len(t, n.calls, 2)
}

func TestAdvance_ConcurrentStartsYieldOneSession(t *testing.T) {
	st := newMemStore(moveJob("j1"))
	svc, _, _ := newService(st)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Advance(context.Background(), byJob("j1", models.CheckpointEnRouteToPickup))
		}(i)
	}
	wg.Wait()
	for _, e := range errs {
		require.NoError(t, e)
	}
	require.Len(t, st.sessions, 1)
}
