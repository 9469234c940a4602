package live

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/internal/cache"
	"github.com/BearBump/CrewTrack/internal/models"
)

type Repository interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetJobsByIDs(ctx context.Context, ids []string) ([]*models.Job, error)
	GetLatestSession(ctx context.Context, jobID string) (*models.TrackingSession, error)
	LatestLocation(ctx context.Context, sessionID string) (*models.LocationUpdate, error)
	ListActiveSessions(ctx context.Context) ([]*models.TrackingSession, error)
}

// Service serves poll-mode snapshots: cache first, store on miss.
type Service struct {
	repo     Repository
	cache    cache.BytesCache
	ttl      time.Duration
	speedKmh float64
	now      func() time.Time
}

func New(repo Repository, c cache.BytesCache, ttl time.Duration, speedKmh float64) *Service {
	return &Service{
		repo:     repo,
		cache:    c,
		ttl:      ttl,
		speedKmh: speedKmh,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

func (s *Service) GetSnapshot(ctx context.Context, jobID string) (*models.LiveSnapshot, error) {
	if jobID == "" {
		return nil, models.Invalid("jobId", "is required")
	}
	out, err := s.GetSnapshots(ctx, []string{jobID})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, models.ErrNotFound
	}
	return out[0], nil
}

// GetSnapshots returns snapshots in the order of ids. Unknown ids are skipped.
func (s *Service) GetSnapshots(ctx context.Context, ids []string) ([]*models.LiveSnapshot, error) {
	if len(ids) == 0 {
		return []*models.LiveSnapshot{}, nil
	}

	got := make(map[string]*models.LiveSnapshot, len(ids))
	miss := make([]string, 0, len(ids))

	if s.cacheEnabled() {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = snapshotKey(id)
		}
		// a cache failure is a full miss
		cached, err := s.cache.MGet(ctx, keys)
		if err != nil {
			cached = nil
		}
		for i, id := range ids {
			b, ok := cached[keys[i]]
			if !ok {
				miss = append(miss, id)
				continue
			}
			var snap models.LiveSnapshot
			if json.Unmarshal(b, &snap) != nil {
				miss = append(miss, id)
				continue
			}
			got[id] = &snap
		}
	} else {
		miss = ids
	}

	if len(miss) > 0 {
		jobs, err := s.repo.GetJobsByIDs(ctx, miss)
		if err != nil {
			return nil, err
		}
		for _, j := range jobs {
			snap, err := s.build(ctx, j)
			if err != nil {
				return nil, err
			}
			s.store(ctx, snap)
			got[j.ID] = snap
		}
	}

	out := make([]*models.LiveSnapshot, 0, len(ids))
	for _, id := range ids {
		if snap, ok := got[id]; ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

// ListActive returns a snapshot for every job with an active session, for
// the dispatcher map view.
func (s *Service) ListActive(ctx context.Context) ([]*models.LiveSnapshot, error) {
	sessions, err := s.repo.ListActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(sessions))
	seen := make(map[string]struct{}, len(sessions))
	for _, sess := range sessions {
		if _, ok := seen[sess.JobID]; ok {
			continue
		}
		seen[sess.JobID] = struct{}{}
		ids = append(ids, sess.JobID)
	}
	return s.GetSnapshots(ctx, ids)
}

// Rebuild reloads the job's snapshot from the store and overwrites the cache.
func (s *Service) Rebuild(ctx context.Context, jobID string) (*models.LiveSnapshot, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	snap, err := s.build(ctx, job)
	if err != nil {
		return nil, err
	}
	s.store(ctx, snap)
	return snap, nil
}

// Invalidate drops the cached snapshot, e.g. after a sign-off closed the
// session without a checkpoint event.
func (s *Service) Invalidate(ctx context.Context, jobID string) error {
	if !s.cacheEnabled() {
		return nil
	}
	return s.cache.Del(ctx, snapshotKey(jobID))
}

func (s *Service) build(ctx context.Context, job *models.Job) (*models.LiveSnapshot, error) {
	snap := &models.LiveSnapshot{
		JobID:       job.ID,
		JobType:     job.Type,
		Pickup:      job.Pickup.Location,
		Destination: job.Destination.Location,
		UpdatedAt:   s.now(),
	}

	sess, err := s.repo.GetLatestSession(ctx, job.ID)
	if errors.Is(err, models.ErrNotFound) {
		return snap, nil
	}
	if err != nil {
		return nil, err
	}

	snap.SessionID = sess.ID
	snap.ActiveSession = sess.IsActive
	if cur, ok := sess.Current(); ok {
		cp := cur
		snap.LatestCheckpoint = &cp
	}

	loc, err := s.repo.LatestLocation(ctx, sess.ID)
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		snap.LatestLocation = &models.LocationPoint{Lat: loc.Lat, Lng: loc.Lng, Timestamp: loc.RecordedAt}
	}

	applyETA(snap, s.speedKmh)
	return snap, nil
}

func (s *Service) store(ctx context.Context, snap *models.LiveSnapshot) {
	if !s.cacheEnabled() {
		return
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, snapshotKey(snap.JobID), b, s.ttl)
}
