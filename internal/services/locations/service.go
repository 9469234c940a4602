package locations

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/BearBump/CrewTrack/internal/broker/messages"
	"github.com/BearBump/CrewTrack/internal/geo"
	"github.com/BearBump/CrewTrack/internal/models"
)

const maxCachedSessions = 10_000

var tracer = otel.Tracer("github.com/BearBump/CrewTrack/internal/services/locations")

type Repository interface {
	GetSession(ctx context.Context, id string) (*models.TrackingSession, error)
	InsertLocation(ctx context.Context, u models.LocationUpdate) error
	ListLocations(ctx context.Context, sessionID string) ([]models.LocationUpdate, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev messages.LiveEvent) error
}

type RateLimiter interface {
	AllowPerMinute(ctx context.Context, key string, limit int64) (bool, error)
}

type IngestInput struct {
	SessionID string
	Lat       float64
	Lng       float64
	Timestamp time.Time

	// CrewTeamID is set for crew callers; the session must belong to it.
	CrewTeamID *string
}

type sessionRef struct {
	jobID   string
	jobType models.JobType
	teamID  *string
}

// Service appends device samples and republishes them to live observers.
// Every sample is stored and folded into the poll snapshot; only the stream
// republish is throttled. The last sample suppressed in a window is published
// when the window rolls over, so observers never keep a stale position.
type Service struct {
	repo      Repository
	stream    Publisher
	snapshots Publisher
	rl        RateLimiter
	perMinute int64
	now       func() time.Time
	after     func(d time.Duration, f func()) stopper

	mu       sync.Mutex
	sessions map[string]sessionRef
	pending  map[string]*pendingSample
	closed   bool
}

type stopper interface {
	Stop() bool
}

type pendingSample struct {
	ev    messages.LiveEvent
	timer stopper
}

// New wires the ingestor. stream feeds push observers and is throttled to
// publishPerMinute per session; zero or less disables the throttle.
func New(repo Repository, stream, snapshots Publisher, rl RateLimiter, publishPerMinute int) *Service {
	return &Service{
		repo:      repo,
		stream:    stream,
		snapshots: snapshots,
		rl:        rl,
		perMinute: int64(publishPerMinute),
		now:       func() time.Time { return time.Now().UTC() },
		after:     func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) },
		sessions:  make(map[string]sessionRef),
		pending:   make(map[string]*pendingSample),
	}
}

// Close stops pending trailing publishes.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
	}
}

func (s *Service) Ingest(ctx context.Context, in IngestInput) error {
	ctx, span := tracer.Start(ctx, "locations.Ingest")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", in.SessionID))

	if in.SessionID == "" {
		return models.Invalid("sessionId", "is required")
	}
	ref, err := s.lookup(ctx, in.SessionID)
	if err != nil {
		return err
	}
	if in.CrewTeamID != nil && (ref.teamID == nil || *ref.teamID != *in.CrewTeamID) {
		return models.ErrForbidden
	}

	ts := in.Timestamp.UTC()
	if in.Timestamp.IsZero() {
		ts = s.now()
	}
	if err := s.repo.InsertLocation(ctx, models.LocationUpdate{
		SessionID:  in.SessionID,
		Lat:        in.Lat,
		Lng:        in.Lng,
		RecordedAt: ts,
	}); err != nil {
		span.RecordError(err)
		return err
	}

	ev := messages.LocationEvent(ref.jobID, ref.jobType, in.SessionID, in.Lat, in.Lng, ts)
	if s.snapshots != nil {
		if err := s.snapshots.Publish(ctx, ev); err != nil {
			slog.Warn("ingest location: snapshot update", "session_id", in.SessionID, "error", err.Error())
		}
	}
	if s.stream == nil {
		return nil
	}
	if !s.allowPublish(ctx, in.SessionID) {
		s.hold(ev)
		return nil
	}
	s.dropPending(in.SessionID)
	s.publishStream(ctx, ev)
	return nil
}

func (s *Service) publishStream(ctx context.Context, ev messages.LiveEvent) {
	if err := s.stream.Publish(ctx, ev); err != nil {
		slog.Warn("ingest location: live publish", "session_id", ev.SessionID, "error", err.Error())
	}
}

// hold keeps ev as the session's trailing sample and arms a flush at the
// start of the next limiter window.
func (s *Service) hold(ev messages.LiveEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if p, ok := s.pending[ev.SessionID]; ok {
		if !ev.Timestamp.Before(p.ev.Timestamp) {
			p.ev = ev
		}
		return
	}
	now := s.now()
	wait := now.Truncate(time.Minute).Add(time.Minute).Sub(now)
	sessionID := ev.SessionID
	s.pending[sessionID] = &pendingSample{
		ev:    ev,
		timer: s.after(wait, func() { s.flush(sessionID) }),
	}
}

func (s *Service) dropPending(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[sessionID]; ok {
		p.timer.Stop()
		delete(s.pending, sessionID)
	}
}

func (s *Service) flush(sessionID string) {
	s.mu.Lock()
	p, ok := s.pending[sessionID]
	delete(s.pending, sessionID)
	s.mu.Unlock()
	if !ok {
		return
	}
	s.publishStream(context.Background(), p.ev)
}

// allowPublish fails open when the limiter is unavailable.
func (s *Service) allowPublish(ctx context.Context, sessionID string) bool {
	if s.rl == nil || s.perMinute <= 0 {
		return true
	}
	ok, err := s.rl.AllowPerMinute(ctx, "loc:"+sessionID, s.perMinute)
	if err != nil {
		slog.Warn("ingest location: rate limiter", "session_id", sessionID, "error", err.Error())
		return true
	}
	return ok
}

func (s *Service) lookup(ctx context.Context, sessionID string) (sessionRef, error) {
	s.mu.Lock()
	ref, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if ok {
		return ref, nil
	}

	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return sessionRef{}, err
	}
	ref = sessionRef{jobID: sess.JobID, jobType: sess.JobType, teamID: sess.TeamID}

	s.mu.Lock()
	if len(s.sessions) >= maxCachedSessions {
		s.sessions = make(map[string]sessionRef)
	}
	s.sessions[sessionID] = ref
	s.mu.Unlock()
	return ref, nil
}

// Summary reports distance, duration and sample counts for a session.
func (s *Service) Summary(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	if sessionID == "" {
		return nil, models.Invalid("sessionId", "is required")
	}
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	locs, err := s.repo.ListLocations(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	points := make([]models.GeoPoint, len(locs))
	for i, l := range locs {
		points[i] = models.GeoPoint{Lat: l.Lat, Lng: l.Lng}
	}
	end := s.now()
	if sess.CompletedAt != nil {
		end = *sess.CompletedAt
	}

	return &models.SessionSummary{
		SessionID:       sess.ID,
		JobID:           sess.JobID,
		JobType:         sess.JobType,
		IsActive:        sess.IsActive,
		StartedAt:       sess.StartedAt,
		CompletedAt:     sess.CompletedAt,
		DurationMinutes: geo.DurationMinutes(sess.StartedAt, end),
		DistanceKm:      geo.PathKm(points),
		LocationSamples: len(locs),
		Checkpoints:     len(sess.Checkpoints),
	}, nil
}
