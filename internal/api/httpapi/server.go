package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/BearBump/CrewTrack/internal/auth"
	"github.com/BearBump/CrewTrack/internal/models"
	"github.com/BearBump/CrewTrack/internal/services/checkpoints"
	"github.com/BearBump/CrewTrack/internal/services/live"
	"github.com/BearBump/CrewTrack/internal/services/locations"
	"github.com/BearBump/CrewTrack/internal/services/signoff"
)

const (
	DefaultHeartbeat        = 15 * time.Second
	DefaultPollInterval     = 10 * time.Second
	DefaultTrackingTokenTTL = 72 * time.Hour
	signatureURLTTL         = 15 * time.Minute
)

type JobService interface {
	Create(ctx context.Context, in models.JobCreateInput) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	Cancel(ctx context.Context, id string) (*models.Job, error)
	Activity(ctx context.Context, jobID string, limit int) ([]models.ActivityEntry, error)
}

type CheckpointService interface {
	Advance(ctx context.Context, in checkpoints.AdvanceInput) (*checkpoints.AdvanceResult, error)
	GetSession(ctx context.Context, id string) (*models.TrackingSession, error)
}

type LocationService interface {
	Ingest(ctx context.Context, in locations.IngestInput) error
	Summary(ctx context.Context, sessionID string) (*models.SessionSummary, error)
}

type LiveService interface {
	GetSnapshot(ctx context.Context, jobID string) (*models.LiveSnapshot, error)
	GetSnapshots(ctx context.Context, ids []string) ([]*models.LiveSnapshot, error)
	ListActive(ctx context.Context) ([]*models.LiveSnapshot, error)
}

type StreamSource interface {
	Subscribe(jobID string) *live.Subscription
}

type SignOffService interface {
	Submit(ctx context.Context, in models.SignOffInput) (*models.ClientSignOff, error)
	Get(ctx context.Context, jobID string, jobType models.JobType) (*models.ClientSignOff, error)
	ReportIncident(ctx context.Context, in signoff.IncidentInput) (*models.Incident, error)
	ListIncidents(ctx context.Context, jobID string, jobType models.JobType) ([]models.Incident, error)
}

type SignaturePresigner interface {
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Deps struct {
	Auth        *auth.Authenticator
	Jobs        JobService
	Checkpoints CheckpointService
	Locations   LocationService
	Live        LiveService
	Stream      StreamSource
	SignOffs    SignOffService
	// Signatures is optional; without it sign-off reads omit the image URL.
	Signatures SignaturePresigner

	TrackingTokenTTL time.Duration
	Heartbeat        time.Duration
	// PollInterval is advertised to poll-mode clients via Cache-Control.
	PollInterval time.Duration
	SwaggerPath  string
}

type server struct {
	Deps
}

func NewRouter(d Deps) http.Handler {
	if d.TrackingTokenTTL <= 0 {
		d.TrackingTokenTTL = DefaultTrackingTokenTTL
	}
	if d.Heartbeat <= 0 {
		d.Heartbeat = DefaultHeartbeat
	}
	if d.PollInterval <= 0 {
		d.PollInterval = DefaultPollInterval
	}
	s := &server{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.SwaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, d.SwaggerPath)
		})
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/swagger.json")))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Middleware(d.Auth))

		r.Post("/jobs", s.createJob)
		r.Route("/jobs/{jobId}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Post("/cancel", s.cancelJob)
			r.Get("/activity", s.jobActivity)
			r.Post("/tracking-token", s.issueTrackingToken)

			r.Get("/live", s.getLive)
			r.Get("/live/stream", s.streamLive)

			r.Post("/incidents", s.reportIncident)
			r.Get("/incidents", s.listIncidents)

			r.Post("/signoff", s.submitSignOff)
			r.Get("/signoff", s.getSignOff)
		})

		r.Post("/checkpoints", s.advanceCheckpoint)
		r.Get("/sessions/{sessionId}", s.getSession)
		r.Get("/sessions/{sessionId}/summary", s.sessionSummary)
		r.Post("/sessions/{sessionId}/locations", s.ingestLocation)

		r.Get("/live", s.batchLive)
		r.Get("/live/active", s.activeLive)
	})
	return r
}

// caller returns the verified identity or writes 401.
func caller(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, auth.ErrUnauthenticated)
		return nil, false
	}
	return id, true
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	id, ok := caller(w, r)
	if !ok {
		return false
	}
	if !id.IsAdmin() {
		writeError(w, models.ErrForbidden)
		return false
	}
	return true
}

// readableJob loads the job and checks the caller may observe it.
func (s *server) readableJob(w http.ResponseWriter, r *http.Request) (*models.Job, *auth.Identity, bool) {
	id, ok := caller(w, r)
	if !ok {
		return nil, nil, false
	}
	job, err := s.Jobs.Get(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeError(w, err)
		return nil, nil, false
	}
	if !id.CanRead(job) {
		writeError(w, models.ErrForbidden)
		return nil, nil, false
	}
	return job, id, true
}
