package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BearBump/CrewTrack/internal/auth"
	"github.com/BearBump/CrewTrack/internal/models"
	"github.com/BearBump/CrewTrack/internal/services/checkpoints"
	"github.com/BearBump/CrewTrack/internal/services/locations"
)

type advanceRequest struct {
	SessionID string            `json:"sessionId"`
	JobID     string            `json:"jobId"`
	JobType   models.JobType    `json:"jobType"`
	Status    models.Checkpoint `json:"status"`
	Timestamp *time.Time        `json:"timestamp"`
	Lat       *float64          `json:"lat"`
	Lng       *float64          `json:"lng"`
	Note      *string           `json:"note"`
}

// crewOrAdmin admits callers that may write session data. The team check
// happens in the services against the job's assignment.
func crewOrAdmin(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	id, ok := caller(w, r)
	if !ok {
		return nil, false
	}
	if id.Role != auth.RoleAdmin && id.Role != auth.RoleCrew {
		writeError(w, models.ErrForbidden)
		return nil, false
	}
	return id, true
}

func (s *server) advanceCheckpoint(w http.ResponseWriter, r *http.Request) {
	id, ok := crewOrAdmin(w, r)
	if !ok {
		return
	}
	var req advanceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	in := checkpoints.AdvanceInput{
		SessionID:  req.SessionID,
		JobID:      req.JobID,
		JobType:    req.JobType,
		Status:     req.Status,
		Lat:        req.Lat,
		Lng:        req.Lng,
		Note:       req.Note,
		CrewTeamID: id.CrewTeam(),
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}
	res, err := s.Checkpoints.Advance(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if res.Started {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

type sessionResponse struct {
	*models.TrackingSession
	AllowedNext *models.Checkpoint `json:"allowedNext,omitempty"`
}

// sessionForCaller loads the session and checks its job is visible to the caller.
func (s *server) sessionForCaller(w http.ResponseWriter, r *http.Request) (*models.TrackingSession, bool) {
	id, ok := crewOrAdmin(w, r)
	if !ok {
		return nil, false
	}
	sess, err := s.Checkpoints.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if !id.IsAdmin() {
		job, err := s.Jobs.Get(r.Context(), sess.JobID)
		if err != nil {
			writeError(w, err)
			return nil, false
		}
		if !id.CanRead(job) {
			writeError(w, models.ErrForbidden)
			return nil, false
		}
	}
	return sess, true
}

func (s *server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionForCaller(w, r)
	if !ok {
		return
	}
	out := sessionResponse{TrackingSession: sess}
	if next, ok := sess.AllowedNext(); ok {
		out.AllowedNext = &next
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) sessionSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionForCaller(w, r)
	if !ok {
		return
	}
	sum, err := s.Locations.Summary(r.Context(), sess.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type locationRequest struct {
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	Timestamp *time.Time `json:"timestamp"`
}

func (s *server) ingestLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := crewOrAdmin(w, r)
	if !ok {
		return
	}
	var req locationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	in := locations.IngestInput{
		SessionID:  chi.URLParam(r, "sessionId"),
		Lat:        req.Lat,
		Lng:        req.Lng,
		CrewTeamID: id.CrewTeam(),
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}
	if err := s.Locations.Ingest(r.Context(), in); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
