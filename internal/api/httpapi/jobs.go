package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BearBump/CrewTrack/internal/models"
)

type createJobRequest struct {
	Type         models.JobType `json:"type"`
	CrewTeamID   *string        `json:"crewTeamId"`
	ClientName   string         `json:"clientName"`
	ClientEmail  string         `json:"clientEmail"`
	ClientPhone  string         `json:"clientPhone"`
	PartnerOrgID *string        `json:"partnerOrgId"`
	PartnerEmail *string        `json:"partnerEmail"`
	Pickup       models.Address `json:"pickup"`
	Destination  models.Address `json:"destination"`
	ScheduledAt  *time.Time     `json:"scheduledAt"`
}

func (s *server) createJob(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var req createJobRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	job, err := s.Jobs.Create(r.Context(), models.JobCreateInput{
		Type:         req.Type,
		CrewTeamID:   req.CrewTeamID,
		ClientName:   req.ClientName,
		ClientEmail:  req.ClientEmail,
		ClientPhone:  req.ClientPhone,
		PartnerOrgID: req.PartnerOrgID,
		PartnerEmail: req.PartnerEmail,
		Pickup:       req.Pickup,
		Destination:  req.Destination,
		ScheduledAt:  req.ScheduledAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *server) getJob(w http.ResponseWriter, r *http.Request) {
	job, _, ok := s.readableJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *server) cancelJob(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	job, err := s.Jobs.Cancel(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *server) jobActivity(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	feed, err := s.Jobs.Activity(r.Context(), chi.URLParam(r, "jobId"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": feed})
}

type trackingTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *server) issueTrackingToken(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	job, err := s.Jobs.Get(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeError(w, err)
		return
	}
	tok, err := s.Auth.IssueTrackingToken(job.ID, job.Type, s.TrackingTokenTTL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trackingTokenResponse{
		Token:     tok,
		ExpiresAt: time.Now().UTC().Add(s.TrackingTokenTTL),
	})
}
