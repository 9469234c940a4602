package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BearBump/CrewTrack/internal/models"
	"github.com/BearBump/CrewTrack/internal/services/signoff"
)

type signOffRequest struct {
	JobType        models.JobType      `json:"jobType"`
	SignerName     string              `json:"signerName"`
	Signature      string              `json:"signature"`
	SignedLocation *models.GeoPoint    `json:"signedLocation"`
	Attestations   models.Attestations `json:"attestations"`
}

func (s *server) submitSignOff(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req signOffRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	jobID := chi.URLParam(r, "jobId")
	if !id.CanSignOff(jobID, req.JobType) {
		writeError(w, models.ErrForbidden)
		return
	}
	so, err := s.SignOffs.Submit(r.Context(), models.SignOffInput{
		JobID:          jobID,
		JobType:        req.JobType,
		SignerName:     req.SignerName,
		Signature:      req.Signature,
		SignedLocation: req.SignedLocation,
		Attestations:   req.Attestations,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, so)
}

type signOffResponse struct {
	*models.ClientSignOff
	SignatureURL string `json:"signatureUrl,omitempty"`
}

func (s *server) getSignOff(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	jobID := chi.URLParam(r, "jobId")
	jobType := models.JobType(r.URL.Query().Get("jobType"))
	if !id.CanSignOff(jobID, jobType) {
		writeError(w, models.ErrForbidden)
		return
	}
	so, err := s.SignOffs.Get(r.Context(), jobID, jobType)
	if err != nil {
		writeError(w, err)
		return
	}
	out := signOffResponse{ClientSignOff: so}
	if id.IsAdmin() && s.Signatures != nil {
		u, err := s.Signatures.PresignURL(r.Context(), so.SignatureKey, signatureURLTTL)
		if err != nil {
			slog.Warn("presign signature", "signoff_id", so.ID, "error", err.Error())
		} else {
			out.SignatureURL = u
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type incidentRequest struct {
	IssueType   models.IssueType `json:"issueType"`
	Description string           `json:"description"`
	OccurredAt  *time.Time       `json:"occurredAt"`
}

func (s *server) reportIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := crewOrAdmin(w, r)
	if !ok {
		return
	}
	job, err := s.Jobs.Get(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !id.CanWrite(job) {
		writeError(w, models.ErrForbidden)
		return
	}
	var req incidentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	in := signoff.IncidentInput{
		JobID:       job.ID,
		JobType:     job.Type,
		IssueType:   req.IssueType,
		Description: req.Description,
	}
	if id.Subject != "" {
		sub := id.Subject
		in.ReportedBy = &sub
	}
	if req.OccurredAt != nil {
		in.OccurredAt = *req.OccurredAt
	}
	inc, err := s.SignOffs.ReportIncident(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inc)
}

func (s *server) listIncidents(w http.ResponseWriter, r *http.Request) {
	id, ok := crewOrAdmin(w, r)
	if !ok {
		return
	}
	job, err := s.Jobs.Get(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !id.CanRead(job) {
		writeError(w, models.ErrForbidden)
		return
	}
	items, err := s.SignOffs.ListIncidents(r.Context(), job.ID, job.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
