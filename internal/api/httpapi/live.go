package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/CrewTrack/internal/models"
)

const maxBatchJobs = 200

func (s *server) getLive(w http.ResponseWriter, r *http.Request) {
	job, _, ok := s.readableJob(w, r)
	if !ok {
		return
	}
	snap, err := s.Live.GetSnapshot(r.Context(), job.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", int(s.PollInterval.Seconds())))
	writeJSON(w, http.StatusOK, snap)
}

// batchLive serves the map view: ?jobId=a&jobId=b or ?jobId=a,b, in order.
func (s *server) batchLive(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var ids []string
	for _, v := range r.URL.Query()["jobId"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		writeError(w, models.Invalid("jobId", "at least one is required"))
		return
	}
	if len(ids) > maxBatchJobs {
		writeError(w, models.Invalid("jobId", fmt.Sprintf("at most %d per request", maxBatchJobs)))
		return
	}
	snaps, err := s.Live.GetSnapshots(r.Context(), ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": snaps})
}

func (s *server) activeLive(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	snaps, err := s.Live.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": snaps})
}

// streamLive is the push mode: a Server-Sent Events feed of location and
// checkpoint events for one job. Nothing outlives the connection.
func (s *server) streamLive(w http.ResponseWriter, r *http.Request) {
	job, _, ok := s.readableJob(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported", Code: "internal"})
		return
	}

	sub := s.Stream.Subscribe(job.ID)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	hb := time.NewTicker(s.Heartbeat)
	defer hb.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-hb.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				// evicted for falling behind; the observer reconnects
				slog.Info("live stream evicted", "job_id", job.ID)
				return
			}
			b, err := ev.Encode()
			if err != nil {
				slog.Warn("live stream encode", "job_id", job.ID, "error", err.Error())
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
