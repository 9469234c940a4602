package warmer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/CrewTrack/internal/models"
)

type Repository interface {
	ListActiveSessions(ctx context.Context) ([]*models.TrackingSession, error)
}

type Rebuilder interface {
	Rebuild(ctx context.Context, jobID string) (*models.LiveSnapshot, error)
}

// Warmer keeps the poll-mode snapshot cache hot for every job with an active
// session, so map views rarely hit the store on a cache miss.
type Warmer struct {
	repo      Repository
	rebuilder Rebuilder

	interval    time.Duration
	concurrency int

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalScanned        atomic.Int64
	totalRebuilt        atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, rebuilder Rebuilder) *Warmer {
	return &Warmer{
		repo:              repo,
		rebuilder:         rebuilder,
		interval:          15 * time.Second,
		concurrency:       8,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (w *Warmer) WithSettings(interval time.Duration, concurrency int) *Warmer {
	if interval > 0 {
		w.interval = interval
	}
	if concurrency > 0 {
		w.concurrency = concurrency
	}
	return w
}

// Trigger forces an immediate cycle (best-effort, non-blocking).
func (w *Warmer) Trigger() {
	w.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalScanned  int64      `json:"totalScanned"`
	TotalRebuilt  int64      `json:"totalRebuilt"`
	TotalErrors   int64      `json:"totalErrors"`
	InFlight      int64      `json:"inFlight"`
	LastError     string     `json:"lastError,omitempty"`
}

func (w *Warmer) Stats() Stats {
	st := Stats{
		StartedAt:    time.Unix(0, w.startedAtUnixNano).UTC(),
		TotalScanned: w.totalScanned.Load(),
		TotalRebuilt: w.totalRebuilt.Load(),
		TotalErrors:  w.totalErrors.Load(),
		InFlight:     w.inFlight.Load(),
	}
	if n := w.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := w.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	w.lastErrorMu.Lock()
	st.LastError = w.lastError
	w.lastErrorMu.Unlock()
	return st
}

func (w *Warmer) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.runOnce(ctx)
		case <-w.triggerCh:
			w.runOnce(ctx)
		}
	}
}

func (w *Warmer) setLastError(err error) {
	w.lastErrorMu.Lock()
	w.lastError = err.Error()
	w.lastErrorMu.Unlock()
}

func (w *Warmer) runOnce(ctx context.Context) {
	w.lastCycleUnixNano.Store(time.Now().UTC().UnixNano())

	sessions, err := w.repo.ListActiveSessions(ctx)
	if err != nil {
		slog.Error("list active sessions", "error", err.Error())
		w.setLastError(err)
		return
	}
	w.totalScanned.Add(int64(len(sessions)))

	seen := make(map[string]struct{}, len(sessions))
	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup
	for _, sess := range sessions {
		if _, dup := seen[sess.JobID]; dup {
			continue
		}
		seen[sess.JobID] = struct{}{}

		sem <- struct{}{}
		wg.Add(1)
		jobID := sess.JobID
		w.inFlight.Add(1)
		go func() {
			defer func() {
				w.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if _, err := w.rebuilder.Rebuild(ctx, jobID); err != nil {
				w.totalErrors.Add(1)
				w.setLastError(err)
				slog.Error("rebuild snapshot", "job_id", jobID, "error", err.Error())
				return
			}
			w.totalRebuilt.Add(1)
		}()
	}
	wg.Wait()
}
