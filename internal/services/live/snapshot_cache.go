package live

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/CrewTrack/internal/broker/messages"
	"github.com/BearBump/CrewTrack/internal/cache"
	"github.com/BearBump/CrewTrack/internal/models"
)

// SnapshotCache is the poll adapter: it folds events into the cached
// snapshot of the job. A job with no cached snapshot is left alone, the next
// poll builds it from the store.
type SnapshotCache struct {
	cache    cache.BytesCache
	ttl      time.Duration
	speedKmh float64
	now      func() time.Time
}

func NewSnapshotCache(c cache.BytesCache, ttl time.Duration, speedKmh float64) *SnapshotCache {
	return &SnapshotCache{cache: c, ttl: ttl, speedKmh: speedKmh, now: func() time.Time { return time.Now().UTC() }}
}

func (c *SnapshotCache) Publish(ctx context.Context, ev messages.LiveEvent) error {
	if c.cache == nil || c.ttl <= 0 {
		return nil
	}
	key := snapshotKey(ev.JobID)
	b, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	var snap models.LiveSnapshot
	if json.Unmarshal(b, &snap) != nil {
		return c.cache.Del(ctx, key)
	}

	switch Merge(&snap, ev, c.speedKmh, c.now()) {
	case MergeStale:
		return nil
	case MergeMismatch:
		return c.cache.Del(ctx, key)
	}

	out, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, key, out, c.ttl)
}
