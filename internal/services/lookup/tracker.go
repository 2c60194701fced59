package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/GTLTrack/internal/broker/messages"
	"github.com/BearBump/GTLTrack/internal/cache"
	"github.com/BearBump/GTLTrack/internal/models"
	"github.com/pkg/errors"
)

// Tracker is a read-through cache in front of the shipment adapter. The cache is best
// effort: any cache failure falls back to the store.
type Tracker struct {
	src   Fetcher
	cache cache.BytesCache
	ttl   time.Duration
}

func NewTracker(src Fetcher, c cache.BytesCache, ttl time.Duration) *Tracker {
	return &Tracker{src: src, cache: c, ttl: ttl}
}

func (t *Tracker) enabled() bool {
	return t.cache != nil && t.ttl > 0
}

func (t *Tracker) Fetch(ctx context.Context, lr string) (*models.ShipmentRecord, error) {
	if t.enabled() {
		if b, ok, err := t.cache.Get(ctx, CurrentKey(lr)); err == nil && ok {
			var rec models.ShipmentRecord
			if json.Unmarshal(b, &rec) == nil {
				return &rec, nil
			}
		}
	}

	rec, err := t.src.Fetch(ctx, lr)
	if err != nil {
		return nil, err
	}
	if t.enabled() {
		b, _ := json.Marshal(rec)
		_ = t.cache.Set(ctx, CurrentKey(lr), b, t.ttl)
	}
	return rec, nil
}

func (t *Tracker) Evict(ctx context.Context, lr string) error {
	if t.cache == nil {
		return nil
	}
	return t.cache.Del(ctx, CurrentKey(lr))
}

// ApplyChange drops the cached copy of the shipment named in a change event.
func (t *Tracker) ApplyChange(ctx context.Context, msg messages.ShipmentChanged) error {
	if msg.LR == "" {
		return errors.New("lr is required")
	}
	return t.Evict(ctx, msg.LR)
}

func CurrentKey(lr string) string {
	return fmt.Sprintf("shipment:%s:current", lr)
}
