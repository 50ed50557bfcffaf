package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/service/calendars"
)

// CachedDirectory wraps a calendar directory with a Redis TTL cache. Listing
// calendars costs a Graph round trip per resolution, and names move rarely,
// so short-lived caching removes most of that traffic. Every cache failure
// falls through to the live directory.
type CachedDirectory struct {
	inner  calendars.Directory
	client *redis.Client
	scheme string
	ttl    time.Duration
	logger *zap.Logger
}

const defaultDirectoryTTL = 15 * time.Minute

// NewCachedDirectory decorates inner. The scheme keeps backends from
// sharing cache entries when a user has calendars on more than one.
func NewCachedDirectory(inner calendars.Directory, client *redis.Client, scheme string, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = defaultDirectoryTTL
	}
	return &CachedDirectory{
		inner:  inner,
		client: client,
		scheme: scheme,
		ttl:    ttl,
		logger: logger,
	}
}

func (d *CachedDirectory) ListCalendars(ctx context.Context, userID uuid.UUID) ([]calendars.CalendarInfo, error) {
	key := d.key(userID)

	raw, err := d.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var infos []calendars.CalendarInfo
		if jsonErr := json.Unmarshal([]byte(raw), &infos); jsonErr == nil {
			return infos, nil
		}
		// A corrupt entry is dropped and refreshed from the live directory.
		d.logger.Warn("dropping undecodable directory cache entry", zap.String("key", key))
		d.client.Del(ctx, key)
	case err != redis.Nil:
		d.logger.Warn("directory cache read failed, using live directory",
			zap.String("key", key), zap.Error(err))
	}

	infos, err := d.inner.ListCalendars(ctx, userID)
	if err != nil {
		return nil, err
	}

	if buf, jsonErr := json.Marshal(infos); jsonErr == nil {
		if setErr := d.client.Set(ctx, key, buf, d.ttl).Err(); setErr != nil {
			d.logger.Warn("directory cache write failed",
				zap.String("key", key), zap.Error(setErr))
		}
	}
	return infos, nil
}

// Invalidate drops a user's cached listing, used after calendar mutations.
func (d *CachedDirectory) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return d.client.Del(ctx, d.key(userID)).Err()
}

func (d *CachedDirectory) key(userID uuid.UUID) string {
	return fmt.Sprintf("calendars:directory:%s:%s", d.scheme, userID)
}
