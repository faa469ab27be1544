package redis

import (
	"context"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRESENCE TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// PresenceTracker maintains per-course presence sets in Redis. Members
// are actor ids; entries are refreshed by heartbeat and expire with the
// whole set, so a crashed instance cannot leave ghosts forever.
type PresenceTracker struct {
	cache *Cache
	ttl   time.Duration
}

// NewPresenceTracker creates a tracker on top of an existing cache.
func NewPresenceTracker(cache *Cache) *PresenceTracker {
	return &PresenceTracker{
		cache: cache,
		ttl:   TTLPresence,
	}
}

// MarkOnline adds an actor to a course's presence set and refreshes the
// set's TTL.
func (t *PresenceTracker) MarkOnline(ctx context.Context, courseID, actorID string) error {
	key := PresenceKey(courseID)
	pipe := t.cache.client.Pipeline()
	pipe.SAdd(ctx, key, actorID)
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: failed to mark online: %w", err)
	}
	return nil
}

// MarkOffline removes an actor from a course's presence set.
func (t *PresenceTracker) MarkOffline(ctx context.Context, courseID, actorID string) error {
	if err := t.cache.client.SRem(ctx, PresenceKey(courseID), actorID).Err(); err != nil {
		return fmt.Errorf("presence: failed to mark offline: %w", err)
	}
	return nil
}

// Online returns the actors currently present in a course room.
func (t *PresenceTracker) Online(ctx context.Context, courseID string) ([]string, error) {
	members, err := t.cache.client.SMembers(ctx, PresenceKey(courseID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: failed to list members: %w", err)
	}
	return members, nil
}

// OnlineCount returns the number of actors present in a course room.
func (t *PresenceTracker) OnlineCount(ctx context.Context, courseID string) (int64, error) {
	count, err := t.cache.client.SCard(ctx, PresenceKey(courseID)).Result()
	if err != nil {
		return 0, fmt.Errorf("presence: failed to count members: %w", err)
	}
	return count, nil
}

// IsOnline checks whether an actor is present in a course room.
func (t *PresenceTracker) IsOnline(ctx context.Context, courseID, actorID string) (bool, error) {
	ok, err := t.cache.client.SIsMember(ctx, PresenceKey(courseID), actorID).Result()
	if err != nil {
		return false, fmt.Errorf("presence: failed to check member: %w", err)
	}
	return ok, nil
}
