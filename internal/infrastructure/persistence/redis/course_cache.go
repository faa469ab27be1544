package redis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/edupulse/edupulse/internal/domain/course"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHED COURSE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CachedCourseRepository decorates a course repository with a Redis cache
// for lesson sets. Lesson sets are read on every progress update, change
// rarely, and tolerate short staleness: a completion percentage computed
// against a set up to TTLLessonSet old converges on the next update.
//
// Cache failures degrade to direct reads and are logged, never returned.
type CachedCourseRepository struct {
	inner  course.Repository
	cache  *Cache
	logger *slog.Logger
}

// NewCachedCourseRepository wraps an existing course repository.
func NewCachedCourseRepository(inner course.Repository, cache *Cache, logger *slog.Logger) *CachedCourseRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCourseRepository{inner: inner, cache: cache, logger: logger}
}

// GetByID reads the course directly. Course metadata is fetched on colder
// paths, so it is not cached.
func (r *CachedCourseRepository) GetByID(ctx context.Context, id string) (*course.Course, error) {
	return r.inner.GetByID(ctx, id)
}

// GetLessonIDs returns a course's lesson set, preferring the cache.
func (r *CachedCourseRepository) GetLessonIDs(ctx context.Context, courseID string) ([]string, error) {
	key := LessonSetKey(courseID)

	var cached []string
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.logger.Warn("lesson set cache read failed",
			"course_id", courseID,
			"error", err,
		)
	}

	ids, err := r.inner.GetLessonIDs(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, key, ids, TTLLessonSet); err != nil {
		r.logger.Warn("lesson set cache write failed",
			"course_id", courseID,
			"error", err,
		)
	}
	return ids, nil
}

// InvalidateLessonSet drops the cached lesson set for a course. Called
// when a course's lesson list changes.
func (r *CachedCourseRepository) InvalidateLessonSet(ctx context.Context, courseID string) error {
	return r.cache.Delete(ctx, LessonSetKey(courseID))
}
