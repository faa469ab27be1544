package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edupulse/edupulse/internal/domain/course"
	"github.com/edupulse/edupulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements course.Repository for PostgreSQL.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

// GetByID returns a course by ID.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*course.Course, error) {
	query := `
		SELECT id, title, instructor_id, lesson_ids, is_published, created_at, updated_at
		FROM courses
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)

	var c course.Course
	var lessonsJSON []byte
	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.InstructorID,
		&lessonsJSON,
		&c.IsPublished,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	if err := json.Unmarshal(lessonsJSON, &c.LessonIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lesson ids: %w", err)
	}
	return &c, nil
}

// GetLessonIDs returns the current lesson set of a course.
func (r *CourseRepository) GetLessonIDs(ctx context.Context, courseID string) ([]string, error) {
	query := `SELECT lesson_ids FROM courses WHERE id = $1`

	var lessonsJSON []byte
	err := r.conn.QueryRow(ctx, query, courseID).Scan(&lessonsJSON)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get lesson ids: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(lessonsJSON, &ids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lesson ids: %w", err)
	}
	return ids, nil
}

// Create inserts a course. Used by seeding and tests.
func (r *CourseRepository) Create(ctx context.Context, c *course.Course) error {
	query := `
		INSERT INTO courses (id, title, instructor_id, lesson_ids, is_published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	lessonsJSON, err := json.Marshal(c.LessonIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal lesson ids: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		c.ID,
		c.Title,
		c.InstructorID,
		lessonsJSON,
		c.IsPublished,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("course", "Create", shared.ErrAlreadyExists, "course already exists")
		}
		return fmt.Errorf("failed to create course: %w", err)
	}
	return nil
}

// UpdateLessons replaces the lesson set of a course.
func (r *CourseRepository) UpdateLessons(ctx context.Context, courseID string, lessonIDs []string) error {
	query := `UPDATE courses SET lesson_ids = $2, updated_at = NOW() WHERE id = $1`

	lessonsJSON, err := json.Marshal(lessonIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal lesson ids: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, courseID, lessonsJSON)
	if err != nil {
		return fmt.Errorf("failed to update lessons: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCourseNotFound
	}
	return nil
}
