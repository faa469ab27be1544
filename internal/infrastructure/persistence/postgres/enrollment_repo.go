package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edupulse/edupulse/internal/domain/enrollment"
	"github.com/edupulse/edupulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentRepository implements enrollment.Repository for PostgreSQL.
// Save uses a version-guarded UPDATE: the row is written only when the
// stored version matches the caller's expected version, which turns a
// lost read-modify-write race into shared.ErrEnrollmentConflict instead
// of a silent overwrite.
type EnrollmentRepository struct {
	conn *Connection
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(conn *Connection) *EnrollmentRepository {
	return &EnrollmentRepository{conn: conn}
}

// progressRecord is the JSONB shape of one lesson progress entry.
type progressRecord struct {
	LessonID         string     `json:"lesson_id"`
	Completed        bool       `json:"completed"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	WatchTimeSeconds int        `json:"watch_time_seconds"`
}

func progressToJSON(entries []enrollment.LessonProgress) ([]byte, error) {
	records := make([]progressRecord, len(entries))
	for i, p := range entries {
		records[i] = progressRecord{
			LessonID:         p.LessonID,
			Completed:        p.Completed,
			CompletedAt:      p.CompletedAt,
			WatchTimeSeconds: p.WatchTimeSeconds,
		}
	}
	return json.Marshal(records)
}

func progressFromJSON(data []byte) ([]enrollment.LessonProgress, error) {
	var records []progressRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	entries := make([]enrollment.LessonProgress, len(records))
	for i, r := range records {
		entries[i] = enrollment.LessonProgress{
			LessonID:         r.LessonID,
			Completed:        r.Completed,
			CompletedAt:      r.CompletedAt,
			WatchTimeSeconds: r.WatchTimeSeconds,
		}
	}
	return entries, nil
}

// Create creates a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		INSERT INTO enrollments (
			id, student_id, course_id, enrolled_at, progress,
			completion_percentage, is_completed, completed_at,
			certificate_issued, last_accessed_at, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	progressJSON, err := progressToJSON(e.Progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		e.ID,
		e.StudentID,
		e.CourseID,
		e.EnrolledAt,
		progressJSON,
		e.CompletionPercentage,
		e.IsCompleted,
		e.CompletedAt,
		e.CertificateIssued,
		e.LastAccessedAt,
		e.Version,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyEnrolled
		}
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

// GetByID returns an enrollment by ID.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	query := selectEnrollment + ` WHERE id = $1`
	row := r.conn.QueryRow(ctx, query, id)
	return r.scanEnrollment(row)
}

// GetByStudentAndCourse returns an enrollment by (student, course).
func (r *EnrollmentRepository) GetByStudentAndCourse(ctx context.Context, studentID, courseID string) (*enrollment.Enrollment, error) {
	query := selectEnrollment + ` WHERE student_id = $1 AND course_id = $2`
	row := r.conn.QueryRow(ctx, query, studentID, courseID)
	return r.scanEnrollment(row)
}

// Save writes the enrollment if the stored version equals expectedVersion.
// On success the stored and in-memory versions are incremented. A missing
// row maps to shared.ErrEnrollmentNotFound, a version mismatch to
// shared.ErrEnrollmentConflict.
func (r *EnrollmentRepository) Save(ctx context.Context, e *enrollment.Enrollment, expectedVersion int) error {
	query := `
		UPDATE enrollments SET
			progress = $3,
			completion_percentage = $4,
			is_completed = $5,
			completed_at = $6,
			certificate_issued = $7,
			last_accessed_at = $8,
			version = version + 1,
			updated_at = $9
		WHERE id = $1 AND version = $2
	`

	progressJSON, err := progressToJSON(e.Progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query,
		e.ID,
		expectedVersion,
		progressJSON,
		e.CompletionPercentage,
		e.IsCompleted,
		e.CompletedAt,
		e.CertificateIssued,
		e.LastAccessedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save enrollment: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		checkErr := r.conn.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM enrollments WHERE id = $1)`, e.ID,
		).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("failed to check enrollment existence: %w", checkErr)
		}
		if !exists {
			return shared.ErrEnrollmentNotFound
		}
		return shared.ErrEnrollmentConflict
	}

	e.Version = expectedVersion + 1
	return nil
}

// GetByStudent returns all enrollments of a student.
func (r *EnrollmentRepository) GetByStudent(ctx context.Context, studentID string) ([]*enrollment.Enrollment, error) {
	query := selectEnrollment + ` WHERE student_id = $1 ORDER BY enrolled_at`
	return r.queryEnrollments(ctx, query, studentID)
}

// GetByCourse returns all enrollments of a course.
func (r *EnrollmentRepository) GetByCourse(ctx context.Context, courseID string) ([]*enrollment.Enrollment, error) {
	query := selectEnrollment + ` WHERE course_id = $1 ORDER BY enrolled_at`
	return r.queryEnrollments(ctx, query, courseID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning helpers
// ─────────────────────────────────────────────────────────────────────────────

const selectEnrollment = `
	SELECT id, student_id, course_id, enrolled_at, progress,
		   completion_percentage, is_completed, completed_at,
		   certificate_issued, last_accessed_at, version, created_at, updated_at
	FROM enrollments
`

func (r *EnrollmentRepository) queryEnrollments(ctx context.Context, query string, args ...interface{}) ([]*enrollment.Enrollment, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}
	defer rows.Close()

	var result []*enrollment.Enrollment
	for rows.Next() {
		e, err := r.scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *EnrollmentRepository) scanEnrollment(row pgx.Row) (*enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	var progressJSON []byte

	err := row.Scan(
		&e.ID,
		&e.StudentID,
		&e.CourseID,
		&e.EnrolledAt,
		&progressJSON,
		&e.CompletionPercentage,
		&e.IsCompleted,
		&e.CompletedAt,
		&e.CertificateIssued,
		&e.LastAccessedAt,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	e.Progress, err = progressFromJSON(progressJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &e, nil
}
