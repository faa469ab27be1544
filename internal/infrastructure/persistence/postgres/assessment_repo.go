package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edupulse/edupulse/internal/domain/assessment"
	"github.com/edupulse/edupulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentRepository implements assessment.Repository for PostgreSQL.
// The unique constraint on (assessment_id, student_id, attempt_number)
// is the arbiter for concurrent submissions of the same attempt.
type AssessmentRepository struct {
	conn *Connection
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(conn *Connection) *AssessmentRepository {
	return &AssessmentRepository{conn: conn}
}

// questionRecord is the JSONB shape of one question.
type questionRecord struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Type          string   `json:"type"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Points        int      `json:"points"`
	Explanation   string   `json:"explanation,omitempty"`
}

// answerRecord is the JSONB shape of one graded answer.
type answerRecord struct {
	QuestionID    string `json:"question_id"`
	Text          string `json:"text"`
	IsCorrect     bool   `json:"is_correct"`
	PointsAwarded int    `json:"points_awarded"`
}

// GetByID returns an assessment by ID.
func (r *AssessmentRepository) GetByID(ctx context.Context, id string) (*assessment.Assessment, error) {
	query := `
		SELECT id, course_id, instructor_id, title, description, questions,
			   time_limit_minutes, passing_score, attempts, is_published,
			   due_date, created_at, updated_at
		FROM assessments
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)

	var a assessment.Assessment
	var questionsJSON []byte
	err := row.Scan(
		&a.ID,
		&a.CourseID,
		&a.InstructorID,
		&a.Title,
		&a.Description,
		&questionsJSON,
		&a.TimeLimitMinutes,
		&a.PassingScore,
		&a.Attempts,
		&a.IsPublished,
		&a.DueDate,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	var records []questionRecord
	if err := json.Unmarshal(questionsJSON, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
	}
	a.Questions = make([]assessment.Question, len(records))
	for i, q := range records {
		a.Questions[i] = assessment.Question{
			ID:            q.ID,
			Text:          q.Text,
			Type:          assessment.QuestionType(q.Type),
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Points:        q.Points,
			Explanation:   q.Explanation,
		}
	}
	return &a, nil
}

// CountSubmissions returns the number of submissions of (assessment, student).
func (r *AssessmentRepository) CountSubmissions(ctx context.Context, assessmentID, studentID string) (int, error) {
	query := `SELECT COUNT(*) FROM submissions WHERE assessment_id = $1 AND student_id = $2`

	var count int
	err := r.conn.QueryRow(ctx, query, assessmentID, studentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

// SaveSubmission inserts a new submission. A unique violation on
// (assessment_id, student_id, attempt_number) maps to
// shared.ErrDuplicateAttempt so the caller can recount and regrade.
func (r *AssessmentRepository) SaveSubmission(ctx context.Context, s *assessment.Submission) error {
	query := `
		INSERT INTO submissions (
			id, assessment_id, student_id, answers, score, percentage,
			is_passed, attempt_number, time_spent_minutes, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	records := make([]answerRecord, len(s.Answers))
	for i, a := range s.Answers {
		records[i] = answerRecord{
			QuestionID:    a.QuestionID,
			Text:          a.Text,
			IsCorrect:     a.IsCorrect,
			PointsAwarded: a.PointsAwarded,
		}
	}
	answersJSON, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		s.ID,
		s.AssessmentID,
		s.StudentID,
		answersJSON,
		s.Score,
		s.Percentage,
		s.IsPassed,
		s.AttemptNumber,
		s.TimeSpentMinutes,
		s.SubmittedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateAttempt
		}
		return fmt.Errorf("failed to save submission: %w", err)
	}
	return nil
}

// GetSubmissionsByStudent returns submissions of (assessment, student)
// ordered by attempt number.
func (r *AssessmentRepository) GetSubmissionsByStudent(ctx context.Context, assessmentID, studentID string) ([]*assessment.Submission, error) {
	query := selectSubmission + ` WHERE assessment_id = $1 AND student_id = $2 ORDER BY attempt_number`
	return r.querySubmissions(ctx, query, assessmentID, studentID)
}

// GetSubmissionsByAssessment returns all submissions of an assessment.
func (r *AssessmentRepository) GetSubmissionsByAssessment(ctx context.Context, assessmentID string) ([]*assessment.Submission, error) {
	query := selectSubmission + ` WHERE assessment_id = $1 ORDER BY submitted_at`
	return r.querySubmissions(ctx, query, assessmentID)
}

// Create inserts an assessment. Used by seeding and tests.
func (r *AssessmentRepository) Create(ctx context.Context, a *assessment.Assessment) error {
	query := `
		INSERT INTO assessments (
			id, course_id, instructor_id, title, description, questions,
			time_limit_minutes, passing_score, attempts, is_published,
			due_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	records := make([]questionRecord, len(a.Questions))
	for i, q := range a.Questions {
		records[i] = questionRecord{
			ID:            q.ID,
			Text:          q.Text,
			Type:          string(q.Type),
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Points:        q.Points,
			Explanation:   q.Explanation,
		}
	}
	questionsJSON, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal questions: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		a.ID,
		a.CourseID,
		a.InstructorID,
		a.Title,
		a.Description,
		questionsJSON,
		a.TimeLimitMinutes,
		a.PassingScore,
		a.Attempts,
		a.IsPublished,
		a.DueDate,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("assessment", "Create", shared.ErrAlreadyExists, "assessment already exists")
		}
		return fmt.Errorf("failed to create assessment: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning helpers
// ─────────────────────────────────────────────────────────────────────────────

const selectSubmission = `
	SELECT id, assessment_id, student_id, answers, score, percentage,
		   is_passed, attempt_number, time_spent_minutes, submitted_at
	FROM submissions
`

func (r *AssessmentRepository) querySubmissions(ctx context.Context, query string, args ...interface{}) ([]*assessment.Submission, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var result []*assessment.Submission
	for rows.Next() {
		s, err := r.scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *AssessmentRepository) scanSubmission(row pgx.Row) (*assessment.Submission, error) {
	var s assessment.Submission
	var answersJSON []byte

	err := row.Scan(
		&s.ID,
		&s.AssessmentID,
		&s.StudentID,
		&answersJSON,
		&s.Score,
		&s.Percentage,
		&s.IsPassed,
		&s.AttemptNumber,
		&s.TimeSpentMinutes,
		&s.SubmittedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}

	var records []answerRecord
	if err := json.Unmarshal(answersJSON, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	s.Answers = make([]assessment.GradedAnswer, len(records))
	for i, a := range records {
		s.Answers[i] = assessment.GradedAnswer{
			QuestionID:    a.QuestionID,
			Text:          a.Text,
			IsCorrect:     a.IsCorrect,
			PointsAwarded: a.PointsAwarded,
		}
	}
	return &s, nil
}
