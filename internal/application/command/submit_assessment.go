package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/edupulse/edupulse/internal/domain/assessment"
	"github.com/edupulse/edupulse/internal/domain/shared"
	"github.com/edupulse/edupulse/pkg/clock"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ASSESSMENT COMMAND
// Counts prior attempts, grades the submission and persists it. The
// uniqueness of (assessment, student, attempt number) is enforced by the
// store; when two submissions of the same attempt race, the loser
// recounts and regrades exactly once. The attempt limit itself is never
// retried past.
// ══════════════════════════════════════════════════════════════════════════════

// AnswerInput is one submitted answer as it arrives from the client.
type AnswerInput struct {
	// QuestionID identifies the question.
	QuestionID string

	// Text is the answer text.
	Text string
}

// SubmitAssessmentCommand contains the data to submit an assessment.
type SubmitAssessmentCommand struct {
	// AssessmentID is the assessment being submitted.
	AssessmentID string

	// Actor is the authenticated student.
	Actor shared.Actor

	// Answers are the submitted answers. Answers referencing unknown
	// questions are silently dropped during grading.
	Answers []AnswerInput

	// TimeSpentMinutes is the reported time spent.
	TimeSpentMinutes int
}

// Validate validates the command.
func (c SubmitAssessmentCommand) Validate() error {
	if c.AssessmentID == "" {
		return errors.New("submit_assessment: assessment_id is required")
	}
	if c.Actor.ID == "" {
		return errors.New("submit_assessment: actor is required")
	}
	if c.TimeSpentMinutes < 0 {
		return shared.ErrNegativeTimeSpent
	}
	return nil
}

// SubmitAssessmentResult is the aggregate-only graded response. Per-answer
// correctness is never returned from submission: it would leak the answer
// key to students with attempts remaining.
type SubmitAssessmentResult struct {
	// SubmissionID is the ID of the stored submission.
	SubmissionID string

	// Score is the points awarded.
	Score int

	// TotalPoints is the maximum possible points.
	TotalPoints int

	// Percentage is the rounded score percentage.
	Percentage int

	// IsPassed reports whether the passing threshold was met.
	IsPassed bool

	// AttemptNumber is this submission's attempt number.
	AttemptNumber int

	// AttemptsRemaining is how many attempts are left.
	AttemptsRemaining int

	// SubmittedAt is when the submission was graded.
	SubmittedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitAssessmentHandler handles the SubmitAssessmentCommand.
type SubmitAssessmentHandler struct {
	assessmentRepo assessment.Repository
	publisher      shared.EventPublisher
	clock          clock.Clock
	logger         *slog.Logger
}

// NewSubmitAssessmentHandler creates a new SubmitAssessmentHandler.
func NewSubmitAssessmentHandler(
	assessmentRepo assessment.Repository,
	publisher shared.EventPublisher,
	clk clock.Clock,
	logger *slog.Logger,
) *SubmitAssessmentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmitAssessmentHandler{
		assessmentRepo: assessmentRepo,
		publisher:      publisher,
		clock:          clk,
		logger:         logger,
	}
}

// Handle grades and stores one submission.
func (h *SubmitAssessmentHandler) Handle(ctx context.Context, cmd SubmitAssessmentCommand) (*SubmitAssessmentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	a, err := h.assessmentRepo.GetByID(ctx, cmd.AssessmentID)
	if err != nil {
		return nil, err
	}
	if !a.IsPublished {
		return nil, shared.ErrAssessmentNotFound
	}

	answers := make([]assessment.SubmittedAnswer, len(cmd.Answers))
	for i, ans := range cmd.Answers {
		answers[i] = assessment.SubmittedAnswer{QuestionID: ans.QuestionID, Text: ans.Text}
	}

	sub, err := h.gradeAndSave(ctx, a, cmd.Actor.ID, answers, cmd.TimeSpentMinutes)
	if err != nil {
		return nil, err
	}

	h.publish(a, sub)

	return &SubmitAssessmentResult{
		SubmissionID:      sub.ID,
		Score:             sub.Score,
		TotalPoints:       a.TotalPoints(),
		Percentage:        sub.Percentage,
		IsPassed:          sub.IsPassed,
		AttemptNumber:     sub.AttemptNumber,
		AttemptsRemaining: a.Attempts - sub.AttemptNumber,
		SubmittedAt:       sub.SubmittedAt,
	}, nil
}

// gradeAndSave runs the count-grade-save sequence. A duplicate attempt
// number means another submission won the race for it; the sequence is
// re-run once with a fresh count, which also re-checks the attempt limit.
func (h *SubmitAssessmentHandler) gradeAndSave(
	ctx context.Context,
	a *assessment.Assessment,
	studentID string,
	answers []assessment.SubmittedAnswer,
	timeSpentMinutes int,
) (*assessment.Submission, error) {
	const maxTries = 2

	var lastErr error
	for try := 0; try < maxTries; try++ {
		count, err := h.assessmentRepo.CountSubmissions(ctx, a.ID, studentID)
		if err != nil {
			return nil, err
		}

		sub, err := assessment.Grade(a, studentID, count, answers, timeSpentMinutes, h.clock.Now())
		if err != nil {
			return nil, err
		}

		err = h.assessmentRepo.SaveSubmission(ctx, sub)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, shared.ErrConcurrentModification) {
			return nil, err
		}

		lastErr = err
		h.logger.Warn("submission attempt number collided, regrading",
			"assessment_id", a.ID,
			"student_id", studentID,
			"attempt_number", sub.AttemptNumber,
		)
	}
	return nil, lastErr
}

// publish emits the aggregate-only graded event to the course room.
func (h *SubmitAssessmentHandler) publish(a *assessment.Assessment, sub *assessment.Submission) {
	if h.publisher == nil {
		return
	}

	event := shared.NewSubmissionGradedEvent(
		a.CourseID,
		sub.StudentID,
		a.ID,
		sub.Score,
		sub.Percentage,
		sub.IsPassed,
		sub.AttemptNumber,
		sub.SubmittedAt,
	)
	if err := h.publisher.Publish(a.CourseID, event); err != nil {
		h.logger.Error("failed to publish graded event",
			"assessment_id", a.ID,
			"course_id", a.CourseID,
			"error", err,
		)
	}
}
