package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/edupulse/edupulse/internal/domain/course"
	"github.com/edupulse/edupulse/internal/domain/enrollment"
	"github.com/edupulse/edupulse/internal/domain/shared"
	"github.com/edupulse/edupulse/pkg/clock"
	"github.com/edupulse/edupulse/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE LESSON PROGRESS COMMAND
// Upserts one lesson progress entry, recomputes completion against the
// course's current lesson set and saves under an optimistic lock. A lost
// version race is retried internally with a fresh read; the command never
// surfaces a conflict caused purely by interleaved writers backing off.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateLessonProgressCommand contains the data to update lesson progress.
type UpdateLessonProgressCommand struct {
	// EnrollmentID is the enrollment to update.
	EnrollmentID string

	// Actor is the authenticated caller. Must own the enrollment.
	Actor shared.Actor

	// LessonID is the lesson being reported.
	LessonID string

	// Completed is the reported completion flag.
	Completed bool

	// WatchTimeSeconds is the reported watch time. Overwrites the stored
	// value, it is not accumulated.
	WatchTimeSeconds int
}

// Validate validates the command.
func (c UpdateLessonProgressCommand) Validate() error {
	if c.EnrollmentID == "" {
		return errors.New("update_lesson_progress: enrollment_id is required")
	}
	if c.Actor.ID == "" {
		return errors.New("update_lesson_progress: actor is required")
	}
	if c.LessonID == "" {
		return shared.ErrInvalidLessonID
	}
	if c.WatchTimeSeconds < 0 {
		return shared.ErrNegativeWatchTime
	}
	return nil
}

// UpdateLessonProgressResult contains the result of a progress update.
type UpdateLessonProgressResult struct {
	// EnrollmentID is the updated enrollment.
	EnrollmentID string

	// LessonID is the lesson that was reported.
	LessonID string

	// LessonCompleted is the stored completion flag after the update.
	LessonCompleted bool

	// CompletionPercentage is the recomputed course completion.
	CompletionPercentage int

	// CourseCompleted reports whether the whole course is completed.
	CourseCompleted bool

	// CompletedAt is when the course was first completed, if ever.
	CompletedAt *time.Time

	// UpdatedAt is when the update was applied.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// UpdateLessonProgressHandler handles the UpdateLessonProgressCommand.
type UpdateLessonProgressHandler struct {
	enrollmentRepo enrollment.Repository
	courseRepo     course.Repository
	publisher      shared.EventPublisher
	clock          clock.Clock
	retrier        *retry.Retrier
	logger         *slog.Logger
}

// NewUpdateLessonProgressHandler creates a new UpdateLessonProgressHandler.
func NewUpdateLessonProgressHandler(
	enrollmentRepo enrollment.Repository,
	courseRepo course.Repository,
	publisher shared.EventPublisher,
	clk clock.Clock,
	logger *slog.Logger,
) *UpdateLessonProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateLessonProgressHandler{
		enrollmentRepo: enrollmentRepo,
		courseRepo:     courseRepo,
		publisher:      publisher,
		clock:          clk,
		retrier:        retry.StoreRetrier(),
		logger:         logger,
	}
}

// Handle applies one lesson progress report.
func (h *UpdateLessonProgressHandler) Handle(ctx context.Context, cmd UpdateLessonProgressCommand) (*UpdateLessonProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var saved *enrollment.Enrollment

	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		e, err := h.enrollmentRepo.GetByID(ctx, cmd.EnrollmentID)
		if err != nil {
			return retry.Permanent(err)
		}

		if !e.IsOwnedBy(cmd.Actor.ID) && cmd.Actor.Role != shared.RoleAdmin {
			return retry.Permanent(shared.ErrNotEnrollmentOwner)
		}

		lessonIDs, err := h.courseRepo.GetLessonIDs(ctx, e.CourseID)
		if err != nil {
			return retry.Permanent(err)
		}

		now := h.clock.Now()
		if err := e.UpsertLessonProgress(cmd.LessonID, cmd.Completed, cmd.WatchTimeSeconds, now); err != nil {
			return retry.Permanent(err)
		}
		enrollment.Recompute(e, lessonIDs, now)

		// A version mismatch is retryable: the retrier re-runs the whole
		// read-modify-write with a fresh snapshot.
		if err := h.enrollmentRepo.Save(ctx, e, e.Version); err != nil {
			if errors.Is(err, shared.ErrOptimisticLock) {
				return retry.Retryable(err)
			}
			return retry.Permanent(err)
		}

		saved = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.publish(saved, cmd)

	entry := saved.FindLesson(cmd.LessonID)
	result := &UpdateLessonProgressResult{
		EnrollmentID:         saved.ID,
		LessonID:             cmd.LessonID,
		CompletionPercentage: saved.CompletionPercentage,
		CourseCompleted:      saved.IsCompleted,
		CompletedAt:          saved.CompletedAt,
		UpdatedAt:            saved.UpdatedAt,
	}
	if entry != nil {
		result.LessonCompleted = entry.Completed
	}
	return result, nil
}

// publish emits the room event. Fan-out failures are logged, never
// propagated: the write already succeeded.
func (h *UpdateLessonProgressHandler) publish(e *enrollment.Enrollment, cmd UpdateLessonProgressCommand) {
	if h.publisher == nil {
		return
	}

	event := shared.NewProgressUpdateEvent(
		e.CourseID,
		e.StudentID,
		e.ID,
		cmd.LessonID,
		cmd.Completed,
		e.CompletionPercentage,
		e.IsCompleted,
		e.UpdatedAt,
	)
	if err := h.publisher.Publish(e.CourseID, event); err != nil {
		h.logger.Error("failed to publish progress update",
			"enrollment_id", e.ID,
			"course_id", e.CourseID,
			"error", err,
		)
	}
}
