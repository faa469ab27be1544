// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/edupulse/edupulse/internal/domain/course"
	"github.com/edupulse/edupulse/internal/domain/enrollment"
	"github.com/edupulse/edupulse/internal/domain/notification"
	"github.com/edupulse/edupulse/internal/domain/shared"
	"github.com/edupulse/edupulse/pkg/clock"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL STUDENT COMMAND
// Creates an enrollment seeded with one pending progress entry per lesson
// of the course's current lesson set.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollStudentCommand contains the data to enroll a student.
type EnrollStudentCommand struct {
	// CourseID is the course to enroll in.
	CourseID string

	// Actor is the authenticated caller. Students enroll themselves;
	// admins may enroll anyone via StudentID.
	Actor shared.Actor

	// StudentID is the student to enroll. Defaults to the actor.
	StudentID string
}

// Validate validates the command.
func (c EnrollStudentCommand) Validate() error {
	if c.CourseID == "" {
		return errors.New("enroll_student: course_id is required")
	}
	if c.Actor.ID == "" {
		return errors.New("enroll_student: actor is required")
	}
	return nil
}

// studentID resolves the effective student.
func (c EnrollStudentCommand) studentID() string {
	if c.StudentID != "" {
		return c.StudentID
	}
	return c.Actor.ID
}

// EnrollStudentResult contains the result of enrolling a student.
type EnrollStudentResult struct {
	// EnrollmentID is the ID of the new enrollment.
	EnrollmentID string

	// StudentID is the enrolled student.
	StudentID string

	// CourseID is the course.
	CourseID string

	// TotalLessons is the size of the course's lesson set at enrollment.
	TotalLessons int

	// EnrolledAt is when the enrollment was created.
	EnrolledAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// EnrollStudentHandler handles the EnrollStudentCommand.
type EnrollStudentHandler struct {
	enrollmentRepo   enrollment.Repository
	courseRepo       course.Repository
	notificationRepo notification.Repository
	clock            clock.Clock
	logger           *slog.Logger
}

// NewEnrollStudentHandler creates a new EnrollStudentHandler.
func NewEnrollStudentHandler(
	enrollmentRepo enrollment.Repository,
	courseRepo course.Repository,
	notificationRepo notification.Repository,
	clk clock.Clock,
	logger *slog.Logger,
) *EnrollStudentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrollStudentHandler{
		enrollmentRepo:   enrollmentRepo,
		courseRepo:       courseRepo,
		notificationRepo: notificationRepo,
		clock:            clk,
		logger:           logger,
	}
}

// Handle enrolls a student into a course.
func (h *EnrollStudentHandler) Handle(ctx context.Context, cmd EnrollStudentCommand) (*EnrollStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	studentID := cmd.studentID()
	if studentID != cmd.Actor.ID && cmd.Actor.Role != shared.RoleAdmin {
		return nil, shared.ErrNotEnrollmentOwner
	}

	crs, err := h.courseRepo.GetByID(ctx, cmd.CourseID)
	if err != nil {
		return nil, err
	}
	if !crs.IsPublished {
		return nil, shared.ErrCourseNotFound
	}

	now := h.clock.Now()
	e, err := enrollment.NewEnrollment(uuid.New().String(), studentID, crs.ID, crs.LessonIDs, now)
	if err != nil {
		return nil, err
	}

	if err := h.enrollmentRepo.Create(ctx, e); err != nil {
		return nil, err
	}

	h.logger.Info("student enrolled",
		"enrollment_id", e.ID,
		"student_id", studentID,
		"course_id", crs.ID,
	)

	h.notifyInstructor(ctx, crs, studentID, now)

	return &EnrollStudentResult{
		EnrollmentID: e.ID,
		StudentID:    studentID,
		CourseID:     crs.ID,
		TotalLessons: len(crs.LessonIDs),
		EnrolledAt:   e.EnrolledAt,
	}, nil
}

// notifyInstructor writes a durable enrollment notification for the
// course instructor. Failures are logged, never propagated: the
// enrollment itself already succeeded.
func (h *EnrollStudentHandler) notifyInstructor(ctx context.Context, crs *course.Course, studentID string, now time.Time) {
	if h.notificationRepo == nil || crs.InstructorID == "" {
		return
	}

	n, err := notification.New(
		crs.InstructorID,
		notification.TypeCourseEnrollment,
		"New enrollment",
		fmt.Sprintf("A new student enrolled in %q", crs.Title),
		now,
	)
	if err != nil {
		h.logger.Error("failed to build enrollment notification", "error", err)
		return
	}
	n.SenderID = studentID
	n.RelatedCourseID = crs.ID

	if err := h.notificationRepo.Create(ctx, n); err != nil {
		h.logger.Error("failed to save enrollment notification",
			"course_id", crs.ID,
			"error", err,
		)
	}
}
