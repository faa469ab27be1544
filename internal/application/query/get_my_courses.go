// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"time"

	"github.com/edupulse/edupulse/internal/domain/course"
	"github.com/edupulse/edupulse/internal/domain/enrollment"
	"github.com/edupulse/edupulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MY COURSES QUERY
// Возвращает все курсы студента с его прогрессом по каждому.
// ══════════════════════════════════════════════════════════════════════════════

// GetMyCoursesQuery содержит параметры запроса.
type GetMyCoursesQuery struct {
	// Actor - аутентифицированный студент.
	Actor shared.Actor
}

// Validate проверяет корректность параметров.
func (q GetMyCoursesQuery) Validate() error {
	if q.Actor.ID == "" {
		return errors.New("get_my_courses: actor is required")
	}
	return nil
}

// EnrolledCourseDTO - один курс студента с прогрессом.
type EnrolledCourseDTO struct {
	EnrollmentID         string     `json:"enrollment_id"`
	CourseID             string     `json:"course_id"`
	Title                string     `json:"title"`
	EnrolledAt           time.Time  `json:"enrolled_at"`
	CompletionPercentage int        `json:"completion_percentage"`
	IsCompleted          bool       `json:"is_completed"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CompletedLessons     int        `json:"completed_lessons"`
	TotalLessons         int        `json:"total_lessons"`
	TotalWatchTimeSec    int        `json:"total_watch_time_seconds"`
	LastAccessedAt       time.Time  `json:"last_accessed_at"`
}

// GetMyCoursesHandler обрабатывает GetMyCoursesQuery.
type GetMyCoursesHandler struct {
	enrollmentRepo enrollment.Repository
	courseRepo     course.Repository
}

// NewGetMyCoursesHandler создаёт новый GetMyCoursesHandler.
func NewGetMyCoursesHandler(enrollmentRepo enrollment.Repository, courseRepo course.Repository) *GetMyCoursesHandler {
	return &GetMyCoursesHandler{
		enrollmentRepo: enrollmentRepo,
		courseRepo:     courseRepo,
	}
}

// Handle возвращает курсы студента. Проценты и счётчики считаются от
// актуального набора уроков курса, а не от длины сохранённого прогресса.
func (h *GetMyCoursesHandler) Handle(ctx context.Context, q GetMyCoursesQuery) ([]EnrolledCourseDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	enrollments, err := h.enrollmentRepo.GetByStudent(ctx, q.Actor.ID)
	if err != nil {
		return nil, err
	}

	result := make([]EnrolledCourseDTO, 0, len(enrollments))
	for _, e := range enrollments {
		dto := EnrolledCourseDTO{
			EnrollmentID:         e.ID,
			CourseID:             e.CourseID,
			EnrolledAt:           e.EnrolledAt,
			CompletionPercentage: e.CompletionPercentage,
			IsCompleted:          e.IsCompleted,
			CompletedAt:          e.CompletedAt,
			TotalWatchTimeSec:    e.TotalWatchTimeSeconds(),
			LastAccessedAt:       e.LastAccessedAt,
		}

		crs, err := h.courseRepo.GetByID(ctx, e.CourseID)
		if err != nil {
			// Курс мог быть снят с публикации; запись остаётся видимой.
			if !shared.IsNotFound(err) {
				return nil, err
			}
			result = append(result, dto)
			continue
		}

		dto.Title = crs.Title
		dto.TotalLessons = crs.TotalLessons()
		dto.CompletedLessons = e.CompletedLessons(crs.LessonIDs)
		result = append(result, dto)
	}
	return result, nil
}
