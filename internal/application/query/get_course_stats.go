package query

import (
	"context"
	"errors"

	"github.com/edupulse/edupulse/internal/domain/course"
	"github.com/edupulse/edupulse/internal/domain/enrollment"
	"github.com/edupulse/edupulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COURSE STATS QUERY
// Агрегированная статистика курса для преподавателя: сколько студентов,
// как далеко они продвинулись, какие уроки проседают.
// ══════════════════════════════════════════════════════════════════════════════

// GetCourseStatsQuery содержит параметры запроса.
type GetCourseStatsQuery struct {
	// CourseID - курс.
	CourseID string

	// Actor - аутентифицированный вызывающий. Должен быть автором курса
	// или администратором.
	Actor shared.Actor
}

// Validate проверяет корректность параметров.
func (q GetCourseStatsQuery) Validate() error {
	if q.CourseID == "" {
		return errors.New("get_course_stats: course_id is required")
	}
	if q.Actor.ID == "" {
		return errors.New("get_course_stats: actor is required")
	}
	return nil
}

// LessonStatsDTO - статистика одного урока.
type LessonStatsDTO struct {
	LessonID       string `json:"lesson_id"`
	CompletedCount int    `json:"completed_count"`
}

// CourseStatsDTO - агрегированная статистика курса.
type CourseStatsDTO struct {
	CourseID          string           `json:"course_id"`
	Title             string           `json:"title"`
	TotalEnrollments  int              `json:"total_enrollments"`
	CompletedCount    int              `json:"completed_count"`
	AverageCompletion int              `json:"average_completion"`
	TotalLessons      int              `json:"total_lessons"`
	Lessons           []LessonStatsDTO `json:"lessons"`
}

// GetCourseStatsHandler обрабатывает GetCourseStatsQuery.
type GetCourseStatsHandler struct {
	enrollmentRepo enrollment.Repository
	courseRepo     course.Repository
}

// NewGetCourseStatsHandler создаёт новый GetCourseStatsHandler.
func NewGetCourseStatsHandler(enrollmentRepo enrollment.Repository, courseRepo course.Repository) *GetCourseStatsHandler {
	return &GetCourseStatsHandler{
		enrollmentRepo: enrollmentRepo,
		courseRepo:     courseRepo,
	}
}

// Handle возвращает статистику курса.
func (h *GetCourseStatsHandler) Handle(ctx context.Context, q GetCourseStatsQuery) (*CourseStatsDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	crs, err := h.courseRepo.GetByID(ctx, q.CourseID)
	if err != nil {
		return nil, err
	}
	if !crs.IsOwnedBy(q.Actor.ID) && q.Actor.Role != shared.RoleAdmin {
		return nil, shared.NewDomainError("course", "GetStats", shared.ErrForbidden, "only the course instructor can view stats")
	}

	enrollments, err := h.enrollmentRepo.GetByCourse(ctx, q.CourseID)
	if err != nil {
		return nil, err
	}

	stats := &CourseStatsDTO{
		CourseID:     crs.ID,
		Title:        crs.Title,
		TotalLessons: crs.TotalLessons(),
	}

	perLesson := make(map[string]int, len(crs.LessonIDs))
	completionSum := 0
	for _, e := range enrollments {
		stats.TotalEnrollments++
		completionSum += e.CompletionPercentage
		if e.IsCompleted {
			stats.CompletedCount++
		}
		for _, p := range e.Progress {
			if p.Completed {
				perLesson[p.LessonID]++
			}
		}
	}
	if stats.TotalEnrollments > 0 {
		stats.AverageCompletion = completionSum / stats.TotalEnrollments
	}

	// Только актуальные уроки курса, в порядке программы. Завершения
	// уроков, удалённых из курса, в разбивку не попадают.
	stats.Lessons = make([]LessonStatsDTO, 0, len(crs.LessonIDs))
	for _, lessonID := range crs.LessonIDs {
		stats.Lessons = append(stats.Lessons, LessonStatsDTO{
			LessonID:       lessonID,
			CompletedCount: perLesson[lessonID],
		})
	}
	return stats, nil
}
