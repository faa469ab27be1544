package course

import (
	"context"
)

// Repository определяет операции чтения курсов, которые нужны ядру.
// Реализации находятся в infrastructure/persistence.
type Repository interface {
	// GetByID возвращает курс по идентификатору.
	// Возвращает shared.ErrCourseNotFound, если курс не найден.
	GetByID(ctx context.Context, id string) (*Course, error)

	// GetLessonIDs возвращает текущий упорядоченный список уроков курса.
	// Возвращает shared.ErrCourseNotFound, если курс не найден.
	GetLessonIDs(ctx context.Context, courseID string) ([]string, error)
}
