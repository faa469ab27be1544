package enrollment

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Контракт адаптера хранилища. Реализации находятся в
// infrastructure/persistence; в тестах используется in-memory дублёр.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранилища для записей на курс.
type Repository interface {
	// Create создаёт новую запись.
	// Возвращает shared.ErrAlreadyEnrolled при дубликате (студент, курс).
	Create(ctx context.Context, e *Enrollment) error

	// GetByID возвращает запись по идентификатору.
	// Возвращает shared.ErrEnrollmentNotFound, если запись не найдена.
	GetByID(ctx context.Context, id string) (*Enrollment, error)

	// GetByStudentAndCourse возвращает запись по паре (студент, курс).
	// Возвращает shared.ErrEnrollmentNotFound, если запись не найдена.
	GetByStudentAndCourse(ctx context.Context, studentID, courseID string) (*Enrollment, error)

	// Save сохраняет запись с проверкой версии (check-and-set).
	// Запись пишется только если версия в хранилище равна expectedVersion;
	// при несовпадении возвращается shared.ErrEnrollmentConflict и
	// вызывающий обязан перечитать, пересчитать и повторить.
	// При успехе версия записи инкрементируется.
	Save(ctx context.Context, e *Enrollment, expectedVersion int) error

	// GetByStudent возвращает все записи студента.
	GetByStudent(ctx context.Context, studentID string) ([]*Enrollment, error)

	// GetByCourse возвращает все записи курса (для преподавателя).
	GetByCourse(ctx context.Context, courseID string) ([]*Enrollment, error)
}
