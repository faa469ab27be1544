package assessment

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Контракт адаптера хранилища. Определения тестов здесь только читаются;
// сабмишены - append-only.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранилища для тестов и сабмишенов.
type Repository interface {
	// GetByID возвращает тест по идентификатору.
	// Возвращает shared.ErrAssessmentNotFound, если тест не найден.
	GetByID(ctx context.Context, id string) (*Assessment, error)

	// CountSubmissions возвращает число сабмишенов пары (тест, студент).
	CountSubmissions(ctx context.Context, assessmentID, studentID string) (int, error)

	// SaveSubmission сохраняет новый сабмишен.
	// Уникальность тройки (тест, студент, номер попытки) обеспечивается
	// хранилищем; при гонке двух параллельных сдач проигравший получает
	// shared.ErrDuplicateAttempt и вызывающий перечитывает счётчик
	// попыток и грейдит заново.
	SaveSubmission(ctx context.Context, s *Submission) error

	// GetSubmissionsByStudent возвращает сабмишены студента по тесту
	// в порядке возрастания номера попытки.
	GetSubmissionsByStudent(ctx context.Context, assessmentID, studentID string) ([]*Submission, error)

	// GetSubmissionsByAssessment возвращает все сабмишены теста
	// (для преподавателя).
	GetSubmissionsByAssessment(ctx context.Context, assessmentID string) ([]*Submission, error)
}
