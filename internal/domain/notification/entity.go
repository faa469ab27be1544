// Package notification содержит доменную модель уведомлений.
// Уведомления - долговечный след событий платформы: они создаются
// обработчиками событий и переживают обрыв realtime-соединения.
package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/edupulse/edupulse/internal/domain/shared"
)

// Type определяет тип уведомления.
type Type string

const (
	// TypeCourseEnrollment - студент записался на курс.
	TypeCourseEnrollment Type = "course_enrollment"
	// TypeLessonCompleted - студент завершил урок.
	TypeLessonCompleted Type = "lesson_completed"
	// TypeAssessmentGraded - попытка сдачи теста проверена.
	TypeAssessmentGraded Type = "assessment_graded"
	// TypeAnnouncement - объявление преподавателя.
	TypeAnnouncement Type = "announcement"
)

// IsValid проверяет, что тип уведомления корректен.
func (t Type) IsValid() bool {
	switch t {
	case TypeCourseEnrollment, TypeLessonCompleted, TypeAssessmentGraded, TypeAnnouncement:
		return true
	default:
		return false
	}
}

// Notification - одно уведомление для одного получателя.
type Notification struct {
	// ID - уникальный идентификатор (UUID в строковом формате).
	ID string

	// RecipientID - получатель.
	RecipientID string

	// SenderID - инициатор (опционально, пусто для системных).
	SenderID string

	// Type - тип уведомления.
	Type Type

	// Title - заголовок.
	Title string

	// Message - текст.
	Message string

	// RelatedCourseID - связанный курс (опционально).
	RelatedCourseID string

	// RelatedAssessmentID - связанный тест (опционально).
	RelatedAssessmentID string

	// IsRead - прочитано ли.
	IsRead bool

	// ReadAt - время прочтения.
	ReadAt *time.Time

	// CreatedAt - время создания.
	CreatedAt time.Time
}

// New создаёт уведомление. Валидирует тип и обязательные поля.
func New(recipientID string, t Type, title, message string, now time.Time) (*Notification, error) {
	if recipientID == "" {
		return nil, shared.ErrEmptyRecipient
	}
	if !t.IsValid() {
		return nil, shared.ErrInvalidNotificationType
	}
	if title == "" || message == "" {
		return nil, shared.ErrEmptyNotification
	}
	return &Notification{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Type:        t,
		Title:       title,
		Message:     message,
		CreatedAt:   now,
	}, nil
}

// MarkRead помечает уведомление прочитанным. Идемпотентно:
// повторный вызов не сдвигает ReadAt.
func (n *Notification) MarkRead(now time.Time) {
	if n.IsRead {
		return
	}
	n.IsRead = true
	n.ReadAt = &now
}
