// Package eventhandler содержит обработчики событий комнат.
// Сами события эфемерны: доставляются только подключённым в момент
// публикации. Обработчики пишут долговечный след - уведомления,
// которые переживают обрыв соединения.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edupulse/edupulse/internal/domain/notification"
	"github.com/edupulse/edupulse/internal/domain/shared"
	"github.com/edupulse/edupulse/pkg/clock"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON SUBMISSION GRADED HANDLER
// Пишет студенту долговечное уведомление о проверенной попытке.
// ═══════════════════════════════════════════════════════════════════════════

// OnSubmissionGradedHandler обрабатывает событие проверки сабмишена.
type OnSubmissionGradedHandler struct {
	notificationRepo notification.Repository
	clock            clock.Clock
	logger           *slog.Logger
}

// NewOnSubmissionGradedHandler создаёт новый обработчик.
func NewOnSubmissionGradedHandler(
	notificationRepo notification.Repository,
	clk clock.Clock,
	logger *slog.Logger,
) *OnSubmissionGradedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnSubmissionGradedHandler{
		notificationRepo: notificationRepo,
		clock:            clk,
		logger:           logger.With("handler", "on_submission_graded"),
	}
}

// Handle обрабатывает событие. Реализует shared.EventHandler: ошибки
// записи уведомления логируются и не возвращаются - проверка попытки
// уже состоялась, и фан-аут других подписчиков страдать не должен.
func (h *OnSubmissionGradedHandler) Handle(event shared.Event) error {
	gradedEvent, ok := event.(shared.SubmissionGradedEvent)
	if !ok {
		h.logger.Warn("received non-SubmissionGradedEvent", "event_type", event.EventType())
		return nil
	}

	title := "Assessment graded"
	message := fmt.Sprintf("Your attempt #%d scored %d%%", gradedEvent.AttemptNumber, gradedEvent.Percentage)
	if gradedEvent.IsPassed {
		message += " - passed"
	}

	n, err := notification.New(
		gradedEvent.StudentID,
		notification.TypeAssessmentGraded,
		title,
		message,
		h.clock.Now(),
	)
	if err != nil {
		h.logger.Error("failed to build graded notification", "error", err)
		return nil
	}
	n.RelatedCourseID = gradedEvent.CourseID()
	n.RelatedAssessmentID = gradedEvent.AssessmentID

	if err := h.notificationRepo.Create(context.Background(), n); err != nil {
		h.logger.Error("failed to save graded notification",
			"student_id", gradedEvent.StudentID,
			"assessment_id", gradedEvent.AssessmentID,
			"error", err,
		)
	}
	return nil
}
