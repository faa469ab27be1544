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
// ON PROGRESS UPDATED HANDLER
// Пишет студенту долговечное уведомление о завершении урока и курса.
// Обновления без завершения (пересмотр, учёт времени) следа не оставляют.
// ═══════════════════════════════════════════════════════════════════════════

// OnProgressUpdatedHandler обрабатывает событие обновления прогресса.
type OnProgressUpdatedHandler struct {
	notificationRepo notification.Repository
	clock            clock.Clock
	logger           *slog.Logger
}

// NewOnProgressUpdatedHandler создаёт новый обработчик.
func NewOnProgressUpdatedHandler(
	notificationRepo notification.Repository,
	clk clock.Clock,
	logger *slog.Logger,
) *OnProgressUpdatedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnProgressUpdatedHandler{
		notificationRepo: notificationRepo,
		clock:            clk,
		logger:           logger.With("handler", "on_progress_updated"),
	}
}

// Handle обрабатывает событие. Реализует shared.EventHandler: ошибки
// записи логируются и не возвращаются.
func (h *OnProgressUpdatedHandler) Handle(event shared.Event) error {
	progressEvent, ok := event.(shared.ProgressUpdateEvent)
	if !ok {
		h.logger.Warn("received non-ProgressUpdateEvent", "event_type", event.EventType())
		return nil
	}
	if !progressEvent.Completed {
		return nil
	}

	title := "Lesson completed"
	message := fmt.Sprintf("Course progress: %d%%", progressEvent.CompletionPercentage)
	if progressEvent.CourseCompleted {
		title = "Course completed"
		message = "Congratulations, you finished the course!"
	}

	n, err := notification.New(
		progressEvent.StudentID,
		notification.TypeLessonCompleted,
		title,
		message,
		h.clock.Now(),
	)
	if err != nil {
		h.logger.Error("failed to build progress notification", "error", err)
		return nil
	}
	n.RelatedCourseID = progressEvent.CourseID()

	if err := h.notificationRepo.Create(context.Background(), n); err != nil {
		h.logger.Error("failed to save progress notification",
			"student_id", progressEvent.StudentID,
			"course_id", progressEvent.CourseID(),
			"error", err,
		)
	}
	return nil
}
