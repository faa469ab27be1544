package enrollment

import (
	"math"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS ENGINE
// Чистая функция пересчёта процента прохождения и перехода в завершённое
// состояние. Никакого I/O; время передаётся вызывающим.
// ══════════════════════════════════════════════════════════════════════════════

// Recompute пересчитывает процент прохождения записи относительно
// актуального набора уроков курса и применяет правило перехода:
//
//   - процент = round(100 * пройдено / len(currentLessonIDs));
//     при пустом наборе уроков процент равен 0 (это не ошибка);
//   - достижение 100% впервые устанавливает IsCompleted и CompletedAt;
//   - повторное достижение 100% не трогает CompletedAt (идемпотентно);
//   - падение ниже 100% (например, в курс добавили уроки) НЕ откатывает
//     IsCompleted и CompletedAt - завершение монотонно.
func Recompute(e *Enrollment, currentLessonIDs []string, now time.Time) {
	e.CompletionPercentage = Percentage(e.CompletedLessons(currentLessonIDs), len(currentLessonIDs))

	if e.CompletionPercentage == 100 && !e.IsCompleted {
		e.IsCompleted = true
		t := now
		e.CompletedAt = &t
	}

	e.UpdatedAt = now
}

// Percentage возвращает round(100 * completed / total); 0 при total == 0.
func Percentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
