// Package enrollment содержит доменную модель записи студента на курс.
// Это ядро бизнес-логики прогресса - здесь нет внешних зависимостей.
package enrollment

import (
	"strings"
	"time"

	"github.com/edupulse/edupulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment - запись одного студента на один курс. Уникальна по паре
// (студент, курс); создаётся один раз и мутирует только через обновления
// прогресса. Удаляется только внешним каскадным удалением курса.
type Enrollment struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// StudentID - идентификатор студента-владельца.
	StudentID string

	// CourseID - идентификатор курса.
	CourseID string

	// EnrolledAt - время записи на курс.
	EnrolledAt time.Time

	// Progress - прогресс по урокам в порядке вставки.
	Progress []LessonProgress

	// CompletionPercentage - процент прохождения (0-100). Всегда
	// вычисляется движком прогресса, никогда не задаётся вызывающим.
	CompletionPercentage int

	// IsCompleted - завершён ли курс. Однажды став true, никогда не
	// возвращается в false, даже если процент упал ниже 100.
	IsCompleted bool

	// CompletedAt - момент перехода в завершённое состояние.
	// Устанавливается ровно один раз.
	CompletedAt *time.Time

	// CertificateIssued - выдан ли сертификат (внешним коллаборатором).
	CertificateIssued bool

	// LastAccessedAt - время последнего обращения студента к курсу.
	LastAccessedAt time.Time

	// Version - версия записи для оптимистичной блокировки.
	Version int

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// LessonProgress - прогресс по одному уроку.
type LessonProgress struct {
	// LessonID - идентификатор урока.
	LessonID string

	// Completed - пройден ли урок.
	Completed bool

	// CompletedAt - когда урок был впервые отмечен пройденным.
	// Не сбрасывается, если урок позже отметили непройденным.
	CompletedAt *time.Time

	// WatchTimeSeconds - суммарное время просмотра в секундах.
	WatchTimeSeconds int
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewEnrollment создаёт новую запись на курс. Прогресс засеивается
// текущими уроками курса со статусом "не пройден".
func NewEnrollment(id, studentID, courseID string, lessonIDs []string, now time.Time) (*Enrollment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.NewDomainError("enrollment", "Create", shared.ErrInvalidID, "enrollment id is required")
	}
	if strings.TrimSpace(studentID) == "" {
		return nil, shared.NewDomainError("enrollment", "Create", shared.ErrInvalidID, "student id is required")
	}
	if strings.TrimSpace(courseID) == "" {
		return nil, shared.NewDomainError("enrollment", "Create", shared.ErrInvalidID, "course id is required")
	}

	progress := make([]LessonProgress, 0, len(lessonIDs))
	for _, lessonID := range lessonIDs {
		progress = append(progress, LessonProgress{LessonID: lessonID})
	}

	return &Enrollment{
		ID:                   id,
		StudentID:            studentID,
		CourseID:             courseID,
		EnrolledAt:           now,
		Progress:             progress,
		CompletionPercentage: 0,
		IsCompleted:          false,
		LastAccessedAt:       now,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// IsOwnedBy проверяет, принадлежит ли запись студенту.
func (e *Enrollment) IsOwnedBy(studentID string) bool {
	return e.StudentID == studentID
}

// FindLesson возвращает указатель на прогресс урока или nil.
func (e *Enrollment) FindLesson(lessonID string) *LessonProgress {
	for i := range e.Progress {
		if e.Progress[i].LessonID == lessonID {
			return &e.Progress[i]
		}
	}
	return nil
}

// UpsertLessonProgress создаёт или обновляет прогресс урока.
// CompletedAt урока устанавливается только на переходе false→true и не
// сбрасывается обратно. Порядок вставки сохраняется.
func (e *Enrollment) UpsertLessonProgress(lessonID string, completed bool, watchTimeSeconds int, now time.Time) error {
	if strings.TrimSpace(lessonID) == "" {
		return shared.ErrInvalidLessonID
	}
	if watchTimeSeconds < 0 {
		return shared.ErrNegativeWatchTime
	}

	entry := e.FindLesson(lessonID)
	if entry == nil {
		e.Progress = append(e.Progress, LessonProgress{LessonID: lessonID})
		entry = &e.Progress[len(e.Progress)-1]
	}

	if completed && entry.CompletedAt == nil {
		t := now
		entry.CompletedAt = &t
	}
	entry.Completed = completed
	entry.WatchTimeSeconds = watchTimeSeconds

	e.LastAccessedAt = now
	e.UpdatedAt = now

	return nil
}

// CompletedLessons возвращает количество уроков, отмеченных пройденными,
// среди переданного актуального набора уроков курса.
func (e *Enrollment) CompletedLessons(currentLessonIDs []string) int {
	current := make(map[string]struct{}, len(currentLessonIDs))
	for _, id := range currentLessonIDs {
		current[id] = struct{}{}
	}

	count := 0
	for _, p := range e.Progress {
		if !p.Completed {
			continue
		}
		if _, ok := current[p.LessonID]; ok {
			count++
		}
	}
	return count
}

// TotalWatchTimeSeconds возвращает суммарное время просмотра.
func (e *Enrollment) TotalWatchTimeSeconds() int {
	total := 0
	for _, p := range e.Progress {
		total += p.WatchTimeSeconds
	}
	return total
}

// Touch обновляет время последнего обращения к курсу.
func (e *Enrollment) Touch(now time.Time) {
	e.LastAccessedAt = now
	e.UpdatedAt = now
}

// Clone создаёт глубокую копию записи.
func (e *Enrollment) Clone() *Enrollment {
	if e == nil {
		return nil
	}

	clone := *e
	clone.Progress = make([]LessonProgress, len(e.Progress))
	copy(clone.Progress, e.Progress)
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		clone.CompletedAt = &t
	}
	for i := range clone.Progress {
		if e.Progress[i].CompletedAt != nil {
			t := *e.Progress[i].CompletedAt
			clone.Progress[i].CompletedAt = &t
		}
	}
	return &clone
}
