// Package course содержит read-модель курса, достаточную для ядра
// прогресса и грейдинга. CRUD курсов и каталог живут во внешнем
// сервисе - здесь только то, что читает ядро.
package course

import (
	"time"
)

// Course - курс, на который записываются студенты.
type Course struct {
	// ID - уникальный идентификатор курса (UUID в строковом формате).
	ID string

	// Title - название курса.
	Title string

	// InstructorID - идентификатор преподавателя-владельца.
	InstructorID string

	// LessonIDs - упорядоченный список идентификаторов уроков.
	// Знаменатель для процента прохождения читается отсюда в момент
	// пересчёта: если урок удалили из курса, знаменатель меняется.
	LessonIDs []string

	// IsPublished - опубликован ли курс.
	IsPublished bool

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// TotalLessons возвращает текущее количество уроков курса.
func (c *Course) TotalLessons() int {
	return len(c.LessonIDs)
}

// HasLesson проверяет, принадлежит ли урок курсу.
func (c *Course) HasLesson(lessonID string) bool {
	for _, id := range c.LessonIDs {
		if id == lessonID {
			return true
		}
	}
	return false
}

// IsOwnedBy проверяет, владеет ли преподаватель курсом.
func (c *Course) IsOwnedBy(instructorID string) bool {
	return c.InstructorID == instructorID
}
