// Package assessment содержит доменную модель тестов и движок грейдинга.
// Тесты создаются преподавателем во внешнем сервисе; для грейдинга они
// неизменяемы - здесь только чтение определения и создание сабмишенов.
package assessment

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION TYPES
// ══════════════════════════════════════════════════════════════════════════════

// QuestionType определяет тип вопроса.
type QuestionType string

const (
	// QuestionMultipleChoice - вопрос с вариантами ответа.
	QuestionMultipleChoice QuestionType = "multiple-choice"
	// QuestionTrueFalse - вопрос да/нет.
	QuestionTrueFalse QuestionType = "true-false"
	// QuestionShortAnswer - короткий текстовый ответ.
	QuestionShortAnswer QuestionType = "short-answer"
	// QuestionEssay - эссе (также сверяется точным совпадением строки,
	// как в остальных типах).
	QuestionEssay QuestionType = "essay"
)

// IsValid проверяет, что тип вопроса корректен.
func (t QuestionType) IsValid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer, QuestionEssay:
		return true
	default:
		return false
	}
}

// Question - один вопрос теста.
type Question struct {
	// ID - идентификатор вопроса внутри теста.
	ID string

	// Text - текст вопроса.
	Text string

	// Type - тип вопроса.
	Type QuestionType

	// Options - варианты ответа (для multiple-choice).
	Options []string

	// CorrectAnswer - эталонный ответ. Сверяется точным совпадением
	// строки: с учётом регистра, без обрезки пробелов.
	CorrectAnswer string

	// Points - количество баллов за вопрос (>= 0).
	Points int

	// Explanation - пояснение, показываемое после сдачи.
	Explanation string
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT
// ══════════════════════════════════════════════════════════════════════════════

// Assessment - тест курса с ограничением числа попыток.
type Assessment struct {
	// ID - уникальный идентификатор (UUID в строковом формате).
	ID string

	// CourseID - курс, к которому относится тест.
	CourseID string

	// InstructorID - преподаватель-автор.
	InstructorID string

	// Title - название теста.
	Title string

	// Description - описание.
	Description string

	// Questions - список вопросов.
	Questions []Question

	// TimeLimitMinutes - лимит времени в минутах.
	TimeLimitMinutes int

	// PassingScore - проходной порог в процентах.
	PassingScore int

	// Attempts - максимальное число попыток на студента.
	Attempts int

	// IsPublished - опубликован ли тест.
	IsPublished bool

	// DueDate - срок сдачи (опционально).
	DueDate *time.Time

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// TotalPoints возвращает сумму баллов по всем вопросам.
// Всегда вычисляется из списка вопросов, никогда не хранится отдельно.
func (a *Assessment) TotalPoints() int {
	total := 0
	for _, q := range a.Questions {
		total += q.Points
	}
	return total
}

// FindQuestion возвращает вопрос по идентификатору или nil.
func (a *Assessment) FindQuestion(questionID string) *Question {
	for i := range a.Questions {
		if a.Questions[i].ID == questionID {
			return &a.Questions[i]
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSION
// ══════════════════════════════════════════════════════════════════════════════

// SubmittedAnswer - ответ студента на один вопрос, как он пришёл с клиента.
type SubmittedAnswer struct {
	// QuestionID - идентификатор вопроса.
	QuestionID string

	// Text - текст ответа.
	Text string
}

// GradedAnswer - проверенный ответ в составе сабмишена.
type GradedAnswer struct {
	// QuestionID - идентификатор вопроса.
	QuestionID string

	// Text - текст ответа студента.
	Text string

	// IsCorrect - совпал ли ответ с эталонным.
	IsCorrect bool

	// PointsAwarded - начислено баллов (Points вопроса или 0).
	PointsAwarded int
}

// Submission - одна проверенная попытка сдачи теста. Запись append-only:
// после создания не мутирует, даже если вопросы теста позже изменятся.
type Submission struct {
	// ID - уникальный идентификатор (UUID в строковом формате).
	ID string

	// AssessmentID - тест, который сдавали.
	AssessmentID string

	// StudentID - студент.
	StudentID string

	// Answers - проверенные ответы.
	Answers []GradedAnswer

	// Score - сумма начисленных баллов.
	Score int

	// Percentage - round(100 * Score / TotalPoints); 0 при TotalPoints == 0.
	Percentage int

	// IsPassed - Percentage >= PassingScore теста.
	IsPassed bool

	// AttemptNumber - номер попытки (с единицы), строго возрастает
	// в рамках пары (тест, студент).
	AttemptNumber int

	// TimeSpentMinutes - затраченное время в минутах.
	TimeSpentMinutes int

	// SubmittedAt - время сдачи.
	SubmittedAt time.Time
}

// CorrectAnswers возвращает количество верных ответов.
func (s *Submission) CorrectAnswers() int {
	count := 0
	for _, a := range s.Answers {
		if a.IsCorrect {
			count++
		}
	}
	return count
}
