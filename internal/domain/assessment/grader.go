package assessment

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/edupulse/edupulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADING ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Grade проверяет попытку сдачи теста и строит сабмишен.
//
// Порядок проверок фиксирован: лимит попыток сверяется до любой работы
// с ответами, чтобы студент с исчерпанными попытками не получил
// частичного результата. Ответы на несуществующие вопросы молча
// отбрасываются; пропущенный вопрос считается неотвеченным и даёт
// ноль баллов. Сверка ответа - точное совпадение строки, одинаково
// для всех типов вопросов.
func Grade(a *Assessment, studentID string, priorAttemptCount int, answers []SubmittedAnswer, timeSpentMinutes int, now time.Time) (*Submission, error) {
	if priorAttemptCount >= a.Attempts {
		return nil, shared.ErrAttemptLimit
	}
	if timeSpentMinutes < 0 {
		return nil, shared.ErrNegativeTimeSpent
	}

	graded := make([]GradedAnswer, 0, len(answers))
	score := 0
	for _, ans := range answers {
		q := a.FindQuestion(ans.QuestionID)
		if q == nil {
			continue
		}
		correct := ans.Text == q.CorrectAnswer
		awarded := 0
		if correct {
			awarded = q.Points
		}
		graded = append(graded, GradedAnswer{
			QuestionID:    ans.QuestionID,
			Text:          ans.Text,
			IsCorrect:     correct,
			PointsAwarded: awarded,
		})
		score += awarded
	}

	total := a.TotalPoints()
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(100 * float64(score) / float64(total)))
	}

	return &Submission{
		ID:               uuid.New().String(),
		AssessmentID:     a.ID,
		StudentID:        studentID,
		Answers:          graded,
		Score:            score,
		Percentage:       percentage,
		IsPassed:         percentage >= a.PassingScore,
		AttemptNumber:    priorAttemptCount + 1,
		TimeSpentMinutes: timeSpentMinutes,
		SubmittedAt:      now,
	}, nil
}
