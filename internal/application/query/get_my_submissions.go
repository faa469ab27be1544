package query

import (
	"context"
	"errors"
	"time"

	"github.com/edupulse/edupulse/internal/domain/assessment"
	"github.com/edupulse/edupulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MY SUBMISSIONS QUERY
// История попыток студента по одному тесту. Поответная разбивка
// раскрывается только когда попытки исчерпаны: иначе студент с
// оставшимися попытками получил бы ключ к ответам.
// ══════════════════════════════════════════════════════════════════════════════

// GetMySubmissionsQuery содержит параметры запроса.
type GetMySubmissionsQuery struct {
	// AssessmentID - тест.
	AssessmentID string

	// Actor - аутентифицированный студент.
	Actor shared.Actor
}

// Validate проверяет корректность параметров.
func (q GetMySubmissionsQuery) Validate() error {
	if q.AssessmentID == "" {
		return errors.New("get_my_submissions: assessment_id is required")
	}
	if q.Actor.ID == "" {
		return errors.New("get_my_submissions: actor is required")
	}
	return nil
}

// AnswerDetailDTO - один проверенный ответ.
type AnswerDetailDTO struct {
	QuestionID    string `json:"question_id"`
	Text          string `json:"text"`
	IsCorrect     bool   `json:"is_correct"`
	PointsAwarded int    `json:"points_awarded"`
	Explanation   string `json:"explanation,omitempty"`
}

// SubmissionDTO - одна попытка сдачи.
type SubmissionDTO struct {
	SubmissionID     string            `json:"submission_id"`
	AttemptNumber    int               `json:"attempt_number"`
	Score            int               `json:"score"`
	Percentage       int               `json:"percentage"`
	IsPassed         bool              `json:"is_passed"`
	TimeSpentMinutes int               `json:"time_spent_minutes"`
	SubmittedAt      time.Time         `json:"submitted_at"`
	Answers          []AnswerDetailDTO `json:"answers,omitempty"`
}

// MySubmissionsDTO - история попыток по тесту.
type MySubmissionsDTO struct {
	AssessmentID      string          `json:"assessment_id"`
	Title             string          `json:"title"`
	TotalPoints       int             `json:"total_points"`
	PassingScore      int             `json:"passing_score"`
	AttemptsAllowed   int             `json:"attempts_allowed"`
	AttemptsRemaining int             `json:"attempts_remaining"`
	Submissions       []SubmissionDTO `json:"submissions"`
}

// GetMySubmissionsHandler обрабатывает GetMySubmissionsQuery.
type GetMySubmissionsHandler struct {
	assessmentRepo assessment.Repository
}

// NewGetMySubmissionsHandler создаёт новый GetMySubmissionsHandler.
func NewGetMySubmissionsHandler(assessmentRepo assessment.Repository) *GetMySubmissionsHandler {
	return &GetMySubmissionsHandler{assessmentRepo: assessmentRepo}
}

// Handle возвращает историю попыток студента.
func (h *GetMySubmissionsHandler) Handle(ctx context.Context, q GetMySubmissionsQuery) (*MySubmissionsDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	a, err := h.assessmentRepo.GetByID(ctx, q.AssessmentID)
	if err != nil {
		return nil, err
	}

	subs, err := h.assessmentRepo.GetSubmissionsByStudent(ctx, q.AssessmentID, q.Actor.ID)
	if err != nil {
		return nil, err
	}

	remaining := a.Attempts - len(subs)
	if remaining < 0 {
		remaining = 0
	}
	revealAnswers := remaining == 0

	dto := &MySubmissionsDTO{
		AssessmentID:      a.ID,
		Title:             a.Title,
		TotalPoints:       a.TotalPoints(),
		PassingScore:      a.PassingScore,
		AttemptsAllowed:   a.Attempts,
		AttemptsRemaining: remaining,
		Submissions:       make([]SubmissionDTO, 0, len(subs)),
	}

	for _, s := range subs {
		sd := SubmissionDTO{
			SubmissionID:     s.ID,
			AttemptNumber:    s.AttemptNumber,
			Score:            s.Score,
			Percentage:       s.Percentage,
			IsPassed:         s.IsPassed,
			TimeSpentMinutes: s.TimeSpentMinutes,
			SubmittedAt:      s.SubmittedAt,
		}
		if revealAnswers {
			sd.Answers = make([]AnswerDetailDTO, 0, len(s.Answers))
			for _, ans := range s.Answers {
				detail := AnswerDetailDTO{
					QuestionID:    ans.QuestionID,
					Text:          ans.Text,
					IsCorrect:     ans.IsCorrect,
					PointsAwarded: ans.PointsAwarded,
				}
				if question := a.FindQuestion(ans.QuestionID); question != nil {
					detail.Explanation = question.Explanation
				}
				sd.Answers = append(sd.Answers, detail)
			}
		}
		dto.Submissions = append(dto.Submissions, sd)
	}
	return dto, nil
}
