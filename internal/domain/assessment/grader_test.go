package assessment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/edupulse/internal/domain/shared"
)

func newTestAssessment() *Assessment {
	return &Assessment{
		ID:           "asm-1",
		CourseID:     "course-1",
		InstructorID: "instr-1",
		Title:        "Go basics",
		Questions: []Question{
			{ID: "q1", Text: "2+2?", Type: QuestionMultipleChoice, Options: []string{"3", "4"}, CorrectAnswer: "4", Points: 10},
			{ID: "q2", Text: "Go is compiled", Type: QuestionTrueFalse, CorrectAnswer: "true", Points: 5},
			{ID: "q3", Text: "Keyword for constants?", Type: QuestionShortAnswer, CorrectAnswer: "const", Points: 5},
		},
		PassingScore: 60,
		Attempts:     3,
		IsPublished:  true,
	}
}

func TestGrade_AllCorrect(t *testing.T) {
	a := newTestAssessment()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	sub, err := Grade(a, "student-1", 0, []SubmittedAnswer{
		{QuestionID: "q1", Text: "4"},
		{QuestionID: "q2", Text: "true"},
		{QuestionID: "q3", Text: "const"},
	}, 12, now)
	require.NoError(t, err)

	assert.Equal(t, "asm-1", sub.AssessmentID)
	assert.Equal(t, "student-1", sub.StudentID)
	assert.Equal(t, 20, sub.Score)
	assert.Equal(t, 100, sub.Percentage)
	assert.True(t, sub.IsPassed)
	assert.Equal(t, 1, sub.AttemptNumber)
	assert.Equal(t, 3, sub.CorrectAnswers())
	assert.Equal(t, now, sub.SubmittedAt)
	assert.NotEmpty(t, sub.ID)
}

func TestGrade_PartialScore(t *testing.T) {
	a := newTestAssessment()

	sub, err := Grade(a, "student-1", 1, []SubmittedAnswer{
		{QuestionID: "q1", Text: "4"},
		{QuestionID: "q2", Text: "false"},
	}, 8, time.Now())
	require.NoError(t, err)

	// 10 of 20 points; q3 unanswered scores zero.
	assert.Equal(t, 10, sub.Score)
	assert.Equal(t, 50, sub.Percentage)
	assert.False(t, sub.IsPassed)
	assert.Equal(t, 2, sub.AttemptNumber)
	require.Len(t, sub.Answers, 2)
	assert.True(t, sub.Answers[0].IsCorrect)
	assert.Equal(t, 10, sub.Answers[0].PointsAwarded)
	assert.False(t, sub.Answers[1].IsCorrect)
	assert.Equal(t, 0, sub.Answers[1].PointsAwarded)
}

func TestGrade_AttemptLimit(t *testing.T) {
	a := newTestAssessment()

	_, err := Grade(a, "student-1", 3, nil, 0, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrAttemptLimit))

	// The limit is checked before anything else: even with no answers and
	// counts above the limit the error is the same.
	_, err = Grade(a, "student-1", 7, []SubmittedAnswer{{QuestionID: "q1", Text: "4"}}, -5, time.Now())
	assert.True(t, errors.Is(err, shared.ErrAttemptLimit))
}

func TestGrade_NegativeTimeSpent(t *testing.T) {
	a := newTestAssessment()

	_, err := Grade(a, "student-1", 0, nil, -1, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrNegativeTimeSpent))
}

func TestGrade_UnknownQuestionIgnored(t *testing.T) {
	a := newTestAssessment()

	sub, err := Grade(a, "student-1", 0, []SubmittedAnswer{
		{QuestionID: "q1", Text: "4"},
		{QuestionID: "ghost", Text: "anything"},
	}, 5, time.Now())
	require.NoError(t, err)

	// The unknown answer is dropped, not recorded as incorrect.
	require.Len(t, sub.Answers, 1)
	assert.Equal(t, "q1", sub.Answers[0].QuestionID)
	assert.Equal(t, 10, sub.Score)
}

func TestGrade_ExactStringMatch(t *testing.T) {
	a := newTestAssessment()

	sub, err := Grade(a, "student-1", 0, []SubmittedAnswer{
		{QuestionID: "q3", Text: "Const"}, // wrong case
		{QuestionID: "q2", Text: " true"}, // leading space
	}, 5, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 0, sub.Score)
	assert.False(t, sub.Answers[0].IsCorrect)
	assert.False(t, sub.Answers[1].IsCorrect)
}

func TestGrade_ZeroTotalPoints(t *testing.T) {
	a := newTestAssessment()
	for i := range a.Questions {
		a.Questions[i].Points = 0
	}

	sub, err := Grade(a, "student-1", 0, []SubmittedAnswer{
		{QuestionID: "q1", Text: "4"},
	}, 5, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 0, sub.Score)
	assert.Equal(t, 0, sub.Percentage)
	// 0 >= PassingScore only when the threshold is zero; here it is 60.
	assert.False(t, sub.IsPassed)
}

func TestGrade_PercentageRounding(t *testing.T) {
	a := &Assessment{
		ID:           "asm-2",
		Attempts:     1,
		PassingScore: 67,
		Questions: []Question{
			{ID: "q1", CorrectAnswer: "a", Points: 1},
			{ID: "q2", CorrectAnswer: "a", Points: 1},
			{ID: "q3", CorrectAnswer: "a", Points: 1},
		},
	}

	sub, err := Grade(a, "student-1", 0, []SubmittedAnswer{
		{QuestionID: "q1", Text: "a"},
		{QuestionID: "q2", Text: "a"},
	}, 1, time.Now())
	require.NoError(t, err)

	// 2/3 rounds to 67, which meets a 67 threshold.
	assert.Equal(t, 67, sub.Percentage)
	assert.True(t, sub.IsPassed)
}

func TestQuestionType_IsValid(t *testing.T) {
	assert.True(t, QuestionMultipleChoice.IsValid())
	assert.True(t, QuestionTrueFalse.IsValid())
	assert.True(t, QuestionShortAnswer.IsValid())
	assert.True(t, QuestionEssay.IsValid())
	assert.False(t, QuestionType("matching").IsValid())
	assert.False(t, QuestionType("").IsValid())
}

func TestAssessment_TotalPoints(t *testing.T) {
	a := newTestAssessment()
	assert.Equal(t, 20, a.TotalPoints())

	empty := &Assessment{}
	assert.Equal(t, 0, empty.TotalPoints())
}
