package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/edupulse/internal/domain/assessment"
	"github.com/edupulse/edupulse/internal/domain/shared"
	"github.com/edupulse/edupulse/pkg/clock"
)

func submitFixture(t *testing.T) (*fakeAssessmentStore, *capturePublisher, *SubmitAssessmentHandler) {
	t.Helper()

	a := &assessment.Assessment{
		ID:           "asm-1",
		CourseID:     "course-1",
		InstructorID: "instr-1",
		Title:        "Midterm",
		Questions: []assessment.Question{
			{ID: "q1", Type: assessment.QuestionMultipleChoice, CorrectAnswer: "b", Points: 10},
			{ID: "q2", Type: assessment.QuestionTrueFalse, CorrectAnswer: "true", Points: 10},
		},
		PassingScore: 50,
		Attempts:     2,
		IsPublished:  true,
	}
	store := newFakeAssessmentStore(a)
	pub := &capturePublisher{}
	clk := clock.NewFixed(time.Date(2026, 7, 1, 15, 0, 0, 0, time.UTC))
	handler := NewSubmitAssessmentHandler(store, pub, clk, nil)
	return store, pub, handler
}

func TestSubmitAssessment_HappyPath(t *testing.T) {
	store, pub, handler := submitFixture(t)

	res, err := handler.Handle(context.Background(), SubmitAssessmentCommand{
		AssessmentID: "asm-1",
		Actor:        shared.Actor{ID: "student-1", Role: shared.RoleStudent},
		Answers: []AnswerInput{
			{QuestionID: "q1", Text: "b"},
			{QuestionID: "q2", Text: "false"},
		},
		TimeSpentMinutes: 30,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, res.Score)
	assert.Equal(t, 20, res.TotalPoints)
	assert.Equal(t, 50, res.Percentage)
	assert.True(t, res.IsPassed)
	assert.Equal(t, 1, res.AttemptNumber)
	assert.Equal(t, 1, res.AttemptsRemaining)
	assert.NotEmpty(t, res.SubmissionID)

	subs, err := store.GetSubmissionsByStudent(context.Background(), "asm-1", "student-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)

	ev := pub.last()
	require.NotNil(t, ev)
	assert.Equal(t, shared.EventSubmissionGraded, ev.EventType())
	assert.Equal(t, "course-1", ev.CourseID())
	// aggregate only: the payload must not carry per-answer detail
	payload := ev.Payload()
	assert.NotContains(t, payload, "answers")
	assert.Equal(t, 50, payload["percentage"])
}

func TestSubmitAssessment_AttemptLimit(t *testing.T) {
	store, _, handler := submitFixture(t)
	cmd := SubmitAssessmentCommand{
		AssessmentID: "asm-1",
		Actor:        shared.Actor{ID: "student-1", Role: shared.RoleStudent},
		Answers:      []AnswerInput{{QuestionID: "q1", Text: "b"}},
	}

	for i := 0; i < 2; i++ {
		_, err := handler.Handle(context.Background(), cmd)
		require.NoError(t, err)
	}

	_, err := handler.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrAttemptLimit))

	// nothing extra was stored
	subs, _ := store.GetSubmissionsByStudent(context.Background(), "asm-1", "student-1")
	assert.Len(t, subs, 2)
}

func TestSubmitAssessment_DuplicateAttemptRegradedOnce(t *testing.T) {
	store, _, handler := submitFixture(t)

	// A parallel submission wins attempt #1 right before our save. The
	// handler must recount, regrade as attempt #2 and succeed.
	fired := false
	store.beforeSaveSubmission = func(s *fakeAssessmentStore) {
		if fired {
			return
		}
		fired = true
		s.insertRacingSubmission("asm-1", "student-1")
	}

	res, err := handler.Handle(context.Background(), SubmitAssessmentCommand{
		AssessmentID: "asm-1",
		Actor:        shared.Actor{ID: "student-1", Role: shared.RoleStudent},
		Answers:      []AnswerInput{{QuestionID: "q1", Text: "b"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.AttemptNumber)
	assert.Equal(t, 0, res.AttemptsRemaining)
	assert.Equal(t, 2, store.saveCalls)
}

func TestSubmitAssessment_DuplicateAttemptHitsLimitOnRegrade(t *testing.T) {
	store, _, handler := submitFixture(t)

	// Attempt #1 already used; the racer takes #2, the last allowed one.
	// The regrade recount then trips the attempt limit.
	_, err := handler.Handle(context.Background(), SubmitAssessmentCommand{
		AssessmentID: "asm-1",
		Actor:        shared.Actor{ID: "student-1", Role: shared.RoleStudent},
		Answers:      []AnswerInput{{QuestionID: "q1", Text: "b"}},
	})
	require.NoError(t, err)

	fired := false
	store.beforeSaveSubmission = func(s *fakeAssessmentStore) {
		if fired {
			return
		}
		fired = true
		s.insertRacingSubmission("asm-1", "student-1")
	}

	_, err = handler.Handle(context.Background(), SubmitAssessmentCommand{
		AssessmentID: "asm-1",
		Actor:        shared.Actor{ID: "student-1", Role: shared.RoleStudent},
		Answers:      []AnswerInput{{QuestionID: "q1", Text: "b"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrAttemptLimit))
}

func TestSubmitAssessment_NotFoundAndUnpublished(t *testing.T) {
	store, _, handler := submitFixture(t)
	actor := shared.Actor{ID: "student-1", Role: shared.RoleStudent}

	_, err := handler.Handle(context.Background(), SubmitAssessmentCommand{
		AssessmentID: "missing", Actor: actor,
	})
	assert.True(t, errors.Is(err, shared.ErrAssessmentNotFound))

	// an unpublished assessment is indistinguishable from a missing one
	store.assessments["asm-1"].IsPublished = false
	_, err = handler.Handle(context.Background(), SubmitAssessmentCommand{
		AssessmentID: "asm-1", Actor: actor,
	})
	assert.True(t, errors.Is(err, shared.ErrAssessmentNotFound))
}

func TestSubmitAssessment_Validation(t *testing.T) {
	_, _, handler := submitFixture(t)

	_, err := handler.Handle(context.Background(), SubmitAssessmentCommand{
		Actor: shared.Actor{ID: "student-1"},
	})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), SubmitAssessmentCommand{
		AssessmentID: "asm-1",
	})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), SubmitAssessmentCommand{
		AssessmentID:     "asm-1",
		Actor:            shared.Actor{ID: "student-1"},
		TimeSpentMinutes: -5,
	})
	assert.True(t, errors.Is(err, shared.ErrNegativeTimeSpent))
}
