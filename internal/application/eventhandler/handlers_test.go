package eventhandler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/edupulse/internal/domain/notification"
	"github.com/edupulse/edupulse/internal/domain/shared"
	"github.com/edupulse/edupulse/pkg/clock"
)

type fakeNotificationStore struct {
	created []*notification.Notification
	failing bool
}

func (s *fakeNotificationStore) Create(_ context.Context, n *notification.Notification) error {
	if s.failing {
		return errors.New("store unavailable")
	}
	s.created = append(s.created, n)
	return nil
}

func (s *fakeNotificationStore) GetByID(context.Context, string) (*notification.Notification, error) {
	return nil, shared.ErrNotificationNotFound
}

func (s *fakeNotificationStore) GetByRecipient(context.Context, string, int) ([]*notification.Notification, error) {
	return nil, nil
}

func (s *fakeNotificationStore) CountUnread(context.Context, string) (int, error) {
	return 0, nil
}

func (s *fakeNotificationStore) MarkRead(context.Context, string) error {
	return nil
}

var handlerClock = clock.NewFixed(time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC))

func TestOnSubmissionGraded(t *testing.T) {
	store := &fakeNotificationStore{}
	handler := NewOnSubmissionGradedHandler(store, handlerClock, nil)

	event := shared.NewSubmissionGradedEvent("course-1", "student-1", "asm-1", 15, 75, true, 2, handlerClock.Now())
	require.NoError(t, handler.Handle(event))

	require.Len(t, store.created, 1)
	n := store.created[0]
	assert.Equal(t, "student-1", n.RecipientID)
	assert.Equal(t, notification.TypeAssessmentGraded, n.Type)
	assert.Equal(t, "course-1", n.RelatedCourseID)
	assert.Equal(t, "asm-1", n.RelatedAssessmentID)
	assert.Contains(t, n.Message, "attempt #2")
	assert.Contains(t, n.Message, "75%")
	assert.Contains(t, n.Message, "passed")
}

func TestOnSubmissionGraded_FailedAttempt(t *testing.T) {
	store := &fakeNotificationStore{}
	handler := NewOnSubmissionGradedHandler(store, handlerClock, nil)

	event := shared.NewSubmissionGradedEvent("course-1", "student-1", "asm-1", 5, 25, false, 1, handlerClock.Now())
	require.NoError(t, handler.Handle(event))

	require.Len(t, store.created, 1)
	assert.NotContains(t, store.created[0].Message, "passed")
}

func TestOnSubmissionGraded_WrongEventType(t *testing.T) {
	store := &fakeNotificationStore{}
	handler := NewOnSubmissionGradedHandler(store, handlerClock, nil)

	event := shared.NewAnnouncementEvent("course-1", "instr-1", "Title", "Message", handlerClock.Now())
	require.NoError(t, handler.Handle(event))
	assert.Empty(t, store.created)
}

func TestOnSubmissionGraded_StoreFailureSwallowed(t *testing.T) {
	store := &fakeNotificationStore{failing: true}
	handler := NewOnSubmissionGradedHandler(store, handlerClock, nil)

	event := shared.NewSubmissionGradedEvent("course-1", "student-1", "asm-1", 15, 75, true, 1, handlerClock.Now())
	// the fan-out must never see the storage error
	assert.NoError(t, handler.Handle(event))
}

func TestOnProgressUpdated_LessonCompleted(t *testing.T) {
	store := &fakeNotificationStore{}
	handler := NewOnProgressUpdatedHandler(store, handlerClock, nil)

	event := shared.NewProgressUpdateEvent("course-1", "student-1", "enr-1", "l1", true, 50, false, handlerClock.Now())
	require.NoError(t, handler.Handle(event))

	require.Len(t, store.created, 1)
	n := store.created[0]
	assert.Equal(t, "student-1", n.RecipientID)
	assert.Equal(t, notification.TypeLessonCompleted, n.Type)
	assert.Equal(t, "Lesson completed", n.Title)
	assert.Contains(t, n.Message, "50%")
}

func TestOnProgressUpdated_CourseCompleted(t *testing.T) {
	store := &fakeNotificationStore{}
	handler := NewOnProgressUpdatedHandler(store, handlerClock, nil)

	event := shared.NewProgressUpdateEvent("course-1", "student-1", "enr-1", "l2", true, 100, true, handlerClock.Now())
	require.NoError(t, handler.Handle(event))

	require.Len(t, store.created, 1)
	assert.Equal(t, "Course completed", store.created[0].Title)
}

func TestOnProgressUpdated_NonCompletionIgnored(t *testing.T) {
	store := &fakeNotificationStore{}
	handler := NewOnProgressUpdatedHandler(store, handlerClock, nil)

	// rewatching a lesson leaves no durable trace
	event := shared.NewProgressUpdateEvent("course-1", "student-1", "enr-1", "l1", false, 50, false, handlerClock.Now())
	require.NoError(t, handler.Handle(event))
	assert.Empty(t, store.created)
}
