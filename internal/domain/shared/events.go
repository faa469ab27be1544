// Package shared contains common domain types, errors and events that are
// used across all domain packages.
package shared

import (
	"time"
)

// Actor identifies the already-authenticated caller of an operation.
// Credential verification happens outside this core; handlers receive
// the actor id and role as trusted input.
type Actor struct {
	ID   string
	Role Role
}

// Role is the actor's role in the platform.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// IsValid checks that the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanManageCourses returns true for roles allowed to see instructor views.
func (r Role) CanManageCourses() bool {
	return r == RoleInstructor || r == RoleAdmin
}

// EventType represents the type of room event.
type EventType string

// Room event types. Every event is scoped to one course room and is
// delivered at most once to the connections joined at publish time.
const (
	// EventProgressUpdate - a student updated lesson progress.
	EventProgressUpdate EventType = "progress-update"

	// EventSubmissionGraded - a student's assessment submission was graded.
	EventSubmissionGraded EventType = "submission-graded"

	// EventAnnouncement - an instructor posted a course announcement.
	EventAnnouncement EventType = "announcement"

	// EventChatMessage - a room member sent a chat message.
	EventChatMessage EventType = "chat-message"
)

// IsValid checks that the event type is known.
func (t EventType) IsValid() bool {
	switch t {
	case EventProgressUpdate, EventSubmissionGraded, EventAnnouncement, EventChatMessage:
		return true
	default:
		return false
	}
}

// Event is the base interface for all room events. Events are ephemeral:
// they are never stored and a connection that was not a room member at
// emit time never receives them.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// CourseID returns the course room the event is scoped to.
	CourseID() string

	// OccurredAt returns when the event was emitted.
	OccurredAt() time.Time

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type      EventType `json:"type"`
	Course    string    `json:"course_id"`
	EmittedAt time.Time `json:"emitted_at"`
}

// EventType implements Event.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// CourseID implements Event.
func (e BaseEvent) CourseID() string {
	return e.Course
}

// OccurredAt implements Event.
func (e BaseEvent) OccurredAt() time.Time {
	return e.EmittedAt
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, courseID string, emittedAt time.Time) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		Course:    courseID,
		EmittedAt: emittedAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgressUpdateEvent is emitted after a lesson-progress update is persisted.
type ProgressUpdateEvent struct {
	BaseEvent
	StudentID            string `json:"student_id"`
	EnrollmentID         string `json:"enrollment_id"`
	LessonID             string `json:"lesson_id"`
	Completed            bool   `json:"completed"`
	CompletionPercentage int    `json:"completion_percentage"`
	CourseCompleted      bool   `json:"course_completed"`
}

// Payload implements Event.
func (e ProgressUpdateEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":            e.StudentID,
		"enrollment_id":         e.EnrollmentID,
		"lesson_id":             e.LessonID,
		"completed":             e.Completed,
		"completion_percentage": e.CompletionPercentage,
		"course_completed":      e.CourseCompleted,
	}
}

// NewProgressUpdateEvent creates a new ProgressUpdateEvent.
func NewProgressUpdateEvent(courseID, studentID, enrollmentID, lessonID string, completed bool, percentage int, courseCompleted bool, at time.Time) ProgressUpdateEvent {
	return ProgressUpdateEvent{
		BaseEvent:            NewBaseEvent(EventProgressUpdate, courseID, at),
		StudentID:            studentID,
		EnrollmentID:         enrollmentID,
		LessonID:             lessonID,
		Completed:            completed,
		CompletionPercentage: percentage,
		CourseCompleted:      courseCompleted,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Grading Events
// ═══════════════════════════════════════════════════════════════════════════

// SubmissionGradedEvent is emitted after a submission is persisted.
// It carries only the aggregate result: the per-question correctness map
// would leak answers to the other room members.
type SubmissionGradedEvent struct {
	BaseEvent
	StudentID     string `json:"student_id"`
	AssessmentID  string `json:"assessment_id"`
	Score         int    `json:"score"`
	Percentage    int    `json:"percentage"`
	IsPassed      bool   `json:"is_passed"`
	AttemptNumber int    `json:"attempt_number"`
}

// Payload implements Event.
func (e SubmissionGradedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"assessment_id":  e.AssessmentID,
		"score":          e.Score,
		"percentage":     e.Percentage,
		"is_passed":      e.IsPassed,
		"attempt_number": e.AttemptNumber,
	}
}

// NewSubmissionGradedEvent creates a new SubmissionGradedEvent.
func NewSubmissionGradedEvent(courseID, studentID, assessmentID string, score, percentage int, isPassed bool, attemptNumber int, at time.Time) SubmissionGradedEvent {
	return SubmissionGradedEvent{
		BaseEvent:     NewBaseEvent(EventSubmissionGraded, courseID, at),
		StudentID:     studentID,
		AssessmentID:  assessmentID,
		Score:         score,
		Percentage:    percentage,
		IsPassed:      isPassed,
		AttemptNumber: attemptNumber,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Room Messaging Events
// ═══════════════════════════════════════════════════════════════════════════

// AnnouncementEvent is emitted when an instructor posts an announcement.
type AnnouncementEvent struct {
	BaseEvent
	SenderID string `json:"sender_id"`
	Title    string `json:"title"`
	Message  string `json:"message"`
}

// Payload implements Event.
func (e AnnouncementEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"sender_id": e.SenderID,
		"title":     e.Title,
		"message":   e.Message,
	}
}

// NewAnnouncementEvent creates a new AnnouncementEvent.
func NewAnnouncementEvent(courseID, senderID, title, message string, at time.Time) AnnouncementEvent {
	return AnnouncementEvent{
		BaseEvent: NewBaseEvent(EventAnnouncement, courseID, at),
		SenderID:  senderID,
		Title:     title,
		Message:   message,
	}
}

// ChatMessageEvent is emitted when a room member sends a chat message.
type ChatMessageEvent struct {
	BaseEvent
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Message    string `json:"message"`
}

// Payload implements Event.
func (e ChatMessageEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"sender_id":   e.SenderID,
		"sender_name": e.SenderName,
		"message":     e.Message,
	}
}

// NewChatMessageEvent creates a new ChatMessageEvent.
func NewChatMessageEvent(courseID, senderID, senderName, message string, at time.Time) ChatMessageEvent {
	return ChatMessageEvent{
		BaseEvent:  NewBaseEvent(EventChatMessage, courseID, at),
		SenderID:   senderID,
		SenderName: senderName,
		Message:    message,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event. Handlers run on the
// bus side and must never block the publishing caller.
type EventHandler func(event Event) error

// EventPublisher publishes an event to a course room. Delivery is
// best-effort and at most once per connection joined at publish time;
// there is no acknowledgement, retry or persistence.
type EventPublisher interface {
	Publish(courseID string, event Event) error
}

// EventSubscriber registers in-process handlers for published events.
// Handlers observe every event regardless of room membership; they are
// used for side effects such as writing durable notifications.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
