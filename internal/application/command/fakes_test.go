package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/edupulse/edupulse/internal/domain/assessment"
	"github.com/edupulse/edupulse/internal/domain/course"
	"github.com/edupulse/edupulse/internal/domain/enrollment"
	"github.com/edupulse/edupulse/internal/domain/notification"
	"github.com/edupulse/edupulse/internal/domain/shared"
)

// In-memory test doubles honoring the repository contracts, including the
// check-and-set on enrollments and the attempt-number uniqueness on
// submissions.

// ─── enrollment ───

type fakeEnrollmentStore struct {
	mu      sync.Mutex
	byID    map[string]*enrollment.Enrollment
	saves   int
	getters int

	// beforeSave runs inside Save before the version check, letting tests
	// interleave a concurrent writer.
	beforeSave func(s *fakeEnrollmentStore)
}

func newFakeEnrollmentStore() *fakeEnrollmentStore {
	return &fakeEnrollmentStore{byID: make(map[string]*enrollment.Enrollment)}
}

func (s *fakeEnrollmentStore) put(e *enrollment.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[e.ID] = e.Clone()
}

func (s *fakeEnrollmentStore) stored(id string) *enrollment.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id].Clone()
}

func (s *fakeEnrollmentStore) Create(_ context.Context, e *enrollment.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if existing.StudentID == e.StudentID && existing.CourseID == e.CourseID {
			return shared.ErrAlreadyEnrolled
		}
	}
	s.byID[e.ID] = e.Clone()
	return nil
}

func (s *fakeEnrollmentStore) GetByID(_ context.Context, id string) (*enrollment.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getters++
	e, ok := s.byID[id]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound
	}
	return e.Clone(), nil
}

func (s *fakeEnrollmentStore) GetByStudentAndCourse(_ context.Context, studentID, courseID string) (*enrollment.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.byID {
		if e.StudentID == studentID && e.CourseID == courseID {
			return e.Clone(), nil
		}
	}
	return nil, shared.ErrEnrollmentNotFound
}

func (s *fakeEnrollmentStore) Save(_ context.Context, e *enrollment.Enrollment, expectedVersion int) error {
	s.mu.Lock()
	hook := s.beforeSave
	s.mu.Unlock()
	if hook != nil {
		hook(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++
	current, ok := s.byID[e.ID]
	if !ok {
		return shared.ErrEnrollmentNotFound
	}
	if current.Version != expectedVersion {
		return shared.ErrEnrollmentConflict
	}

	saved := e.Clone()
	saved.Version = expectedVersion + 1
	s.byID[e.ID] = saved
	e.Version = saved.Version
	return nil
}

func (s *fakeEnrollmentStore) GetByStudent(_ context.Context, studentID string) ([]*enrollment.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*enrollment.Enrollment
	for _, e := range s.byID {
		if e.StudentID == studentID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (s *fakeEnrollmentStore) GetByCourse(_ context.Context, courseID string) ([]*enrollment.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*enrollment.Enrollment
	for _, e := range s.byID {
		if e.CourseID == courseID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

// ─── course ───

type fakeCourseStore struct {
	mu   sync.Mutex
	byID map[string]*course.Course
}

func newFakeCourseStore(courses ...*course.Course) *fakeCourseStore {
	s := &fakeCourseStore{byID: make(map[string]*course.Course)}
	for _, c := range courses {
		s.byID[c.ID] = c
	}
	return s
}

func (s *fakeCourseStore) GetByID(_ context.Context, id string) (*course.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	return c, nil
}

func (s *fakeCourseStore) GetLessonIDs(_ context.Context, courseID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[courseID]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	ids := make([]string, len(c.LessonIDs))
	copy(ids, c.LessonIDs)
	return ids, nil
}

// ─── assessment ───

type fakeAssessmentStore struct {
	mu          sync.Mutex
	assessments map[string]*assessment.Assessment
	submissions []*assessment.Submission
	saveCalls   int

	// beforeSaveSubmission runs inside SaveSubmission before the
	// uniqueness check, letting tests interleave a racing submission.
	beforeSaveSubmission func(s *fakeAssessmentStore)
}

func newFakeAssessmentStore(assessments ...*assessment.Assessment) *fakeAssessmentStore {
	s := &fakeAssessmentStore{assessments: make(map[string]*assessment.Assessment)}
	for _, a := range assessments {
		s.assessments[a.ID] = a
	}
	return s
}

func (s *fakeAssessmentStore) GetByID(_ context.Context, id string) (*assessment.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assessments[id]
	if !ok {
		return nil, shared.ErrAssessmentNotFound
	}
	return a, nil
}

func (s *fakeAssessmentStore) CountSubmissions(_ context.Context, assessmentID, studentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(assessmentID, studentID), nil
}

func (s *fakeAssessmentStore) countLocked(assessmentID, studentID string) int {
	count := 0
	for _, sub := range s.submissions {
		if sub.AssessmentID == assessmentID && sub.StudentID == studentID {
			count++
		}
	}
	return count
}

func (s *fakeAssessmentStore) SaveSubmission(_ context.Context, sub *assessment.Submission) error {
	s.mu.Lock()
	hook := s.beforeSaveSubmission
	s.mu.Unlock()
	if hook != nil {
		hook(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveCalls++
	for _, existing := range s.submissions {
		if existing.AssessmentID == sub.AssessmentID &&
			existing.StudentID == sub.StudentID &&
			existing.AttemptNumber == sub.AttemptNumber {
			return shared.ErrDuplicateAttempt
		}
	}
	s.submissions = append(s.submissions, sub)
	return nil
}

// insertRacingSubmission plants a submission as if a parallel request had
// just won the race for the next attempt number.
func (s *fakeAssessmentStore) insertRacingSubmission(assessmentID, studentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt := s.countLocked(assessmentID, studentID) + 1
	s.submissions = append(s.submissions, &assessment.Submission{
		ID:            fmt.Sprintf("racer-%d", attempt),
		AssessmentID:  assessmentID,
		StudentID:     studentID,
		AttemptNumber: attempt,
	})
}

func (s *fakeAssessmentStore) GetSubmissionsByStudent(_ context.Context, assessmentID, studentID string) ([]*assessment.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*assessment.Submission
	for _, sub := range s.submissions {
		if sub.AssessmentID == assessmentID && sub.StudentID == studentID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *fakeAssessmentStore) GetSubmissionsByAssessment(_ context.Context, assessmentID string) ([]*assessment.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*assessment.Submission
	for _, sub := range s.submissions {
		if sub.AssessmentID == assessmentID {
			out = append(out, sub)
		}
	}
	return out, nil
}

// ─── notification ───

type fakeNotificationStore struct {
	mu      sync.Mutex
	created []*notification.Notification
	failing bool
}

func newFakeNotificationStore() *fakeNotificationStore {
	return &fakeNotificationStore{}
}

func (s *fakeNotificationStore) Create(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return fmt.Errorf("notification store unavailable")
	}
	s.created = append(s.created, n)
	return nil
}

func (s *fakeNotificationStore) GetByID(_ context.Context, id string) (*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.created {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, shared.ErrNotificationNotFound
}

func (s *fakeNotificationStore) GetByRecipient(_ context.Context, recipientID string, limit int) ([]*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*notification.Notification
	for _, n := range s.created {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeNotificationStore) CountUnread(_ context.Context, recipientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.created {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *fakeNotificationStore) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.created {
		if n.ID == id {
			n.IsRead = true
			return nil
		}
	}
	return shared.ErrNotificationNotFound
}

// ─── publisher ───

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
	rooms  []string
	err    error
}

func (p *capturePublisher) Publish(courseID string, event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.rooms = append(p.rooms, courseID)
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) last() shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}
