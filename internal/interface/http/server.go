// Package http implements the REST and streaming API of EduPulse.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/edupulse/edupulse/internal/application/command"
	"github.com/edupulse/edupulse/internal/application/query"
	"github.com/edupulse/edupulse/internal/domain/course"
	"github.com/edupulse/edupulse/internal/domain/notification"
	"github.com/edupulse/edupulse/internal/domain/shared"
	"github.com/edupulse/edupulse/internal/infrastructure/messaging"
	"github.com/edupulse/edupulse/internal/interface/http/handlers"
	"github.com/edupulse/edupulse/pkg/clock"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	// ReadTimeout - maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout - maximum duration for writing the response.
	// Streaming endpoints override this per connection.
	WriteTimeout time.Duration

	// IdleTimeout - maximum duration for idle connections.
	IdleTimeout time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// EnableCORS - enable CORS headers.
	EnableCORS bool

	// AllowedOrigins - allowed origins for CORS.
	AllowedOrigins []string

	// StreamBufferSize - per-connection event buffer for room streams.
	StreamBufferSize int

	// StreamHeartbeat - interval between keep-alive comments on streams.
	StreamHeartbeat time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:             "0.0.0.0",
		Port:             8080,
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     15 * time.Second,
		IdleTimeout:      60 * time.Second,
		MaxHeaderBytes:   1 << 20, // 1 MB
		EnableCORS:       true,
		AllowedOrigins:   []string{"*"},
		StreamBufferSize: 32,
		StreamHeartbeat:  25 * time.Second,
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Presence tracks per-course online actors. Optional.
type Presence interface {
	MarkOnline(ctx context.Context, courseID, actorID string) error
	MarkOffline(ctx context.Context, courseID, actorID string) error
	Online(ctx context.Context, courseID string) ([]string, error)
}

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command handlers (CQRS write side)
	EnrollStudentHandler        *command.EnrollStudentHandler
	UpdateLessonProgressHandler *command.UpdateLessonProgressHandler
	SubmitAssessmentHandler     *command.SubmitAssessmentHandler

	// Query handlers (CQRS read side)
	GetMyCoursesHandler     *query.GetMyCoursesHandler
	GetCourseStatsHandler   *query.GetCourseStatsHandler
	GetMySubmissionsHandler *query.GetMySubmissionsHandler

	// Real-time fan-out
	Registry  *messaging.Registry
	Publisher shared.EventPublisher
	Presence  Presence

	// Repositories used directly by thin endpoints
	CourseRepo       course.Repository
	NotificationRepo notification.Repository

	// Ambient
	Clock         clock.Clock
	Logger        *slog.Logger
	HealthChecker handlers.HealthChecker
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	logger     *slog.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.buildMiddlewareChain(s.router),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & status
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /health", handlers.Health(s.deps.HealthChecker))
	s.router.HandleFunc("GET /healthz", handlers.Health(s.deps.HealthChecker))
	s.router.HandleFunc("GET /live", handlers.Liveness())

	// ─────────────────────────────────────────────────────────────────────────
	// Enrollments & progress
	// ─────────────────────────────────────────────────────────────────────────
	s.handle("POST /api/v1/enrollments", s.handleEnroll)
	s.handle("GET /api/v1/enrollments/my", s.handleGetMyCourses)
	s.handle("PUT /api/v1/enrollments/{id}/progress", s.handleUpdateProgress)

	// ─────────────────────────────────────────────────────────────────────────
	// Assessments
	// ─────────────────────────────────────────────────────────────────────────
	s.handle("POST /api/v1/assessments/{id}/submissions", s.handleSubmitAssessment)
	s.handle("GET /api/v1/assessments/{id}/submissions/my", s.handleGetMySubmissions)

	// ─────────────────────────────────────────────────────────────────────────
	// Course rooms
	// ─────────────────────────────────────────────────────────────────────────
	s.handle("GET /api/v1/courses/{id}/events", s.handleCourseStream)
	s.handle("GET /api/v1/courses/{id}/stats", s.handleCourseStats)
	s.handle("GET /api/v1/courses/{id}/online", s.handleCourseOnline)
	s.handle("POST /api/v1/courses/{id}/announcements", s.handleAnnounce)
	s.handle("POST /api/v1/courses/{id}/messages", s.handleChatMessage)

	// ─────────────────────────────────────────────────────────────────────────
	// Notifications
	// ─────────────────────────────────────────────────────────────────────────
	s.handle("GET /api/v1/notifications/my", s.handleGetNotifications)
	s.handle("POST /api/v1/notifications/{id}/read", s.handleMarkNotificationRead)
}

// handle registers an authenticated route.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.router.Handle(pattern, handlers.RequireActor(h))
}

// buildMiddlewareChain wraps the router with the outer middleware.
func (s *Server) buildMiddlewareChain(next http.Handler) http.Handler {
	h := next
	if s.config.EnableCORS {
		h = s.corsMiddleware(h)
	}
	h = handlers.Logging(s.logger)(h)
	h = handlers.Recovery(s.logger)(h)
	return h
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := "*"
	if len(s.config.AllowedOrigins) > 0 {
		allowed = s.config.AllowedOrigins[0]
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+handlers.HeaderActorID+", "+handlers.HeaderActorRole)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server. Blocks until the server stops.
func (s *Server) Start() error {
	s.mu.Lock()
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("http server starting", "address", s.config.Address())

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type enrollRequest struct {
	CourseID  string `json:"course_id"`
	StudentID string `json:"student_id,omitempty"`
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	actor, _ := handlers.ActorFromContext(r.Context())

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CourseID == "" {
		handlers.WriteError(w, http.StatusBadRequest, "course_id is required")
		return
	}

	result, err := s.deps.EnrollStudentHandler.Handle(r.Context(), command.EnrollStudentCommand{
		CourseID:  req.CourseID,
		Actor:     actor,
		StudentID: req.StudentID,
	})
	if err != nil {
		handlers.WriteDomainError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGetMyCourses(w http.ResponseWriter, r *http.Request) {
	actor, _ := handlers.ActorFromContext(r.Context())

	result, err := s.deps.GetMyCoursesHandler.Handle(r.Context(), query.GetMyCoursesQuery{Actor: actor})
	if err != nil {
		handlers.WriteDomainError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, result)
}

type progressRequest struct {
	LessonID         string `json:"lesson_id"`
	Completed        bool   `json:"completed"`
	WatchTimeSeconds int    `json:"watch_time_seconds"`
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	actor, _ := handlers.ActorFromContext(r.Context())
	enrollmentID := r.PathValue("id")

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LessonID == "" {
		handlers.WriteError(w, http.StatusBadRequest, "lesson_id is required")
		return
	}
	if req.WatchTimeSeconds < 0 {
		handlers.WriteError(w, http.StatusBadRequest, "watch_time_seconds cannot be negative")
		return
	}

	result, err := s.deps.UpdateLessonProgressHandler.Handle(r.Context(), command.UpdateLessonProgressCommand{
		EnrollmentID:     enrollmentID,
		Actor:            actor,
		LessonID:         req.LessonID,
		Completed:        req.Completed,
		WatchTimeSeconds: req.WatchTimeSeconds,
	})
	if err != nil {
		handlers.WriteDomainError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type submitRequest struct {
	Answers []struct {
		QuestionID string `json:"question_id"`
		Text       string `json:"text"`
	} `json:"answers"`
	TimeSpentMinutes int `json:"time_spent_minutes"`
}

func (s *Server) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	actor, _ := handlers.ActorFromContext(r.Context())
	assessmentID := r.PathValue("id")

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TimeSpentMinutes < 0 {
		handlers.WriteError(w, http.StatusBadRequest, "time_spent_minutes cannot be negative")
		return
	}

	answers := make([]command.AnswerInput, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = command.AnswerInput{QuestionID: a.QuestionID, Text: a.Text}
	}

	result, err := s.deps.SubmitAssessmentHandler.Handle(r.Context(), command.SubmitAssessmentCommand{
		AssessmentID:     assessmentID,
		Actor:            actor,
		Answers:          answers,
		TimeSpentMinutes: req.TimeSpentMinutes,
	})
	if err != nil {
		handlers.WriteDomainError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGetMySubmissions(w http.ResponseWriter, r *http.Request) {
	actor, _ := handlers.ActorFromContext(r.Context())

	result, err := s.deps.GetMySubmissionsHandler.Handle(r.Context(), query.GetMySubmissionsQuery{
		AssessmentID: r.PathValue("id"),
		Actor:        actor,
	})
	if err != nil {
		handlers.WriteDomainError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE ROOM HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleCourseStats(w http.ResponseWriter, r *http.Request) {
	actor, _ := handlers.ActorFromContext(r.Context())

	result, err := s.deps.GetCourseStatsHandler.Handle(r.Context(), query.GetCourseStatsQuery{
		CourseID: r.PathValue("id"),
		Actor:    actor,
	})
	if err != nil {
		handlers.WriteDomainError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleCourseOnline(w http.ResponseWriter, r *http.Request) {
	if s.deps.Presence == nil {
		handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{"online": []string{}})
		return
	}

	online, err := s.deps.Presence.Online(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("failed to read presence", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if online == nil {
		online = []string{}
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{"online": online})
}

type announceRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	actor, _ := handlers.ActorFromContext(r.Context())
	courseID := r.PathValue("id")

	var req announceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Message == "" {
		handlers.WriteError(w, http.StatusBadRequest, "title and message are required")
		return
	}

	crs, err := s.deps.CourseRepo.GetByID(r.Context(), courseID)
	if err != nil {
		handlers.WriteDomainError(w, err)
		return
	}
	if !crs.IsOwnedBy(actor.ID) && actor.Role != shared.RoleAdmin {
		handlers.WriteError(w, http.StatusForbidden, "only the course instructor can announce")
		return
	}

	event := shared.NewAnnouncementEvent(courseID, actor.ID, req.Title, req.Message, s.deps.Clock.Now())
	if err := s.deps.Publisher.Publish(courseID, event); err != nil {
		handlers.WriteDomainError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "published"})
}

type chatRequest struct {
	SenderName string `json:"sender_name"`
	Message    string `json:"message"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	actor, _ := handlers.ActorFromContext(r.Context())
	courseID := r.PathValue("id")

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		handlers.WriteError(w, http.StatusBadRequest, "message is required")
		return
	}

	event := shared.NewChatMessageEvent(courseID, actor.ID, req.SenderName, req.Message, s.deps.Clock.Now())
	if err := s.deps.Publisher.Publish(courseID, event); err != nil {
		handlers.WriteDomainError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "published"})
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type notificationDTO struct {
	ID                  string     `json:"id"`
	Type                string     `json:"type"`
	Title               string     `json:"title"`
	Message             string     `json:"message"`
	SenderID            string     `json:"sender_id,omitempty"`
	RelatedCourseID     string     `json:"related_course_id,omitempty"`
	RelatedAssessmentID string     `json:"related_assessment_id,omitempty"`
	IsRead              bool       `json:"is_read"`
	ReadAt              *time.Time `json:"read_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	actor, _ := handlers.ActorFromContext(r.Context())

	items, err := s.deps.NotificationRepo.GetByRecipient(r.Context(), actor.ID, 50)
	if err != nil {
		handlers.WriteDomainError(w, err)
		return
	}
	unread, err := s.deps.NotificationRepo.CountUnread(r.Context(), actor.ID)
	if err != nil {
		handlers.WriteDomainError(w, err)
		return
	}

	dtos := make([]notificationDTO, 0, len(items))
	for _, n := range items {
		dtos = append(dtos, notificationDTO{
			ID:                  n.ID,
			Type:                string(n.Type),
			Title:               n.Title,
			Message:             n.Message,
			SenderID:            n.SenderID,
			RelatedCourseID:     n.RelatedCourseID,
			RelatedAssessmentID: n.RelatedAssessmentID,
			IsRead:              n.IsRead,
			ReadAt:              n.ReadAt,
			CreatedAt:           n.CreatedAt,
		})
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": dtos,
		"unread_count":  unread,
	})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := handlers.ActorFromContext(r.Context())
	id := r.PathValue("id")

	n, err := s.deps.NotificationRepo.GetByID(r.Context(), id)
	if err != nil {
		handlers.WriteDomainError(w, err)
		return
	}
	if n.RecipientID != actor.ID {
		handlers.WriteError(w, http.StatusForbidden, "not your notification")
		return
	}

	if err := s.deps.NotificationRepo.MarkRead(r.Context(), id); err != nil {
		handlers.WriteDomainError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
