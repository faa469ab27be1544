package messaging

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/edupulse/edupulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROOM BUS
// ══════════════════════════════════════════════════════════════════════════════

// RoomBus is the in-process implementation of shared.EventBus. A published
// event fans out to the connections joined to the target room at the
// moment of publish, and to the registered in-process handlers.
//
// Delivery to connections is at most once and never blocks: slow
// connections have the event dropped and counted. Handlers run
// asynchronously on a bounded worker pool.
type RoomBus struct {
	registry *Registry

	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	closed      bool

	workerPool chan struct{}
	closeCh    chan struct{}
	wg         sync.WaitGroup

	logger  *slog.Logger
	metrics *RoomBusMetrics
}

// RoomBusConfig contains configuration for RoomBus.
type RoomBusConfig struct {
	// Registry is the connection registry to fan out to. Required.
	Registry *Registry

	// WorkerPoolSize bounds concurrent handler executions.
	WorkerPoolSize int

	// Logger for structured logging.
	Logger *slog.Logger

	// EnableMetrics enables delivery counters.
	EnableMetrics bool
}

// DefaultRoomBusConfig returns sensible defaults.
func DefaultRoomBusConfig(registry *Registry) RoomBusConfig {
	return RoomBusConfig{
		Registry:       registry,
		WorkerPoolSize: 10,
		EnableMetrics:  true,
	}
}

// NewRoomBus creates a room bus backed by the given registry.
func NewRoomBus(config RoomBusConfig) (*RoomBus, error) {
	if config.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	bus := &RoomBus{
		registry:   config.Registry,
		handlers:   make(map[shared.EventType][]shared.EventHandler),
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		closeCh:    make(chan struct{}),
		logger:     config.Logger,
	}
	if config.EnableMetrics {
		bus.metrics = NewRoomBusMetrics()
	}
	return bus, nil
}

// Subscribe registers a handler for a specific event type.
func (b *RoomBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)
	return nil
}

// SubscribeAll registers a handler for all events.
func (b *RoomBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	b.allHandlers = append(b.allHandlers, handler)
	b.logger.Debug("subscribed global handler")
	return nil
}

// Publish fans an event out to the room and to in-process handlers.
// The membership snapshot is taken once; connections joining after the
// snapshot do not receive the event, connections leaving after it may.
func (b *RoomBus) Publish(courseID string, event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}
	if courseID == "" {
		return shared.ErrEmptyCourse
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	b.fanOut(courseID, event)

	for _, handler := range handlers {
		b.executeAsync(event, handler)
	}
	return nil
}

// fanOut delivers the event to the room's current members.
func (b *RoomBus) fanOut(courseID string, event shared.Event) {
	conns := b.registry.Snapshot(courseID)
	if len(conns) == 0 {
		b.logger.Debug("no connections in room", "course_id", courseID, "event_type", event.EventType())
		return
	}

	delivered, dropped := 0, 0
	for _, conn := range conns {
		if conn.TrySend(event) {
			delivered++
		} else {
			dropped++
			b.logger.Warn("event dropped for slow connection",
				"course_id", courseID,
				"conn_id", conn.ID(),
				"event_type", event.EventType(),
			)
		}
	}

	if b.metrics != nil {
		b.metrics.RecordPublish(event.EventType(), delivered, dropped)
	}
}

// executeAsync runs a handler on the worker pool.
func (b *RoomBus) executeAsync(event shared.Event, handler shared.EventHandler) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		select {
		case b.workerPool <- struct{}{}:
			defer func() { <-b.workerPool }()
		case <-b.closeCh:
			return
		}

		start := time.Now()
		err := handler(event)
		duration := time.Since(start)

		if b.metrics != nil {
			b.metrics.RecordHandlerExecution(event.EventType(), duration, err == nil)
		}
		if err != nil {
			b.logger.Error("handler error",
				"event_type", event.EventType(),
				"duration", duration,
				"error", err,
			)
		}
	}()
}

// Close shuts the bus down and waits for pending handlers.
func (b *RoomBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("room bus closed")
	return nil
}

// Metrics returns the delivery counters, nil when disabled.
func (b *RoomBus) Metrics() *RoomBusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// RoomBusMetrics tracks fan-out and handler counters.
type RoomBusMetrics struct {
	mu sync.RWMutex

	PublishedTotal  map[shared.EventType]int64
	DeliveredTotal  int64
	DroppedTotal    int64
	HandlerExecs    int64
	HandlerFailures int64
	HandlerDuration time.Duration
}

// NewRoomBusMetrics creates a zeroed counter set.
func NewRoomBusMetrics() *RoomBusMetrics {
	return &RoomBusMetrics{
		PublishedTotal: make(map[shared.EventType]int64),
	}
}

// RecordPublish records one fan-out.
func (m *RoomBusMetrics) RecordPublish(eventType shared.EventType, delivered, dropped int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishedTotal[eventType]++
	m.DeliveredTotal += int64(delivered)
	m.DroppedTotal += int64(dropped)
}

// RecordHandlerExecution records one handler run.
func (m *RoomBusMetrics) RecordHandlerExecution(eventType shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.HandlerExecs++
	m.HandlerDuration += duration
	if !success {
		m.HandlerFailures++
	}
}

// Snapshot returns a point-in-time copy of the counters.
func (m *RoomBusMetrics) Snapshot() RoomBusMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var published int64
	for _, v := range m.PublishedTotal {
		published += v
	}
	return RoomBusMetricsSnapshot{
		Published:       published,
		Delivered:       m.DeliveredTotal,
		Dropped:         m.DroppedTotal,
		HandlerExecs:    m.HandlerExecs,
		HandlerFailures: m.HandlerFailures,
	}
}

// RoomBusMetricsSnapshot is a point-in-time snapshot of counters.
type RoomBusMetricsSnapshot struct {
	Published       int64
	Delivered       int64
	Dropped         int64
	HandlerExecs    int64
	HandlerFailures int64
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrBusClosed is returned when operations are attempted on a closed bus.
	ErrBusClosed = errors.New("room bus is closed")
)
