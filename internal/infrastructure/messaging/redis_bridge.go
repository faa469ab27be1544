package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edupulse/edupulse/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS BRIDGE
// ══════════════════════════════════════════════════════════════════════════════

// RedisBridge extends a RoomBus across instances via Redis Pub/Sub.
// Events published on one instance are re-fanned-out to room members
// connected to other instances.
//
// Remote events reach connections only: in-process handlers run on the
// origin instance alone, so durable side effects such as notifications
// are written exactly once per publish.
type RedisBridge struct {
	client      *redis.Client
	localBus    *RoomBus
	registry    *Registry
	channelName string
	instanceID  string
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
}

// RedisBridgeConfig contains configuration for RedisBridge.
type RedisBridgeConfig struct {
	// Client is the Redis client to use. Required.
	Client *redis.Client

	// LocalBus handles local fan-out and subscriptions. Required.
	LocalBus *RoomBus

	// Registry is used for fan-out of remote events. Required.
	Registry *Registry

	// ChannelName is the Redis channel for events (default: "edupulse:rooms").
	ChannelName string

	// InstanceID uniquely identifies this instance for self-filtering.
	InstanceID string

	// Logger for structured logging.
	Logger *slog.Logger
}

// NewRedisBridge creates the bridge and starts its subscription loop.
func NewRedisBridge(config RedisBridgeConfig) (*RedisBridge, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.LocalBus == nil {
		return nil, errors.New("local bus is required")
	}
	if config.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if config.ChannelName == "" {
		config.ChannelName = "edupulse:rooms"
	}
	if config.InstanceID == "" {
		config.InstanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	bridge := &RedisBridge{
		client:      config.Client,
		localBus:    config.LocalBus,
		registry:    config.Registry,
		channelName: config.ChannelName,
		instanceID:  config.InstanceID,
		logger:      config.Logger,
		ctx:         ctx,
		cancel:      cancel,
	}

	pubsub := bridge.client.Subscribe(ctx, bridge.channelName)
	bridge.wg.Add(1)
	go func() {
		defer bridge.wg.Done()
		bridge.subscriptionLoop(pubsub)
	}()

	return bridge, nil
}

// Subscribe registers a handler on the local bus.
func (b *RedisBridge) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.localBus.Subscribe(eventType, handler)
}

// SubscribeAll registers a global handler on the local bus.
func (b *RedisBridge) SubscribeAll(handler shared.EventHandler) error {
	return b.localBus.SubscribeAll(handler)
}

// Publish fans the event out locally and announces it to other instances.
// A Redis failure degrades to local-only delivery; it is logged, not
// returned, so the caller's write path is never failed by the bridge.
func (b *RedisBridge) Publish(courseID string, event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	b.mu.RUnlock()

	envelope := roomEnvelope{
		InstanceID: b.instanceID,
		CourseID:   courseID,
		EventType:  event.EventType(),
		OccurredAt: event.OccurredAt(),
		Payload:    event.Payload(),
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := b.client.Publish(b.ctx, b.channelName, data).Err(); err != nil {
		b.logger.Error("failed to publish to redis", "error", err)
	}

	return b.localBus.Publish(courseID, event)
}

// subscriptionLoop processes messages from Redis.
func (b *RedisBridge) subscriptionLoop(pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			_ = pubsub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handleMessage(msg.Payload)
		}
	}
}

// handleMessage fans a remote event out to local room members.
func (b *RedisBridge) handleMessage(payload string) {
	var envelope roomEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		b.logger.Error("failed to unmarshal remote event", "error", err)
		return
	}

	// Events from this instance already went through the local bus.
	if envelope.InstanceID == b.instanceID {
		return
	}

	event := &remoteEvent{
		eventType:  envelope.EventType,
		courseID:   envelope.CourseID,
		occurredAt: envelope.OccurredAt,
		payload:    envelope.Payload,
	}

	for _, conn := range b.registry.Snapshot(envelope.CourseID) {
		if !conn.TrySend(event) {
			b.logger.Warn("remote event dropped for slow connection",
				"course_id", envelope.CourseID,
				"conn_id", conn.ID(),
				"event_type", envelope.EventType,
			)
		}
	}
}

// Close stops the subscription loop and closes the local bus.
func (b *RedisBridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	if err := b.localBus.Close(); err != nil {
		b.logger.Error("failed to close local bus", "error", err)
	}
	b.logger.Info("redis bridge closed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

type roomEnvelope struct {
	InstanceID string                 `json:"instance_id"`
	CourseID   string                 `json:"course_id"`
	EventType  shared.EventType       `json:"event_type"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

// remoteEvent recreates an event received from another instance.
type remoteEvent struct {
	eventType  shared.EventType
	courseID   string
	occurredAt time.Time
	payload    map[string]interface{}
}

func (e *remoteEvent) EventType() shared.EventType { return e.eventType }

func (e *remoteEvent) CourseID() string { return e.courseID }

func (e *remoteEvent) OccurredAt() time.Time { return e.occurredAt }

func (e *remoteEvent) Payload() map[string]interface{} { return e.payload }
