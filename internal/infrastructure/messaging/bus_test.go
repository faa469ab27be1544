package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/edupulse/internal/domain/shared"
)

func newTestBus(t *testing.T) (*RoomBus, *Registry) {
	t.Helper()
	reg := NewRegistry(nil)
	bus, err := NewRoomBus(DefaultRoomBusConfig(reg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus, reg
}

func TestNewRoomBus_RequiresRegistry(t *testing.T) {
	_, err := NewRoomBus(RoomBusConfig{})
	assert.Error(t, err)
}

func TestRoomBus_PublishToRoomMembers(t *testing.T) {
	bus, reg := newTestBus(t)

	member := NewChanConn("member", "actor-1", 4)
	outsider := NewChanConn("outsider", "actor-2", 4)
	require.NoError(t, reg.Join("course-1", member))
	require.NoError(t, reg.Join("course-2", outsider))

	ev := testEvent("course-1")
	require.NoError(t, bus.Publish("course-1", ev))

	select {
	case got := <-member.Events():
		assert.Equal(t, shared.EventChatMessage, got.EventType())
		assert.Equal(t, "course-1", got.CourseID())
	case <-time.After(time.Second):
		t.Fatal("room member did not receive event")
	}

	select {
	case <-outsider.Events():
		t.Fatal("event leaked to another room")
	default:
	}
}

func TestRoomBus_MembershipSnapshotAtPublish(t *testing.T) {
	bus, reg := newTestBus(t)

	early := NewChanConn("early", "actor-1", 4)
	require.NoError(t, reg.Join("course-1", early))

	require.NoError(t, bus.Publish("course-1", testEvent("course-1")))

	// joined after publish: must not have received anything
	late := NewChanConn("late", "actor-2", 4)
	require.NoError(t, reg.Join("course-1", late))

	assert.Len(t, early.Events(), 1)
	assert.Len(t, late.Events(), 0)
}

func TestRoomBus_SlowConnectionDropsNotBlocks(t *testing.T) {
	reg := NewRegistry(nil)
	bus, err := NewRoomBus(DefaultRoomBusConfig(reg))
	require.NoError(t, err)
	defer func() { _ = bus.Close() }()

	slow := NewChanConn("slow", "actor-1", 1)
	require.NoError(t, reg.Join("course-1", slow))

	// first publish fills the buffer, the next two are dropped
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			_ = bus.Publish("course-1", testEvent("course-1"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow connection")
	}

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.Published)
	assert.Equal(t, int64(1), snap.Delivered)
	assert.Equal(t, int64(2), snap.Dropped)
}

func TestRoomBus_HandlersReceiveEvents(t *testing.T) {
	bus, _ := newTestBus(t)

	var typed, all atomic.Int64
	require.NoError(t, bus.Subscribe(shared.EventChatMessage, func(shared.Event) error {
		typed.Add(1)
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventAnnouncement, func(shared.Event) error {
		t.Error("handler for another event type must not run")
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		all.Add(1)
		return nil
	}))

	// handlers run even with an empty room
	require.NoError(t, bus.Publish("course-1", testEvent("course-1")))
	require.NoError(t, bus.Close())

	assert.Equal(t, int64(1), typed.Load())
	assert.Equal(t, int64(1), all.Load())
}

func TestRoomBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus, reg := newTestBus(t)

	conn := NewChanConn("c1", "actor-1", 4)
	require.NoError(t, reg.Join("course-1", conn))
	require.NoError(t, bus.Subscribe(shared.EventChatMessage, func(shared.Event) error {
		return errors.New("boom")
	}))

	require.NoError(t, bus.Publish("course-1", testEvent("course-1")))
	require.NoError(t, bus.Close())

	assert.Len(t, conn.Events(), 1)
	assert.Equal(t, int64(1), bus.Metrics().Snapshot().HandlerFailures)
}

func TestRoomBus_PublishValidation(t *testing.T) {
	bus, _ := newTestBus(t)

	assert.Error(t, bus.Publish("course-1", nil))
	err := bus.Publish("", testEvent(""))
	assert.True(t, errors.Is(err, shared.ErrEmptyCourse))
}

func TestRoomBus_ClosedBusRejectsOperations(t *testing.T) {
	reg := NewRegistry(nil)
	bus, err := NewRoomBus(DefaultRoomBusConfig(reg))
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	// double close is fine
	require.NoError(t, bus.Close())

	assert.True(t, errors.Is(bus.Publish("course-1", testEvent("course-1")), ErrBusClosed))
	assert.True(t, errors.Is(bus.Subscribe(shared.EventChatMessage, func(shared.Event) error { return nil }), ErrBusClosed))
	assert.True(t, errors.Is(bus.SubscribeAll(func(shared.Event) error { return nil }), ErrBusClosed))
}

func TestRoomBus_ConcurrentPublish(t *testing.T) {
	bus, reg := newTestBus(t)

	conn := NewChanConn("c1", "actor-1", 256)
	require.NoError(t, reg.Join("course-1", conn))

	var handled atomic.Int64
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		handled.Add(1)
		return nil
	}))

	const publishers, perPublisher = 8, 10
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				_ = bus.Publish("course-1", testEvent("course-1"))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, bus.Close())

	assert.Equal(t, int64(publishers*perPublisher), handled.Load())
	assert.Len(t, conn.Events(), publishers*perPublisher)
}
