package roster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockObserver struct {
	mock.Mock
	name string
}

func (m *MockObserver) Name() string {
	return m.name
}

func (m *MockObserver) Update(ctx context.Context, event ParticipantEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type recordingObserver struct {
	name string
	mu   sync.Mutex
	seen []ParticipantEvent
	done chan struct{}
	want int
}

func newRecordingObserver(name string, want int) *recordingObserver {
	return &recordingObserver{name: name, want: want, done: make(chan struct{})}
}

func (r *recordingObserver) Name() string { return r.name }

func (r *recordingObserver) Update(_ context.Context, event ParticipantEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, event)
	if len(r.seen) == r.want {
		close(r.done)
	}
	return nil
}

func (r *recordingObserver) events() []ParticipantEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ParticipantEvent(nil), r.seen...)
}

func joined(room, address string) ParticipantEvent {
	return ParticipantEvent{Type: ParticipantJoined, RoomID: room, Address: address}
}

func TestDispatcher_SubscribeAndNotify(t *testing.T) {
	d := NewDispatcher(1, 10, zap.NewNop().Sugar())
	defer d.Shutdown()

	first := &MockObserver{name: "first"}
	second := &MockObserver{name: "second"}
	ev := joined("room-1", "0xabc")

	first.On("Update", mock.Anything, ev).Return(nil).Once()
	second.On("Update", mock.Anything, ev).Return(errors.New("boom")).Once()

	d.Subscribe(first)
	d.Subscribe(second)
	d.Notify(context.Background(), ev)

	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := NewDispatcher(1, 10, zap.NewNop().Sugar())
	defer d.Shutdown()

	obs := &MockObserver{name: "gone"}
	d.Subscribe(obs)
	d.Unsubscribe(obs)

	d.Notify(context.Background(), joined("room-1", "0xabc"))
	obs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestDispatcher_NotifyAsync(t *testing.T) {
	d := NewDispatcher(2, 10, zap.NewNop().Sugar())
	defer d.Shutdown()

	obs := newRecordingObserver("recorder", 3)
	d.Subscribe(obs)

	for _, addr := range []string{"0x1", "0x2", "0x3"} {
		assert.True(t, d.NotifyAsync(joined("room-1", addr)))
	}

	select {
	case <-obs.done:
	case <-time.After(2 * time.Second):
		t.Fatal("events were not delivered")
	}
	assert.Len(t, obs.events(), 3)
}

func TestDispatcher_ShutdownDrainsQueue(t *testing.T) {
	d := NewDispatcher(1, 10, zap.NewNop().Sugar())
	obs := newRecordingObserver("recorder", 5)
	d.Subscribe(obs)

	for i := 0; i < 5; i++ {
		d.NotifyAsync(joined("room-1", "0xabc"))
	}
	d.Shutdown()

	assert.Len(t, obs.events(), 5)
	assert.False(t, d.NotifyAsync(joined("room-1", "0xabc")))

	// second shutdown is a no-op
	d.Shutdown()
}

func TestDispatcher_DefaultsForInvalidSizes(t *testing.T) {
	d := NewDispatcher(0, 0, zap.NewNop().Sugar())
	defer d.Shutdown()

	assert.Equal(t, 1, d.workers)
	assert.Equal(t, DefaultBufferSize, cap(d.events))
}
