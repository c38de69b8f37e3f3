// Package roster fans participant events from the room roster out to the
// chat components that react to them.
package roster

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type EventType string

const (
	ParticipantJoined EventType = "participant_joined"
	ParticipantLeft   EventType = "participant_left"
)

type ParticipantEvent struct {
	Type        EventType `json:"type"`
	RoomID      string    `json:"room_id"`
	FID         uint64    `json:"fid"`
	Address     string    `json:"address"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	PfpURL      string    `json:"pfp_url"`
	At          time.Time `json:"at"`
}

type Observer interface {
	Name() string
	Update(ctx context.Context, event ParticipantEvent) error
}

const DefaultBufferSize = 256

type Dispatcher struct {
	observers map[string]Observer
	events    chan ParticipantEvent
	workers   int
	ctx       context.Context
	cancel    context.CancelFunc
	closed    bool
	mu        sync.RWMutex
	wg        sync.WaitGroup
	log       *zap.SugaredLogger
}

func NewDispatcher(workers, bufferSize int, log *zap.SugaredLogger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		observers: make(map[string]Observer),
		events:    make(chan ParticipantEvent, bufferSize),
		workers:   workers,
		ctx:       ctx,
		cancel:    cancel,
		log:       log,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.processEvents()
	}

	return d
}

func (d *Dispatcher) Subscribe(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers[observer.Name()] = observer
	d.log.Infow("observer subscribed", "observer", observer.Name())
}

func (d *Dispatcher) Unsubscribe(observer Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.observers, observer.Name())
	d.log.Infow("observer unsubscribed", "observer", observer.Name())
}

// Notify runs every observer synchronously. Observer failures are logged;
// one failing observer does not stop the others.
func (d *Dispatcher) Notify(ctx context.Context, event ParticipantEvent) {
	d.mu.RLock()
	observers := make([]Observer, 0, len(d.observers))
	for _, obs := range d.observers {
		observers = append(observers, obs)
	}
	d.mu.RUnlock()

	for _, observer := range observers {
		if err := observer.Update(ctx, event); err != nil {
			d.log.Warnw("observer update failed",
				"observer", observer.Name(), "type", event.Type, "room", event.RoomID, "error", err)
		}
	}
}

// NotifyAsync queues the event and reports whether it was accepted. A full
// queue drops the event.
func (d *Dispatcher) NotifyAsync(event ParticipantEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.events <- event:
		return true
	default:
		d.log.Warnw("roster queue full, dropping event", "type", event.Type, "room", event.RoomID)
		return false
	}
}

func (d *Dispatcher) processEvents() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.events:
			d.Notify(d.ctx, event)
		case <-d.ctx.Done():
			d.drain()
			return
		}
	}
}

// drain handles events queued before shutdown.
func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.events:
			d.Notify(context.Background(), event)
		default:
			return
		}
	}
}

// Shutdown stops accepting events, finishes the queued ones and waits for
// the workers.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	d.log.Info("roster dispatcher shutdown complete")
}
