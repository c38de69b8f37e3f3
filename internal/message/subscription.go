package message

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"roomchat/internal/xmtp"
)

// Subscription delivers live messages of one group. Dispose releases the
// underlying network stream and may be called any number of times.
type Subscription struct {
	groupID  string
	stream   xmtp.Stream
	timeline *Timeline
	cancel   context.CancelFunc
	once     sync.Once
	done     chan struct{}
	log      *zap.SugaredLogger
}

// Subscribe opens the client's message stream and calls onMessage for each
// new application message of groupID. Messages of other conversations and
// repeated ids are dropped. onMessage runs on the subscription goroutine
// and must not call Dispose.
func (f *Formatter) Subscribe(ctx context.Context, client xmtp.Client, groupID string,
	timeline *Timeline, onMessage func(Formatted), log *zap.SugaredLogger) (*Subscription, error) {
	if timeline == nil {
		timeline = NewTimeline()
	}
	ctx, cancel := context.WithCancel(ctx)
	stream, err := client.Conversations().StreamAllMessages(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &Subscription{
		groupID:  groupID,
		stream:   stream,
		timeline: timeline,
		cancel:   cancel,
		done:     make(chan struct{}),
		log:      log,
	}
	go s.run(ctx, f, onMessage)
	return s, nil
}

func (s *Subscription) run(ctx context.Context, f *Formatter, onMessage func(Formatted)) {
	defer close(s.done)
	msgs := s.stream.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				if err := s.stream.Err(); err != nil && ctx.Err() == nil {
					s.log.Warnw("message stream ended", "group", s.groupID, "error", err)
				}
				return
			}
			if m.ConversationID != s.groupID || m.Kind != xmtp.KindApplication {
				continue
			}
			formatted := f.Format(m)
			if !s.timeline.Append(formatted) {
				continue
			}
			if onMessage != nil {
				onMessage(formatted)
			}
		}
	}
}

// Done is closed once the subscription has stopped delivering.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) Timeline() *Timeline { return s.timeline }

// Dispose stops delivery, closes the stream and drops the local buffer.
// Group membership is untouched.
func (s *Subscription) Dispose() {
	s.once.Do(func() {
		s.cancel()
		if err := s.stream.Close(); err != nil {
			s.log.Warnw("failed to close message stream", "group", s.groupID, "error", err)
		}
		<-s.done
		s.timeline.Reset()
	})
}
