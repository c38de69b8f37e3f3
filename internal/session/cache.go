// Package session keeps one ready messaging client per actor.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"roomchat/internal/clock"
	"roomchat/internal/common"
	"roomchat/internal/xmtp"
)

const (
	DefaultTTL           = time.Hour
	DefaultSweepInterval = 10 * time.Minute
	initTimeout          = 30 * time.Second
)

type State string

const (
	StateAbsent       State = "absent"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateExpired      State = "expired"
)

// Materials is what a client is built from.
type Materials struct {
	Signer        xmtp.Signer
	EncryptionKey []byte
}

// BuildFunc produces materials on demand. It is only called when a client
// actually has to be constructed.
type BuildFunc func(ctx context.Context) (Materials, error)

type Session struct {
	ActorID   string
	Client    xmtp.Client
	CreatedAt time.Time
	LastUsed  time.Time
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.sweepEvery = d
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Cache) { c.clock = clk }
}

func WithEnv(env string) Option {
	return func(c *Cache) { c.env = env }
}

type Cache struct {
	network    xmtp.Network
	env        string
	ttl        time.Duration
	sweepEvery time.Duration
	clock      clock.Clock
	log        *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[string]*Session
	inflight map[string]bool
	flight   singleflight.Group

	stop context.CancelFunc
	wg   sync.WaitGroup
}

func NewCache(network xmtp.Network, log *zap.SugaredLogger, opts ...Option) *Cache {
	c := &Cache{
		network:    network,
		ttl:        DefaultTTL,
		sweepEvery: DefaultSweepInterval,
		clock:      clock.NewSystemClock(),
		log:        log,
		sessions:   make(map[string]*Session),
		inflight:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the background sweep. Close stops it.
func (c *Cache) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.stop = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 {
					c.log.Infow("evicted stale sessions", "count", n)
				}
			}
		}
	}()
}

// GetOrCreate returns the actor's ready client, building one when there is
// none or the existing one has outlived the TTL. Concurrent callers for the
// same actor share a single construction.
func (c *Cache) GetOrCreate(ctx context.Context, actorID string, build BuildFunc) (xmtp.Client, error) {
	if cl, ok := c.use(actorID); ok {
		return cl, nil
	}

	v, err, shared := c.flight.Do(actorID, func() (interface{}, error) {
		if cl, ok := c.use(actorID); ok {
			return cl, nil
		}
		return c.create(ctx, actorID, build)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debugw("joined in-flight client construction", "actor", actorID)
	}
	return v.(xmtp.Client), nil
}

func (c *Cache) create(ctx context.Context, actorID string, build BuildFunc) (xmtp.Client, error) {
	const op = "session.GetOrCreate"

	c.mu.Lock()
	c.inflight[actorID] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inflight, actorID)
		c.mu.Unlock()
	}()

	// one caller's cancellation must not fail everyone waiting on this flight
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), initTimeout)
	defer cancel()

	m, err := build(ctx)
	if err != nil {
		var ce *common.ChatError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, common.ClientInitFailed(op, err)
	}

	start := c.clock.Now()
	cl, err := c.network.NewClient(ctx, m.Signer, xmtp.ClientOptions{Env: c.env, DBEncryptionKey: m.EncryptionKey})
	if err != nil {
		c.log.Warnw("client construction failed", "actor", actorID, "error", err)
		return nil, common.ClientInitFailed(op, err)
	}

	now := c.clock.Now()
	c.mu.Lock()
	old := c.sessions[actorID]
	c.sessions[actorID] = &Session{ActorID: actorID, Client: cl, CreatedAt: now, LastUsed: now}
	c.mu.Unlock()
	if old != nil {
		closeClient(c.log, old)
	}

	c.log.Infow("client ready", "actor", actorID, "inbox", cl.InboxID(), "took", now.Sub(start))
	return cl, nil
}

// use returns a fresh session's client and refreshes its last-used time.
// A stale session is dropped.
func (c *Cache) use(actorID string) (xmtp.Client, bool) {
	now := c.clock.Now()
	c.mu.Lock()
	s, ok := c.sessions[actorID]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	if c.expired(s, now) {
		delete(c.sessions, actorID)
		c.mu.Unlock()
		closeClient(c.log, s)
		return nil, false
	}
	s.LastUsed = now
	c.mu.Unlock()
	return s.Client, true
}

// Peek returns a fresh client without ever building one.
func (c *Cache) Peek(actorID string) (xmtp.Client, bool) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[actorID]
	if !ok || c.expired(s, now) {
		return nil, false
	}
	return s.Client, true
}

// Session returns a copy of the actor's session record.
func (c *Cache) Session(actorID string) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[actorID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (c *Cache) State(actorID string) State {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[actorID] {
		return StateInitializing
	}
	s, ok := c.sessions[actorID]
	switch {
	case !ok:
		return StateAbsent
	case c.expired(s, now):
		return StateExpired
	default:
		return StateReady
	}
}

// Invalidate drops the actor's session so the next GetOrCreate rebuilds it.
func (c *Cache) Invalidate(actorID string) {
	c.mu.Lock()
	s, ok := c.sessions[actorID]
	delete(c.sessions, actorID)
	c.mu.Unlock()
	if ok {
		closeClient(c.log, s)
		c.log.Infow("session invalidated", "actor", actorID)
	}
}

// Sweep evicts every session past the TTL and returns how many it removed.
func (c *Cache) Sweep() int {
	now := c.clock.Now()
	var stale []*Session
	c.mu.Lock()
	for id, s := range c.sessions {
		if c.expired(s, now) {
			stale = append(stale, s)
			delete(c.sessions, id)
		}
	}
	c.mu.Unlock()
	for _, s := range stale {
		closeClient(c.log, s)
	}
	return len(stale)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Close stops the sweeper and releases every client.
func (c *Cache) Close() {
	if c.stop != nil {
		c.stop()
	}
	c.wg.Wait()

	c.mu.Lock()
	all := c.sessions
	c.sessions = make(map[string]*Session)
	c.mu.Unlock()
	for _, s := range all {
		closeClient(c.log, s)
	}
}

// expired measures age from creation; use does not extend a session's life.
func (c *Cache) expired(s *Session, now time.Time) bool {
	return now.Sub(s.CreatedAt) >= c.ttl
}

func closeClient(log *zap.SugaredLogger, s *Session) {
	if err := s.Client.Close(); err != nil {
		log.Warnw("failed to close client", "actor", s.ActorID, "error", err)
	}
}
