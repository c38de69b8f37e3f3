package memnet

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"roomchat/internal/xmtp"
)

type client struct {
	net   *Network
	inbox string
	ident xmtp.Identifier

	mu     sync.Mutex
	known  map[string]bool // local conversation list
	closed bool
}

func (c *client) InboxID() string                   { return c.inbox }
func (c *client) Identifier() xmtp.Identifier       { return c.ident }
func (c *client) Conversations() xmtp.Conversations { return (*conversations)(c) }

func (c *client) InboxIDFor(ctx context.Context, id xmtp.Identifier) (string, error) {
	if err := c.check(ctx); err != nil {
		return "", err
	}
	n := c.net
	n.mu.Lock()
	defer n.mu.Unlock()
	key := strings.ToLower(id.Address)
	if err, ok := n.lookupErrs[key]; ok {
		return "", err
	}
	return n.inboxes[key], nil
}

func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	n := c.net
	n.mu.Lock()
	streams := n.streams[c.inbox]
	var mine []*stream
	for s := range streams {
		if s.owner == c {
			mine = append(mine, s)
		}
	}
	n.mu.Unlock()
	for _, s := range mine {
		s.Close()
	}
	return nil
}

func (c *client) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return xmtp.ErrClientClosed
	}
	return nil
}

type conversations client

func (cv *conversations) Sync(ctx context.Context) error {
	c := (*client)(cv)
	if err := c.check(ctx); err != nil {
		return err
	}
	n := c.net
	n.mu.Lock()
	var visible []string
	for id, g := range n.groups {
		if n.visibleLocked(g, c.inbox) {
			visible = append(visible, id)
		}
	}
	n.mu.Unlock()

	c.mu.Lock()
	c.known = make(map[string]bool, len(visible))
	for _, id := range visible {
		c.known[id] = true
	}
	c.mu.Unlock()
	return nil
}

func (cv *conversations) List(ctx context.Context) ([]xmtp.Group, error) {
	c := (*client)(cv)
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	ids := make([]string, 0, len(c.known))
	for id := range c.known {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	sort.Strings(ids)

	n := c.net
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]xmtp.Group, 0, len(ids))
	for _, id := range ids {
		if g, ok := n.groups[id]; ok {
			out = append(out, &group{c: c, id: id, createdAt: g.createdAt})
		}
	}
	return out, nil
}

func (cv *conversations) Get(ctx context.Context, groupID string) (xmtp.Group, error) {
	c := (*client)(cv)
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	known := c.known[groupID]
	c.mu.Unlock()
	if !known {
		return nil, xmtp.ErrConversationNotFound
	}
	n := c.net
	n.mu.Lock()
	defer n.mu.Unlock()
	g, ok := n.groups[groupID]
	if !ok {
		return nil, xmtp.ErrConversationNotFound
	}
	return &group{c: c, id: groupID, createdAt: g.createdAt}, nil
}

func (cv *conversations) NewGroup(ctx context.Context, memberInboxIDs []string) (xmtp.Group, error) {
	c := (*client)(cv)
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	n := c.net
	n.mu.Lock()
	for _, id := range memberInboxIDs {
		if _, ok := n.addresses[id]; !ok {
			n.mu.Unlock()
			return nil, fmt.Errorf("memnet: unknown inbox %s", id)
		}
	}
	now := n.clock.Now()
	g := &groupState{
		id:        newID(),
		creator:   c.inbox,
		createdAt: now,
		members:   map[string]*memberState{c.inbox: {admin: true, addedAt: now}},
	}
	for _, id := range memberInboxIDs {
		if _, ok := g.members[id]; !ok {
			g.members[id] = &memberState{addedAt: now}
		}
	}
	n.groups[g.id] = g
	n.mu.Unlock()

	c.mu.Lock()
	c.known[g.id] = true
	c.mu.Unlock()
	return &group{c: c, id: g.id, createdAt: now}, nil
}

func (cv *conversations) StreamAllMessages(ctx context.Context) (xmtp.Stream, error) {
	c := (*client)(cv)
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	s := &stream{
		owner: c,
		ch:    make(chan xmtp.Message, streamBuffer),
		done:  make(chan struct{}),
	}
	n := c.net
	n.mu.Lock()
	if n.streams[c.inbox] == nil {
		n.streams[c.inbox] = make(map[*stream]struct{})
	}
	n.streams[c.inbox][s] = struct{}{}
	n.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.fail(ctx.Err())
		case <-s.done:
		}
	}()
	return s, nil
}

type group struct {
	c         *client
	id        string
	createdAt time.Time
}

func (g *group) ID() string           { return g.id }
func (g *group) CreatedAt() time.Time { return g.createdAt }

// state returns the shared group with the network lock held.
func (g *group) state(ctx context.Context) (*groupState, func(), error) {
	if err := g.c.check(ctx); err != nil {
		return nil, nil, err
	}
	n := g.c.net
	n.mu.Lock()
	st, ok := n.groups[g.id]
	if !ok {
		n.mu.Unlock()
		return nil, nil, xmtp.ErrConversationNotFound
	}
	if _, member := st.members[g.c.inbox]; !member {
		n.mu.Unlock()
		return nil, nil, xmtp.ErrNotMember
	}
	return st, n.mu.Unlock, nil
}

func (g *group) Sync(ctx context.Context) error {
	_, unlock, err := g.state(ctx)
	if err != nil {
		return err
	}
	unlock()
	return nil
}

func (g *group) Publish(ctx context.Context) error {
	st, unlock, err := g.state(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if !st.published {
		st.published = true
		st.publishedAt = g.c.net.clock.Now()
	}
	return nil
}

func (g *group) Members(ctx context.Context) ([]xmtp.Member, error) {
	st, unlock, err := g.state(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := make([]xmtp.Member, 0, len(st.members))
	for id, ms := range st.members {
		out = append(out, xmtp.Member{InboxID: id, Admin: ms.admin})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InboxID < out[j].InboxID })
	return out, nil
}

func (g *group) AddMembers(ctx context.Context, inboxIDs []string) error {
	st, unlock, err := g.state(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	n := g.c.net
	for _, id := range inboxIDs {
		if _, ok := n.addresses[id]; !ok {
			return fmt.Errorf("memnet: unknown inbox %s", id)
		}
	}
	now := n.clock.Now()
	var added []string
	for _, id := range inboxIDs {
		if _, ok := st.members[id]; ok {
			continue
		}
		st.members[id] = &memberState{addedAt: now}
		added = append(added, id)
	}
	if len(added) > 0 {
		n.appendLocked(st, g.c.inbox, xmtp.KindMembershipChange, []byte("added:"+strings.Join(added, ",")))
	}
	return nil
}

func (g *group) RemoveMembers(ctx context.Context, inboxIDs []string) error {
	st, unlock, err := g.state(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if !st.members[g.c.inbox].admin {
		return xmtp.ErrPermissionDenied
	}
	var removed []string
	for _, id := range inboxIDs {
		if _, ok := st.members[id]; ok && id != st.creator {
			delete(st.members, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		g.c.net.appendLocked(st, g.c.inbox, xmtp.KindMembershipChange, []byte("removed:"+strings.Join(removed, ",")))
	}
	return nil
}

func (g *group) Send(ctx context.Context, content []byte) (string, error) {
	st, unlock, err := g.state(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()
	m := g.c.net.appendLocked(st, g.c.inbox, xmtp.KindApplication, content)
	return m.ID, nil
}

func (g *group) Messages(ctx context.Context, opts xmtp.ListOptions) ([]xmtp.Message, error) {
	st, unlock, err := g.state(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]xmtp.Message, 0, len(st.messages))
	for i := len(st.messages) - 1; i >= 0; i-- {
		out = append(out, copyMessage(st.messages[i]))
	}
	hook := g.c.net.afterRead
	unlock()
	if hook != nil {
		hook(g.id)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

type stream struct {
	owner *client
	ch    chan xmtp.Message

	once sync.Once
	done chan struct{}
	mu   sync.Mutex
	err  error
}

func (s *stream) Messages() <-chan xmtp.Message { return s.ch }

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Close() error {
	s.fail(nil)
	return nil
}

func (s *stream) fail(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()

		n := s.owner.net
		n.mu.Lock()
		delete(n.streams[s.owner.inbox], s)
		close(s.ch)
		n.mu.Unlock()
		close(s.done)
	})
}
