// Package memnet is an in-process XMTP network. It keeps the behaviours the
// chat service has to cope with: groups are invisible to other clients until
// published and synced, membership changes propagate after a delay, and a
// client database key cannot change once an inbox has used it.
package memnet

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"roomchat/internal/clock"
	"roomchat/internal/xmtp"
)

const streamBuffer = 256

type Option func(*Network)

func WithClock(c clock.Clock) Option {
	return func(n *Network) { n.clock = c }
}

// WithPropagationDelay sets how long published groups and membership
// changes take to become visible to other clients.
func WithPropagationDelay(d time.Duration) Option {
	return func(n *Network) { n.delay = d }
}

type Network struct {
	mu    sync.Mutex
	clock clock.Clock
	delay time.Duration

	inboxes   map[string]string // lower-case address -> inbox id
	addresses map[string]string // inbox id -> address
	dbKeys    map[string][]byte
	groups    map[string]*groupState
	streams   map[string]map[*stream]struct{} // inbox id -> open streams

	failNewClient  error
	lookupErrs     map[string]error
	clientsCreated int
	afterRead      func(groupID string)
}

type groupState struct {
	id          string
	creator     string
	createdAt   time.Time
	published   bool
	publishedAt time.Time
	members     map[string]*memberState
	messages    []xmtp.Message
}

type memberState struct {
	admin   bool
	addedAt time.Time
}

func New(opts ...Option) *Network {
	n := &Network{
		clock:      clock.NewSystemClock(),
		inboxes:    make(map[string]string),
		addresses:  make(map[string]string),
		dbKeys:     make(map[string][]byte),
		groups:     make(map[string]*groupState),
		streams:    make(map[string]map[*stream]struct{}),
		lookupErrs: make(map[string]error),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Network) NewClient(ctx context.Context, signer xmtp.Signer, opts xmtp.ClientOptions) (xmtp.Client, error) {
	if signer == nil {
		return nil, fmt.Errorf("memnet: nil signer")
	}
	if len(opts.DBEncryptionKey) != 32 {
		return nil, fmt.Errorf("memnet: database key must be 32 bytes, got %d", len(opts.DBEncryptionKey))
	}

	n.mu.Lock()
	failErr := n.failNewClient
	n.mu.Unlock()
	if failErr != nil {
		return nil, failErr
	}

	id := signer.Identifier()
	if _, err := signer.SignMessage(ctx, "XMTP : Authenticate to inbox\n\nInbox ID: "+strings.ToLower(id.Address)); err != nil {
		return nil, fmt.Errorf("memnet: signature rejected: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	inbox := n.registerLocked(id.Address)
	if prev, ok := n.dbKeys[inbox]; ok && !bytes.Equal(prev, opts.DBEncryptionKey) {
		return nil, fmt.Errorf("memnet: cannot open local database for inbox %s: key mismatch", inbox)
	}
	n.dbKeys[inbox] = append([]byte(nil), opts.DBEncryptionKey...)
	n.clientsCreated++

	return &client{
		net:   n,
		inbox: inbox,
		ident: id,
		known: make(map[string]bool),
	}, nil
}

// Register creates an inbox for address without building a client, the way a
// user who signed up from another device would appear.
func (n *Network) Register(address string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.registerLocked(address)
}

func (n *Network) registerLocked(address string) string {
	key := strings.ToLower(address)
	if inbox, ok := n.inboxes[key]; ok {
		return inbox
	}
	inbox := strings.ReplaceAll(uuid.NewString(), "-", "")
	n.inboxes[key] = inbox
	n.addresses[inbox] = address
	return inbox
}

// FailNewClient makes every NewClient call fail with err until reset with nil.
func (n *Network) FailNewClient(err error) {
	n.mu.Lock()
	n.failNewClient = err
	n.mu.Unlock()
}

// SetLookupError makes address resolution for address fail with err.
func (n *Network) SetLookupError(address string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err == nil {
		delete(n.lookupErrs, strings.ToLower(address))
		return
	}
	n.lookupErrs[strings.ToLower(address)] = err
}

// AfterHistoryRead runs fn, outside the network lock, each time a client
// has read a group's message list. Pass nil to remove it.
func (n *Network) AfterHistoryRead(fn func(groupID string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.afterRead = fn
}

func (n *Network) ClientsCreated() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clientsCreated
}

// GroupExists reports whether the network still holds the group.
func (n *Network) GroupExists(groupID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.groups[groupID]
	return ok
}

func (n *Network) GroupCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.groups)
}

// MessageCount counts application messages held for a group.
func (n *Network) MessageCount(groupID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	g, ok := n.groups[groupID]
	if !ok {
		return 0
	}
	count := 0
	for _, m := range g.messages {
		if m.Kind == xmtp.KindApplication {
			count++
		}
	}
	return count
}

// Redeliver pushes an already delivered message to every open stream of the
// group's members again, as happens on reconnect.
func (n *Network) Redeliver(groupID, messageID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	g, ok := n.groups[groupID]
	if !ok {
		return false
	}
	for _, m := range g.messages {
		if m.ID == messageID {
			n.fanOutLocked(g, m)
			return true
		}
	}
	return false
}

// Inject stores a message as if sent by senderInbox without any content
// checks, for legacy payloads.
func (n *Network) Inject(groupID, senderInbox string, content []byte, sentAt time.Time) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	g, ok := n.groups[groupID]
	if !ok {
		return "", xmtp.ErrConversationNotFound
	}
	m := xmtp.Message{
		ID:             uuid.NewString(),
		ConversationID: groupID,
		SenderInboxID:  senderInbox,
		SentAt:         sentAt,
		Kind:           xmtp.KindApplication,
		Content:        append([]byte(nil), content...),
	}
	g.messages = append(g.messages, m)
	n.fanOutLocked(g, m)
	return m.ID, nil
}

// visibleLocked reports whether inbox can discover g through a sync.
func (n *Network) visibleLocked(g *groupState, inbox string) bool {
	ms, ok := g.members[inbox]
	if !ok {
		return false
	}
	if g.creator == inbox {
		return true
	}
	if !g.published {
		return false
	}
	since := g.publishedAt
	if ms.addedAt.After(since) {
		since = ms.addedAt
	}
	return !n.clock.Now().Before(since.Add(n.delay))
}

func (n *Network) appendLocked(g *groupState, sender string, kind xmtp.MessageKind, content []byte) xmtp.Message {
	m := xmtp.Message{
		ID:             uuid.NewString(),
		ConversationID: g.id,
		SenderInboxID:  sender,
		SentAt:         n.clock.Now(),
		Kind:           kind,
		Content:        append([]byte(nil), content...),
	}
	g.messages = append(g.messages, m)
	n.fanOutLocked(g, m)
	return m
}

// fanOutLocked never blocks; a stream whose buffer is full misses the
// message and relies on history to catch up.
func (n *Network) fanOutLocked(g *groupState, m xmtp.Message) {
	for inbox := range g.members {
		for s := range n.streams[inbox] {
			select {
			case s.ch <- copyMessage(m):
			default:
			}
		}
	}
}

func copyMessage(m xmtp.Message) xmtp.Message {
	m.Content = append([]byte(nil), m.Content...)
	return m
}

func newID() string {
	return uuid.NewString()
}
