// Package xmtp declares the parts of the XMTP messaging network the chat
// service depends on. The network is a black box: every call may block and
// fail, and state written by one client becomes visible to others only
// after they sync.
package xmtp

import (
	"context"
	"errors"
	"time"
)

var (
	ErrConversationNotFound = errors.New("xmtp: conversation not found")
	ErrNotMember            = errors.New("xmtp: client is not a member of the group")
	ErrPermissionDenied     = errors.New("xmtp: permission denied")
	ErrClientClosed         = errors.New("xmtp: client closed")
	ErrStreamClosed         = errors.New("xmtp: stream closed")
)

// Identifier is the wallet-based identity a client signs in with.
type Identifier struct {
	Address string
}

// Signer proves control of an identifier to the network.
type Signer interface {
	Identifier() Identifier
	SignMessage(ctx context.Context, text string) ([]byte, error)
}

type ClientOptions struct {
	Env string
	// DBEncryptionKey protects the client's local database. It must be
	// stable per identity; a different key cannot open an existing database.
	DBEncryptionKey []byte
}

type Network interface {
	NewClient(ctx context.Context, signer Signer, opts ClientOptions) (Client, error)
}

type Client interface {
	InboxID() string
	Identifier() Identifier
	// InboxIDFor resolves an address. An empty id with a nil error means the
	// address is confirmed not registered.
	InboxIDFor(ctx context.Context, id Identifier) (string, error)
	Conversations() Conversations
	Close() error
}

type Conversations interface {
	// Sync refreshes the local conversation list from the network.
	Sync(ctx context.Context) error
	List(ctx context.Context) ([]Group, error)
	// Get returns a locally known group or ErrConversationNotFound.
	Get(ctx context.Context, groupID string) (Group, error)
	NewGroup(ctx context.Context, memberInboxIDs []string) (Group, error)
	StreamAllMessages(ctx context.Context) (Stream, error)
}

type Group interface {
	ID() string
	CreatedAt() time.Time
	Sync(ctx context.Context) error
	// Publish pushes locally created state so other clients can discover it.
	Publish(ctx context.Context) error
	Members(ctx context.Context) ([]Member, error)
	AddMembers(ctx context.Context, inboxIDs []string) error
	RemoveMembers(ctx context.Context, inboxIDs []string) error
	Send(ctx context.Context, content []byte) (string, error)
	// Messages returns the newest messages first.
	Messages(ctx context.Context, opts ListOptions) ([]Message, error)
}

type Member struct {
	InboxID string
	Admin   bool
}

type ListOptions struct {
	Limit int
}

type MessageKind int

const (
	KindApplication MessageKind = iota
	KindMembershipChange
)

type Message struct {
	ID             string
	ConversationID string
	SenderInboxID  string
	SentAt         time.Time
	Kind           MessageKind
	Content        []byte
}

// Stream delivers messages from every conversation the client belongs to.
type Stream interface {
	Messages() <-chan Message
	Err() error
	Close() error
}
