// Package identity provisions the per-user material a messaging client needs:
// a stable database encryption key and a signer backed by the user's wallet.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"roomchat/internal/common"
)

const KeySize = 32

// UserIdentity is the chat-side record of a user.
type UserIdentity struct {
	FID           uint64    `json:"fid" bson:"fid"`
	Address       string    `json:"address" bson:"address"`
	EncryptionKey string    `json:"-" bson:"encryption_key"` // hex
	InboxID       string    `json:"inbox_id,omitempty" bson:"inbox_id,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

// Store persists identities. EnsureEncryptionKey must be atomic: when the
// record already holds a key, the stored key is returned and candidate is
// discarded.
type Store interface {
	EnsureEncryptionKey(ctx context.Context, fid uint64, address, candidate string) (string, error)
	Get(ctx context.Context, fid uint64) (*UserIdentity, error)
	SetInboxID(ctx context.Context, fid uint64, inboxID string) error
}

type Provisioner struct {
	store Store
	log   *zap.SugaredLogger
}

func NewProvisioner(store Store, log *zap.SugaredLogger) *Provisioner {
	return &Provisioner{store: store, log: log}
}

// EnsureEncryptionKey returns the user's key, creating and persisting one on
// first use. Concurrent callers all receive the key that won the write.
func (p *Provisioner) EnsureEncryptionKey(ctx context.Context, fid uint64, address string) ([]byte, error) {
	const op = "identity.EnsureEncryptionKey"

	existing, err := p.store.Get(ctx, fid)
	switch {
	case err == nil && existing.EncryptionKey != "":
		return decodeKey(existing.EncryptionKey)
	case err != nil && !errors.Is(err, common.ErrRecordNotFound):
		return nil, common.ClientInitFailed(op, fmt.Errorf("load identity %d: %w", fid, err))
	}

	candidate := make([]byte, KeySize)
	if _, err := rand.Read(candidate); err != nil {
		return nil, common.Internal(op, err)
	}

	stored, err := p.store.EnsureEncryptionKey(ctx, fid, address, hex.EncodeToString(candidate))
	if err != nil {
		return nil, common.ClientInitFailed(op, fmt.Errorf("persist key for %d: %w", fid, err))
	}
	key, err := decodeKey(stored)
	if err != nil {
		return nil, common.ClientInitFailed(op, err)
	}
	p.log.Debugw("encryption key ready", "fid", fid)
	return key, nil
}

// CachedInboxID returns the inbox id remembered on the identity, if any.
func (p *Provisioner) CachedInboxID(ctx context.Context, fid uint64) string {
	rec, err := p.store.Get(ctx, fid)
	if err != nil {
		return ""
	}
	return rec.InboxID
}

// RememberInboxID stores a resolved inbox id. Failures are logged only.
func (p *Provisioner) RememberInboxID(ctx context.Context, fid uint64, inboxID string) {
	if inboxID == "" {
		return
	}
	if err := p.store.SetInboxID(ctx, fid, inboxID); err != nil {
		p.log.Warnw("failed to cache inbox id", "fid", fid, "error", err)
	}
}

func decodeKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("stored encryption key is not hex: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("stored encryption key has %d bytes", len(key))
	}
	return key, nil
}
