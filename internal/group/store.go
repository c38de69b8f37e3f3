package group

import (
	"context"
	"time"
)

// Store is the durable room -> group association. It is the source of truth.
//
// SetGroupID returns common.ErrRoomAlreadyBound when the room already holds
// a different group id. GroupID returns common.ErrRecordNotFound when the
// room has none and common.ErrRoomRetired once RetireGroupID has marked it;
// a retired room keeps its record so it can never be bound again.
// ClearGroupID removes the record and is only used to undo a binding that
// was never handed out.
type Store interface {
	SetGroupID(ctx context.Context, roomID, groupID string) error
	GroupID(ctx context.Context, roomID string) (string, error)
	RetireGroupID(ctx context.Context, roomID string) error
	ClearGroupID(ctx context.Context, roomID string) error
}

// Cache is the fast, expendable projection of Store. Get returns
// common.ErrCacheMiss when nothing is cached.
type Cache interface {
	Get(ctx context.Context, roomID string) (string, error)
	Set(ctx context.Context, roomID, groupID string, ttl time.Duration) error
	Delete(ctx context.Context, roomID string) error
}
