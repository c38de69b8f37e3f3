package chat

import (
	"context"
	"sync"
	"time"

	"roomchat/internal/common"
	"roomchat/internal/identity"
)

type memRoomStore struct {
	mu      sync.Mutex
	rooms   map[string]string
	retired map[string]bool
}

func newMemRoomStore() *memRoomStore {
	return &memRoomStore{rooms: make(map[string]string), retired: make(map[string]bool)}
}

func (s *memRoomStore) SetGroupID(ctx context.Context, roomID, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired[roomID] {
		return common.ErrRoomRetired
	}
	if cur, ok := s.rooms[roomID]; ok && cur != groupID {
		return common.ErrRoomAlreadyBound
	}
	s.rooms[roomID] = groupID
	return nil
}

func (s *memRoomStore) GroupID(ctx context.Context, roomID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.rooms[roomID]
	if !ok {
		return "", common.ErrRecordNotFound
	}
	if s.retired[roomID] {
		return "", common.ErrRoomRetired
	}
	return id, nil
}

func (s *memRoomStore) RetireGroupID(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok || s.retired[roomID] {
		return common.ErrRecordNotFound
	}
	s.retired[roomID] = true
	return nil
}

func (s *memRoomStore) ClearGroupID(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	return nil
}

type memGroupCache struct {
	mu    sync.Mutex
	rooms map[string]string
}

func newMemGroupCache() *memGroupCache {
	return &memGroupCache{rooms: make(map[string]string)}
}

func (c *memGroupCache) Get(ctx context.Context, roomID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.rooms[roomID]
	if !ok {
		return "", common.ErrCacheMiss
	}
	return id, nil
}

func (c *memGroupCache) Set(ctx context.Context, roomID, groupID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[roomID] = groupID
	return nil
}

func (c *memGroupCache) Delete(ctx context.Context, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
	return nil
}

type memIdentityStore struct {
	mu   sync.Mutex
	recs map[uint64]*identity.UserIdentity
}

func newMemIdentityStore() *memIdentityStore {
	return &memIdentityStore{recs: make(map[uint64]*identity.UserIdentity)}
}

func (s *memIdentityStore) EnsureEncryptionKey(ctx context.Context, fid uint64, address, candidate string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recs[fid]; ok {
		return rec.EncryptionKey, nil
	}
	s.recs[fid] = &identity.UserIdentity{FID: fid, Address: address, EncryptionKey: candidate}
	return candidate, nil
}

func (s *memIdentityStore) Get(ctx context.Context, fid uint64) (*identity.UserIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[fid]
	if !ok {
		return nil, common.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memIdentityStore) SetInboxID(ctx context.Context, fid uint64, inboxID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[fid]
	if !ok {
		return common.ErrRecordNotFound
	}
	rec.InboxID = inboxID
	return nil
}
