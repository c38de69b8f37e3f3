// Package group binds messaging-network groups to rooms and manages their
// membership.
package group

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"roomchat/internal/common"
	"roomchat/internal/xmtp"
)

const (
	DefaultCacheTTL        = 24 * time.Hour
	DefaultPropagationWait = 2 * time.Second
	resolveParallelism     = 8
)

const retiredNote = "the room is no longer linked to this group; the group and its message history remain on the network"

type Config struct {
	CacheTTL        time.Duration
	PropagationWait time.Duration
}

type Manager struct {
	store Store
	cache Cache
	cfg   Config
	log   *zap.SugaredLogger
}

func NewManager(store Store, cache Cache, cfg Config, log *zap.SugaredLogger) *Manager {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.PropagationWait <= 0 {
		cfg.PropagationWait = DefaultPropagationWait
	}
	return &Manager{store: store, cache: cache, cfg: cfg, log: log}
}

// CreateRoomGroup creates the room's group seeded with the creator wallet's
// inbox, publishes it and records it in both stores. A room that already has
// a group keeps it.
func (m *Manager) CreateRoomGroup(ctx context.Context, creator xmtp.Client, roomID, creatorAddress string) (string, error) {
	const op = "group.CreateRoomGroup"
	if err := common.ValidateRoomID(roomID); err != nil {
		return "", common.InvalidArg(op, err.Error())
	}

	existing, err := m.GroupID(ctx, roomID)
	switch {
	case err == nil:
		if err := m.VerifyGroup(ctx, creator, roomID, existing); err != nil {
			return "", err
		}
		return existing, nil
	case errors.Is(err, common.ErrRoomRetired):
		return "", common.InvalidArg(op, "room ended; start a new room")
	case !errors.Is(err, common.ErrGroupNotProvisioned):
		return "", err
	}

	lookup := m.ResolveInboxID(ctx, creator, creatorAddress)
	switch lookup.Outcome {
	case NotRegistered:
		return "", common.IdentityNotRegistered(op, creatorAddress)
	case LookupFailed:
		return "", common.Internal(op, lookup.Err)
	}

	var seed []string
	if lookup.InboxID != creator.InboxID() {
		seed = append(seed, lookup.InboxID)
	}
	g, err := creator.Conversations().NewGroup(ctx, seed)
	if err != nil {
		return "", common.Internal(op, fmt.Errorf("create group for room %s: %w", roomID, err))
	}
	if err := m.propagate(ctx, creator, g); err != nil {
		return "", common.Internal(op, err)
	}

	groupID := g.ID()
	if err := m.store.SetGroupID(ctx, roomID, groupID); err != nil {
		if errors.Is(err, common.ErrRoomAlreadyBound) {
			bound, gerr := m.store.GroupID(ctx, roomID)
			if errors.Is(gerr, common.ErrRoomRetired) {
				return "", common.InvalidArg(op, "room ended; start a new room")
			}
			if gerr != nil {
				return "", common.Internal(op, gerr)
			}
			m.log.Infow("room was bound concurrently, keeping existing group",
				"room", roomID, "group", bound, "orphan", groupID)
			m.warmCache(ctx, roomID, bound)
			return bound, nil
		}
		return "", common.Internal(op, fmt.Errorf("persist group for room %s: %w", roomID, err))
	}
	if err := m.cache.Set(ctx, roomID, groupID, m.cfg.CacheTTL); err != nil {
		if cerr := m.store.ClearGroupID(context.WithoutCancel(ctx), roomID); cerr != nil {
			m.log.Errorw("failed to roll back group binding", "room", roomID, "group", groupID, "error", cerr)
		}
		return "", common.Internal(op, fmt.Errorf("cache group for room %s: %w", roomID, err))
	}

	m.log.Infow("room group created", "room", roomID, "group", groupID, "creator", lookup.InboxID)
	return groupID, nil
}

// GroupID reads the cache first and falls back to the durable store,
// repopulating the cache on a durable hit.
func (m *Manager) GroupID(ctx context.Context, roomID string) (string, error) {
	const op = "group.GroupID"

	id, err := m.cache.Get(ctx, roomID)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, common.ErrCacheMiss) {
		m.log.Warnw("group cache read failed", "room", roomID, "error", err)
	}

	id, err = m.store.GroupID(ctx, roomID)
	if errors.Is(err, common.ErrRecordNotFound) {
		return "", common.GroupNotProvisioned(op, roomID)
	}
	if errors.Is(err, common.ErrRoomRetired) {
		return "", common.RoomRetired(op, roomID)
	}
	if err != nil {
		return "", common.Internal(op, fmt.Errorf("load group for room %s: %w", roomID, err))
	}
	m.warmCache(ctx, roomID, id)
	return id, nil
}

// VerifyGroup checks that groupID, bound to roomID, is still known to the
// network as seen by client. A group that cannot be found even after a
// conversation sync is reported as GroupMissing; other failures are
// Internal.
func (m *Manager) VerifyGroup(ctx context.Context, client xmtp.Client, roomID, groupID string) error {
	const op = "group.VerifyGroup"
	_, err := m.conversation(ctx, client, groupID)
	if errors.Is(err, xmtp.ErrConversationNotFound) {
		m.log.Errorw("bound group is missing from the network", "room", roomID, "group", groupID)
		return common.GroupMissing(op, roomID, groupID)
	}
	if err != nil {
		return common.Internal(op, err)
	}
	return nil
}

func (m *Manager) warmCache(ctx context.Context, roomID, groupID string) {
	if err := m.cache.Set(ctx, roomID, groupID, m.cfg.CacheTTL); err != nil {
		m.log.Warnw("failed to repopulate group cache", "room", roomID, "error", err)
	}
}

// AddResult describes a single membership add.
type AddResult struct {
	Address string
	InboxID string
	Outcome Outcome
	// Added is true when this call changed the membership.
	Added bool
	// Member is true when the inbox is in the group after the call.
	Member bool
}

// AddMember adds address to the group. An address that cannot be resolved
// is not an error: the result reports Member=false with the lookup outcome.
func (m *Manager) AddMember(ctx context.Context, admin xmtp.Client, groupID, address string) (AddResult, error) {
	const op = "group.AddMember"

	lookup := m.ResolveInboxID(ctx, admin, address)
	res := AddResult{Address: lookup.Address, InboxID: lookup.InboxID, Outcome: lookup.Outcome}
	if lookup.Outcome != Resolved {
		m.log.Infow("member not added, address unresolved",
			"group", groupID, "address", address, "outcome", lookup.Outcome.String(), "error", lookup.Err)
		return res, nil
	}

	g, err := m.conversation(ctx, admin, groupID)
	if err != nil {
		return res, common.Internal(op, err)
	}
	present, err := isMember(ctx, g, lookup.InboxID)
	if err != nil {
		return res, common.Internal(op, err)
	}
	if present {
		res.Member = true
		return res, nil
	}

	if err := g.AddMembers(ctx, []string{lookup.InboxID}); err != nil {
		return res, common.Internal(op, fmt.Errorf("add %s to %s: %w", lookup.InboxID, groupID, err))
	}
	res.Added, res.Member = true, true
	if err := m.propagate(ctx, admin, g); err != nil {
		m.log.Warnw("membership propagation failed", "group", groupID, "error", err)
	}
	m.log.Infow("member added", "group", groupID, "inbox", lookup.InboxID)
	return res, nil
}

// BatchResult summarises AddMembers.
type BatchResult struct {
	Added          []string
	AlreadyMembers []string
	Skipped        []Lookup
}

// AddMembers resolves every address, skips the unresolvable and the present
// ones, and adds the rest in one network call.
func (m *Manager) AddMembers(ctx context.Context, admin xmtp.Client, groupID string, addresses []string) (BatchResult, error) {
	const op = "group.AddMembers"
	var res BatchResult

	lookups := make([]Lookup, len(addresses))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(resolveParallelism)
	for i, addr := range addresses {
		i, addr := i, addr
		eg.Go(func() error {
			lookups[i] = m.ResolveInboxID(egCtx, admin, addr)
			return nil
		})
	}
	_ = eg.Wait()

	g, err := m.conversation(ctx, admin, groupID)
	if err != nil {
		return res, common.Internal(op, err)
	}
	members, err := g.Members(ctx)
	if err != nil {
		return res, common.Internal(op, err)
	}
	present := make(map[string]bool, len(members))
	for _, mem := range members {
		present[mem.InboxID] = true
	}

	var toAdd []string
	for _, l := range lookups {
		switch {
		case l.Outcome != Resolved:
			m.log.Infow("skipping unresolved address", "group", groupID, "address", l.Address,
				"outcome", l.Outcome.String(), "error", l.Err)
			res.Skipped = append(res.Skipped, l)
		case present[l.InboxID]:
			res.AlreadyMembers = append(res.AlreadyMembers, l.Address)
		default:
			present[l.InboxID] = true
			toAdd = append(toAdd, l.InboxID)
			res.Added = append(res.Added, l.Address)
		}
	}
	if len(toAdd) == 0 {
		return res, nil
	}
	if err := g.AddMembers(ctx, toAdd); err != nil {
		return BatchResult{Skipped: res.Skipped}, common.Internal(op, err)
	}
	if err := m.propagate(ctx, admin, g); err != nil {
		m.log.Warnw("membership propagation failed", "group", groupID, "error", err)
	}
	m.log.Infow("members added", "group", groupID, "count", len(toAdd))
	return res, nil
}

// RemoveMember removes address from the group; admin must be a group admin.
func (m *Manager) RemoveMember(ctx context.Context, admin xmtp.Client, groupID, address string) (bool, error) {
	const op = "group.RemoveMember"

	lookup := m.ResolveInboxID(ctx, admin, address)
	if lookup.Outcome != Resolved {
		return false, nil
	}
	g, err := m.conversation(ctx, admin, groupID)
	if err != nil {
		return false, common.Internal(op, err)
	}
	present, err := isMember(ctx, g, lookup.InboxID)
	if err != nil || !present {
		return false, wrapInternal(op, err)
	}
	if err := g.RemoveMembers(ctx, []string{lookup.InboxID}); err != nil {
		return false, common.Internal(op, err)
	}
	if err := m.propagate(ctx, admin, g); err != nil {
		m.log.Warnw("membership propagation failed", "group", groupID, "error", err)
	}
	return true, nil
}

// MemberCount returns the number of inboxes in the group.
func (m *Manager) MemberCount(ctx context.Context, client xmtp.Client, groupID string) (int, error) {
	g, err := m.conversation(ctx, client, groupID)
	if err != nil {
		return 0, common.Internal("group.MemberCount", err)
	}
	members, err := g.Members(ctx)
	if err != nil {
		return 0, common.Internal("group.MemberCount", err)
	}
	return len(members), nil
}

// Messages syncs the group and returns up to limit messages, newest first,
// as the network delivers them.
func (m *Manager) Messages(ctx context.Context, client xmtp.Client, groupID string, limit int) ([]xmtp.Message, error) {
	const op = "group.Messages"
	g, err := m.conversation(ctx, client, groupID)
	if err != nil {
		return nil, common.Internal(op, err)
	}
	if err := g.Sync(ctx); err != nil {
		return nil, common.Internal(op, fmt.Errorf("sync %s: %w", groupID, err))
	}
	msgs, err := g.Messages(ctx, xmtp.ListOptions{Limit: limit})
	if err != nil {
		return nil, common.Internal(op, err)
	}
	return msgs, nil
}

// MessageCount counts application messages; membership changes are not
// messages.
func (m *Manager) MessageCount(ctx context.Context, client xmtp.Client, groupID string) (int, error) {
	msgs, err := m.Messages(ctx, client, groupID, 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, msg := range msgs {
		if msg.Kind == xmtp.KindApplication {
			n++
		}
	}
	return n, nil
}

// SendMessage sends an encoded payload. Sends are never retried.
func (m *Manager) SendMessage(ctx context.Context, client xmtp.Client, groupID string, content []byte) (string, error) {
	const op = "group.SendMessage"
	g, err := m.conversation(ctx, client, groupID)
	if err != nil {
		return "", common.SendFailed(op, err)
	}
	id, err := g.Send(ctx, content)
	if err != nil {
		return "", common.SendFailed(op, err)
	}
	return id, nil
}

// SendReply looks up the message being replied to, lets encode build the
// payload from it and sends the result.
func (m *Manager) SendReply(ctx context.Context, client xmtp.Client, groupID, replyToID string,
	encode func(original xmtp.Message) ([]byte, error)) (string, error) {
	const op = "group.SendReply"

	original, err := m.FindMessage(ctx, client, groupID, replyToID)
	if err != nil {
		return "", err
	}
	content, err := encode(original)
	if err != nil {
		return "", common.InvalidArg(op, err.Error())
	}
	return m.SendMessage(ctx, client, groupID, content)
}

// FindMessage returns the message with the given id from the group history.
func (m *Manager) FindMessage(ctx context.Context, client xmtp.Client, groupID, messageID string) (xmtp.Message, error) {
	const op = "group.FindMessage"
	msgs, err := m.Messages(ctx, client, groupID, 0)
	if err != nil {
		return xmtp.Message{}, err
	}
	for _, msg := range msgs {
		if msg.ID == messageID {
			return msg, nil
		}
	}
	return xmtp.Message{}, common.NotFound(op, fmt.Sprintf("message %s not found in group %s", messageID, groupID))
}

// Retirement is returned when a room's group reference is removed. The
// network keeps the group and its history.
type Retirement struct {
	RoomID          string `json:"room_id"`
	GroupID         string `json:"group_id"`
	HistoryRetained bool   `json:"history_retained"`
	Note            string `json:"note"`
}

// DeleteGroupReference unlinks the room from its group. The durable record
// is kept as a tombstone so the room can never be given a second group. The
// cache is cleared first so a failure can never leave it pointing at a
// retired group.
func (m *Manager) DeleteGroupReference(ctx context.Context, roomID string) (Retirement, error) {
	const op = "group.DeleteGroupReference"

	groupID, err := m.store.GroupID(ctx, roomID)
	if errors.Is(err, common.ErrRecordNotFound) {
		return Retirement{}, common.GroupNotProvisioned(op, roomID)
	}
	if errors.Is(err, common.ErrRoomRetired) {
		return Retirement{}, common.RoomRetired(op, roomID)
	}
	if err != nil {
		return Retirement{}, common.Internal(op, err)
	}

	if err := m.cache.Delete(ctx, roomID); err != nil {
		return Retirement{}, common.Internal(op, fmt.Errorf("clear cached group for room %s: %w", roomID, err))
	}
	if err := m.store.RetireGroupID(ctx, roomID); err != nil {
		return Retirement{}, common.Internal(op, fmt.Errorf("retire group for room %s: %w", roomID, err))
	}

	m.log.Infow("room group retired", "room", roomID, "group", groupID)
	return Retirement{RoomID: roomID, GroupID: groupID, HistoryRetained: true, Note: retiredNote}, nil
}

// conversation returns the client's handle for groupID, syncing the
// conversation list once if it is not known locally.
func (m *Manager) conversation(ctx context.Context, client xmtp.Client, groupID string) (xmtp.Group, error) {
	convs := client.Conversations()
	g, err := convs.Get(ctx, groupID)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, xmtp.ErrConversationNotFound) {
		return nil, err
	}
	if err := convs.Sync(ctx); err != nil {
		return nil, fmt.Errorf("sync conversations: %w", err)
	}
	return convs.Get(ctx, groupID)
}

// propagate publishes and syncs so other clients can discover the change.
// Running out of PropagationWait is not a failure: joiners retry.
func (m *Manager) propagate(ctx context.Context, client xmtp.Client, g xmtp.Group) error {
	waitCtx, cancel := context.WithTimeout(ctx, m.cfg.PropagationWait)
	defer cancel()

	steps := []func(context.Context) error{g.Publish, g.Sync, client.Conversations().Sync}
	for _, step := range steps {
		if err := step(waitCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				m.log.Infow("propagation wait elapsed, proceeding", "group", g.ID())
				return nil
			}
			return fmt.Errorf("propagate group %s: %w", g.ID(), err)
		}
	}
	return nil
}

func isMember(ctx context.Context, g xmtp.Group, inboxID string) (bool, error) {
	members, err := g.Members(ctx)
	if err != nil {
		return false, err
	}
	for _, mem := range members {
		if mem.InboxID == inboxID {
			return true, nil
		}
	}
	return false, nil
}

func wrapInternal(op string, err error) error {
	if err == nil {
		return nil
	}
	return common.Internal(op, err)
}
