// Package chat is the application-facing surface of the room chat: it ties
// identities, sessions, room groups, the join protocol and the message
// pipeline together behind the operations the transports expose.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"roomchat/internal/clock"
	"roomchat/internal/common"
	"roomchat/internal/config"
	"roomchat/internal/group"
	"roomchat/internal/identity"
	"roomchat/internal/join"
	"roomchat/internal/message"
	"roomchat/internal/session"
	"roomchat/internal/xmtp"
)

type InitResult struct {
	Ready   bool   `json:"ready"`
	InboxID string `json:"inboxId,omitempty"`
}

type GroupInfo struct {
	Exists       bool   `json:"exists"`
	GroupID      string `json:"groupId,omitempty"`
	MemberCount  *int   `json:"memberCount,omitempty"`
	MessageCount *int   `json:"messageCount,omitempty"`
}

type JoinResult struct {
	Attached  bool       `json:"attached"`
	GroupID   string     `json:"groupId,omitempty"`
	Attempts  int        `json:"attempts"`
	Requested bool       `json:"requested"`
	State     join.State `json:"state"`
}

type InviteResult struct {
	Added  bool   `json:"added"`
	Member bool   `json:"member"`
	Reason string `json:"reason,omitempty"`
}

// Outgoing is a text message as composed by the caller. Mentions may be
// left empty; they are then extracted from the text against the profiles
// seen in the room.
type Outgoing struct {
	Text     string            `json:"text"`
	Sender   message.Sender    `json:"sender"`
	Mentions []message.Mention `json:"mentions,omitempty"`
	ReplyTo  string            `json:"replyTo,omitempty"`
}

type Service struct {
	cfg        config.ChatConfig
	sessions   *session.Cache
	groups     *group.Manager
	identities *identity.Provisioner
	wallets    identity.WalletProvider
	system     *identity.SystemSigner
	joiner     *join.Protocol
	formatter  *message.Formatter
	log        *zap.SugaredLogger

	mu   sync.Mutex
	subs map[string]map[*message.Subscription]struct{}
}

func NewService(
	cfg *config.Config,
	sessions *session.Cache,
	groups *group.Manager,
	identities *identity.Provisioner,
	wallets identity.WalletProvider,
	system *identity.SystemSigner,
	formatter *message.Formatter,
	clk clock.Clock,
	log *zap.SugaredLogger,
) *Service {
	s := &Service{
		cfg:        cfg.Chat,
		sessions:   sessions,
		groups:     groups,
		identities: identities,
		wallets:    wallets,
		system:     system,
		formatter:  formatter,
		log:        log,
		subs:       make(map[string]map[*message.Subscription]struct{}),
	}
	s.joiner = join.NewProtocol(sessions, groups, s.systemClient, JoinConfig(cfg.Chat), clk, log.Named("join"))
	return s
}

// JoinConfig maps the chat settings onto the join protocol.
func JoinConfig(c config.ChatConfig) join.Config {
	policy := join.FixedPolicy(c.JoinRetries, c.JoinRetryDelay)
	if c.JoinExponential {
		policy = join.ExponentialPolicy(c.JoinRetries, c.JoinRetryDelay, c.JoinBackoffCap)
	}
	strategy := join.Passive
	if c.JoinPolicy == config.JoinActive {
		strategy = join.Active
	}
	return join.Config{Strategy: strategy, Policy: policy, RequestDelay: c.RequestDelay}
}

// userMaterials resolves the caller's wallet and encryption key. It only
// runs when the session cache has to build a client.
func (s *Service) userMaterials(p common.Principal) session.BuildFunc {
	return func(ctx context.Context) (session.Materials, error) {
		wallet, err := s.wallets.Wallet(ctx, p)
		if err != nil {
			return session.Materials{}, err
		}
		signer, err := identity.BuildSigner(wallet.Address, wallet.Sign)
		if err != nil {
			return session.Materials{}, err
		}
		key, err := s.identities.EnsureEncryptionKey(ctx, p.FID, signer.Identifier().Address)
		if err != nil {
			return session.Materials{}, err
		}
		return session.Materials{Signer: signer, EncryptionKey: key}, nil
	}
}

func (s *Service) client(ctx context.Context, p common.Principal) (xmtp.Client, error) {
	return s.sessions.GetOrCreate(ctx, p.ActorID(), s.userMaterials(p))
}

// systemClient is the admin identity that creates groups and adds members.
func (s *Service) systemClient(ctx context.Context) (xmtp.Client, error) {
	if s.system == nil {
		return nil, common.SignerUnavailable("chat.systemClient", "system identity is not configured")
	}
	return s.sessions.GetOrCreate(ctx, common.SystemActorID, func(ctx context.Context) (session.Materials, error) {
		return session.Materials{Signer: s.system, EncryptionKey: s.system.DatabaseKey()}, nil
	})
}

// InitChat makes sure the caller has a ready client.
func (s *Service) InitChat(ctx context.Context, p common.Principal) (InitResult, error) {
	client, err := s.client(ctx, p)
	if err != nil {
		s.log.Warnw("chat init failed", "actor", p.ActorID(), "error", err)
		return InitResult{}, err
	}
	if s.identities.CachedInboxID(ctx, p.FID) != client.InboxID() {
		s.identities.RememberInboxID(ctx, p.FID, client.InboxID())
	}
	return InitResult{Ready: true, InboxID: client.InboxID()}, nil
}

// ReinitChat discards the caller's session and builds a fresh one.
func (s *Service) ReinitChat(ctx context.Context, p common.Principal) (InitResult, error) {
	s.disposeActor(p.ActorID())
	s.sessions.Invalidate(p.ActorID())
	return s.InitChat(ctx, p)
}

// Logout releases the caller's subscriptions and session.
func (s *Service) Logout(p common.Principal) {
	s.disposeActor(p.ActorID())
	s.sessions.Invalidate(p.ActorID())
}

// ProvisionRoom creates the room's group when the room goes live, seeded
// with the host. A room that already has a group keeps it.
func (s *Service) ProvisionRoom(ctx context.Context, roomID, hostAddress string) (string, error) {
	admin, err := s.systemClient(ctx)
	if err != nil {
		return "", err
	}
	return s.groups.CreateRoomGroup(ctx, admin, roomID, hostAddress)
}

// RoomEnded retires the room's group reference.
func (s *Service) RoomEnded(ctx context.Context, roomID string) (group.Retirement, error) {
	return s.RetireGroup(ctx, roomID)
}

// GetGroupInfo reports whether the room has a group. Counts are filled in
// when the system identity can read the group.
func (s *Service) GetGroupInfo(ctx context.Context, roomID string) (GroupInfo, error) {
	if err := common.ValidateRoomID(roomID); err != nil {
		return GroupInfo{}, common.InvalidArg("chat.GetGroupInfo", err.Error())
	}
	groupID, err := s.groups.GroupID(ctx, roomID)
	if errors.Is(err, common.ErrGroupNotProvisioned) {
		return GroupInfo{Exists: false}, nil
	}
	if err != nil {
		return GroupInfo{}, err
	}
	info := GroupInfo{Exists: true, GroupID: groupID}

	admin, err := s.systemClient(ctx)
	if err != nil {
		return info, nil
	}
	if n, err := s.groups.MemberCount(ctx, admin, groupID); err == nil {
		info.MemberCount = &n
	} else {
		s.log.Debugw("member count unavailable", "group", groupID, "error", err)
	}
	if n, err := s.groups.MessageCount(ctx, admin, groupID); err == nil {
		info.MessageCount = &n
	} else {
		s.log.Debugw("message count unavailable", "group", groupID, "error", err)
	}
	return info, nil
}

// JoinChat runs the join protocol for the caller. A room without a group
// is reported as GroupNotProvisioned so the caller can poll.
func (s *Service) JoinChat(ctx context.Context, p common.Principal, roomID string) (JoinResult, error) {
	if err := common.ValidateRoomID(roomID); err != nil {
		return JoinResult{}, common.InvalidArg("chat.JoinChat", err.Error())
	}
	res, err := s.joiner.Run(ctx, join.Request{
		ActorID: p.ActorID(),
		Address: p.Address,
		RoomID:  roomID,
		Build:   s.userMaterials(p),
	})
	out := JoinResult{
		GroupID:   res.GroupID,
		Attempts:  res.Attempts,
		Requested: res.Requested,
		State:     res.State(),
	}
	if err != nil {
		return out, err
	}
	out.Attached = true
	return out, nil
}

func (s *Service) composeMentions(out Outgoing) []message.Mention {
	if len(out.Mentions) > 0 {
		return out.Mentions
	}
	return message.ExtractMentions(out.Text, s.formatter.Profiles().Mentionable())
}

func (s *Service) prepare(ctx context.Context, p common.Principal, groupID string, out *Outgoing) (xmtp.Client, error) {
	const op = "chat.Send"
	if groupID == "" {
		return nil, common.InvalidArg(op, "group id is required")
	}
	if err := common.ValidateMessageText(out.Text); err != nil {
		return nil, common.InvalidArg(op, err.Error())
	}
	client, err := s.client(ctx, p)
	if err != nil {
		return nil, err
	}
	if out.Sender.FID == 0 {
		out.Sender.FID = p.FID
	}
	if out.Sender.Username != "" {
		s.formatter.Profiles().Put(client.InboxID(), out.Sender)
	}
	return client, nil
}

// SendText sends a structured text message. Failed sends are not retried.
func (s *Service) SendText(ctx context.Context, p common.Principal, groupID string, out Outgoing) (string, error) {
	client, err := s.prepare(ctx, p, groupID, &out)
	if err != nil {
		return "", err
	}
	payload, err := message.Encode(message.Structured{
		Text:     out.Text,
		Sender:   out.Sender,
		Mentions: s.composeMentions(out),
	})
	if err != nil {
		return "", common.InvalidArg("chat.SendText", err.Error())
	}
	return s.groups.SendMessage(ctx, client, groupID, payload)
}

// SendReply sends a reply quoting the message out.ReplyTo.
func (s *Service) SendReply(ctx context.Context, p common.Principal, groupID string, out Outgoing) (string, error) {
	if out.ReplyTo == "" {
		return "", common.InvalidArg("chat.SendReply", "reply target is required")
	}
	client, err := s.prepare(ctx, p, groupID, &out)
	if err != nil {
		return "", err
	}
	mentions := s.composeMentions(out)
	return s.groups.SendReply(ctx, client, groupID, out.ReplyTo, func(original xmtp.Message) ([]byte, error) {
		return message.Encode(message.NewReply(out.Text, out.Sender, mentions, s.formatter.Format(original)))
	})
}

// ListMessages returns the chronological page [offset, offset+limit) of the
// group's most recent history.
func (s *Service) ListMessages(ctx context.Context, p common.Principal, groupID string, limit, offset int) ([]message.Formatted, error) {
	if groupID == "" {
		return nil, common.InvalidArg("chat.ListMessages", "group id is required")
	}
	if limit < 0 || offset < 0 {
		return nil, common.InvalidArg("chat.ListMessages", "limit and offset must not be negative")
	}
	client, err := s.client(ctx, p)
	if err != nil {
		return nil, err
	}
	window := s.cfg.HistoryLimit
	if limit > 0 && limit+offset > window {
		window = limit + offset
	}
	history, err := s.formatter.LoadHistory(ctx, s.groups, client, groupID, window)
	if err != nil {
		return nil, err
	}
	return message.Page(history, limit, offset), nil
}

// Subscribe opens the live stream of groupID, then backfills the caller's
// timeline from history. Messages sent while history loads arrive on the
// stream; the timeline drops the ones history also returns. Live messages go
// to onMessage until the subscription is disposed or ctx ends.
func (s *Service) Subscribe(ctx context.Context, p common.Principal, groupID string, onMessage func(message.Formatted)) (*message.Subscription, error) {
	const op = "chat.Subscribe"
	if groupID == "" {
		return nil, common.InvalidArg(op, "group id is required")
	}
	client, err := s.client(ctx, p)
	if err != nil {
		return nil, err
	}

	timeline := message.NewTimeline()
	sub, err := s.formatter.Subscribe(ctx, client, groupID, timeline, onMessage, s.log.Named("subscription"))
	if err != nil {
		return nil, common.Internal(op, fmt.Errorf("open stream for %s: %w", groupID, err))
	}
	history, err := s.formatter.LoadHistory(ctx, s.groups, client, groupID, s.cfg.HistoryLimit)
	if err != nil {
		sub.Dispose()
		return nil, err
	}
	timeline.Merge(history)

	s.track(p.ActorID(), sub)
	return sub, nil
}

func (s *Service) track(actorID string, sub *message.Subscription) {
	s.mu.Lock()
	set, ok := s.subs[actorID]
	if !ok {
		set = make(map[*message.Subscription]struct{})
		s.subs[actorID] = set
	}
	set[sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-sub.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.subs[actorID]; ok {
			delete(cur, sub)
			if len(cur) == 0 {
				delete(s.subs, actorID)
			}
		}
	}()
}

func (s *Service) disposeActor(actorID string) {
	s.mu.Lock()
	var open []*message.Subscription
	for sub := range s.subs[actorID] {
		open = append(open, sub)
	}
	delete(s.subs, actorID)
	s.mu.Unlock()
	for _, sub := range open {
		sub.Dispose()
	}
}

// InviteMember adds a wallet to the room's group using the system identity.
func (s *Service) InviteMember(ctx context.Context, roomID, address string) (InviteResult, error) {
	res, err := s.AddParticipant(ctx, roomID, address)
	if err != nil {
		return InviteResult{}, err
	}
	out := InviteResult{Added: res.Added, Member: res.Member}
	switch {
	case res.Outcome == group.NotRegistered:
		out.Reason = common.UserMessage(common.KindIdentityNotRegistered)
	case res.Outcome == group.LookupFailed:
		out.Reason = "address lookup failed, try again"
	case res.Member && !res.Added:
		out.Reason = "already a member"
	}
	return out, nil
}

// AddParticipant adds address to the room's group.
func (s *Service) AddParticipant(ctx context.Context, roomID, address string) (group.AddResult, error) {
	const op = "chat.AddParticipant"
	if _, err := common.NormalizeAddress(address); err != nil {
		return group.AddResult{}, common.InvalidArg(op, err.Error())
	}
	groupID, err := s.groups.GroupID(ctx, roomID)
	if err != nil {
		return group.AddResult{}, err
	}
	admin, err := s.systemClient(ctx)
	if err != nil {
		return group.AddResult{}, err
	}
	return s.groups.AddMember(ctx, admin, groupID, address)
}

// ResolveInbox returns the inbox id registered for address, or "" when the
// address is not registered.
func (s *Service) ResolveInbox(ctx context.Context, address string) (string, error) {
	admin, err := s.systemClient(ctx)
	if err != nil {
		return "", err
	}
	lookup := s.groups.ResolveInboxID(ctx, admin, address)
	if lookup.Outcome == group.LookupFailed {
		return "", lookup.Err
	}
	return lookup.InboxID, nil
}

// RetireGroup unlinks the room from its group. The group and its history
// stay on the network; the result says so.
func (s *Service) RetireGroup(ctx context.Context, roomID string) (group.Retirement, error) {
	return s.groups.DeleteGroupReference(ctx, roomID)
}

// Close disposes every open subscription.
func (s *Service) Close() {
	s.mu.Lock()
	var open []*message.Subscription
	for _, set := range s.subs {
		for sub := range set {
			open = append(open, sub)
		}
	}
	s.subs = make(map[string]map[*message.Subscription]struct{})
	s.mu.Unlock()
	for _, sub := range open {
		sub.Dispose()
	}
}
