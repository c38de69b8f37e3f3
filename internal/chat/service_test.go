package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"roomchat/internal/clock"
	"roomchat/internal/common"
	"roomchat/internal/config"
	"roomchat/internal/group"
	"roomchat/internal/identity"
	"roomchat/internal/join"
	"roomchat/internal/message"
	"roomchat/internal/session"
	"roomchat/internal/xmtp/memnet"
)

const (
	systemAddr   = "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB"
	hostAddr     = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	guestAddr    = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	strangerAddr = "0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb"
	roomID       = "room-1"
)

var (
	host  = common.Principal{FID: 1, Address: hostAddr}
	guest = common.Principal{FID: 2, Address: guestAddr}
)

type fixture struct {
	net      *memnet.Network
	sessions *session.Cache
	rooms    *memRoomStore
	cache    *memGroupCache
	clock    *clock.Fake
	svc      *Service
}

func testConfig(policy string) *config.Config {
	return &config.Config{
		Network: config.NetworkConfig{Env: "local"},
		Chat: config.ChatConfig{
			SessionTTL:      time.Hour,
			PropagationWait: time.Second,
			JoinPolicy:      policy,
			JoinRetries:     3,
			JoinRetryDelay:  3 * time.Second,
			JoinBackoffCap:  5 * time.Second,
			RequestDelay:    time.Second,
			HistoryLimit:    100,
		},
	}
}

func newFixture(t *testing.T, policy string, withSystem bool) *fixture {
	t.Helper()
	f := &fixture{
		rooms: newMemRoomStore(),
		cache: newMemGroupCache(),
		clock: clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.start(t, policy, withSystem)
	return f
}

// start builds a service on a fresh network over the fixture's room stores,
// which is what a process restart on an ephemeral network looks like.
func (f *fixture) start(t *testing.T, policy string, withSystem bool) {
	t.Helper()
	log := zap.NewNop().Sugar()
	cfg := testConfig(policy)

	f.net = memnet.New()
	f.sessions = session.NewCache(f.net, log, session.WithTTL(cfg.Chat.SessionTTL), session.WithClock(f.clock))
	t.Cleanup(f.sessions.Close)

	var system *identity.SystemSigner
	if withSystem {
		var err error
		system, err = identity.NewSystemSigner(systemAddr, strings.Repeat("11", 32))
		require.NoError(t, err)
	}

	mgr := group.NewManager(f.rooms, f.cache, group.Config{PropagationWait: cfg.Chat.PropagationWait}, log)
	f.svc = NewService(cfg, f.sessions, mgr,
		identity.NewProvisioner(newMemIdentityStore(), log),
		identity.NewDerivedWalletProvider("test-master-secret"),
		system,
		message.NewFormatter(message.NewProfileCache()),
		f.clock, log)
	t.Cleanup(f.svc.Close)
}

func (f *fixture) provision(t *testing.T) string {
	t.Helper()
	groupID, err := f.svc.ProvisionRoom(context.Background(), roomID, hostAddr)
	require.NoError(t, err)
	return groupID
}

func TestJoinConfig(t *testing.T) {
	cfg := testConfig(config.JoinActive).Chat
	jc := JoinConfig(cfg)
	assert.Equal(t, join.Active, jc.Strategy)
	assert.Equal(t, time.Second, jc.RequestDelay)

	cfg.JoinPolicy = config.JoinPassive
	cfg.JoinExponential = true
	jc = JoinConfig(cfg)
	assert.Equal(t, join.Passive, jc.Strategy)

	b := jc.Policy()
	assert.Equal(t, 3*time.Second, b.NextBackOff())
	assert.Equal(t, 5*time.Second, b.NextBackOff())
}

func TestInitChat(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)
	ctx := context.Background()

	res, err := f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.NotEmpty(t, res.InboxID)

	again, err := f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	assert.Equal(t, res.InboxID, again.InboxID)
	assert.Equal(t, 1, f.net.ClientsCreated())

	// a new session reopens the same local database with the stored key
	re, err := f.svc.ReinitChat(ctx, host)
	require.NoError(t, err)
	assert.Equal(t, res.InboxID, re.InboxID)
	assert.Equal(t, 2, f.net.ClientsCreated())
}

func TestInitChat_Failures(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)
	ctx := context.Background()

	_, err := f.svc.InitChat(ctx, common.Principal{FID: 9})
	assert.ErrorIs(t, err, common.ErrSignerUnavailable)

	f.net.FailNewClient(assert.AnError)
	_, err = f.svc.InitChat(ctx, host)
	assert.ErrorIs(t, err, common.ErrClientInitFailed)
	assert.Equal(t, session.StateAbsent, f.sessions.State(host.ActorID()))
}

func TestProvisionRoom_RequiresSystemIdentity(t *testing.T) {
	f := newFixture(t, config.JoinActive, false)

	_, err := f.svc.ProvisionRoom(context.Background(), roomID, hostAddr)
	assert.ErrorIs(t, err, common.ErrSignerUnavailable)
}

func TestProvisionRoom_HostNotRegistered(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)

	_, err := f.svc.ProvisionRoom(context.Background(), roomID, hostAddr)
	assert.ErrorIs(t, err, common.ErrIdentityNotRegistered)
}

func TestGetGroupInfo(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)
	ctx := context.Background()

	info, err := f.svc.GetGroupInfo(ctx, roomID)
	require.NoError(t, err)
	assert.False(t, info.Exists)

	_, err = f.svc.GetGroupInfo(ctx, "bad room!")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	groupID := f.provision(t)

	info, err = f.svc.GetGroupInfo(ctx, roomID)
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, groupID, info.GroupID)
	require.NotNil(t, info.MemberCount)
	assert.Equal(t, 2, *info.MemberCount)
	require.NotNil(t, info.MessageCount)
	assert.Equal(t, 0, *info.MessageCount)
}

func TestJoinChat_NotProvisioned(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)

	res, err := f.svc.JoinChat(context.Background(), guest, roomID)
	assert.ErrorIs(t, err, common.ErrGroupNotProvisioned)
	assert.False(t, res.Attached)
	assert.Equal(t, join.ClientReady, res.State)
	assert.Empty(t, f.clock.Sleeps())
}

func TestJoinChat_PassiveGivesUp(t *testing.T) {
	f := newFixture(t, config.JoinPassive, true)
	ctx := context.Background()
	_, err := f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	f.provision(t)

	res, err := f.svc.JoinChat(ctx, guest, roomID)
	assert.ErrorIs(t, err, common.ErrAttachFailed)
	assert.False(t, res.Attached)
	assert.Equal(t, join.GiveUp, res.State)
	assert.Equal(t, 4, res.Attempts)
	assert.False(t, res.Requested)
	assert.Equal(t, common.UserMessage(common.KindAttachFailed), common.UserMessage(common.KindOf(err)))
}

func TestJoinChat_PassiveSucceedsAfterRosterAdd(t *testing.T) {
	f := newFixture(t, config.JoinPassive, true)
	ctx := context.Background()
	_, err := f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	_, err = f.svc.InitChat(ctx, guest)
	require.NoError(t, err)
	f.provision(t)

	res, err := f.svc.AddParticipant(ctx, roomID, guestAddr)
	require.NoError(t, err)
	assert.True(t, res.Added)

	joined, err := f.svc.JoinChat(ctx, guest, roomID)
	require.NoError(t, err)
	assert.True(t, joined.Attached)
	assert.Equal(t, 1, joined.Attempts)
}

func TestInviteMember(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)
	ctx := context.Background()

	_, err := f.svc.InviteMember(ctx, roomID, guestAddr)
	assert.ErrorIs(t, err, common.ErrGroupNotProvisioned)

	_, err = f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	f.provision(t)
	f.net.Register(guestAddr)

	res, err := f.svc.InviteMember(ctx, roomID, guestAddr)
	require.NoError(t, err)
	assert.Equal(t, InviteResult{Added: true, Member: true}, res)

	res, err = f.svc.InviteMember(ctx, roomID, guestAddr)
	require.NoError(t, err)
	assert.False(t, res.Added)
	assert.True(t, res.Member)
	assert.Equal(t, "already a member", res.Reason)

	res, err = f.svc.InviteMember(ctx, roomID, strangerAddr)
	require.NoError(t, err)
	assert.False(t, res.Member)
	assert.Equal(t, common.UserMessage(common.KindIdentityNotRegistered), res.Reason)

	_, err = f.svc.InviteMember(ctx, roomID, "not-an-address")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestEndToEnd_HostAndGuest(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)
	ctx := context.Background()

	_, err := f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	groupID := f.provision(t)

	hostJoin, err := f.svc.JoinChat(ctx, host, roomID)
	require.NoError(t, err)
	assert.True(t, hostJoin.Attached)
	assert.Equal(t, 1, hostJoin.Attempts)
	assert.False(t, hostJoin.Requested)

	received := make(chan message.Formatted, 10)
	sub, err := f.svc.Subscribe(ctx, host, groupID, func(m message.Formatted) { received <- m })
	require.NoError(t, err)

	guestJoin, err := f.svc.JoinChat(ctx, guest, roomID)
	require.NoError(t, err)
	assert.True(t, guestJoin.Attached)
	assert.True(t, guestJoin.Requested)
	assert.Equal(t, groupID, guestJoin.GroupID)
	assert.Equal(t, []time.Duration{time.Second}, f.clock.Sleeps())

	msgID, err := f.svc.SendText(ctx, guest, groupID, Outgoing{
		Text:   "hey",
		Sender: message.Sender{Username: "guest", DisplayName: "Guest"},
	})
	require.NoError(t, err)

	select {
	case m := <-received:
		assert.Equal(t, msgID, m.ID)
		assert.Equal(t, "hey", m.Text)
		assert.Equal(t, "guest", m.Sender.Username)
		assert.Equal(t, guest.FID, m.Sender.FID)
	case <-time.After(2 * time.Second):
		t.Fatal("host did not receive the guest message")
	}

	// a redelivered message is not surfaced twice
	require.True(t, f.net.Redeliver(groupID, msgID))
	select {
	case m := <-received:
		t.Fatalf("duplicate delivery of %s", m.ID)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 1, sub.Timeline().Len())

	// the host mentions the guest, whose profile is now known
	_, err = f.svc.SendText(ctx, host, groupID, Outgoing{
		Text:   "hello @guest",
		Sender: message.Sender{Username: "host"},
	})
	require.NoError(t, err)

	msgs, err := f.svc.ListMessages(ctx, guest, groupID, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hey", msgs[0].Text)
	assert.Equal(t, "hello @guest", msgs[1].Text)
	require.Len(t, msgs[1].Mentions, 1)
	assert.Equal(t, "guest", msgs[1].Mentions[0].Username)
	assert.Equal(t, 6, msgs[1].Mentions[0].StartIndex)
	assert.Equal(t, 6, msgs[1].Mentions[0].Length)
	assert.Equal(t, guestJoin.GroupID, msgs[1].GroupID)

	info, err := f.svc.GetGroupInfo(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, 3, *info.MemberCount)
	assert.Equal(t, 2, *info.MessageCount)

	sub.Dispose()
}

func TestSendReply_RoundTrip(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)
	ctx := context.Background()

	_, err := f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	groupID := f.provision(t)

	original := strings.Repeat("long message ", 20)
	m1, err := f.svc.SendText(ctx, host, groupID, Outgoing{Text: original, Sender: message.Sender{Username: "host"}})
	require.NoError(t, err)

	_, err = f.svc.SendReply(ctx, host, groupID, Outgoing{Text: "hi", Sender: message.Sender{Username: "host"}, ReplyTo: m1})
	require.NoError(t, err)

	msgs, err := f.svc.ListMessages(ctx, host, groupID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	reply := msgs[1]
	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, m1, reply.ReplyTo.MessageID)
	assert.NotEmpty(t, reply.ReplyTo.Message)
	assert.True(t, strings.HasPrefix(original, strings.TrimSuffix(reply.ReplyTo.Message, "...")))
	assert.Equal(t, "host", reply.ReplyTo.Sender.Username)

	_, err = f.svc.SendReply(ctx, host, groupID, Outgoing{Text: "hi", ReplyTo: "missing"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = f.svc.SendReply(ctx, host, groupID, Outgoing{Text: "hi"})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestSendText_Validation(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)
	ctx := context.Background()

	_, err := f.svc.SendText(ctx, host, "", Outgoing{Text: "hi"})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = f.svc.SendText(ctx, host, "group", Outgoing{Text: "   "})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = f.svc.SendText(ctx, host, "unknown-group", Outgoing{Text: "hi"})
	assert.ErrorIs(t, err, common.ErrSendFailed)
}

func TestListMessages_Paging(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)
	ctx := context.Background()

	_, err := f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	groupID := f.provision(t)

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.svc.SendText(ctx, host, groupID, Outgoing{Text: text})
		require.NoError(t, err)
	}

	page, err := f.svc.ListMessages(ctx, host, groupID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "two", page[0].Text)
	assert.Equal(t, "three", page[1].Text)

	_, err = f.svc.ListMessages(ctx, host, groupID, -1, 0)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestSubscribe_MessageSentWhileHistoryLoads(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)
	ctx := context.Background()

	_, err := f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	groupID := f.provision(t)
	_, err = f.svc.SendText(ctx, host, groupID, Outgoing{Text: "before"})
	require.NoError(t, err)

	var (
		once     sync.Once
		duringID string
		sendErr  error
	)
	f.net.AfterHistoryRead(func(string) {
		once.Do(func() {
			duringID, sendErr = f.svc.SendText(ctx, host, groupID, Outgoing{Text: "during"})
		})
	})
	received := make(chan message.Formatted, 10)
	sub, err := f.svc.Subscribe(ctx, host, groupID, func(m message.Formatted) { received <- m })
	require.NoError(t, err)
	f.net.AfterHistoryRead(nil)
	require.NoError(t, sendErr)

	select {
	case m := <-received:
		assert.Equal(t, duringID, m.ID)
		assert.Equal(t, "during", m.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("message sent while history loaded was lost")
	}
	items := sub.Timeline().Items()
	require.Len(t, items, 2)
	assert.Equal(t, "before", items[0].Text)
	assert.Equal(t, "during", items[1].Text)
}

func TestSubscribe_EndsWhenSessionExpires(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)
	ctx := context.Background()

	_, err := f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	groupID := f.provision(t)
	sub, err := f.svc.Subscribe(ctx, host, groupID, nil)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	assert.Positive(t, f.sessions.Sweep())
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription outlived its session")
	}

	// resubscribing builds a new session and backfills what was missed
	_, err = f.svc.SendText(ctx, host, groupID, Outgoing{Text: "after expiry"})
	require.NoError(t, err)
	resub, err := f.svc.Subscribe(ctx, host, groupID, nil)
	require.NoError(t, err)
	items := resub.Timeline().Items()
	require.Len(t, items, 1)
	assert.Equal(t, "after expiry", items[0].Text)
}

func TestLogout_DisposesSubscriptions(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)
	ctx := context.Background()

	_, err := f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	groupID := f.provision(t)

	sub, err := f.svc.Subscribe(ctx, host, groupID, nil)
	require.NoError(t, err)

	f.svc.Logout(host)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription still running after logout")
	}
	assert.Equal(t, session.StateAbsent, f.sessions.State(host.ActorID()))
}

func TestRetireGroup(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)
	ctx := context.Background()

	_, err := f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	groupID := f.provision(t)
	_, err = f.svc.SendText(ctx, host, groupID, Outgoing{Text: "before the end"})
	require.NoError(t, err)

	ret, err := f.svc.RoomEnded(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, groupID, ret.GroupID)
	assert.True(t, ret.HistoryRetained)
	assert.NotEmpty(t, ret.Note)

	info, err := f.svc.GetGroupInfo(ctx, roomID)
	require.NoError(t, err)
	assert.False(t, info.Exists)
	assert.True(t, f.net.GroupExists(groupID))
	assert.Equal(t, 1, f.net.MessageCount(groupID))

	_, err = f.svc.RetireGroup(ctx, roomID)
	assert.ErrorIs(t, err, common.ErrGroupNotProvisioned)
}

func TestRetireGroup_RoomIsNeverReprovisioned(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)
	ctx := context.Background()

	_, err := f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	groupID := f.provision(t)
	_, err = f.svc.RetireGroup(ctx, roomID)
	require.NoError(t, err)

	again, err := f.svc.ProvisionRoom(ctx, roomID, hostAddr)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	assert.Empty(t, again)
	assert.Equal(t, 1, f.net.GroupCount())

	_, err = f.svc.JoinChat(ctx, host, roomID)
	assert.ErrorIs(t, err, common.ErrRoomRetired)

	// a new room id gets its own group
	next, err := f.svc.ProvisionRoom(ctx, "room-2", hostAddr)
	require.NoError(t, err)
	assert.NotEqual(t, groupID, next)
}

func TestRestart_BoundGroupMissingFromNetwork(t *testing.T) {
	f := newFixture(t, config.JoinPassive, true)
	ctx := context.Background()

	_, err := f.svc.InitChat(ctx, host)
	require.NoError(t, err)
	f.provision(t)

	f.start(t, config.JoinPassive, true)
	_, err = f.svc.InitChat(ctx, host)
	require.NoError(t, err)

	_, err = f.svc.ProvisionRoom(ctx, roomID, hostAddr)
	assert.ErrorIs(t, err, common.ErrGroupMissing)

	res, err := f.svc.JoinChat(ctx, host, roomID)
	assert.ErrorIs(t, err, common.ErrGroupMissing)
	assert.Equal(t, join.GiveUp, res.State)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, f.clock.Sleeps())
}

func TestResolveInbox(t *testing.T) {
	f := newFixture(t, config.JoinActive, true)
	ctx := context.Background()

	inbox := f.net.Register(guestAddr)
	got, err := f.svc.ResolveInbox(ctx, guestAddr)
	require.NoError(t, err)
	assert.Equal(t, inbox, got)

	got, err = f.svc.ResolveInbox(ctx, strangerAddr)
	require.NoError(t, err)
	assert.Empty(t, got)

	f.net.SetLookupError(strangerAddr, assert.AnError)
	_, err = f.svc.ResolveInbox(ctx, strangerAddr)
	assert.Error(t, err)
}
