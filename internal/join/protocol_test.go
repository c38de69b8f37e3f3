package join

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"roomchat/internal/clock"
	"roomchat/internal/common"
	"roomchat/internal/group"
	"roomchat/internal/identity"
	"roomchat/internal/session"
	"roomchat/internal/xmtp"
	"roomchat/internal/xmtp/memnet"
)

const (
	systemAddr   = "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB"
	hostAddr     = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	guestAddr    = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	strangerAddr = "0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb"
	roomID       = "room-1"
)

// roomGroups serves a fixed room binding and delegates adds to a real manager.
type roomGroups struct {
	groupID string
	err     error
	mgr     *group.Manager
	adds    int
}

func (g *roomGroups) GroupID(ctx context.Context, room string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.groupID, nil
}

func (g *roomGroups) VerifyGroup(ctx context.Context, client xmtp.Client, room, groupID string) error {
	return g.mgr.VerifyGroup(ctx, client, room, groupID)
}

func (g *roomGroups) AddMember(ctx context.Context, admin xmtp.Client, groupID, address string) (group.AddResult, error) {
	g.adds++
	return g.mgr.AddMember(ctx, admin, groupID, address)
}

type harness struct {
	net      *memnet.Network
	clock    *clock.Fake
	sessions *session.Cache
	system   xmtp.Client
	groups   *roomGroups
	grp      xmtp.Group
}

func newHarness(t *testing.T, delay time.Duration) *harness {
	t.Helper()
	h := &harness{clock: clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))}
	h.net = memnet.New(memnet.WithClock(h.clock), memnet.WithPropagationDelay(delay))
	h.sessions = session.NewCache(h.net, zap.NewNop().Sugar(), session.WithClock(h.clock))
	t.Cleanup(h.sessions.Close)

	var err error
	h.system, err = h.sessions.GetOrCreate(context.Background(), common.SystemActorID, builder(t, systemAddr))
	require.NoError(t, err)

	ctx := context.Background()
	h.grp, err = h.system.Conversations().NewGroup(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, h.grp.Publish(ctx))

	mgr := group.NewManager(nil, nil, group.Config{PropagationWait: time.Second}, zap.NewNop().Sugar())
	h.groups = &roomGroups{groupID: h.grp.ID(), mgr: mgr}
	return h
}

func (h *harness) protocol(strategy Strategy, policy Policy) *Protocol {
	admin := func(ctx context.Context) (xmtp.Client, error) { return h.system, nil }
	return NewProtocol(h.sessions, h.groups, admin, Config{Strategy: strategy, Policy: policy, RequestDelay: time.Second},
		h.clock, zap.NewNop().Sugar())
}

func builder(t *testing.T, address string) session.BuildFunc {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return func(ctx context.Context) (session.Materials, error) {
		signer, err := identity.BuildSigner(address, func(ctx context.Context, text string) ([]byte, error) {
			return []byte("sig"), nil
		})
		if err != nil {
			return session.Materials{}, err
		}
		return session.Materials{Signer: signer, EncryptionKey: key}, nil
	}
}

func (h *harness) addDirect(t *testing.T, address string) {
	t.Helper()
	inbox, err := h.system.InboxIDFor(context.Background(), xmtp.Identifier{Address: address})
	require.NoError(t, err)
	require.NoError(t, h.grp.AddMembers(context.Background(), []string{inbox}))
}

func TestRun_MemberAttachesImmediately(t *testing.T) {
	h := newHarness(t, 0)
	build := builder(t, hostAddr)
	_, err := h.sessions.GetOrCreate(context.Background(), "fid:1", build)
	require.NoError(t, err)
	h.addDirect(t, hostAddr)

	res, err := h.protocol(Passive, FixedPolicy(3, 3*time.Second)).Run(context.Background(),
		Request{ActorID: "fid:1", Address: hostAddr, RoomID: roomID, Build: build})
	require.NoError(t, err)
	assert.Equal(t, []State{NoClient, ClientReady, SyncingConversations, Found, AttemptingAttach, Attached}, res.Transitions)
	assert.Equal(t, h.grp.ID(), res.Group.ID())
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, h.clock.Sleeps())
}

func TestRun_PassiveWaitsForOutOfBandAdd(t *testing.T) {
	h := newHarness(t, 5*time.Second)
	build := builder(t, guestAddr)
	_, err := h.sessions.GetOrCreate(context.Background(), "fid:2", build)
	require.NoError(t, err)
	h.addDirect(t, guestAddr) // visible to the guest 5s from now

	res, err := h.protocol(Passive, FixedPolicy(3, 3*time.Second)).Run(context.Background(),
		Request{ActorID: "fid:2", Address: guestAddr, RoomID: roomID, Build: build})
	require.NoError(t, err)
	assert.Equal(t, Attached, res.State())
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, h.clock.Sleeps())
	assert.Equal(t, 0, h.groups.adds)
}

func TestRun_RetryExhaustion(t *testing.T) {
	h := newHarness(t, 0)

	res, err := h.protocol(Passive, FixedPolicy(3, 3*time.Second)).Run(context.Background(),
		Request{ActorID: "fid:2", Address: guestAddr, RoomID: roomID, Build: builder(t, guestAddr)})
	assert.ErrorIs(t, err, common.ErrAttachFailed)
	assert.Equal(t, GiveUp, res.State())
	assert.Equal(t, 4, res.Attempts)
	assert.Len(t, h.clock.Sleeps(), 3)
}

func TestRun_ActiveRequestsAdd(t *testing.T) {
	h := newHarness(t, 0)

	res, err := h.protocol(Active, FixedPolicy(3, 3*time.Second)).Run(context.Background(),
		Request{ActorID: "fid:2", Address: guestAddr, RoomID: roomID, Build: builder(t, guestAddr)})
	require.NoError(t, err)
	assert.True(t, res.Requested)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 1, h.groups.adds)
	assert.Contains(t, res.Transitions, RequestingAdd)
	assert.Equal(t, []time.Duration{time.Second}, h.clock.Sleeps())
}

func TestRun_ActiveWithUnregisteredAddress(t *testing.T) {
	h := newHarness(t, 0)

	res, err := h.protocol(Active, FixedPolicy(3, 3*time.Second)).Run(context.Background(),
		Request{ActorID: "fid:2", Address: strangerAddr, RoomID: roomID, Build: builder(t, guestAddr)})
	assert.ErrorIs(t, err, common.ErrIdentityNotRegistered)
	assert.Equal(t, GiveUp, res.State())
}

func TestRun_ActiveFallsBackToPassiveWhenAdminUnavailable(t *testing.T) {
	h := newHarness(t, 0)
	admin := func(ctx context.Context) (xmtp.Client, error) { return nil, errors.New("system key missing") }
	p := NewProtocol(h.sessions, h.groups, admin, Config{Strategy: Active, Policy: FixedPolicy(1, time.Second)},
		h.clock, zap.NewNop().Sugar())

	_, err := p.Run(context.Background(), Request{ActorID: "fid:2", Address: guestAddr, RoomID: roomID, Build: builder(t, guestAddr)})
	assert.ErrorIs(t, err, common.ErrAttachFailed)
	assert.Equal(t, 0, h.groups.adds)
}

func TestRun_MissingGroupStopsRetrying(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
	}{
		{name: "passive", strategy: Passive},
		{name: "active", strategy: Active},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 0)
			h.groups.groupID = "group-lost"

			res, err := h.protocol(tt.strategy, FixedPolicy(3, 3*time.Second)).Run(context.Background(),
				Request{ActorID: "fid:2", Address: guestAddr, RoomID: roomID, Build: builder(t, guestAddr)})
			assert.ErrorIs(t, err, common.ErrGroupMissing)
			assert.Equal(t, GiveUp, res.State())
			assert.Equal(t, 1, res.Attempts)
			assert.False(t, res.Requested)
			assert.Equal(t, 0, h.groups.adds)
			assert.Empty(t, h.clock.Sleeps())
		})
	}
}

func TestRun_GroupNotProvisionedIsNotAnAttempt(t *testing.T) {
	h := newHarness(t, 0)
	h.groups.err = common.GroupNotProvisioned("test", roomID)

	res, err := h.protocol(Passive, FixedPolicy(3, 3*time.Second)).Run(context.Background(),
		Request{ActorID: "fid:2", Address: guestAddr, RoomID: roomID, Build: builder(t, guestAddr)})
	assert.ErrorIs(t, err, common.ErrGroupNotProvisioned)
	assert.Equal(t, 0, res.Attempts)
	assert.Empty(t, h.clock.Sleeps())
}

func TestRun_ClientFailureIsDistinct(t *testing.T) {
	h := newHarness(t, 0)
	h.net.FailNewClient(errors.New("provider rejected"))

	res, err := h.protocol(Passive, FixedPolicy(3, 3*time.Second)).Run(context.Background(),
		Request{ActorID: "fid:2", Address: guestAddr, RoomID: roomID, Build: builder(t, guestAddr)})
	assert.ErrorIs(t, err, common.ErrClientInitFailed)
	assert.Equal(t, []State{NoClient}, res.Transitions)
}

func TestRun_Cancelled(t *testing.T) {
	h := newHarness(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	build := builder(t, guestAddr)
	_, err := h.sessions.GetOrCreate(ctx, "fid:2", build)
	require.NoError(t, err)
	cancel()

	_, err = h.protocol(Passive, FixedPolicy(3, 3*time.Second)).Run(ctx,
		Request{ActorID: "fid:2", Address: guestAddr, RoomID: roomID, Build: build})
	assert.ErrorIs(t, err, common.ErrAttachFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExponentialPolicy_Capped(t *testing.T) {
	b := ExponentialPolicy(5, time.Second, 5*time.Second)()
	b.Reset()

	var got []time.Duration
	for i := 0; i < 6; i++ {
		got = append(got, b.NextBackOff())
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second, -1}, got)
}
