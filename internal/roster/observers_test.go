package roster

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"roomchat/internal/common"
	"roomchat/internal/group"
	"roomchat/internal/message"
)

type MockMemberAdder struct {
	mock.Mock
}

func (m *MockMemberAdder) AddParticipant(ctx context.Context, roomID, address string) (group.AddResult, error) {
	args := m.Called(ctx, roomID, address)
	return args.Get(0).(group.AddResult), args.Error(1)
}

type MockInboxResolver struct {
	mock.Mock
}

func (m *MockInboxResolver) ResolveInbox(ctx context.Context, address string) (string, error) {
	args := m.Called(ctx, address)
	return args.String(0), args.Error(1)
}

func TestMembershipObserver_Update(t *testing.T) {
	tests := []struct {
		name      string
		event     ParticipantEvent
		result    group.AddResult
		err       error
		expectAdd bool
		wantErr   bool
	}{
		{
			name:      "adds joining participant",
			event:     joined("room-1", "0xabc"),
			result:    group.AddResult{Address: "0xabc", InboxID: "inbox-1", Outcome: group.Resolved, Added: true, Member: true},
			expectAdd: true,
		},
		{
			name:      "unregistered participant is not an error",
			event:     joined("room-1", "0xabc"),
			result:    group.AddResult{Address: "0xabc", Outcome: group.NotRegistered},
			expectAdd: true,
		},
		{
			name:      "room without group is ignored",
			event:     joined("room-1", "0xabc"),
			err:       common.GroupNotProvisioned("AddParticipant", "room-1"),
			expectAdd: true,
		},
		{
			name:      "add failure is reported",
			event:     joined("room-1", "0xabc"),
			err:       errors.New("network down"),
			expectAdd: true,
			wantErr:   true,
		},
		{
			name:  "leave events are ignored",
			event: ParticipantEvent{Type: ParticipantLeft, RoomID: "room-1", Address: "0xabc"},
		},
		{
			name:  "events without address are ignored",
			event: ParticipantEvent{Type: ParticipantJoined, RoomID: "room-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adder := &MockMemberAdder{}
			if tt.expectAdd {
				adder.On("AddParticipant", mock.Anything, tt.event.RoomID, tt.event.Address).Return(tt.result, tt.err).Once()
			}
			obs := NewMembershipObserver(adder, zap.NewNop().Sugar())

			err := obs.Update(context.Background(), tt.event)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			adder.AssertExpectations(t)
			if !tt.expectAdd {
				adder.AssertNotCalled(t, "AddParticipant", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
	assert.Equal(t, "membership_observer", NewMembershipObserver(nil, zap.NewNop().Sugar()).Name())
}

func TestProfileObserver_RecordsProfile(t *testing.T) {
	resolver := &MockInboxResolver{}
	resolver.On("ResolveInbox", mock.Anything, "0xabc").Return("inbox-1", nil).Once()
	profiles := message.NewProfileCache()
	obs := NewProfileObserver(resolver, profiles)

	err := obs.Update(context.Background(), ParticipantEvent{
		Type: ParticipantJoined, RoomID: "room-1", Address: "0xabc",
		FID: 42, Username: "alice", DisplayName: "Alice", PfpURL: "https://img/alice.png",
	})
	require.NoError(t, err)

	got, ok := profiles.Get("inbox-1")
	require.True(t, ok)
	assert.Equal(t, message.Sender{Username: "alice", DisplayName: "Alice", PfpURL: "https://img/alice.png", FID: 42}, got)
	resolver.AssertExpectations(t)
}

func TestProfileObserver_SkipsUnresolvable(t *testing.T) {
	resolver := &MockInboxResolver{}
	resolver.On("ResolveInbox", mock.Anything, "0xabc").Return("", nil).Once()
	resolver.On("ResolveInbox", mock.Anything, "0xdef").Return("", errors.New("lookup failed")).Once()
	profiles := message.NewProfileCache()
	obs := NewProfileObserver(resolver, profiles)

	require.NoError(t, obs.Update(context.Background(), ParticipantEvent{Type: ParticipantJoined, Address: "0xabc", Username: "bob"}))
	assert.Error(t, obs.Update(context.Background(), ParticipantEvent{Type: ParticipantJoined, Address: "0xdef", Username: "carol"}))
	assert.NoError(t, obs.Update(context.Background(), ParticipantEvent{Type: ParticipantJoined, Address: "0x123"}))

	assert.Empty(t, profiles.Mentionable())
	resolver.AssertExpectations(t)
}
