package roster

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"roomchat/internal/common"
	"roomchat/internal/group"
	"roomchat/internal/message"
)

// MemberAdder adds a room participant to the room's group.
type MemberAdder interface {
	AddParticipant(ctx context.Context, roomID, address string) (group.AddResult, error)
}

// MembershipObserver adds joining participants to the room group so their
// join protocol finds it.
type MembershipObserver struct {
	adder MemberAdder
	log   *zap.SugaredLogger
}

func NewMembershipObserver(adder MemberAdder, log *zap.SugaredLogger) *MembershipObserver {
	return &MembershipObserver{adder: adder, log: log}
}

func (m *MembershipObserver) Name() string {
	return "membership_observer"
}

func (m *MembershipObserver) Update(ctx context.Context, event ParticipantEvent) error {
	if event.Type != ParticipantJoined || event.Address == "" {
		return nil
	}
	res, err := m.adder.AddParticipant(ctx, event.RoomID, event.Address)
	if errors.Is(err, common.ErrGroupNotProvisioned) {
		m.log.Debugw("room has no group yet, participant will be added on join", "room", event.RoomID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("add participant %s to room %s: %w", event.Address, event.RoomID, err)
	}
	if !res.Member {
		m.log.Infow("participant not added", "room", event.RoomID, "address", event.Address,
			"outcome", res.Outcome.String())
	}
	return nil
}

// InboxResolver resolves a wallet address to an inbox id.
type InboxResolver interface {
	ResolveInbox(ctx context.Context, address string) (string, error)
}

// ProfileObserver records participant profiles so messages without embedded
// sender metadata can still be attributed.
type ProfileObserver struct {
	resolver InboxResolver
	profiles *message.ProfileCache
}

func NewProfileObserver(resolver InboxResolver, profiles *message.ProfileCache) *ProfileObserver {
	return &ProfileObserver{resolver: resolver, profiles: profiles}
}

func (p *ProfileObserver) Name() string {
	return "profile_observer"
}

func (p *ProfileObserver) Update(ctx context.Context, event ParticipantEvent) error {
	if event.Type != ParticipantJoined || event.Username == "" {
		return nil
	}
	inbox, err := p.resolver.ResolveInbox(ctx, event.Address)
	if err != nil {
		return fmt.Errorf("resolve inbox for %s: %w", event.Address, err)
	}
	if inbox == "" {
		return nil
	}
	p.profiles.Put(inbox, message.Sender{
		Username:    event.Username,
		DisplayName: event.DisplayName,
		PfpURL:      event.PfpURL,
		FID:         event.FID,
	})
	return nil
}
