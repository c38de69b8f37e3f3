// Package handler exposes the chat facade over HTTP and a gRPC message stream.
package handler

import (
	"context"

	"roomchat/internal/chat"
	"roomchat/internal/common"
	"roomchat/internal/group"
	"roomchat/internal/message"
	"roomchat/internal/roster"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks roomchat/internal/chat/handler ChatService,RosterNotifier

// ChatService is the part of chat.Service the transports call.
type ChatService interface {
	InitChat(ctx context.Context, p common.Principal) (chat.InitResult, error)
	ReinitChat(ctx context.Context, p common.Principal) (chat.InitResult, error)
	Logout(p common.Principal)
	ProvisionRoom(ctx context.Context, roomID, hostAddress string) (string, error)
	GetGroupInfo(ctx context.Context, roomID string) (chat.GroupInfo, error)
	RetireGroup(ctx context.Context, roomID string) (group.Retirement, error)
	JoinChat(ctx context.Context, p common.Principal, roomID string) (chat.JoinResult, error)
	InviteMember(ctx context.Context, roomID, address string) (chat.InviteResult, error)
	SendText(ctx context.Context, p common.Principal, groupID string, out chat.Outgoing) (string, error)
	SendReply(ctx context.Context, p common.Principal, groupID string, out chat.Outgoing) (string, error)
	ListMessages(ctx context.Context, p common.Principal, groupID string, limit, offset int) ([]message.Formatted, error)
	Subscribe(ctx context.Context, p common.Principal, groupID string, onMessage func(message.Formatted)) (*message.Subscription, error)
}

// RosterNotifier queues participant events for the roster observers.
type RosterNotifier interface {
	NotifyAsync(ev roster.ParticipantEvent) bool
}

var _ ChatService = (*chat.Service)(nil)
var _ RosterNotifier = (*roster.Dispatcher)(nil)
