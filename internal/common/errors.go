package common

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindIdentityNotRegistered Kind = "IDENTITY_NOT_REGISTERED"
	KindGroupNotProvisioned   Kind = "GROUP_NOT_PROVISIONED"
	KindGroupMissing          Kind = "GROUP_MISSING"
	KindClientInitFailed      Kind = "CLIENT_INIT_FAILED"
	KindAttachFailed          Kind = "ATTACH_FAILED"
	KindSendFailed            Kind = "SEND_FAILED"
	KindSignerUnavailable     Kind = "SIGNER_UNAVAILABLE"
	KindInvalidArgument       Kind = "INVALID_ARGUMENT"
	KindNotFound              Kind = "NOT_FOUND"
	KindUnauthenticated       Kind = "UNAUTHENTICATED"
	KindInternal              Kind = "INTERNAL"
)

// Store-level sentinels. They stay inside the storage packages and the
// group manager; callers above see a ChatError.
var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrRoomAlreadyBound = errors.New("room already bound to a group")
	ErrRoomRetired      = errors.New("room retired")
	ErrCacheMiss        = errors.New("cache miss")
)

// ChatError is the error type every public chat operation returns.
type ChatError struct {
	Kind    Kind   `json:"kind"`
	Op      string `json:"op,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ChatError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ChatError) Unwrap() error { return e.Err }

// Is matches any ChatError of the same kind, so errors.Is(err, ErrAttachFailed)
// works regardless of op or cause.
func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// Kind markers for errors.Is.
var (
	ErrIdentityNotRegistered = &ChatError{Kind: KindIdentityNotRegistered, Message: "identity not registered"}
	ErrGroupNotProvisioned   = &ChatError{Kind: KindGroupNotProvisioned, Message: "group not provisioned"}
	ErrGroupMissing          = &ChatError{Kind: KindGroupMissing, Message: "group missing"}
	ErrClientInitFailed      = &ChatError{Kind: KindClientInitFailed, Message: "client init failed"}
	ErrAttachFailed          = &ChatError{Kind: KindAttachFailed, Message: "attach failed"}
	ErrSendFailed            = &ChatError{Kind: KindSendFailed, Message: "send failed"}
	ErrSignerUnavailable     = &ChatError{Kind: KindSignerUnavailable, Message: "signer unavailable"}
	ErrInvalidArgument       = &ChatError{Kind: KindInvalidArgument, Message: "invalid argument"}
	ErrNotFound              = &ChatError{Kind: KindNotFound, Message: "not found"}
	ErrUnauthenticated       = &ChatError{Kind: KindUnauthenticated, Message: "unauthenticated"}
)

func E(kind Kind, op, message string, cause error) error {
	return &ChatError{Kind: kind, Op: op, Message: message, Err: cause}
}

func IdentityNotRegistered(op, address string) error {
	return E(KindIdentityNotRegistered, op, fmt.Sprintf("address %s has no inbox", address), nil)
}

func GroupNotProvisioned(op, roomID string) error {
	return E(KindGroupNotProvisioned, op, fmt.Sprintf("room %s has no group yet", roomID), nil)
}

// RoomRetired reports a room whose group was retired. It matches
// ErrGroupNotProvisioned as well as ErrRoomRetired.
func RoomRetired(op, roomID string) error {
	return E(KindGroupNotProvisioned, op, fmt.Sprintf("room %s has ended", roomID), ErrRoomRetired)
}

// GroupMissing reports a room bound to a group the network no longer knows.
func GroupMissing(op, roomID, groupID string) error {
	return E(KindGroupMissing, op, fmt.Sprintf("group %s bound to room %s is not on the network", groupID, roomID), nil)
}

func ClientInitFailed(op string, cause error) error {
	return E(KindClientInitFailed, op, "failed to build messaging client", cause)
}

func AttachFailed(op string, cause error) error {
	return E(KindAttachFailed, op, "could not attach to group", cause)
}

func SendFailed(op string, cause error) error {
	return E(KindSendFailed, op, "failed to send message", cause)
}

func SignerUnavailable(op, reason string) error {
	return E(KindSignerUnavailable, op, reason, nil)
}

func InvalidArg(op, message string) error {
	return E(KindInvalidArgument, op, message, nil)
}

func NotFound(op, message string) error {
	return E(KindNotFound, op, message, nil)
}

func Internal(op string, cause error) error {
	return E(KindInternal, op, "internal error", cause)
}

// KindOf reports the kind of the first ChatError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

var userMessages = map[Kind]string{
	KindIdentityNotRegistered: "Please complete messaging registration by signing the prompt in your wallet.",
	KindGroupNotProvisioned:   "Chat is still being set up for this room.",
	KindGroupMissing:          "This room's chat is no longer available. Start a new room.",
	KindClientInitFailed:      "Failed to initialize chat. Try reinitializing.",
	KindAttachFailed:          "Unable to join chat, try reopening.",
	KindSendFailed:            "Failed to send message.",
	KindSignerUnavailable:     "Connect a wallet to use chat.",
	KindInvalidArgument:       "The request was invalid.",
	KindNotFound:              "Not found.",
	KindUnauthenticated:       "Please sign in again.",
	KindInternal:              "Something went wrong with chat.",
}

// UserMessage returns the text shown to an end user for a failure kind.
func UserMessage(kind Kind) string {
	if msg, ok := userMessages[kind]; ok {
		return msg
	}
	return userMessages[KindInternal]
}
