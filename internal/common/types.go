package common

import (
	"context"
	"fmt"
)

// Principal is the authenticated caller of a chat operation.
type Principal struct {
	FID     uint64
	Address string
}

// ActorID is the session-cache key for this caller.
func (p Principal) ActorID() string {
	return UserActorID(p.FID)
}

const SystemActorID = "system"

func UserActorID(fid uint64) string {
	return fmt.Sprintf("fid:%d", fid)
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
