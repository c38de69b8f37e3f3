package group

import (
	"context"
	"fmt"

	"roomchat/internal/common"
	"roomchat/internal/xmtp"
)

type Outcome int

const (
	Resolved Outcome = iota
	NotRegistered
	LookupFailed
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case NotRegistered:
		return "not_registered"
	default:
		return "lookup_failed"
	}
}

// Lookup is the result of resolving a wallet address to an inbox id.
type Lookup struct {
	Address string
	InboxID string
	Outcome Outcome
	Err     error
}

// ResolveInboxID separates "this address has no inbox" from "we could not
// find out"; only a Resolved lookup carries an inbox id.
func (m *Manager) ResolveInboxID(ctx context.Context, client xmtp.Client, address string) Lookup {
	normalized, err := common.NormalizeAddress(address)
	if err != nil {
		return Lookup{Address: address, Outcome: NotRegistered, Err: err}
	}
	inbox, err := client.InboxIDFor(ctx, xmtp.Identifier{Address: normalized})
	if err != nil {
		return Lookup{Address: normalized, Outcome: LookupFailed, Err: fmt.Errorf("resolve %s: %w", normalized, err)}
	}
	if inbox == "" {
		return Lookup{Address: normalized, Outcome: NotRegistered}
	}
	return Lookup{Address: normalized, InboxID: inbox, Outcome: Resolved}
}
