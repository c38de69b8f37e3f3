// Package join attaches a participant's client to a room group that may
// have been created moments ago by someone else.
package join

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"roomchat/internal/clock"
	"roomchat/internal/common"
	"roomchat/internal/group"
	"roomchat/internal/session"
	"roomchat/internal/xmtp"
)

type State string

const (
	NoClient             State = "no_client"
	ClientReady          State = "client_ready"
	SyncingConversations State = "syncing_conversations"
	Found                State = "found"
	AttemptingAttach     State = "attempting_attach"
	Attached             State = "attached"
	NotFound             State = "not_found"
	RequestingAdd        State = "requesting_add"
	GiveUp               State = "give_up"
)

type Strategy string

const (
	// Passive waits for someone else to add the participant.
	Passive Strategy = "passive"
	// Active asks the admin identity to add the participant, then keeps
	// retrying like Passive.
	Active Strategy = "active"
)

const DefaultRequestDelay = time.Second

type Sessions interface {
	GetOrCreate(ctx context.Context, actorID string, build session.BuildFunc) (xmtp.Client, error)
}

type Groups interface {
	GroupID(ctx context.Context, roomID string) (string, error)
	AddMember(ctx context.Context, admin xmtp.Client, groupID, address string) (group.AddResult, error)
	VerifyGroup(ctx context.Context, client xmtp.Client, roomID, groupID string) error
}

// AdminFunc returns the admin-capable client used for add requests.
type AdminFunc func(ctx context.Context) (xmtp.Client, error)

type Config struct {
	Strategy     Strategy
	Policy       Policy
	RequestDelay time.Duration
}

type Protocol struct {
	sessions Sessions
	groups   Groups
	admin    AdminFunc
	cfg      Config
	clock    clock.Clock
	log      *zap.SugaredLogger
}

func NewProtocol(sessions Sessions, groups Groups, admin AdminFunc, cfg Config, clk clock.Clock, log *zap.SugaredLogger) *Protocol {
	if cfg.Strategy == "" {
		cfg.Strategy = Passive
	}
	if cfg.Policy == nil {
		cfg.Policy = FixedPolicy(3, 3*time.Second)
	}
	if cfg.RequestDelay <= 0 {
		cfg.RequestDelay = DefaultRequestDelay
	}
	return &Protocol{sessions: sessions, groups: groups, admin: admin, cfg: cfg, clock: clk, log: log}
}

type Request struct {
	ActorID string
	// Address is the participant's wallet, used for add requests.
	Address string
	RoomID  string
	Build   session.BuildFunc
}

type Result struct {
	GroupID     string
	Client      xmtp.Client
	Group       xmtp.Group
	Attempts    int
	Requested   bool
	Transitions []State
}

func (r *Result) enter(s State) { r.Transitions = append(r.Transitions, s) }

// State is the last state the run reached.
func (r *Result) State() State {
	if len(r.Transitions) == 0 {
		return NoClient
	}
	return r.Transitions[len(r.Transitions)-1]
}

// Run drives one join to Attached or to an error. The returned Result is
// populated in both cases. GroupNotProvisioned is returned untouched so the
// caller can poll without charging the join budget.
func (p *Protocol) Run(ctx context.Context, req Request) (*Result, error) {
	const op = "join.Run"
	res := &Result{}
	res.enter(NoClient)

	client, err := p.sessions.GetOrCreate(ctx, req.ActorID, req.Build)
	if err != nil {
		return res, err
	}
	res.Client = client
	res.enter(ClientReady)

	groupID, err := p.groups.GroupID(ctx, req.RoomID)
	if err != nil {
		return res, err
	}
	res.GroupID = groupID

	schedule := p.cfg.Policy()
	schedule.Reset()
	convs := client.Conversations()
	verified := false

	for {
		res.Attempts++
		res.enter(SyncingConversations)
		g, err := p.find(ctx, convs, groupID)
		if err == nil {
			res.enter(Found)
			res.enter(AttemptingAttach)
			if err = g.Sync(ctx); err == nil {
				res.Group = g
				res.enter(Attached)
				p.log.Infow("attached to room group", "actor", req.ActorID, "room", req.RoomID,
					"group", groupID, "attempts", res.Attempts)
				return res, nil
			}
		}
		if ctx.Err() != nil {
			res.enter(GiveUp)
			return res, common.AttachFailed(op, ctx.Err())
		}
		if !errors.Is(err, xmtp.ErrConversationNotFound) {
			p.log.Warnw("join attempt failed", "actor", req.ActorID, "group", groupID, "error", err)
		}
		res.enter(NotFound)

		if !verified {
			verified = true
			if err := p.verify(ctx, req.RoomID, groupID); err != nil {
				res.enter(GiveUp)
				return res, err
			}
		}

		if p.cfg.Strategy == Active && !res.Requested {
			res.enter(RequestingAdd)
			res.Requested = true
			requested, err := p.requestAdd(ctx, req, groupID)
			if err != nil {
				res.enter(GiveUp)
				return res, err
			}
			if requested {
				if err := p.clock.Sleep(ctx, p.cfg.RequestDelay); err != nil {
					res.enter(GiveUp)
					return res, common.AttachFailed(op, err)
				}
				continue
			}
		}

		wait := schedule.NextBackOff()
		if wait == backoff.Stop {
			res.enter(GiveUp)
			p.log.Infow("giving up on join", "actor", req.ActorID, "room", req.RoomID, "attempts", res.Attempts)
			return res, common.AttachFailed(op, fmt.Errorf("group %s not visible after %d attempts", groupID, res.Attempts))
		}
		if err := p.clock.Sleep(ctx, wait); err != nil {
			res.enter(GiveUp)
			return res, common.AttachFailed(op, err)
		}
	}
}

func (p *Protocol) find(ctx context.Context, convs xmtp.Conversations, groupID string) (xmtp.Group, error) {
	if err := convs.Sync(ctx); err != nil {
		return nil, fmt.Errorf("sync conversations: %w", err)
	}
	return convs.Get(ctx, groupID)
}

// verify asks the admin identity whether the bound group still exists. Only
// a confirmed missing group is fatal; without an admin the join keeps
// retrying.
func (p *Protocol) verify(ctx context.Context, roomID, groupID string) error {
	if p.admin == nil {
		return nil
	}
	admin, err := p.admin(ctx)
	if err != nil {
		return nil
	}
	err = p.groups.VerifyGroup(ctx, admin, roomID, groupID)
	if errors.Is(err, common.ErrGroupMissing) {
		return err
	}
	if err != nil {
		p.log.Warnw("group check failed", "room", roomID, "group", groupID, "error", err)
	}
	return nil
}

// requestAdd asks the admin identity to add the participant. It reports
// whether the add went through; only a confirmed unregistered address is
// fatal.
func (p *Protocol) requestAdd(ctx context.Context, req Request, groupID string) (bool, error) {
	const op = "join.RequestAdd"
	if p.admin == nil {
		return false, nil
	}
	admin, err := p.admin(ctx)
	if err != nil {
		p.log.Warnw("admin client unavailable for add request", "error", err)
		return false, nil
	}
	res, err := p.groups.AddMember(ctx, admin, groupID, req.Address)
	if err != nil {
		p.log.Warnw("add request failed", "group", groupID, "address", req.Address, "error", err)
		return false, nil
	}
	switch res.Outcome {
	case group.NotRegistered:
		return false, common.IdentityNotRegistered(op, req.Address)
	case group.LookupFailed:
		return false, nil
	}
	return res.Member, nil
}
