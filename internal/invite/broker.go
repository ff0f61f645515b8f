package invite

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kapu/chessmeet/internal/obslog"
	"go.uber.org/zap"
)

var (
	ErrNotFriends     = errors.New("target is not a friend")
	ErrTargetOffline  = errors.New("target is offline")
	ErrAlreadyInvited = errors.New("invitation already pending for target")
	ErrUnknown        = errors.New("unknown invitation")
	ErrExpired        = errors.New("invitation expired")
	ErrNotInvitee     = errors.New("invitation addressed to someone else")
	ErrInviterGone    = errors.New("inviter went offline")
)

// Invitation is a short-lived targeted game proposal. Only pending records
// are stored; any terminal outcome deletes the record immediately.
type Invitation struct {
	ID        string
	From      string
	To        string
	Variant   string
	CreatedAt time.Time
}

// FriendChecker answers whether two identities share a friendship edge.
type FriendChecker interface {
	IsFriend(a, b string) bool
}

// PresenceChecker answers whether an identity has a live connection.
type PresenceChecker interface {
	Online(name string) bool
}

// Broker owns the pending invitation table.
type Broker struct {
	friends FriendChecker
	online  PresenceChecker
	ttl     time.Duration

	mu      sync.Mutex
	pending map[string]*Invitation
}

func NewBroker(friends FriendChecker, online PresenceChecker, ttl time.Duration) *Broker {
	return &Broker{
		friends: friends,
		online:  online,
		ttl:     ttl,
		pending: make(map[string]*Invitation),
	}
}

// Invite creates a pending invitation from→to.
func (b *Broker) Invite(from, to, variant string) (*Invitation, error) {
	if !b.friends.IsFriend(from, to) {
		return nil, ErrNotFriends
	}
	if !b.online.Online(to) {
		return nil, ErrTargetOffline
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, inv := range b.pending {
		if inv.From == from && inv.To == to {
			return nil, ErrAlreadyInvited
		}
	}
	inv := &Invitation{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Variant:   variant,
		CreatedAt: time.Now(),
	}
	b.pending[inv.ID] = inv
	obslog.L().Info("invite_create",
		zap.String("invite_id", inv.ID),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("variant", variant),
	)
	return inv, nil
}

// Accept consumes the invitation. The record is deleted before control
// returns so a second acceptance of the same id can never race into a second
// session. The TTL is enforced here, not only by the sweeper: a record past
// its TTL is deleted and reported expired no matter when the reaper last ran.
// Friendship and the inviter's presence are re-checked here, not just at
// creation; an inviter who left produces ErrInviterGone, which callers report
// differently from a malformed accept.
func (b *Broker) Accept(inviteID, accepter string) (*Invitation, error) {
	b.mu.Lock()
	inv, ok := b.pending[inviteID]
	if !ok {
		b.mu.Unlock()
		return nil, ErrUnknown
	}
	if inv.To != accepter {
		b.mu.Unlock()
		return nil, ErrNotInvitee
	}
	delete(b.pending, inviteID)
	b.mu.Unlock()

	if time.Since(inv.CreatedAt) > b.ttl {
		obslog.L().Info("invite_expired_on_accept", zap.String("invite_id", inv.ID))
		return nil, ErrExpired
	}

	if !b.online.Online(inv.From) {
		obslog.L().Info("invite_inviter_gone", zap.String("invite_id", inv.ID), zap.String("from", inv.From))
		return nil, ErrInviterGone
	}
	if !b.friends.IsFriend(inv.From, inv.To) {
		return nil, ErrNotFriends
	}
	return inv, nil
}

// Decline consumes the invitation and returns it so the inviter can be told.
func (b *Broker) Decline(inviteID, decliner string) (*Invitation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inv, ok := b.pending[inviteID]
	if !ok {
		return nil, ErrUnknown
	}
	if inv.To != decliner {
		return nil, ErrNotInvitee
	}
	delete(b.pending, inviteID)
	if time.Since(inv.CreatedAt) > b.ttl {
		return nil, ErrExpired
	}
	return inv, nil
}

// DropFrom deletes every pending invitation issued by the named identity and
// returns them. Run when the inviter's connection drops, so invitees are not
// left holding invitations that can only fail with ErrInviterGone.
func (b *Broker) DropFrom(from string) []*Invitation {
	b.mu.Lock()
	defer b.mu.Unlock()
	var dropped []*Invitation
	for id, inv := range b.pending {
		if inv.From == from {
			delete(b.pending, id)
			dropped = append(dropped, inv)
		}
	}
	if len(dropped) > 0 {
		obslog.L().Info("invite_drop_offline_inviter",
			zap.String("from", from),
			zap.Int("dropped", len(dropped)),
		)
	}
	return dropped
}

// SweepExpired deletes invitations older than the TTL and returns them.
func (b *Broker) SweepExpired(now time.Time) []*Invitation {
	b.mu.Lock()
	defer b.mu.Unlock()
	var expired []*Invitation
	for id, inv := range b.pending {
		if now.Sub(inv.CreatedAt) > b.ttl {
			delete(b.pending, id)
			expired = append(expired, inv)
		}
	}
	if len(expired) > 0 {
		obslog.L().Info("invite_sweep", zap.Int("expired", len(expired)))
	}
	return expired
}

func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
