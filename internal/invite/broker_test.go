package invite

import (
	"errors"
	"testing"
	"time"
)

type fakeFriends map[[2]string]bool

func (f fakeFriends) IsFriend(a, b string) bool { return f[[2]string{a, b}] || f[[2]string{b, a}] }

type fakePresence map[string]bool

func (p fakePresence) Online(name string) bool { return p[name] }

func newTestBroker() (*Broker, fakeFriends, fakePresence) {
	friends := fakeFriends{{"alice", "bob"}: true}
	online := fakePresence{"alice": true, "bob": true}
	return NewBroker(friends, online, 5*time.Minute), friends, online
}

func TestInvitePreconditions(t *testing.T) {
	b, _, online := newTestBroker()

	if _, err := b.Invite("alice", "carol", "standard"); !errors.Is(err, ErrNotFriends) {
		t.Fatalf("invite to stranger: got %v", err)
	}
	online["bob"] = false
	if _, err := b.Invite("alice", "bob", "standard"); !errors.Is(err, ErrTargetOffline) {
		t.Fatalf("invite to offline friend: got %v", err)
	}
	if b.PendingCount() != 0 {
		t.Fatalf("failed invites must not leave records, have %d", b.PendingCount())
	}

	online["bob"] = true
	inv, err := b.Invite("alice", "bob", "standard")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if inv.ID == "" || inv.From != "alice" || inv.To != "bob" {
		t.Fatalf("unexpected invitation: %+v", inv)
	}
	if _, err := b.Invite("alice", "bob", "standard"); !errors.Is(err, ErrAlreadyInvited) {
		t.Fatalf("duplicate pending invite: got %v", err)
	}
}

func TestAcceptConsumesRecord(t *testing.T) {
	b, _, _ := newTestBroker()
	inv, err := b.Invite("alice", "bob", "standard")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}

	if _, err := b.Accept(inv.ID, "carol"); !errors.Is(err, ErrNotInvitee) {
		t.Fatalf("accept by third party: got %v", err)
	}
	got, err := b.Accept(inv.ID, "bob")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got.ID != inv.ID {
		t.Fatalf("accept returned wrong invitation")
	}
	// the record is gone; a second acceptance cannot start a second session
	if _, err := b.Accept(inv.ID, "bob"); !errors.Is(err, ErrUnknown) {
		t.Fatalf("double accept: got %v", err)
	}
}

func TestAcceptInviterGone(t *testing.T) {
	b, _, online := newTestBroker()
	inv, err := b.Invite("alice", "bob", "standard")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	online["alice"] = false
	if _, err := b.Accept(inv.ID, "bob"); !errors.Is(err, ErrInviterGone) {
		t.Fatalf("expected ErrInviterGone, got %v", err)
	}
	// discarded, not left pending
	if b.PendingCount() != 0 {
		t.Fatalf("invitation should be discarded, have %d pending", b.PendingCount())
	}
}

func TestDecline(t *testing.T) {
	b, _, _ := newTestBroker()
	inv, err := b.Invite("alice", "bob", "standard")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := b.Decline(inv.ID, "carol"); !errors.Is(err, ErrNotInvitee) {
		t.Fatalf("decline by third party: got %v", err)
	}
	got, err := b.Decline(inv.ID, "bob")
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if got.From != "alice" {
		t.Fatalf("decline should return the invitation for notification")
	}
	if _, err := b.Decline(inv.ID, "bob"); !errors.Is(err, ErrUnknown) {
		t.Fatalf("double decline: got %v", err)
	}
}

func TestAcceptEnforcesTTL(t *testing.T) {
	friends := fakeFriends{{"alice", "bob"}: true}
	online := fakePresence{"alice": true, "bob": true}
	b := NewBroker(friends, online, time.Millisecond)

	inv, err := b.Invite("alice", "bob", "standard")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	// no sweep has run; expiry must still hold at the accept boundary
	if _, err := b.Accept(inv.ID, "bob"); !errors.Is(err, ErrExpired) {
		t.Fatalf("accept past TTL: got %v", err)
	}
	if b.PendingCount() != 0 {
		t.Fatalf("expired invitation left pending")
	}

	inv, err = b.Invite("alice", "bob", "standard")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := b.Decline(inv.ID, "bob"); !errors.Is(err, ErrExpired) {
		t.Fatalf("decline past TTL: got %v", err)
	}
	if b.PendingCount() != 0 {
		t.Fatalf("expired invitation left pending after decline")
	}
}

func TestDropFrom(t *testing.T) {
	b, friends, online := newTestBroker()
	friends[[2]string{"alice", "carol"}] = true
	online["carol"] = true

	toBob, err := b.Invite("alice", "bob", "standard")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := b.Invite("alice", "carol", "standard"); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := b.Invite("carol", "alice", "standard"); err != nil {
		t.Fatalf("Invite: %v", err)
	}

	dropped := b.DropFrom("alice")
	if len(dropped) != 2 {
		t.Fatalf("expected alice's 2 invitations dropped, got %d", len(dropped))
	}
	if _, err := b.Accept(toBob.ID, "bob"); !errors.Is(err, ErrUnknown) {
		t.Fatalf("dropped invitation still acceptable: %v", err)
	}
	// invitations addressed to alice are untouched
	if b.PendingCount() != 1 {
		t.Fatalf("expected carol's invitation to remain, have %d", b.PendingCount())
	}
	if got := b.DropFrom("alice"); len(got) != 0 {
		t.Fatalf("second drop must be empty, got %v", got)
	}
}

func TestSweepExpired(t *testing.T) {
	b, _, _ := newTestBroker()
	inv, err := b.Invite("alice", "bob", "standard")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if got := b.SweepExpired(time.Now()); len(got) != 0 {
		t.Fatalf("fresh invitation swept: %v", got)
	}
	expired := b.SweepExpired(time.Now().Add(6 * time.Minute))
	if len(expired) != 1 || expired[0].ID != inv.ID {
		t.Fatalf("expected the invitation to expire, got %v", expired)
	}
	if _, err := b.Accept(inv.ID, "bob"); !errors.Is(err, ErrUnknown) {
		t.Fatalf("accept after expiry: got %v", err)
	}
}
