package gateway

import (
	"encoding/json"
	"errors"

	"github.com/kapu/chessmeet/internal/identity"
	"github.com/kapu/chessmeet/internal/invite"
	"github.com/kapu/chessmeet/internal/obslog"
	"github.com/kapu/chessmeet/internal/presence"
	"github.com/kapu/chessmeet/internal/session"
	"github.com/kapu/chessmeet/pkg/wire"
	"go.uber.org/zap"
)

func (g *Gateway) dispatch(c *Conn, env *wire.Envelope) {
	if env.Event == wire.EvRegisterUser {
		g.handleRegister(c, env)
		return
	}

	id, ok := g.registry.ByConn(c)
	if !ok {
		c.sendError(wire.CodeState, "register first")
		return
	}

	switch env.Event {
	case wire.EvSendFriendRequest:
		g.handleSendFriendRequest(c, id, env)
	case wire.EvAcceptFriendRequest:
		g.handleAcceptFriendRequest(c, id, env)
	case wire.EvDeclineFriendRequest:
		g.handleDeclineFriendRequest(c, id, env)
	case wire.EvJoinMatchmaking:
		g.handleJoinMatchmaking(c, id)
	case wire.EvLeaveMatchmaking:
		g.queue.Remove(id.Name)
	case wire.EvInviteFriend:
		g.handleInviteFriend(c, id, env)
	case wire.EvAcceptGameInvitation:
		g.handleAcceptInvitation(c, id, env)
	case wire.EvDeclineGameInvitation:
		g.handleDeclineInvitation(c, id, env)
	case wire.EvMakeMove:
		g.handleMakeMove(c, id, env)
	case wire.EvResign:
		g.handleResign(c, id, env)
	case wire.EvGetStats:
		c.Send(wire.EvStats, g.stats())
	default:
		c.sendError(wire.CodeValidation, "unknown event: "+env.Event)
	}
}

func (g *Gateway) handleRegister(c *Conn, env *wire.Envelope) {
	var req wire.RegisterUser
	if err := decode(env, &req); err != nil {
		c.Send(wire.EvRegistrationError, wire.ErrorPayload{Code: wire.CodeValidation, Message: "malformed payload"})
		return
	}
	id, err := g.registry.Register(req.Name, req.Label, c)
	if err != nil {
		c.Send(wire.EvRegistrationError, wire.ErrorPayload{Code: classify(err), Message: err.Error()})
		return
	}

	friends := g.graph.ListFriends(id.Name)
	summary := make([]wire.FriendSummary, 0, len(friends))
	for _, f := range friends {
		label := f
		if fid, ok := g.registry.ByName(f); ok {
			label = fid.Label
		}
		online := g.registry.Online(f)
		summary = append(summary, wire.FriendSummary{Name: f, Label: label, Online: online})
		if online {
			g.registry.SendTo(f, wire.EvFriendStatusUpdate, wire.FriendStatusUpdate{Username: id.Name, Online: true})
		}
	}
	c.Send(wire.EvRegistrationSuccess, wire.RegistrationSuccess{
		Name:    id.Name,
		Label:   id.Label,
		Friends: summary,
		Pending: g.graph.PendingFor(id.Name),
	})
}

func (g *Gateway) handleSendFriendRequest(c *Conn, id *identity.Identity, env *wire.Envelope) {
	var req wire.FriendRequestRef
	if err := decode(env, &req); err != nil || req.Target == "" {
		c.sendError(wire.CodeValidation, "target required")
		return
	}
	if _, ok := g.registry.ByName(req.Target); !ok {
		c.sendError(wire.CodeNotFound, "no such user")
		return
	}
	if err := g.graph.SendRequest(id.Name, req.Target); err != nil {
		c.sendError(classify(err), err.Error())
		return
	}
	g.registry.SendTo(req.Target, wire.EvFriendRequestReceived, wire.FriendRequestRef{From: id.Name})
}

func (g *Gateway) handleAcceptFriendRequest(c *Conn, id *identity.Identity, env *wire.Envelope) {
	var req wire.FriendRequestRef
	if err := decode(env, &req); err != nil || req.From == "" {
		c.sendError(wire.CodeValidation, "from required")
		return
	}
	if err := g.graph.Accept(req.From, id.Name); err != nil {
		c.sendError(classify(err), err.Error())
		return
	}
	c.Send(wire.EvFriendAdded, wire.FriendSummary{Name: req.From, Online: g.registry.Online(req.From)})
	g.registry.SendTo(req.From, wire.EvFriendAdded, wire.FriendSummary{Name: id.Name, Online: true})
}

func (g *Gateway) handleDeclineFriendRequest(c *Conn, id *identity.Identity, env *wire.Envelope) {
	var req wire.FriendRequestRef
	if err := decode(env, &req); err != nil || req.From == "" {
		c.sendError(wire.CodeValidation, "from required")
		return
	}
	if err := g.graph.Decline(req.From, id.Name); err != nil {
		c.sendError(classify(err), err.Error())
	}
}

func (g *Gateway) handleJoinMatchmaking(c *Conn, id *identity.Identity) {
	if _, busy := g.sessions.ByPlayer(id.Name); busy {
		c.sendError(wire.CodeState, "already in a session")
		return
	}
	g.queue.Enqueue(id.Name)
	g.tryMatch()
}

// tryMatch pairs the two longest-waiting identities. A participant who turned
// out to be busy forfeits the slot; the other is re-enqueued.
func (g *Gateway) tryMatch() {
	first, second, ok := g.queue.DequeuePair()
	if !ok {
		return
	}
	if _, err := g.sessions.CreateFromQueue(first, second); err != nil {
		obslog.L().Warn("match_create_failed",
			zap.String("first", first),
			zap.String("second", second),
			zap.Error(err),
		)
		if errors.Is(err, session.ErrPlayerBusy) {
			for _, name := range []string{first, second} {
				if _, busy := g.sessions.ByPlayer(name); !busy {
					g.queue.Enqueue(name)
				}
			}
		}
	}
}

func (g *Gateway) handleInviteFriend(c *Conn, id *identity.Identity, env *wire.Envelope) {
	var req wire.InviteFriend
	if err := decode(env, &req); err != nil || req.Target == "" {
		c.sendError(wire.CodeValidation, "target required")
		return
	}
	inv, err := g.broker.Invite(id.Name, req.Target, req.Variant)
	if err != nil {
		c.sendError(classify(err), err.Error())
		return
	}
	c.Send(wire.EvGameInvitationSent, wire.InvitationRef{InviteID: inv.ID, To: inv.To, Variant: inv.Variant})
	g.registry.SendTo(inv.To, wire.EvGameInvitationReceived, wire.InvitationRef{InviteID: inv.ID, From: inv.From, Variant: inv.Variant})
}

func (g *Gateway) handleAcceptInvitation(c *Conn, id *identity.Identity, env *wire.Envelope) {
	var req wire.InvitationRef
	if err := decode(env, &req); err != nil || req.InviteID == "" {
		c.sendError(wire.CodeValidation, "inviteId required")
		return
	}
	inv, err := g.broker.Accept(req.InviteID, id.Name)
	if err != nil {
		if errors.Is(err, invite.ErrInviterGone) {
			c.sendError(wire.CodeUnavailable, "inviter left")
			return
		}
		c.sendError(classify(err), err.Error())
		return
	}
	if _, err := g.sessions.CreateFromInvite(inv.From, inv.To, inv.Variant); err != nil {
		// The record is already consumed; tell the inviter too, or they hold
		// an invitation that silently evaporated.
		c.sendError(classify(err), err.Error())
		g.registry.SendTo(inv.From, wire.EvGameInvitationDeclined, wire.InvitationRef{InviteID: inv.ID, From: inv.To})
	}
}

func (g *Gateway) handleDeclineInvitation(c *Conn, id *identity.Identity, env *wire.Envelope) {
	var req wire.InvitationRef
	if err := decode(env, &req); err != nil || req.InviteID == "" {
		c.sendError(wire.CodeValidation, "inviteId required")
		return
	}
	inv, err := g.broker.Decline(req.InviteID, id.Name)
	if err != nil {
		c.sendError(classify(err), err.Error())
		return
	}
	g.registry.SendTo(inv.From, wire.EvGameInvitationDeclined, wire.InvitationRef{InviteID: inv.ID, From: inv.To})
}

func (g *Gateway) handleMakeMove(c *Conn, id *identity.Identity, env *wire.Envelope) {
	var req wire.MakeMove
	if err := decode(env, &req); err != nil || req.SessionID == "" {
		c.sendError(wire.CodeValidation, "sessionId required")
		return
	}
	err := g.sessions.ApplyMove(req.SessionID, id.Name, session.Side(req.Side), req.Move)
	if err == nil {
		return
	}
	// Rejections go to the mover only; nothing is broadcast.
	switch {
	case errors.Is(err, session.ErrMoveRejected),
		errors.Is(err, session.ErrWrongTurn),
		errors.Is(err, session.ErrNotActive):
		c.Send(wire.EvInvalidMove, wire.ErrorPayload{Code: classify(err), Message: err.Error()})
	default:
		c.sendError(classify(err), err.Error())
	}
}

func (g *Gateway) handleResign(c *Conn, id *identity.Identity, env *wire.Envelope) {
	var req wire.Resign
	if err := decode(env, &req); err != nil || req.SessionID == "" {
		c.sendError(wire.CodeValidation, "sessionId required")
		return
	}
	if err := g.sessions.Resign(req.SessionID, id.Name); err != nil {
		c.sendError(classify(err), err.Error())
	}
}

func decode(env *wire.Envelope, v any) error {
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, v)
}

// classify maps component sentinel errors onto the wire taxonomy.
func classify(err error) string {
	switch {
	case errors.Is(err, identity.ErrInvalidName),
		errors.Is(err, presence.ErrSelfRequest):
		return wire.CodeValidation
	case errors.Is(err, identity.ErrNameTaken),
		errors.Is(err, identity.ErrConnectionInUse),
		errors.Is(err, presence.ErrAlreadyFriends),
		errors.Is(err, presence.ErrAlreadySent),
		errors.Is(err, invite.ErrAlreadyInvited),
		errors.Is(err, session.ErrPlayerBusy):
		return wire.CodeConflict
	case errors.Is(err, presence.ErrNoRequest),
		errors.Is(err, invite.ErrUnknown),
		errors.Is(err, session.ErrNotFound):
		return wire.CodeNotFound
	case errors.Is(err, session.ErrNotActive),
		errors.Is(err, session.ErrWrongTurn),
		errors.Is(err, session.ErrNotParticipant),
		errors.Is(err, session.ErrSamePlayer),
		errors.Is(err, session.ErrMoveRejected),
		errors.Is(err, invite.ErrNotInvitee),
		errors.Is(err, invite.ErrNotFriends),
		errors.Is(err, invite.ErrExpired):
		return wire.CodeState
	case errors.Is(err, invite.ErrTargetOffline),
		errors.Is(err, invite.ErrInviterGone):
		return wire.CodeUnavailable
	default:
		return wire.CodeInternal
	}
}
