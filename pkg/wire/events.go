package wire

import "encoding/json"

// Envelope is the frame exchanged over the websocket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client → server events.
const (
	EvRegisterUser          = "register-user"
	EvSendFriendRequest     = "send-friend-request"
	EvAcceptFriendRequest   = "accept-friend-request"
	EvDeclineFriendRequest  = "decline-friend-request"
	EvJoinMatchmaking       = "join-matchmaking"
	EvLeaveMatchmaking      = "leave-matchmaking"
	EvInviteFriend          = "invite-friend"
	EvAcceptGameInvitation  = "accept-game-invitation"
	EvDeclineGameInvitation = "decline-game-invitation"
	EvMakeMove              = "make-move"
	EvResign                = "resign"
	EvGetStats              = "get-stats"
)

// Server → client events.
const (
	EvRegistrationSuccess     = "registration-success"
	EvRegistrationError       = "registration-error"
	EvFriendRequestReceived   = "friend-request-received"
	EvFriendAdded             = "friend-added"
	EvFriendStatusUpdate      = "friend-status-update"
	EvGameInvitationReceived  = "game-invitation-received"
	EvGameInvitationSent      = "game-invitation-sent"
	EvGameInvitationDeclined  = "game-invitation-declined"
	EvMatchFound              = "match-found"
	EvMoveMade                = "move-made"
	EvInvalidMove             = "invalid-move"
	EvGameEnded               = "game-ended"
	EvOpponentDisconnected    = "opponent-disconnected"
	EvTimeUpdate              = "time-update"
	EvVideoRoomReady          = "video-room-ready"
	EvStats                   = "stats"
	EvError                   = "error"
)

type RegisterUser struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type FriendSummary struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Online bool   `json:"online"`
}

type RegistrationSuccess struct {
	Name    string          `json:"name"`
	Label   string          `json:"label"`
	Friends []FriendSummary `json:"friends"`
	Pending []string        `json:"pending_requests"`
}

type FriendRequestRef struct {
	Target string `json:"target,omitempty"`
	From   string `json:"from,omitempty"`
}

type FriendStatusUpdate struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

type InviteFriend struct {
	Target  string `json:"target"`
	Variant string `json:"variant"`
}

type InvitationRef struct {
	InviteID string `json:"inviteId"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Variant  string `json:"variant,omitempty"`
}

type MatchFound struct {
	SessionID string `json:"sessionId"`
	Side      string `json:"side"`
	Opponent  string `json:"opponent"`
	Position  string `json:"position"`
	Clocks    Clocks `json:"clocks"`
}

type Clocks struct {
	White int `json:"white"`
	Black int `json:"black"`
}

type MakeMove struct {
	SessionID string `json:"sessionId"`
	Move      string `json:"move"`
	Side      string `json:"side"`
}

type MoveMade struct {
	SessionID string `json:"sessionId"`
	Move      string `json:"move"`
	SAN       string `json:"san"`
	Position  string `json:"position"`
	Turn      string `json:"turn"`
	Clocks    Clocks `json:"clocks"`
	Terminal  string `json:"terminal,omitempty"`
}

type Resign struct {
	SessionID string `json:"sessionId"`
	Side      string `json:"side"`
}

type GameEnded struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
	Winner    string `json:"winner,omitempty"`
}

type TimeUpdate struct {
	SessionID string `json:"sessionId"`
	Clocks    Clocks `json:"clocks"`
}

type VideoRoomReady struct {
	SessionID string `json:"sessionId"`
	RoomURL   string `json:"roomUrl"`
}

type Stats struct {
	ActiveSessions int   `json:"active_sessions"`
	QueueLength    int   `json:"queue_length"`
	Connected      int   `json:"connected"`
	UptimeSeconds  int64 `json:"uptime_seconds"`
}
