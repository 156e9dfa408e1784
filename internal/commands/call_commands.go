package commands

import (
	"strings"

	"relaychat/internal/domain/call"
	relay_errors "relaychat/pkg/errors"

	"github.com/google/uuid"
)

// InitiateCallCommand starts a new call
type InitiateCallCommand struct {
	CallerID   uuid.UUID
	ReceiverID uuid.UUID
	CallType   string // AUDIO, VIDEO (any case)
	RoomID     string
}

func (InitiateCallCommand) CommandType() string { return "call.initiate" }

func (c InitiateCallCommand) Validate() error {
	if c.CallerID == uuid.Nil || c.ReceiverID == uuid.Nil {
		return relay_errors.ErrInvalidInput
	}
	if c.CallerID == c.ReceiverID {
		return relay_errors.ErrInvalidInput
	}
	if _, ok := call.ParseType(c.CallType); !ok {
		return relay_errors.ErrInvalidInput
	}
	if len(c.RoomID) > 128 {
		return relay_errors.ErrInvalidInput
	}
	return nil
}

// TransitionCallCommand moves a call along the state machine. Action is one
// of answer, decline or end.
type TransitionCallCommand struct {
	CallID  uuid.UUID
	ActorID uuid.UUID
	Action  string
}

func (TransitionCallCommand) CommandType() string { return "call.transition" }

func (c TransitionCallCommand) Validate() error {
	if c.CallID == uuid.Nil || c.ActorID == uuid.Nil {
		return relay_errors.ErrInvalidInput
	}
	if _, ok := call.ParseClientAction(c.Action); !ok {
		return relay_errors.ErrInvalidInput
	}
	return nil
}

// SignalCallCommand relays one WebRTC negotiation frame to the other party.
type SignalCallCommand struct {
	CallID    uuid.UUID          `json:"call_id"`
	FromID    uuid.UUID          `json:"-"`
	Kind      call.SignalKind    `json:"type"`
	SDP       string             `json:"sdp,omitempty"`
	Candidate *call.ICECandidate `json:"candidate,omitempty"`
}

func (SignalCallCommand) CommandType() string { return "call:signal" }

func (c SignalCallCommand) Validate() error {
	if c.CallID == uuid.Nil || c.FromID == uuid.Nil {
		return relay_errors.ErrInvalidInput
	}
	if !c.Kind.Valid() {
		return relay_errors.ErrInvalidInput
	}
	switch c.Kind {
	case call.SignalOffer, call.SignalAnswer:
		if strings.TrimSpace(c.SDP) == "" {
			return relay_errors.ErrInvalidInput
		}
	case call.SignalCandidate:
		if c.Candidate == nil {
			return relay_errors.ErrInvalidInput
		}
	}
	return nil
}

// PingCommand is a client keepalive answered with pong.
type PingCommand struct {
	UserID uuid.UUID
}

func (PingCommand) CommandType() string { return "ping" }

func (PingCommand) Validate() error { return nil }
