package events

import (
	"context"

	"github.com/google/uuid"
)

// Relay event names as seen by clients.
const (
	CallIncoming = "call:incoming"
	CallAccepted = "call:accepted"
	CallRejected = "call:rejected"
	CallStatus   = "call:status"
	CallAnswered = "call:answered"
	CallEnded    = "call:ended"
	CallSignal   = "call:signal"
)

const (
	Notification   = "notification"
	MessageNew     = "message:new"
	PresenceUpdate = "presence:update"
	Ping           = "ping"
	Pong           = "pong"
	Error          = "error"
)

// Emitter delivers named events to live client connections. Delivery is
// best effort and at most once; implementations must never block the caller.
type Emitter interface {
	Emit(ctx context.Context, userID uuid.UUID, event string, payload any)
	Broadcast(ctx context.Context, event string, payload any)
}

// Emit tolerates a nil emitter so callers never have to check for a relay.
func Emit(e Emitter, ctx context.Context, userID uuid.UUID, event string, payload any) {
	if e == nil {
		return
	}
	e.Emit(ctx, userID, event, payload)
}

// EmitMany sends the same event to several users.
func EmitMany(e Emitter, ctx context.Context, userIDs []uuid.UUID, event string, payload any) {
	if e == nil {
		return
	}
	for _, id := range userIDs {
		e.Emit(ctx, id, event, payload)
	}
}
