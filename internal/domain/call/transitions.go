package call

import (
	"strings"

	"github.com/google/uuid"
)

// Action is a verb accepted by the call state machine.
type Action string

const (
	ActionAnswer  Action = "answer"
	ActionDecline Action = "decline"
	ActionEnd     Action = "end"
	// ActionExpire is only taken by the ringing sweeper, never by a client.
	ActionExpire Action = "expire"
)

// Transition describes one edge of the call state machine.
type Transition struct {
	Action Action
	From   Status
	To     Status
	// StampAnswered / StampEnded name the timestamps the edge sets.
	StampAnswered bool
	StampEnded    bool
}

var transitions = map[Action]Transition{
	ActionAnswer:  {Action: ActionAnswer, From: StatusRinging, To: StatusOngoing, StampAnswered: true},
	ActionDecline: {Action: ActionDecline, From: StatusRinging, To: StatusDeclined},
	ActionEnd:     {Action: ActionEnd, From: StatusOngoing, To: StatusEnded, StampEnded: true},
	ActionExpire:  {Action: ActionExpire, From: StatusRinging, To: StatusMissed, StampEnded: true},
}

// ParseClientAction accepts only the verbs a client may send. Raw status
// strings such as "ONGOING" are rejected.
func ParseClientAction(value string) (Action, bool) {
	switch a := Action(strings.ToLower(strings.TrimSpace(value))); a {
	case ActionAnswer, ActionDecline, ActionEnd:
		return a, true
	}
	return "", false
}

// TransitionFor returns the edge taken by action.
func TransitionFor(action Action) (Transition, bool) {
	t, ok := transitions[action]
	return t, ok
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// MayPerform reports whether actor is allowed to take action on c.
// Only the receiver answers; either party may decline (the caller cancelling
// a ringing call) or end.
func MayPerform(c Call, actor uuid.UUID, action Action) bool {
	switch action {
	case ActionAnswer:
		return c.ReceiverID == actor
	case ActionDecline, ActionEnd:
		return c.IsParty(actor)
	}
	return false
}
