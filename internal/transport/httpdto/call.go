package httpdto

import (
	"time"

	"relaychat/internal/domain/call"
)

// CreateCallRequest is used for POST /calls
type CreateCallRequest struct {
	Type       string `json:"type" binding:"required"` // "audio" or "video"
	ReceiverID string `json:"receiver_id" binding:"required"`
	RoomID     string `json:"room_id,omitempty"`
}

// AnswerCallRequest is used for POST /calls/:id/answer
type AnswerCallRequest struct {
	Accepted *bool `json:"accepted" binding:"required"`
}

// TransitionCallRequest is used for PATCH /calls/:id
type TransitionCallRequest struct {
	Action string `json:"action" binding:"required"` // "answer", "decline" or "end"
}

// CallDTO represents a call in API responses and relay payloads
type CallDTO struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Status     string  `json:"status"`
	CallerID   string  `json:"caller_id"`
	ReceiverID string  `json:"receiver_id"`
	RoomID     string  `json:"room_id"`
	CreatedAt  string  `json:"created_at"`
	AnsweredAt *string `json:"answered_at"`
	EndedAt    *string `json:"ended_at"`
	Duration   int64   `json:"duration,omitempty"` // seconds between answer and end
}

func FromCall(c call.Call) CallDTO {
	dto := CallDTO{
		ID:         c.ID.String(),
		Type:       string(c.Type),
		Status:     string(c.Status),
		CallerID:   c.CallerID.String(),
		ReceiverID: c.ReceiverID.String(),
		RoomID:     c.RoomID,
		CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
		AnsweredAt: formatTime(c.AnsweredAt),
		EndedAt:    formatTime(c.EndedAt),
	}
	if c.AnsweredAt != nil && c.EndedAt != nil {
		dto.Duration = int64(c.EndedAt.Sub(*c.AnsweredAt).Seconds())
	}
	return dto
}

func FromCalls(calls []call.Call) []CallDTO {
	out := make([]CallDTO, 0, len(calls))
	for _, c := range calls {
		out = append(out, FromCall(c))
	}
	return out
}

// ListCallsResponse is returned when listing calls
type ListCallsResponse struct {
	Calls []CallDTO `json:"calls"`
	Total int64     `json:"total"`
}

// IncomingCallEvent is the call:incoming payload sent to the receiver
type IncomingCallEvent struct {
	CallID string         `json:"call_id"`
	Type   string         `json:"type"`
	RoomID string         `json:"room_id"`
	Caller UserSummaryDTO `json:"caller"`
}

// CallEvent is the payload of call:accepted, call:rejected, call:answered,
// call:ended and call:status
type CallEvent struct {
	CallID string  `json:"call_id"`
	Status string  `json:"status"`
	By     string  `json:"by,omitempty"`
	Call   CallDTO `json:"call"`
}

// CallSignalEvent is the call:signal payload forwarded to the other party
type CallSignalEvent struct {
	CallID    string             `json:"call_id"`
	From      string             `json:"from"`
	Type      string             `json:"type"`
	SDP       string             `json:"sdp,omitempty"`
	Candidate *call.ICECandidate `json:"candidate,omitempty"`
}

// ICEServersResponse is returned by GET /calls/ice-servers
type ICEServersResponse struct {
	ICEServers []call.ICEServer `json:"ice_servers"`
	TTL        int64            `json:"ttl,omitempty"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
