package httpdto

import (
	"time"

	"relaychat/internal/domain/user"
)

// ContactRequest is used for POST /contacts
type ContactRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type ContactDTO struct {
	ID          string  `json:"id"`
	RequesterID string  `json:"requester_id"`
	AddresseeID string  `json:"addressee_id"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	RespondedAt *string `json:"responded_at,omitempty"`
}

func FromContact(c user.Contact) ContactDTO {
	return ContactDTO{
		ID:          c.ID.String(),
		RequesterID: c.RequesterID.String(),
		AddresseeID: c.AddresseeID.String(),
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt.UTC().Format(time.RFC3339),
		RespondedAt: formatTime(c.RespondedAt),
	}
}

func FromContacts(items []user.Contact) []ContactDTO {
	out := make([]ContactDTO, 0, len(items))
	for _, c := range items {
		out = append(out, FromContact(c))
	}
	return out
}

// PresenceEvent is the presence:update payload sent to contacts
type PresenceEvent struct {
	UserID   string `json:"user_id"`
	Online   bool   `json:"online"`
	LastSeen string `json:"last_seen,omitempty"`
}
