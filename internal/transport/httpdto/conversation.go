package httpdto

import (
	"time"

	"relaychat/internal/domain/conversation"
)

// CreateDirectRequest is used for POST /conversations/direct
type CreateDirectRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// CreateGroupRequest is used for POST /conversations/groups
type CreateGroupRequest struct {
	Name      string   `json:"name" binding:"required"`
	MemberIDs []string `json:"member_ids"`
}

// AddMemberRequest is used for POST /conversations/:id/members
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// ChangeRoleRequest is used for PATCH /conversations/:id/members/:user_id/role
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"` // "ADMIN" or "MEMBER"
}

// UpdateSettingsRequest is used for PATCH /conversations/:id/settings
type UpdateSettingsRequest struct {
	Wallpaper *string `json:"wallpaper,omitempty"`
	Muted     *bool   `json:"muted,omitempty"`
}

type ParticipantDTO struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Wallpaper string `json:"wallpaper,omitempty"`
	Muted     bool   `json:"muted"`
	JoinedAt  string `json:"joined_at"`
}

type ConversationDTO struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	Name         string           `json:"name,omitempty"`
	CreatedBy    string           `json:"created_by"`
	CreatedAt    string           `json:"created_at"`
	UpdatedAt    string           `json:"updated_at"`
	Participants []ParticipantDTO `json:"participants"`
}

func FromParticipant(p conversation.Participant) ParticipantDTO {
	return ParticipantDTO{
		UserID:    p.UserID.String(),
		Role:      string(p.Role),
		Wallpaper: p.Wallpaper,
		Muted:     p.Muted,
		JoinedAt:  p.JoinedAt.UTC().Format(time.RFC3339),
	}
}

func FromConversation(c conversation.Conversation) ConversationDTO {
	dto := ConversationDTO{
		ID:           c.ID.String(),
		Type:         string(c.Type),
		Name:         c.Name,
		CreatedBy:    c.CreatedBy.String(),
		CreatedAt:    c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    c.UpdatedAt.UTC().Format(time.RFC3339),
		Participants: make([]ParticipantDTO, 0, len(c.Participants)),
	}
	for _, p := range c.Participants {
		dto.Participants = append(dto.Participants, FromParticipant(p))
	}
	return dto
}

func FromConversations(items []conversation.Conversation) []ConversationDTO {
	out := make([]ConversationDTO, 0, len(items))
	for _, c := range items {
		out = append(out, FromConversation(c))
	}
	return out
}
