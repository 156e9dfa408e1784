package httpdto

import (
	"time"

	"relaychat/internal/domain/message"
)

// SendMessageRequest is used for POST /conversations/:id/messages
type SendMessageRequest struct {
	Type          string `json:"type,omitempty"` // TEXT (default), IMAGE, FILE
	Content       string `json:"content"`
	AttachmentKey string `json:"attachment_key,omitempty"`
}

// MessageDTO represents a message in API responses and in message:new
type MessageDTO struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Type           string `json:"type"`
	Content        string `json:"content"`
	AttachmentKey  string `json:"attachment_key,omitempty"`
	AttachmentURL  string `json:"attachment_url,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func FromMessage(m message.Message) MessageDTO {
	return MessageDTO{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Type:           string(m.Type),
		Content:        m.Content,
		AttachmentKey:  m.AttachmentKey,
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ListMessagesResponse is returned by GET /conversations/:id/messages
type ListMessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
}
