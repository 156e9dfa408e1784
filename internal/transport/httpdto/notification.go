package httpdto

import (
	"time"

	"relaychat/internal/domain/notification"

	"github.com/google/uuid"
)

// NotificationDTO represents a notification in API responses and in the
// notification relay event
type NotificationDTO struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	SenderID  *string        `json:"sender_id,omitempty"`
	GroupID   *string        `json:"group_id,omitempty"`
	CallID    *string        `json:"call_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt string         `json:"created_at"`
	ReadAt    *string        `json:"read_at,omitempty"`
}

func FromNotification(n notification.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:        n.ID.String(),
		Type:      string(n.Type),
		Content:   n.Content,
		SenderID:  uuidString(n.SenderID),
		GroupID:   uuidString(n.GroupID),
		CallID:    uuidString(n.CallID),
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339Nano),
		ReadAt:    formatTime(n.ReadAt),
	}
	if len(n.Data) > 0 {
		dto.Data = map[string]any(n.Data)
	}
	return dto
}

func FromNotifications(items []notification.Notification) []NotificationDTO {
	out := make([]NotificationDTO, 0, len(items))
	for _, n := range items {
		out = append(out, FromNotification(n))
	}
	return out
}

// ListNotificationsResponse is returned by GET /notifications
type ListNotificationsResponse struct {
	Notifications []NotificationDTO `json:"notifications"`
	Total         int64             `json:"total"`
}

// UnreadCountResponse is returned by GET /notifications/unread-count
type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
