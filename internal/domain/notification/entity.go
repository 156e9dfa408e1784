package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeMessage         Type = "MESSAGE"
	TypeGroupMessage    Type = "GROUP_MESSAGE"
	TypeContactRequest  Type = "CONTACT_REQUEST"
	TypeContactAccepted Type = "CONTACT_ACCEPTED"
	TypeContactRejected Type = "CONTACT_REJECTED"
	TypeGroupAdded      Type = "GROUP_ADDED"
	TypeCallMissed      Type = "CALL_MISSED"
)

// Notification represents the notifications table. SenderID is the single
// originator field for every notification type.
type Notification struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID         `gorm:"type:uuid;not null;index"`
	Type      Type              `gorm:"type:varchar(32);not null"`
	Content   string            `gorm:"not null"`
	SenderID  *uuid.UUID        `gorm:"type:uuid"`
	GroupID   *uuid.UUID        `gorm:"type:uuid"`
	CallID    *uuid.UUID        `gorm:"type:uuid"`
	Data      datatypes.JSONMap `gorm:"type:json"`
	Read      bool              `gorm:"not null;default:false;index"`
	CreatedAt time.Time         `gorm:"index"`
	ReadAt    *time.Time
}

// Template is what an event produces before it is addressed to a recipient.
type Template struct {
	Type     Type
	Content  string
	SenderID *uuid.UUID
	GroupID  *uuid.UUID
	CallID   *uuid.UUID
	Data     map[string]any
}

// For addresses the template to one recipient.
func (t Template) For(recipient uuid.UUID, now time.Time) Notification {
	n := Notification{
		ID:        uuid.New(),
		UserID:    recipient,
		Type:      t.Type,
		Content:   t.Content,
		SenderID:  t.SenderID,
		GroupID:   t.GroupID,
		CallID:    t.CallID,
		CreatedAt: now,
	}
	if len(t.Data) > 0 {
		n.Data = datatypes.JSONMap(t.Data)
	}
	return n
}

func (Notification) TableName() string {
	return "notifications"
}
