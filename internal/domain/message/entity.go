package message

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeText  Type = "TEXT"
	TypeImage Type = "IMAGE"
	TypeFile  Type = "FILE"
)

func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeFile:
		return true
	}
	return false
}

// Message represents the messages table
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null"`
	Type           Type      `gorm:"type:varchar(16);not null"`
	Content        string
	AttachmentKey  string
	CreatedAt      time.Time `gorm:"index"`
}

func (Message) TableName() string {
	return "messages"
}
