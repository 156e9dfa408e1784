package conversation

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeDirect Type = "DIRECT"
	TypeGroup  Type = "GROUP"
)

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Conversation represents the conversations table. Direct chats and groups
// share the table.
type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type      Type      `gorm:"type:varchar(16);not null"`
	Name      string
	CreatedBy uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	Participants []Participant `gorm:"foreignKey:ConversationID"`
}

// Participant represents the participants table
type Participant struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Role           Role      `gorm:"type:varchar(16);not null"`
	Wallpaper      string
	Muted          bool
	JoinedAt       time.Time
}

// Settings is the per-participant preference patch. Nil fields are left as is.
type Settings struct {
	Wallpaper *string
	Muted     *bool
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "participants"
}
