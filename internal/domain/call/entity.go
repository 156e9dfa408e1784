package call

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRinging  Status = "RINGING"
	StatusOngoing  Status = "ONGOING"
	StatusDeclined Status = "DECLINED"
	StatusEnded    Status = "ENDED"
	StatusMissed   Status = "MISSED"
)

type Type string

const (
	TypeAudio Type = "AUDIO"
	TypeVideo Type = "VIDEO"
)

// ParseType accepts "audio"/"video" in any case.
func ParseType(value string) (Type, bool) {
	switch Type(strings.ToUpper(strings.TrimSpace(value))) {
	case TypeAudio:
		return TypeAudio, true
	case TypeVideo:
		return TypeVideo, true
	}
	return "", false
}

// Call represents the calls table. One row per signaling session; rows are
// kept as history once terminal.
type Call struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Type       Type       `gorm:"type:varchar(16);not null"`
	Status     Status     `gorm:"type:varchar(16);not null;index"`
	CallerID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	ReceiverID uuid.UUID  `gorm:"type:uuid;not null;index"`
	RoomID     string     `gorm:"type:varchar(128);not null"`
	CreatedAt  time.Time  `gorm:"not null"`
	AnsweredAt *time.Time
	EndedAt    *time.Time
	UpdatedAt  time.Time
}

func (Call) TableName() string {
	return "calls"
}

// IsParty reports whether userID is the caller or the receiver.
func (c Call) IsParty(userID uuid.UUID) bool {
	return c.CallerID == userID || c.ReceiverID == userID
}

// Peer returns the other party of the call.
func (c Call) Peer(userID uuid.UUID) uuid.UUID {
	if c.CallerID == userID {
		return c.ReceiverID
	}
	return c.CallerID
}

// IsLive reports whether signaling frames may still flow for this call.
func (c Call) IsLive() bool {
	return c.Status == StatusRinging || c.Status == StatusOngoing
}

// RingExpired reports whether a RINGING call has outlived timeout.
func (c Call) RingExpired(now time.Time, timeout time.Duration) bool {
	return c.Status == StatusRinging && timeout > 0 && now.Sub(c.CreatedAt) >= timeout
}
