package user

import (
	"time"

	"github.com/google/uuid"
)

// User represents the users table
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	DisplayName  string    `gorm:"type:varchar(128);not null"`
	AvatarURL    string
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ContactStatus string

const (
	ContactPending  ContactStatus = "PENDING"
	ContactAccepted ContactStatus = "ACCEPTED"
	ContactRejected ContactStatus = "REJECTED"
)

// Contact represents the contacts table. A request goes from requester to
// addressee; once accepted the pair is symmetric.
type Contact struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey"`
	RequesterID uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_contact_pair"`
	AddresseeID uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_contact_pair"`
	Status      ContactStatus `gorm:"type:varchar(16);not null"`
	CreatedAt   time.Time
	RespondedAt *time.Time
}

// Other returns the party of the contact that is not userID.
func (c Contact) Other(userID uuid.UUID) uuid.UUID {
	if c.RequesterID == userID {
		return c.AddresseeID
	}
	return c.RequesterID
}

func (User) TableName() string {
	return "users"
}

func (Contact) TableName() string {
	return "contacts"
}
