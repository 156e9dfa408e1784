package repository

import (
	"fmt"

	"relaychat/internal/domain/call"
	"relaychat/internal/domain/conversation"
	"relaychat/internal/domain/message"
	"relaychat/internal/domain/notification"
	"relaychat/internal/domain/user"

	"gorm.io/gorm"
)

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&user.User{},
		&user.Contact{},
		&conversation.Conversation{},
		&conversation.Participant{},
		&message.Message{},
		&call.Call{},
		&notification.Notification{},
	}
}

// InitSchema runs gorm auto-migration for all models.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return nil
}
