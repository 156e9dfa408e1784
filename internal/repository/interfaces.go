package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/domain/call"
	"relaychat/internal/domain/conversation"
	"relaychat/internal/domain/message"
	"relaychat/internal/domain/notification"
	"relaychat/internal/domain/user"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
	SearchUsers(ctx context.Context, query string, page, limit int) ([]user.User, int64, error)
}

type ContactRepository interface {
	Create(ctx context.Context, c *user.Contact) error
	GetByID(ctx context.Context, id uuid.UUID) (user.Contact, error)
	GetBetween(ctx context.Context, a, b uuid.UUID) (user.Contact, error)
	// Respond moves a PENDING contact to status; zero rows means it was not pending.
	Respond(ctx context.Context, id uuid.UUID, status user.ContactStatus, at time.Time) error
	ListForUser(ctx context.Context, userID uuid.UUID, status user.ContactStatus) ([]user.Contact, error)
	AcceptedContactIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetDirectConversation(ctx context.Context, userA, userB uuid.UUID) (conversation.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error)

	GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error)
	AddParticipant(ctx context.Context, p *conversation.Participant) error
	UpdateParticipantRole(ctx context.Context, conversationID, userID uuid.UUID, role conversation.Role) error
	UpdateParticipantSettings(ctx context.Context, conversationID, userID uuid.UUID, settings conversation.Settings) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID, before time.Time, limit int) ([]message.Message, error)
}

type CallRepository interface {
	Create(ctx context.Context, c *call.Call) error
	GetByID(ctx context.Context, id uuid.UUID) (call.Call, error)
	// FindOngoingFor looks for an ONGOING call involving either user, in any role.
	FindOngoingFor(ctx context.Context, userA, userB uuid.UUID) (call.Call, error)
	// Transition applies updates only if the row is still in status from.
	// Returns ErrInvalidTransition when the precondition no longer holds.
	Transition(ctx context.Context, id uuid.UUID, from, to call.Status, updates map[string]any) error
	GetUserCalls(ctx context.Context, userID uuid.UUID, page, limit int) ([]call.Call, int64, error)
	GetActiveCalls(ctx context.Context, userID uuid.UUID) ([]call.Call, error)
	ListRingingBefore(ctx context.Context, cutoff time.Time, limit int) ([]call.Call, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (notification.Notification, error)
	ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]notification.Notification, int64, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}
