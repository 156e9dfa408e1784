package commands

import (
	"strings"

	"relaychat/internal/domain/message"
	relay_errors "relaychat/pkg/errors"

	"github.com/google/uuid"
)

const maxMessageLength = 4000

// SendMessageCommand posts a message to a conversation
type SendMessageCommand struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Type           string
	Content        string
	AttachmentKey  string
}

func (SendMessageCommand) CommandType() string { return "message.send" }

// MessageType defaults to TEXT.
func (c SendMessageCommand) MessageType() message.Type {
	if c.Type == "" {
		return message.TypeText
	}
	return message.Type(strings.ToUpper(c.Type))
}

func (c SendMessageCommand) Validate() error {
	if c.ConversationID == uuid.Nil || c.SenderID == uuid.Nil {
		return relay_errors.ErrInvalidInput
	}
	if !c.MessageType().Valid() {
		return relay_errors.ErrInvalidInput
	}
	if c.MessageType() == message.TypeText && strings.TrimSpace(c.Content) == "" {
		return relay_errors.ErrInvalidInput
	}
	if c.MessageType() != message.TypeText && c.AttachmentKey == "" {
		return relay_errors.ErrInvalidInput
	}
	if len(c.Content) > maxMessageLength {
		return relay_errors.ErrInvalidInput
	}
	return nil
}

// CreateGroupCommand creates a group with the creator as ADMIN
type CreateGroupCommand struct {
	CreatorID uuid.UUID
	Name      string
	MemberIDs []uuid.UUID
}

func (CreateGroupCommand) CommandType() string { return "conversation.create_group" }

func (c CreateGroupCommand) Validate() error {
	if c.CreatorID == uuid.Nil || strings.TrimSpace(c.Name) == "" {
		return relay_errors.ErrInvalidInput
	}
	for _, id := range c.MemberIDs {
		if id == uuid.Nil {
			return relay_errors.ErrInvalidInput
		}
	}
	return nil
}
