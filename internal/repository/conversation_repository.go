package repository

import (
	"context"
	"time"

	"relaychat/internal/domain/conversation"
	relay_errors "relaychat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

// Create inserts the conversation together with its participants.
func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		participants := c.Participants
		if err := tx.Omit("Participants").Create(c).Error; err != nil {
			return mapCreateError(err)
		}
		for i := range participants {
			participants[i].ConversationID = c.ID
			if err := tx.Create(&participants[i]).Error; err != nil {
				return mapCreateError(err)
			}
		}
		c.Participants = participants
		return nil
	})
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return conversation.Conversation{}, mapFindError(err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetDirectConversation(ctx context.Context, userA, userB uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation

	withA := r.db.Model(&conversation.Participant{}).Select("conversation_id").Where("user_id = ?", userA)
	withB := r.db.Model(&conversation.Participant{}).Select("conversation_id").Where("user_id = ?", userB)

	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("type = ?", conversation.TypeDirect).
		Where("id IN (?)", withA).
		Where("id IN (?)", withB).
		First(&c).Error
	if err != nil {
		return conversation.Conversation{}, mapFindError(err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	var convs []conversation.Conversation

	member := r.db.Model(&conversation.Participant{}).Select("conversation_id").Where("user_id = ?", userID)

	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id IN (?)", member).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *PostgresConversationRepository) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	var p conversation.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		return conversation.Participant{}, mapFindError(err)
	}
	return p, nil
}

func (r *PostgresConversationRepository) AddParticipant(ctx context.Context, p *conversation.Participant) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return mapCreateError(err)
	}
	return r.touch(ctx, p.ConversationID)
}

func (r *PostgresConversationRepository) UpdateParticipantRole(ctx context.Context, conversationID, userID uuid.UUID, role conversation.Role) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) UpdateParticipantSettings(ctx context.Context, conversationID, userID uuid.UUID, settings conversation.Settings) error {
	updates := map[string]any{}
	if settings.Wallpaper != nil {
		updates["wallpaper"] = *settings.Wallpaper
	}
	if settings.Muted != nil {
		updates["muted"] = *settings.Muted
	}
	if len(updates) == 0 {
		return relay_errors.ErrInvalidInput
	}

	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) touch(ctx context.Context, conversationID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", time.Now().UTC()).Error
}
