package repository

import (
	"context"
	"time"

	"relaychat/internal/domain/user"
	relay_errors "relaychat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &PostgresContactRepository{db: db}
}

func (r *PostgresContactRepository) Create(ctx context.Context, c *user.Contact) error {
	return mapCreateError(r.db.WithContext(ctx).Create(c).Error)
}

func (r *PostgresContactRepository) GetByID(ctx context.Context, id uuid.UUID) (user.Contact, error) {
	var c user.Contact
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return user.Contact{}, mapFindError(err)
	}
	return c, nil
}

func (r *PostgresContactRepository) GetBetween(ctx context.Context, a, b uuid.UUID) (user.Contact, error) {
	var c user.Contact
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)", a, b, b, a).
		First(&c).Error
	if err != nil {
		return user.Contact{}, mapFindError(err)
	}
	return c, nil
}

func (r *PostgresContactRepository) Respond(ctx context.Context, id uuid.UUID, status user.ContactStatus, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&user.Contact{}).
		Where("id = ? AND status = ?", id, user.ContactPending).
		Updates(map[string]any{"status": status, "responded_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrInvalidTransition
	}
	return nil
}

func (r *PostgresContactRepository) ListForUser(ctx context.Context, userID uuid.UUID, status user.ContactStatus) ([]user.Contact, error) {
	var contacts []user.Contact
	q := r.db.WithContext(ctx).Where("requester_id = ? OR addressee_id = ?", userID, userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("created_at DESC").Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}

func (r *PostgresContactRepository) AcceptedContactIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	contacts, err := r.ListForUser(ctx, userID, user.ContactAccepted)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.Other(userID))
	}
	return ids, nil
}
