package repository

import (
	"context"
	"time"

	"relaychat/internal/domain/call"
	relay_errors "relaychat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresCallRepository struct {
	db *gorm.DB
}

func NewCallRepository(db *gorm.DB) CallRepository {
	return &PostgresCallRepository{db: db}
}

func (r *PostgresCallRepository) Create(ctx context.Context, c *call.Call) error {
	return mapCreateError(r.db.WithContext(ctx).Create(c).Error)
}

func (r *PostgresCallRepository) GetByID(ctx context.Context, id uuid.UUID) (call.Call, error) {
	var c call.Call
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		return call.Call{}, mapFindError(err)
	}
	return c, nil
}

func (r *PostgresCallRepository) FindOngoingFor(ctx context.Context, userA, userB uuid.UUID) (call.Call, error) {
	var c call.Call
	err := r.db.WithContext(ctx).
		Where("status = ?", call.StatusOngoing).
		Where("caller_id = ? OR receiver_id = ? OR caller_id = ? OR receiver_id = ?", userA, userA, userB, userB).
		Order("created_at DESC").
		First(&c).Error
	if err != nil {
		return call.Call{}, mapFindError(err)
	}
	return c, nil
}

func (r *PostgresCallRepository) Transition(ctx context.Context, id uuid.UUID, from, to call.Status, updates map[string]any) error {
	values := make(map[string]any, len(updates)+2)
	for k, v := range updates {
		values[k] = v
	}
	values["status"] = to
	if _, ok := values["updated_at"]; !ok {
		values["updated_at"] = time.Now().UTC()
	}

	res := r.db.WithContext(ctx).
		Model(&call.Call{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// distinguish a missing row from a stale precondition
		var count int64
		if err := r.db.WithContext(ctx).Model(&call.Call{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return relay_errors.ErrNotFound
		}
		return relay_errors.ErrInvalidTransition
	}
	return nil
}

func (r *PostgresCallRepository) GetUserCalls(ctx context.Context, userID uuid.UUID, page, limit int) ([]call.Call, int64, error) {
	var calls []call.Call
	var total int64

	q := r.db.WithContext(ctx).
		Model(&call.Call{}).
		Where("caller_id = ? OR receiver_id = ?", userID, userID).
		Session(&gorm.Session{})

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := normalizePage(page, limit)
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&calls).Error; err != nil {
		return nil, 0, err
	}

	return calls, total, nil
}

func (r *PostgresCallRepository) GetActiveCalls(ctx context.Context, userID uuid.UUID) ([]call.Call, error) {
	var calls []call.Call
	err := r.db.WithContext(ctx).
		Where("status IN ?", []call.Status{call.StatusRinging, call.StatusOngoing}).
		Where("caller_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&calls).Error
	if err != nil {
		return nil, err
	}
	return calls, nil
}

func (r *PostgresCallRepository) ListRingingBefore(ctx context.Context, cutoff time.Time, limit int) ([]call.Call, error) {
	var calls []call.Call
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at <= ?", call.StatusRinging, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&calls).Error
	if err != nil {
		return nil, err
	}
	return calls, nil
}
