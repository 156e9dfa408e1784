package repository

import (
	"errors"
	"strings"

	relay_errors "relaychat/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// sqlite reports constraint failures as plain text
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// mapCreateError translates insert failures into domain errors.
func mapCreateError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return relay_errors.ErrAlreadyExists
	}
	return err
}

// mapFindError translates lookup failures into domain errors.
func mapFindError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return relay_errors.ErrNotFound
	}
	return err
}

// normalizePage clamps page/limit and returns the offset.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return (page - 1) * limit, limit
}
