package services

import (
	"context"
	"strings"

	"relaychat/internal/domain/user"
	"relaychat/internal/repository"
	relay_errors "relaychat/pkg/errors"

	"github.com/google/uuid"
)

type UserService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Search matches username or display name; the query must be at least two
// characters.
func (s *UserService) Search(ctx context.Context, query string, page, limit int) ([]user.User, int64, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return nil, 0, relay_errors.ErrInvalidInput
	}
	return s.repo.SearchUsers(ctx, query, page, limit)
}

func (s *UserService) GetByID(ctx context.Context, userID uuid.UUID) (user.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}
