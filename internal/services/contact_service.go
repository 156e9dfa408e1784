package services

import (
	"context"
	"errors"
	"time"

	"relaychat/internal/domain/notification"
	"relaychat/internal/domain/user"
	"relaychat/internal/repository"
	relay_errors "relaychat/pkg/errors"
	"relaychat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ContactService struct {
	repo     repository.ContactRepository
	users    repository.UserRepository
	notifier *NotificationService
	clock    func() time.Time
	logger   *logger.Logger
}

func NewContactService(repo repository.ContactRepository, users repository.UserRepository, notifier *NotificationService, l *logger.Logger) *ContactService {
	return &ContactService{
		repo:     repo,
		users:    users,
		notifier: notifier,
		clock:    func() time.Time { return time.Now().UTC() },
		logger:   logger.OrNop(l),
	}
}

// Request sends a contact request from requester to addressee. A previously
// rejected request between the pair is reported as a conflict.
func (s *ContactService) Request(ctx context.Context, requesterID, addresseeID uuid.UUID) (user.Contact, error) {
	if requesterID == uuid.Nil || addresseeID == uuid.Nil || requesterID == addresseeID {
		return user.Contact{}, relay_errors.ErrInvalidInput
	}
	requester, err := s.users.GetUserByID(ctx, requesterID)
	if err != nil {
		return user.Contact{}, err
	}
	if _, err := s.users.GetUserByID(ctx, addresseeID); err != nil {
		return user.Contact{}, err
	}

	if _, err := s.repo.GetBetween(ctx, requesterID, addresseeID); err == nil {
		return user.Contact{}, relay_errors.ErrAlreadyExists
	} else if !errors.Is(err, relay_errors.ErrNotFound) {
		return user.Contact{}, err
	}

	c := user.Contact{
		ID:          uuid.New(),
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      user.ContactPending,
		CreatedAt:   s.clock(),
	}
	if err := s.repo.Create(ctx, &c); err != nil {
		return user.Contact{}, err
	}

	s.notify(ctx, addresseeID, notification.Template{
		Type:     notification.TypeContactRequest,
		Content:  displayName(requester) + " sent you a contact request",
		SenderID: &requesterID,
		Data:     map[string]any{"contact_id": c.ID.String()},
	})
	return c, nil
}

func (s *ContactService) Accept(ctx context.Context, contactID, actorID uuid.UUID) (user.Contact, error) {
	return s.respond(ctx, contactID, actorID, user.ContactAccepted)
}

func (s *ContactService) Reject(ctx context.Context, contactID, actorID uuid.UUID) (user.Contact, error) {
	return s.respond(ctx, contactID, actorID, user.ContactRejected)
}

// respond lets the addressee settle a pending request and tells the requester.
func (s *ContactService) respond(ctx context.Context, contactID, actorID uuid.UUID, status user.ContactStatus) (user.Contact, error) {
	c, err := s.repo.GetByID(ctx, contactID)
	if err != nil {
		return user.Contact{}, err
	}
	if c.RequesterID != actorID && c.AddresseeID != actorID {
		return user.Contact{}, relay_errors.ErrNotFound
	}
	if c.AddresseeID != actorID {
		return user.Contact{}, relay_errors.ErrForbidden
	}

	now := s.clock()
	if err := s.repo.Respond(ctx, contactID, status, now); err != nil {
		return user.Contact{}, err
	}
	c.Status = status
	c.RespondedAt = &now

	// the response is already stored; a failed lookup only costs the name
	addressee, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		s.logger.WarnCtx(ctx, "load contact addressee", zap.String("contact_id", c.ID.String()), zap.Error(err))
	}
	tpl := notification.Template{
		Type:     notification.TypeContactAccepted,
		Content:  displayName(addressee) + " accepted your contact request",
		SenderID: &actorID,
		Data:     map[string]any{"contact_id": c.ID.String()},
	}
	if status == user.ContactRejected {
		tpl.Type = notification.TypeContactRejected
		tpl.Content = displayName(addressee) + " declined your contact request"
	}
	s.notify(ctx, c.RequesterID, tpl)
	return c, nil
}

func (s *ContactService) notify(ctx context.Context, recipient uuid.UUID, tpl notification.Template) {
	if err := s.notifier.Notify(ctx, recipient, tpl); err != nil {
		s.logger.WarnCtx(ctx, "contact notification", zap.String("type", string(tpl.Type)), zap.Error(err))
	}
}

// List returns the user's contacts with the given status, or all of them
// when status is empty.
func (s *ContactService) List(ctx context.Context, userID uuid.UUID, status user.ContactStatus) ([]user.Contact, error) {
	switch status {
	case "", user.ContactPending, user.ContactAccepted, user.ContactRejected:
	default:
		return nil, relay_errors.ErrInvalidInput
	}
	return s.repo.ListForUser(ctx, userID, status)
}

func displayName(u user.User) string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.Username != "":
		return u.Username
	}
	return "Someone"
}
