package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"relaychat/internal/domain/notification"
	"relaychat/internal/events"
	"relaychat/internal/metrics"
	"relaychat/internal/repository"
	"relaychat/internal/transport/httpdto"
	relay_errors "relaychat/pkg/errors"
	"relaychat/pkg/logger"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// NotificationService writes per-recipient notification rows and pushes the
// matching relay event to each recipient.
type NotificationService struct {
	repo   repository.NotificationRepository
	relay  events.Emitter
	logger *logger.Logger
	clock  func() time.Time
	// dispatch runs relay emission off the request path.
	dispatch func(func())
}

func NewNotificationService(repo repository.NotificationRepository, relay events.Emitter, l *logger.Logger) *NotificationService {
	return &NotificationService{
		repo:     repo,
		relay:    relay,
		logger:   logger.OrNop(l),
		clock:    func() time.Time { return time.Now().UTC() },
		dispatch: func(f func()) { go f() },
	}
}

// FanOut writes one notification per recipient. Each write is independent:
// a failure for one recipient is logged and reported in the joined error
// while rows already written are kept. The sender is never notified.
// Relay events for the written rows are emitted without blocking.
func (s *NotificationService) FanOut(ctx context.Context, recipients []uuid.UUID, tpl notification.Template) ([]notification.Notification, error) {
	if s == nil {
		return nil, nil
	}
	targets := lo.Uniq(lo.Reject(recipients, func(id uuid.UUID, _ int) bool {
		return id == uuid.Nil || (tpl.SenderID != nil && id == *tpl.SenderID)
	}))

	created := make([]notification.Notification, 0, len(targets))
	var errs []error
	now := s.clock()

	for _, recipient := range targets {
		n := tpl.For(recipient, now)
		if err := s.repo.Create(ctx, &n); err != nil {
			metrics.NotificationsCreated.WithLabelValues(string(tpl.Type), "error").Inc()
			s.logger.ErrorCtx(ctx, "notification write failed",
				zap.String("type", string(tpl.Type)),
				zap.String("recipient", recipient.String()),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("notify %s: %w", recipient, err))
			continue
		}
		metrics.NotificationsCreated.WithLabelValues(string(tpl.Type), "ok").Inc()
		created = append(created, n)
	}

	s.emit(ctx, created)
	return created, errors.Join(errs...)
}

// Notify is FanOut for a single recipient.
func (s *NotificationService) Notify(ctx context.Context, recipient uuid.UUID, tpl notification.Template) error {
	_, err := s.FanOut(ctx, []uuid.UUID{recipient}, tpl)
	return err
}

func (s *NotificationService) emit(ctx context.Context, created []notification.Notification) {
	if len(created) == 0 {
		return
	}
	// the request context is cancelled once the handler returns
	bg := context.WithoutCancel(ctx)
	s.dispatch(func() {
		for _, n := range created {
			events.Emit(s.relay, bg, n.UserID, events.Notification, httpdto.FromNotification(n))
		}
	})
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]notification.Notification, int64, error) {
	return s.repo.ListForUser(ctx, userID, unreadOnly, page, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (notification.Notification, error) {
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return notification.Notification{}, err
	}
	if n.UserID != userID {
		// do not leak other users' notification ids
		return notification.Notification{}, relay_errors.ErrNotFound
	}
	if n.Read {
		return n, nil
	}
	now := s.clock()
	if err := s.repo.MarkRead(ctx, notificationID, userID, now); err != nil {
		return notification.Notification{}, err
	}
	n.Read = true
	n.ReadAt = &now
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.clock())
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}
