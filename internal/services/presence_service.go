package services

import (
	"context"
	"time"

	"relaychat/internal/events"
	"relaychat/internal/repository"
	"relaychat/internal/transport/httpdto"
	relay_errors "relaychat/pkg/errors"
	"relaychat/pkg/logger"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// PresenceTracker counts live connections across instances. The redis
// PresenceStore implements it.
type PresenceTracker interface {
	SetOnline(ctx context.Context, userID uuid.UUID, connID string) (bool, error)
	SetOffline(ctx context.Context, userID uuid.UUID, connID string, at time.Time) (bool, error)
}

// PresenceReader answers presence queries. The redis PresenceStore
// implements it next to PresenceTracker.
type PresenceReader interface {
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
	LastSeen(ctx context.Context, userID uuid.UUID) (time.Time, error)
}

// PresenceService tells accepted contacts when a user comes online or goes
// offline. Without a tracker only connections on this instance count.
type PresenceService struct {
	contacts repository.ContactRepository
	tracker  PresenceTracker
	relay    events.Emitter
	local    func(uuid.UUID) bool
	clock    func() time.Time
	logger   *logger.Logger
}

func NewPresenceService(contacts repository.ContactRepository, tracker PresenceTracker, l *logger.Logger) *PresenceService {
	return &PresenceService{
		contacts: contacts,
		tracker:  tracker,
		clock:    func() time.Time { return time.Now().UTC() },
		logger:   logger.OrNop(l),
	}
}

// SetRelay attaches the emitter. The relay's connection handler calls back
// into this service, so the two are wired after construction.
func (s *PresenceService) SetRelay(relay events.Emitter) {
	s.relay = relay
}

// SetLocalView is consulted by Status when no tracker is configured.
func (s *PresenceService) SetLocalView(online func(uuid.UUID) bool) {
	s.local = online
}

// Status reports whether userID is online. Only the user and their accepted
// contacts may ask.
func (s *PresenceService) Status(ctx context.Context, viewerID, userID uuid.UUID) (httpdto.PresenceEvent, error) {
	if viewerID != userID {
		ids, err := s.contacts.AcceptedContactIDs(ctx, viewerID)
		if err != nil {
			return httpdto.PresenceEvent{}, err
		}
		if !lo.Contains(ids, userID) {
			return httpdto.PresenceEvent{}, relay_errors.ErrForbidden
		}
	}

	status := httpdto.PresenceEvent{UserID: userID.String()}
	reader, ok := s.tracker.(PresenceReader)
	if !ok {
		status.Online = s.local != nil && s.local(userID)
		return status, nil
	}

	online, err := reader.IsOnline(ctx, userID)
	if err != nil {
		return httpdto.PresenceEvent{}, err
	}
	status.Online = online
	if !online {
		seen, err := reader.LastSeen(ctx, userID)
		if err != nil {
			return httpdto.PresenceEvent{}, err
		}
		if !seen.IsZero() {
			status.LastSeen = seen.Format(time.RFC3339)
		}
	}
	return status, nil
}

// OnConnect is called for every new socket. firstLocal is true when this is
// the user's only socket on this instance.
func (s *PresenceService) OnConnect(ctx context.Context, userID uuid.UUID, connID string, firstLocal bool) {
	online := firstLocal
	if s.tracker != nil {
		first, err := s.tracker.SetOnline(ctx, userID, connID)
		if err != nil {
			s.logger.WarnCtx(ctx, "presence set online", zap.String("user_id", userID.String()), zap.Error(err))
		} else {
			online = first
		}
	}
	if online {
		s.announce(ctx, userID, true)
	}
}

// OnDisconnect mirrors OnConnect; lastLocal is true when the user has no
// socket left on this instance.
func (s *PresenceService) OnDisconnect(ctx context.Context, userID uuid.UUID, connID string, lastLocal bool) {
	offline := lastLocal
	if s.tracker != nil {
		last, err := s.tracker.SetOffline(ctx, userID, connID, s.clock())
		if err != nil {
			s.logger.WarnCtx(ctx, "presence set offline", zap.String("user_id", userID.String()), zap.Error(err))
		} else {
			offline = last
		}
	}
	if offline {
		s.announce(ctx, userID, false)
	}
}

func (s *PresenceService) announce(ctx context.Context, userID uuid.UUID, online bool) {
	if s.relay == nil {
		return
	}
	ids, err := s.contacts.AcceptedContactIDs(ctx, userID)
	if err != nil {
		s.logger.WarnCtx(ctx, "presence contacts lookup", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	events.EmitMany(s.relay, ctx, ids, events.PresenceUpdate, httpdto.PresenceEvent{
		UserID:   userID.String(),
		Online:   online,
		LastSeen: s.clock().Format(time.RFC3339),
	})
}
