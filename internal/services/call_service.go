package services

import (
	"context"
	"errors"
	"time"

	"relaychat/internal/commands"
	"relaychat/internal/domain/call"
	"relaychat/internal/domain/notification"
	"relaychat/internal/events"
	"relaychat/internal/metrics"
	"relaychat/internal/repository"
	"relaychat/internal/transport/httpdto"
	relay_errors "relaychat/pkg/errors"
	"relaychat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const expireBatchSize = 100

type CallService struct {
	repo        repository.CallRepository
	users       repository.UserRepository
	notifier    *NotificationService
	relay       events.Emitter
	ringTimeout time.Duration
	clock       func() time.Time
	logger      *logger.Logger
}

func NewCallService(repo repository.CallRepository, users repository.UserRepository, notifier *NotificationService, relay events.Emitter, ringTimeout time.Duration, l *logger.Logger) *CallService {
	return &CallService{
		repo:        repo,
		users:       users,
		notifier:    notifier,
		relay:       relay,
		ringTimeout: ringTimeout,
		clock:       func() time.Time { return time.Now().UTC() },
		logger:      logger.OrNop(l),
	}
}

// RegisterHandlers wires the inbound websocket frames owned by calls.
func (s *CallService) RegisterHandlers(bus *commands.Bus) {
	if bus == nil {
		return
	}

	// call:signal - forward an SDP or ICE frame to the other party
	bus.Register("call:signal", commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.SignalCallCommand)
		if !ok {
			return commands.Result{}, relay_errors.ErrInvalidInput
		}
		if err := s.Signal(ctx, c); err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.CallID.String()}, nil
	}))
}

// Initiate creates a RINGING call and rings the receiver. It fails with
// ErrUserInCall when either party is already in an ONGOING call, in which
// case no row is written.
func (s *CallService) Initiate(ctx context.Context, cmd commands.InitiateCallCommand) (call.Call, error) {
	if err := cmd.Validate(); err != nil {
		return call.Call{}, err
	}
	callType, _ := call.ParseType(cmd.CallType)

	caller, err := s.users.GetUserByID(ctx, cmd.CallerID)
	if err != nil {
		return call.Call{}, err
	}
	if _, err := s.users.GetUserByID(ctx, cmd.ReceiverID); err != nil {
		return call.Call{}, err
	}

	if _, err := s.repo.FindOngoingFor(ctx, cmd.CallerID, cmd.ReceiverID); err == nil {
		metrics.CallTransitions.WithLabelValues("initiate", "busy").Inc()
		return call.Call{}, relay_errors.ErrUserInCall
	} else if !errors.Is(err, relay_errors.ErrNotFound) {
		return call.Call{}, err
	}

	now := s.clock()
	c := call.Call{
		ID:         uuid.New(),
		Type:       callType,
		Status:     call.StatusRinging,
		CallerID:   cmd.CallerID,
		ReceiverID: cmd.ReceiverID,
		RoomID:     cmd.RoomID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if c.RoomID == "" {
		c.RoomID = c.ID.String()
	}
	if err := s.repo.Create(ctx, &c); err != nil {
		return call.Call{}, err
	}
	metrics.CallTransitions.WithLabelValues("initiate", "ok").Inc()

	events.Emit(s.relay, ctx, c.ReceiverID, events.CallIncoming, httpdto.IncomingCallEvent{
		CallID: c.ID.String(),
		Type:   string(c.Type),
		RoomID: c.RoomID,
		Caller: httpdto.FromUser(caller),
	})
	return c, nil
}

// Answer maps the accept/decline answer of the receiver onto the state machine.
func (s *CallService) Answer(ctx context.Context, callID, actorID uuid.UUID, accepted bool) (call.Call, error) {
	action := string(call.ActionAnswer)
	if !accepted {
		action = string(call.ActionDecline)
	}
	return s.Transition(ctx, commands.TransitionCallCommand{CallID: callID, ActorID: actorID, Action: action})
}

func (s *CallService) End(ctx context.Context, callID, actorID uuid.UUID) (call.Call, error) {
	return s.Transition(ctx, commands.TransitionCallCommand{CallID: callID, ActorID: actorID, Action: string(call.ActionEnd)})
}

// Transition is the single entry point for client driven state changes.
// The update is conditional on the status read here; if another request
// moved the call first, ErrInvalidTransition is returned and nothing is
// overwritten.
func (s *CallService) Transition(ctx context.Context, cmd commands.TransitionCallCommand) (call.Call, error) {
	if err := cmd.Validate(); err != nil {
		return call.Call{}, err
	}
	action, _ := call.ParseClientAction(cmd.Action)

	c, err := s.load(ctx, cmd.CallID)
	if err != nil {
		return call.Call{}, err
	}
	if !c.IsParty(cmd.ActorID) {
		return call.Call{}, relay_errors.ErrNotFound
	}
	if !call.MayPerform(c, cmd.ActorID, action) {
		return call.Call{}, relay_errors.ErrForbidden
	}

	updated, err := s.apply(ctx, c, action)
	if err != nil {
		return call.Call{}, err
	}
	s.announce(ctx, updated, action, cmd.ActorID)
	return updated, nil
}

func (s *CallService) apply(ctx context.Context, c call.Call, action call.Action) (call.Call, error) {
	t, ok := call.TransitionFor(action)
	if !ok || c.Status != t.From {
		metrics.CallTransitions.WithLabelValues(string(action), "rejected").Inc()
		return call.Call{}, relay_errors.ErrInvalidTransition
	}

	now := s.clock()
	updates := map[string]any{"status": t.To, "updated_at": now}
	if t.StampAnswered {
		updates["answered_at"] = now
	}
	if t.StampEnded {
		updates["ended_at"] = now
	}
	if err := s.repo.Transition(ctx, c.ID, t.From, t.To, updates); err != nil {
		metrics.CallTransitions.WithLabelValues(string(action), "rejected").Inc()
		return call.Call{}, err
	}
	metrics.CallTransitions.WithLabelValues(string(action), "ok").Inc()

	c.Status = t.To
	c.UpdatedAt = now
	if t.StampAnswered {
		c.AnsweredAt = &now
	}
	if t.StampEnded {
		c.EndedAt = &now
	}
	return c, nil
}

func (s *CallService) announce(ctx context.Context, c call.Call, action call.Action, actor uuid.UUID) {
	payload := httpdto.CallEvent{
		CallID: c.ID.String(),
		Status: string(c.Status),
		Call:   httpdto.FromCall(c),
	}
	if actor != uuid.Nil {
		payload.By = actor.String()
	}

	switch action {
	case call.ActionAnswer:
		events.Emit(s.relay, ctx, c.CallerID, events.CallAccepted, payload)
		// other devices of the receiver stop ringing
		events.Emit(s.relay, ctx, c.ReceiverID, events.CallAnswered, payload)
	case call.ActionDecline:
		events.Emit(s.relay, ctx, c.Peer(actor), events.CallRejected, payload)
	case call.ActionEnd:
		events.Emit(s.relay, ctx, c.Peer(actor), events.CallEnded, payload)
	}
	events.EmitMany(s.relay, ctx, []uuid.UUID{c.CallerID, c.ReceiverID}, events.CallStatus, payload)
}

// Get returns a call visible to userID. Calls of other users are reported as
// not found.
func (s *CallService) Get(ctx context.Context, callID, userID uuid.UUID) (call.Call, error) {
	c, err := s.load(ctx, callID)
	if err != nil {
		return call.Call{}, err
	}
	if !c.IsParty(userID) {
		return call.Call{}, relay_errors.ErrNotFound
	}
	return c, nil
}

func (s *CallService) List(ctx context.Context, userID uuid.UUID, page, limit int) ([]call.Call, int64, error) {
	calls, total, err := s.repo.GetUserCalls(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	for i := range calls {
		calls[i] = s.expireIfStale(ctx, calls[i])
	}
	return calls, total, nil
}

// Active returns the RINGING and ONGOING calls of userID.
func (s *CallService) Active(ctx context.Context, userID uuid.UUID) ([]call.Call, error) {
	calls, err := s.repo.GetActiveCalls(ctx, userID)
	if err != nil {
		return nil, err
	}
	live := make([]call.Call, 0, len(calls))
	for _, c := range calls {
		if c = s.expireIfStale(ctx, c); c.IsLive() {
			live = append(live, c)
		}
	}
	return live, nil
}

// Signal forwards one negotiation frame to the other party of a live call.
func (s *CallService) Signal(ctx context.Context, cmd commands.SignalCallCommand) error {
	c, err := s.load(ctx, cmd.CallID)
	if err != nil {
		return err
	}
	if !c.IsParty(cmd.FromID) {
		return relay_errors.ErrNotFound
	}
	if !c.IsLive() {
		return relay_errors.ErrInvalidTransition
	}
	events.Emit(s.relay, ctx, c.Peer(cmd.FromID), events.CallSignal, httpdto.CallSignalEvent{
		CallID:    c.ID.String(),
		From:      cmd.FromID.String(),
		Type:      string(cmd.Kind),
		SDP:       cmd.SDP,
		Candidate: cmd.Candidate,
	})
	return nil
}

// ExpireRinging moves every call that rang longer than the ring timeout to
// MISSED and tells the receiver about it. It returns how many calls moved.
func (s *CallService) ExpireRinging(ctx context.Context) (int, error) {
	if s.ringTimeout <= 0 {
		return 0, nil
	}
	cutoff := s.clock().Add(-s.ringTimeout)
	expired := 0
	for {
		batch, err := s.repo.ListRingingBefore(ctx, cutoff, expireBatchSize)
		if err != nil {
			return expired, err
		}
		moved := 0
		for _, c := range batch {
			if s.expire(ctx, c) {
				moved++
			}
		}
		expired += moved
		if len(batch) < expireBatchSize || moved == 0 {
			return expired, nil
		}
	}
}

func (s *CallService) load(ctx context.Context, callID uuid.UUID) (call.Call, error) {
	c, err := s.repo.GetByID(ctx, callID)
	if err != nil {
		return call.Call{}, err
	}
	return s.expireIfStale(ctx, c), nil
}

// expireIfStale applies the ring timeout lazily so readers never see a call
// ringing past its deadline, even between sweeps.
func (s *CallService) expireIfStale(ctx context.Context, c call.Call) call.Call {
	if !c.RingExpired(s.clock(), s.ringTimeout) {
		return c
	}
	if s.expire(ctx, c) {
		c.Status = call.StatusMissed
		now := s.clock()
		c.EndedAt = &now
		return c
	}
	if fresh, err := s.repo.GetByID(ctx, c.ID); err == nil {
		return fresh
	}
	return c
}

func (s *CallService) expire(ctx context.Context, c call.Call) bool {
	updated, err := s.apply(ctx, c, call.ActionExpire)
	if err != nil {
		if !errors.Is(err, relay_errors.ErrInvalidTransition) {
			s.logger.ErrorCtx(ctx, "expire ringing call", zap.String("call_id", c.ID.String()), zap.Error(err))
		}
		return false
	}

	callID := updated.ID
	callerID := updated.CallerID
	tpl := notification.Template{
		Type:     notification.TypeCallMissed,
		Content:  "Missed " + string(updated.Type) + " call",
		SenderID: &callerID,
		CallID:   &callID,
		Data:     map[string]any{"room_id": updated.RoomID},
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, updated.ReceiverID, tpl); err != nil {
			s.logger.WarnCtx(ctx, "missed call notification", zap.String("call_id", callID.String()), zap.Error(err))
		}
	}
	s.announce(ctx, updated, call.ActionExpire, uuid.Nil)
	return true
}
