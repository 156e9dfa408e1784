package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"relaychat/internal/commands"
	"relaychat/internal/domain/conversation"
	"relaychat/internal/domain/message"
	"relaychat/internal/domain/notification"
	"relaychat/internal/events"
	"relaychat/internal/repository"
	"relaychat/internal/storage"
	"relaychat/internal/transport/httpdto"
	relay_errors "relaychat/pkg/errors"
	"relaychat/pkg/logger"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	defaultMessagePage = 50
	maxMessagePage     = 100
	previewLength      = 80
)

type ConversationService struct {
	repo     repository.ConversationRepository
	messages repository.MessageRepository
	users    repository.UserRepository
	notifier *NotificationService
	relay    events.Emitter
	uploads  *UploadService
	bus      *commands.Bus
	clock    func() time.Time
	logger   *logger.Logger
}

func NewConversationService(
	repo repository.ConversationRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	notifier *NotificationService,
	relay events.Emitter,
	uploads *UploadService,
	bus *commands.Bus,
	l *logger.Logger,
) *ConversationService {
	if bus == nil {
		bus = commands.NewBus()
	}
	svc := &ConversationService{
		repo:     repo,
		messages: messages,
		users:    users,
		notifier: notifier,
		relay:    relay,
		uploads:  uploads,
		bus:      bus,
		clock:    func() time.Time { return time.Now().UTC() },
		logger:   logger.OrNop(l),
	}
	svc.RegisterHandlers(bus)
	return svc
}

func (s *ConversationService) RegisterHandlers(bus *commands.Bus) {
	if bus == nil {
		return
	}
	bus.Register("message.send", commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.SendMessageCommand)
		if !ok {
			return commands.Result{}, relay_errors.ErrInvalidInput
		}
		m, err := s.sendMessage(ctx, c)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: m.ID.String(), Payload: m}, nil
	}))
	bus.Register("conversation.create_group", commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c, ok := cmd.(commands.CreateGroupCommand)
		if !ok {
			return commands.Result{}, relay_errors.ErrInvalidInput
		}
		conv, err := s.createGroup(ctx, c)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: conv.ID.String(), Payload: conv}, nil
	}))
}

// GetOrCreateDirect returns the direct conversation between the two users,
// creating it on first use.
func (s *ConversationService) GetOrCreateDirect(ctx context.Context, userID, otherID uuid.UUID) (conversation.Conversation, error) {
	if userID == uuid.Nil || otherID == uuid.Nil || userID == otherID {
		return conversation.Conversation{}, relay_errors.ErrInvalidInput
	}
	if _, err := s.users.GetUserByID(ctx, otherID); err != nil {
		return conversation.Conversation{}, err
	}

	existing, err := s.repo.GetDirectConversation(ctx, userID, otherID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, relay_errors.ErrNotFound) {
		return conversation.Conversation{}, err
	}

	now := s.clock()
	conv := conversation.Conversation{
		ID:        uuid.New(),
		Type:      conversation.TypeDirect,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
		Participants: []conversation.Participant{
			{UserID: userID, Role: conversation.RoleMember, JoinedAt: now},
			{UserID: otherID, Role: conversation.RoleMember, JoinedAt: now},
		},
	}
	if err := s.repo.Create(ctx, &conv); err != nil {
		return conversation.Conversation{}, err
	}
	return conv, nil
}

func (s *ConversationService) CreateGroup(ctx context.Context, cmd commands.CreateGroupCommand) (conversation.Conversation, error) {
	res, err := s.bus.Execute(ctx, cmd)
	if err != nil {
		return conversation.Conversation{}, err
	}
	return res.Payload.(conversation.Conversation), nil
}

func (s *ConversationService) createGroup(ctx context.Context, cmd commands.CreateGroupCommand) (conversation.Conversation, error) {
	members := lo.Without(lo.Uniq(cmd.MemberIDs), cmd.CreatorID)
	if len(members) > 0 {
		found, err := s.users.GetUsersByIDs(ctx, members)
		if err != nil {
			return conversation.Conversation{}, err
		}
		if len(found) != len(members) {
			return conversation.Conversation{}, relay_errors.ErrNotFound
		}
	}

	now := s.clock()
	conv := conversation.Conversation{
		ID:        uuid.New(),
		Type:      conversation.TypeGroup,
		Name:      strings.TrimSpace(cmd.Name),
		CreatedBy: cmd.CreatorID,
		CreatedAt: now,
		UpdatedAt: now,
		Participants: []conversation.Participant{
			{UserID: cmd.CreatorID, Role: conversation.RoleAdmin, JoinedAt: now},
		},
	}
	for _, id := range members {
		conv.Participants = append(conv.Participants, conversation.Participant{UserID: id, Role: conversation.RoleMember, JoinedAt: now})
	}
	if err := s.repo.Create(ctx, &conv); err != nil {
		return conversation.Conversation{}, err
	}

	s.notifyGroupAdded(ctx, conv, cmd.CreatorID, members)
	return conv, nil
}

func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *ConversationService) SendMessage(ctx context.Context, cmd commands.SendMessageCommand) (message.Message, error) {
	res, err := s.bus.Execute(ctx, cmd)
	if err != nil {
		return message.Message{}, err
	}
	return res.Payload.(message.Message), nil
}

// sendMessage persists the message, pushes message:new to every live
// participant and writes a notification row for every participant except
// the sender.
func (s *ConversationService) sendMessage(ctx context.Context, cmd commands.SendMessageCommand) (message.Message, error) {
	conv, err := s.repo.GetByID(ctx, cmd.ConversationID)
	if err != nil {
		return message.Message{}, err
	}
	if !isParticipant(conv, cmd.SenderID) {
		return message.Message{}, relay_errors.ErrForbidden
	}
	if cmd.AttachmentKey != "" && !storage.OwnsKey(cmd.SenderID, cmd.AttachmentKey) {
		return message.Message{}, relay_errors.ErrInvalidInput
	}

	m := message.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       cmd.SenderID,
		Type:           cmd.MessageType(),
		Content:        cmd.Content,
		AttachmentKey:  cmd.AttachmentKey,
		CreatedAt:      s.clock(),
	}
	if err := s.messages.Create(ctx, &m); err != nil {
		return message.Message{}, err
	}

	participants := participantIDs(conv)
	events.EmitMany(s.relay, ctx, participants, events.MessageNew, s.MessageDTO(m))

	senderID := cmd.SenderID
	tpl := notification.Template{
		Type:     notification.TypeMessage,
		Content:  preview(m),
		SenderID: &senderID,
		Data:     map[string]any{"conversation_id": conv.ID.String(), "message_id": m.ID.String()},
	}
	if conv.Type == conversation.TypeGroup {
		groupID := conv.ID
		tpl.Type = notification.TypeGroupMessage
		tpl.GroupID = &groupID
	}
	if _, err := s.notifier.FanOut(ctx, participants, tpl); err != nil {
		// rows already written stay; the message itself is committed
		s.logger.WarnCtx(ctx, "message notification fan-out incomplete",
			zap.String("message_id", m.ID.String()), zap.Error(err))
	}
	return m, nil
}

func (s *ConversationService) ListMessages(ctx context.Context, conversationID, userID uuid.UUID, before time.Time, limit int) ([]message.Message, error) {
	if _, err := s.repo.GetParticipant(ctx, conversationID, userID); err != nil {
		if errors.Is(err, relay_errors.ErrNotFound) {
			return nil, relay_errors.ErrForbidden
		}
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessagePage
	}
	if limit > maxMessagePage {
		limit = maxMessagePage
	}
	if before.IsZero() {
		before = s.clock().Add(time.Second)
	}
	return s.messages.ListByConversation(ctx, conversationID, before, limit)
}

// AddMember adds userID to a group. Only admins may add members.
func (s *ConversationService) AddMember(ctx context.Context, conversationID, actorID, userID uuid.UUID) (conversation.Participant, error) {
	conv, err := s.requireGroupAdmin(ctx, conversationID, actorID)
	if err != nil {
		return conversation.Participant{}, err
	}
	if isParticipant(conv, userID) {
		return conversation.Participant{}, relay_errors.ErrAlreadyExists
	}
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return conversation.Participant{}, err
	}

	p := conversation.Participant{
		ConversationID: conv.ID,
		UserID:         userID,
		Role:           conversation.RoleMember,
		JoinedAt:       s.clock(),
	}
	if err := s.repo.AddParticipant(ctx, &p); err != nil {
		return conversation.Participant{}, err
	}
	s.notifyGroupAdded(ctx, conv, actorID, []uuid.UUID{userID})
	return p, nil
}

func (s *ConversationService) ChangeRole(ctx context.Context, conversationID, actorID, userID uuid.UUID, role conversation.Role) error {
	if !role.Valid() {
		return relay_errors.ErrInvalidInput
	}
	conv, err := s.requireGroupAdmin(ctx, conversationID, actorID)
	if err != nil {
		return err
	}
	if !isParticipant(conv, userID) {
		return relay_errors.ErrNotFound
	}
	// a group keeps at least one admin
	if role == conversation.RoleMember && countAdmins(conv) == 1 && roleOf(conv, userID) == conversation.RoleAdmin {
		return relay_errors.ErrConflict
	}
	return s.repo.UpdateParticipantRole(ctx, conversationID, userID, role)
}

// UpdateSettings changes the caller's own wallpaper and mute flag.
func (s *ConversationService) UpdateSettings(ctx context.Context, conversationID, userID uuid.UUID, settings conversation.Settings) (conversation.Participant, error) {
	if settings.Wallpaper == nil && settings.Muted == nil {
		return conversation.Participant{}, relay_errors.ErrInvalidInput
	}
	if _, err := s.repo.GetParticipant(ctx, conversationID, userID); err != nil {
		if errors.Is(err, relay_errors.ErrNotFound) {
			return conversation.Participant{}, relay_errors.ErrForbidden
		}
		return conversation.Participant{}, err
	}
	if err := s.repo.UpdateParticipantSettings(ctx, conversationID, userID, settings); err != nil {
		return conversation.Participant{}, err
	}
	return s.repo.GetParticipant(ctx, conversationID, userID)
}

// MessageDTO renders m with its attachment URL resolved.
func (s *ConversationService) MessageDTO(m message.Message) httpdto.MessageDTO {
	dto := httpdto.FromMessage(m)
	dto.AttachmentURL = s.uploads.AttachmentURL(m.AttachmentKey)
	return dto
}

func (s *ConversationService) requireGroupAdmin(ctx context.Context, conversationID, actorID uuid.UUID) (conversation.Conversation, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if conv.Type != conversation.TypeGroup {
		return conversation.Conversation{}, relay_errors.ErrInvalidInput
	}
	if roleOf(conv, actorID) != conversation.RoleAdmin {
		return conversation.Conversation{}, relay_errors.ErrForbidden
	}
	return conv, nil
}

func (s *ConversationService) notifyGroupAdded(ctx context.Context, conv conversation.Conversation, actorID uuid.UUID, added []uuid.UUID) {
	if len(added) == 0 {
		return
	}
	groupID := conv.ID
	tpl := notification.Template{
		Type:     notification.TypeGroupAdded,
		Content:  "You were added to " + conv.Name,
		SenderID: &actorID,
		GroupID:  &groupID,
	}
	if _, err := s.notifier.FanOut(ctx, added, tpl); err != nil {
		s.logger.WarnCtx(ctx, "group added fan-out incomplete", zap.String("group_id", groupID.String()), zap.Error(err))
	}
}

func participantIDs(conv conversation.Conversation) []uuid.UUID {
	return lo.Map(conv.Participants, func(p conversation.Participant, _ int) uuid.UUID { return p.UserID })
}

func isParticipant(conv conversation.Conversation, userID uuid.UUID) bool {
	return lo.ContainsBy(conv.Participants, func(p conversation.Participant) bool { return p.UserID == userID })
}

func roleOf(conv conversation.Conversation, userID uuid.UUID) conversation.Role {
	p, ok := lo.Find(conv.Participants, func(p conversation.Participant) bool { return p.UserID == userID })
	if !ok {
		return ""
	}
	return p.Role
}

func countAdmins(conv conversation.Conversation) int {
	return lo.CountBy(conv.Participants, func(p conversation.Participant) bool { return p.Role == conversation.RoleAdmin })
}

func preview(m message.Message) string {
	switch m.Type {
	case message.TypeImage:
		return "Sent an image"
	case message.TypeFile:
		return "Sent a file"
	}
	text := []rune(strings.TrimSpace(m.Content))
	if len(text) > previewLength {
		return string(text[:previewLength]) + "..."
	}
	return string(text)
}
