package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"relaychat/internal/domain/call"
	"relaychat/internal/domain/conversation"
	"relaychat/internal/domain/message"
	"relaychat/internal/domain/notification"
	"relaychat/internal/domain/user"
	relay_errors "relaychat/pkg/errors"

	"github.com/google/uuid"
)

type emitted struct {
	UserID  uuid.UUID
	Event   string
	Payload any
}

type recordingEmitter struct {
	mu     sync.Mutex
	frames []emitted
}

func (e *recordingEmitter) Emit(_ context.Context, userID uuid.UUID, event string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = append(e.frames, emitted{UserID: userID, Event: event, Payload: payload})
}

func (e *recordingEmitter) Broadcast(_ context.Context, event string, payload any) {
	e.Emit(context.Background(), uuid.Nil, event, payload)
}

func (e *recordingEmitter) to(userID uuid.UUID, event string) []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emitted
	for _, f := range e.frames {
		if f.UserID == userID && f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]user.User
}

func newFakeUserRepo(users ...user.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[uuid.UUID]user.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return relay_errors.ErrAlreadyExists
		}
	}
	r.users[u.ID] = *u
	return nil
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id uuid.UUID) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.User{}, relay_errors.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return user.User{}, relay_errors.ErrNotFound
}

func (r *fakeUserRepo) GetUsersByIDs(_ context.Context, ids []uuid.UUID) ([]user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []user.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) SearchUsers(_ context.Context, query string, _, _ int) ([]user.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []user.User
	for _, u := range r.users {
		if strings.Contains(u.Username, query) {
			out = append(out, u)
		}
	}
	return out, int64(len(out)), nil
}

type fakeCallRepo struct {
	mu    sync.Mutex
	calls map[uuid.UUID]call.Call
}

func newFakeCallRepo() *fakeCallRepo {
	return &fakeCallRepo{calls: map[uuid.UUID]call.Call{}}
}

func (r *fakeCallRepo) Create(_ context.Context, c *call.Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[c.ID] = *c
	return nil
}

func (r *fakeCallRepo) GetByID(_ context.Context, id uuid.UUID) (call.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return call.Call{}, relay_errors.ErrNotFound
	}
	return c, nil
}

func (r *fakeCallRepo) FindOngoingFor(_ context.Context, a, b uuid.UUID) (call.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.Status == call.StatusOngoing && (c.IsParty(a) || c.IsParty(b)) {
			return c, nil
		}
	}
	return call.Call{}, relay_errors.ErrNotFound
}

func (r *fakeCallRepo) Transition(_ context.Context, id uuid.UUID, from, _ call.Status, updates map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return relay_errors.ErrNotFound
	}
	if c.Status != from {
		return relay_errors.ErrInvalidTransition
	}
	if v, ok := updates["status"]; ok {
		c.Status = v.(call.Status)
	}
	if v, ok := updates["answered_at"]; ok {
		t := v.(time.Time)
		c.AnsweredAt = &t
	}
	if v, ok := updates["ended_at"]; ok {
		t := v.(time.Time)
		c.EndedAt = &t
	}
	if v, ok := updates["updated_at"]; ok {
		c.UpdatedAt = v.(time.Time)
	}
	r.calls[id] = c
	return nil
}

func (r *fakeCallRepo) GetUserCalls(_ context.Context, userID uuid.UUID, _, _ int) ([]call.Call, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call.Call
	for _, c := range r.calls {
		if c.IsParty(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *fakeCallRepo) GetActiveCalls(_ context.Context, userID uuid.UUID) ([]call.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call.Call
	for _, c := range r.calls {
		if c.IsParty(userID) && c.IsLive() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCallRepo) ListRingingBefore(_ context.Context, cutoff time.Time, limit int) ([]call.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call.Call
	for _, c := range r.calls {
		if c.Status == call.StatusRinging && c.CreatedAt.Before(cutoff) && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCallRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type fakeNotificationRepo struct {
	mu      sync.Mutex
	rows    []notification.Notification
	failFor map[uuid.UUID]bool
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{failFor: map[uuid.UUID]bool{}}
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[n.UserID] {
		return errors.New("insert failed")
	}
	r.rows = append(r.rows, *n)
	return nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id uuid.UUID) (notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.rows {
		if n.ID == id {
			return n, nil
		}
	}
	return notification.Notification{}, relay_errors.ErrNotFound
}

func (r *fakeNotificationRepo) ListForUser(_ context.Context, userID uuid.UUID, unreadOnly bool, _, _ int) ([]notification.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notification.Notification
	for _, n := range r.rows {
		if n.UserID == userID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id && r.rows[i].UserID == userID {
			r.rows[i].Read = true
			r.rows[i].ReadAt = &at
			return nil
		}
	}
	return relay_errors.ErrNotFound
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.rows {
		if r.rows[i].UserID == userID && !r.rows[i].Read {
			r.rows[i].Read = true
			r.rows[i].ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.UserID == userID && !row.Read {
			n++
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) forUser(userID uuid.UUID) []notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notification.Notification
	for _, n := range r.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type fakeConversationRepo struct {
	mu    sync.Mutex
	convs map[uuid.UUID]conversation.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{convs: map[uuid.UUID]conversation.Conversation{}}
}

func (r *fakeConversationRepo) Create(_ context.Context, c *conversation.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range c.Participants {
		c.Participants[i].ConversationID = c.ID
	}
	stored := *c
	stored.Participants = append([]conversation.Participant(nil), c.Participants...)
	r.convs[c.ID] = stored
	return nil
}

func (r *fakeConversationRepo) GetByID(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return conversation.Conversation{}, relay_errors.ErrNotFound
	}
	c.Participants = append([]conversation.Participant(nil), c.Participants...)
	return c, nil
}

func (r *fakeConversationRepo) GetDirectConversation(_ context.Context, a, b uuid.UUID) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.convs {
		if c.Type == conversation.TypeDirect && isParticipant(c, a) && isParticipant(c, b) {
			return c, nil
		}
	}
	return conversation.Conversation{}, relay_errors.ErrNotFound
}

func (r *fakeConversationRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []conversation.Conversation
	for _, c := range r.convs {
		if isParticipant(c, userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) GetParticipant(_ context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.convs[conversationID].Participants {
		if p.UserID == userID {
			return p, nil
		}
	}
	return conversation.Participant{}, relay_errors.ErrNotFound
}

func (r *fakeConversationRepo) AddParticipant(_ context.Context, p *conversation.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[p.ConversationID]
	if !ok {
		return relay_errors.ErrNotFound
	}
	c.Participants = append(c.Participants, *p)
	r.convs[c.ID] = c
	return nil
}

func (r *fakeConversationRepo) UpdateParticipantRole(_ context.Context, conversationID, userID uuid.UUID, role conversation.Role) error {
	return r.updateParticipant(conversationID, userID, func(p *conversation.Participant) { p.Role = role })
}

func (r *fakeConversationRepo) UpdateParticipantSettings(_ context.Context, conversationID, userID uuid.UUID, s conversation.Settings) error {
	return r.updateParticipant(conversationID, userID, func(p *conversation.Participant) {
		if s.Wallpaper != nil {
			p.Wallpaper = *s.Wallpaper
		}
		if s.Muted != nil {
			p.Muted = *s.Muted
		}
	})
}

func (r *fakeConversationRepo) updateParticipant(conversationID, userID uuid.UUID, fn func(*conversation.Participant)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[conversationID]
	if !ok {
		return relay_errors.ErrNotFound
	}
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			fn(&c.Participants[i])
			r.convs[conversationID] = c
			return nil
		}
	}
	return relay_errors.ErrNotFound
}

type fakeMessageRepo struct {
	mu   sync.Mutex
	msgs []message.Message
}

func (r *fakeMessageRepo) Create(_ context.Context, m *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, *m)
	return nil
}

func (r *fakeMessageRepo) ListByConversation(_ context.Context, conversationID uuid.UUID, before time.Time, limit int) ([]message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message.Message
	for i := len(r.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		m := r.msgs[i]
		if m.ConversationID == conversationID && m.CreatedAt.Before(before) {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts map[uuid.UUID]user.Contact
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: map[uuid.UUID]user.Contact{}}
}

func (r *fakeContactRepo) Create(_ context.Context, c *user.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts[c.ID] = *c
	return nil
}

func (r *fakeContactRepo) GetByID(_ context.Context, id uuid.UUID) (user.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return user.Contact{}, relay_errors.ErrNotFound
	}
	return c, nil
}

func (r *fakeContactRepo) GetBetween(_ context.Context, a, b uuid.UUID) (user.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if (c.RequesterID == a && c.AddresseeID == b) || (c.RequesterID == b && c.AddresseeID == a) {
			return c, nil
		}
	}
	return user.Contact{}, relay_errors.ErrNotFound
}

func (r *fakeContactRepo) Respond(_ context.Context, id uuid.UUID, status user.ContactStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok || c.Status != user.ContactPending {
		return relay_errors.ErrInvalidTransition
	}
	c.Status = status
	c.RespondedAt = &at
	r.contacts[id] = c
	return nil
}

func (r *fakeContactRepo) ListForUser(_ context.Context, userID uuid.UUID, status user.ContactStatus) ([]user.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []user.Contact
	for _, c := range r.contacts {
		if (c.RequesterID == userID || c.AddresseeID == userID) && (status == "" || c.Status == status) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeContactRepo) AcceptedContactIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	contacts, _ := r.ListForUser(ctx, userID, user.ContactAccepted)
	out := make([]uuid.UUID, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, c.Other(userID))
	}
	return out, nil
}

func newTestUser(name string) user.User {
	return user.User{ID: uuid.New(), Username: name, DisplayName: strings.ToUpper(name[:1]) + name[1:]}
}

// syncNotifier returns a notification service that emits inline.
func syncNotifier(repo *fakeNotificationRepo, relay *recordingEmitter) *NotificationService {
	svc := NewNotificationService(repo, relay, nil)
	svc.dispatch = func(f func()) { f() }
	return svc
}
