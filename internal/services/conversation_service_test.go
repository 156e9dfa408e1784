package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"relaychat/internal/commands"
	"relaychat/internal/domain/conversation"
	"relaychat/internal/domain/notification"
	"relaychat/internal/domain/user"
	"relaychat/internal/events"
	relay_errors "relaychat/pkg/errors"

	"github.com/google/uuid"
)

type conversationFixture struct {
	svc   *ConversationService
	convs *fakeConversationRepo
	msgs  *fakeMessageRepo
	notes *fakeNotificationRepo
	relay *recordingEmitter
	alice user.User
	bob   user.User
	carol user.User
}

func newConversationFixture(t *testing.T) *conversationFixture {
	t.Helper()
	f := &conversationFixture{
		convs: newFakeConversationRepo(),
		msgs:  &fakeMessageRepo{},
		notes: newFakeNotificationRepo(),
		relay: &recordingEmitter{},
		alice: newTestUser("alice"),
		bob:   newTestUser("bob"),
		carol: newTestUser("carol"),
	}
	users := newFakeUserRepo(f.alice, f.bob, f.carol)
	f.svc = NewConversationService(f.convs, f.msgs, users, syncNotifier(f.notes, f.relay), f.relay, nil, nil, nil)
	return f
}

func TestDirectMessageNotifiesOnlyTheOtherParticipant(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()

	conv, err := f.svc.GetOrCreateDirect(ctx, f.alice.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("direct: %v", err)
	}
	m, err := f.svc.SendMessage(ctx, commands.SendMessageCommand{ConversationID: conv.ID, SenderID: f.alice.ID, Content: "hello bob"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if got := f.notes.forUser(f.alice.ID); len(got) != 0 {
		t.Fatalf("sender got %d notifications", len(got))
	}
	got := f.notes.forUser(f.bob.ID)
	if len(got) != 1 {
		t.Fatalf("bob got %d notifications, want 1", len(got))
	}
	if got[0].Type != notification.TypeMessage {
		t.Fatalf("type = %s, want MESSAGE", got[0].Type)
	}
	if got[0].SenderID == nil || *got[0].SenderID != f.alice.ID {
		t.Fatal("sender_id should be the author")
	}
	if got[0].GroupID != nil {
		t.Fatal("direct messages carry no group id")
	}
	if got[0].Data["message_id"] != m.ID.String() {
		t.Fatalf("data = %v", got[0].Data)
	}

	if len(f.relay.to(f.bob.ID, events.MessageNew)) != 1 || len(f.relay.to(f.alice.ID, events.MessageNew)) != 1 {
		t.Fatal("every participant should receive message:new")
	}
}

func TestDirectConversationIsIdempotent(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()

	first, err := f.svc.GetOrCreateDirect(ctx, f.alice.ID, f.bob.ID)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := f.svc.GetOrCreateDirect(ctx, f.bob.ID, f.alice.ID)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("a second direct conversation was created for the same pair")
	}
	if _, err := f.svc.GetOrCreateDirect(ctx, f.alice.ID, f.alice.ID); !errors.Is(err, relay_errors.ErrInvalidInput) {
		t.Fatalf("self chat err = %v", err)
	}
}

func TestGroupMessageFansOutToMembers(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()

	group, err := f.svc.CreateGroup(ctx, commands.CreateGroupCommand{CreatorID: f.alice.ID, Name: "team", MemberIDs: []uuid.UUID{f.bob.ID, f.carol.ID, f.alice.ID}})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if len(group.Participants) != 3 {
		t.Fatalf("participants = %d, want 3", len(group.Participants))
	}
	if roleOf(group, f.alice.ID) != conversation.RoleAdmin {
		t.Fatal("creator should be admin")
	}
	for _, id := range []uuid.UUID{f.bob.ID, f.carol.ID} {
		added := f.notes.forUser(id)
		if len(added) != 1 || added[0].Type != notification.TypeGroupAdded {
			t.Fatalf("member %s notifications = %+v", id, added)
		}
	}

	if _, err := f.svc.SendMessage(ctx, commands.SendMessageCommand{ConversationID: group.ID, SenderID: f.bob.ID, Content: "hi all"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	for _, id := range []uuid.UUID{f.alice.ID, f.carol.ID} {
		var groupMsgs int
		for _, n := range f.notes.forUser(id) {
			if n.Type == notification.TypeGroupMessage {
				groupMsgs++
				if n.GroupID == nil || *n.GroupID != group.ID {
					t.Fatal("group message notification without group id")
				}
			}
		}
		if groupMsgs != 1 {
			t.Fatalf("member %s got %d GROUP_MESSAGE rows, want 1", id, groupMsgs)
		}
	}
	for _, n := range f.notes.forUser(f.bob.ID) {
		if n.Type == notification.TypeGroupMessage {
			t.Fatal("sender got a GROUP_MESSAGE notification")
		}
	}
}

func TestMutedParticipantsStillGetRows(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()

	conv, _ := f.svc.GetOrCreateDirect(ctx, f.alice.ID, f.bob.ID)
	muted := true
	if _, err := f.svc.UpdateSettings(ctx, conv.ID, f.bob.ID, conversation.Settings{Muted: &muted}); err != nil {
		t.Fatalf("settings: %v", err)
	}
	if _, err := f.svc.SendMessage(ctx, commands.SendMessageCommand{ConversationID: conv.ID, SenderID: f.alice.ID, Content: "ping"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(f.notes.forUser(f.bob.ID)) != 1 {
		t.Fatal("muted participant should still get a notification row")
	}
}

func TestNonParticipantCannotPost(t *testing.T) {
	f := newConversationFixture(t)
	conv, _ := f.svc.GetOrCreateDirect(context.Background(), f.alice.ID, f.bob.ID)

	_, err := f.svc.SendMessage(context.Background(), commands.SendMessageCommand{ConversationID: conv.ID, SenderID: f.carol.ID, Content: "sneaky"})
	if !errors.Is(err, relay_errors.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if len(f.msgs.msgs) != 0 {
		t.Fatal("message was stored")
	}
}

func TestAttachmentKeyMustBelongToSender(t *testing.T) {
	f := newConversationFixture(t)
	conv, _ := f.svc.GetOrCreateDirect(context.Background(), f.alice.ID, f.bob.ID)

	_, err := f.svc.SendMessage(context.Background(), commands.SendMessageCommand{
		ConversationID: conv.ID, SenderID: f.alice.ID, Type: "image",
		AttachmentKey: "attachments/" + f.bob.ID.String() + "/x.png",
	})
	if !errors.Is(err, relay_errors.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}

	_, err = f.svc.SendMessage(context.Background(), commands.SendMessageCommand{
		ConversationID: conv.ID, SenderID: f.alice.ID, Type: "image",
		AttachmentKey: "attachments/" + f.alice.ID.String() + "/../" + f.bob.ID.String() + "/x.png",
	})
	if !errors.Is(err, relay_errors.ErrInvalidInput) {
		t.Fatalf("traversal key err = %v, want ErrInvalidInput", err)
	}
	if len(f.msgs.msgs) != 0 {
		t.Fatal("message was stored")
	}
}

func TestMembershipChangesAreAdminGated(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()
	group, _ := f.svc.CreateGroup(ctx, commands.CreateGroupCommand{CreatorID: f.alice.ID, Name: "team", MemberIDs: []uuid.UUID{f.bob.ID}})

	if _, err := f.svc.AddMember(ctx, group.ID, f.bob.ID, f.carol.ID); !errors.Is(err, relay_errors.ErrForbidden) {
		t.Fatalf("member add err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.AddMember(ctx, group.ID, f.alice.ID, f.carol.ID); err != nil {
		t.Fatalf("admin add: %v", err)
	}
	if _, err := f.svc.AddMember(ctx, group.ID, f.alice.ID, f.carol.ID); !errors.Is(err, relay_errors.ErrAlreadyExists) {
		t.Fatalf("duplicate add err = %v", err)
	}

	if err := f.svc.ChangeRole(ctx, group.ID, f.bob.ID, f.carol.ID, conversation.RoleAdmin); !errors.Is(err, relay_errors.ErrForbidden) {
		t.Fatalf("member role change err = %v, want ErrForbidden", err)
	}
	if err := f.svc.ChangeRole(ctx, group.ID, f.alice.ID, f.alice.ID, conversation.RoleMember); !errors.Is(err, relay_errors.ErrConflict) {
		t.Fatalf("demoting the last admin err = %v, want ErrConflict", err)
	}
	if err := f.svc.ChangeRole(ctx, group.ID, f.alice.ID, f.bob.ID, conversation.RoleAdmin); err != nil {
		t.Fatalf("promote: %v", err)
	}
	p, _ := f.convs.GetParticipant(ctx, group.ID, f.bob.ID)
	if p.Role != conversation.RoleAdmin {
		t.Fatalf("role = %s, want ADMIN", p.Role)
	}
}

func TestListMessagesRequiresMembership(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()
	conv, _ := f.svc.GetOrCreateDirect(ctx, f.alice.ID, f.bob.ID)
	_, _ = f.svc.SendMessage(ctx, commands.SendMessageCommand{ConversationID: conv.ID, SenderID: f.alice.ID, Content: "one"})

	msgs, err := f.svc.ListMessages(ctx, conv.ID, f.bob.ID, time.Time{}, 0)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("messages = %v, %v", msgs, err)
	}
	if _, err := f.svc.ListMessages(ctx, conv.ID, f.carol.ID, time.Time{}, 0); !errors.Is(err, relay_errors.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}
