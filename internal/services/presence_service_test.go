package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"relaychat/internal/domain/user"
	"relaychat/internal/events"
	"relaychat/internal/transport/httpdto"
	relay_errors "relaychat/pkg/errors"

	"github.com/google/uuid"
)

type stubTracker struct {
	online  bool
	offline bool
	err     error
}

func (s stubTracker) SetOnline(context.Context, uuid.UUID, string) (bool, error) {
	return s.online, s.err
}

func (s stubTracker) SetOffline(context.Context, uuid.UUID, string, time.Time) (bool, error) {
	return s.offline, s.err
}

func acceptedPair(t *testing.T) (*fakeContactRepo, user.User, user.User) {
	t.Helper()
	alice, bob := newTestUser("alice"), newTestUser("bob")
	repo := newFakeContactRepo()
	_ = repo.Create(context.Background(), &user.Contact{ID: uuid.New(), RequesterID: alice.ID, AddresseeID: bob.ID, Status: user.ContactAccepted})
	return repo, alice, bob
}

func TestPresenceAnnouncesToContacts(t *testing.T) {
	repo, alice, bob := acceptedPair(t)
	relay := &recordingEmitter{}
	svc := NewPresenceService(repo, nil, nil)
	svc.SetRelay(relay)

	svc.OnConnect(context.Background(), alice.ID, "c1", true)
	svc.OnConnect(context.Background(), alice.ID, "c2", false)

	frames := relay.to(bob.ID, events.PresenceUpdate)
	if len(frames) != 1 {
		t.Fatalf("got %d presence frames, want 1", len(frames))
	}
	if p := frames[0].Payload.(httpdto.PresenceEvent); !p.Online || p.UserID != alice.ID.String() {
		t.Fatalf("presence = %+v", p)
	}

	svc.OnDisconnect(context.Background(), alice.ID, "c2", false)
	svc.OnDisconnect(context.Background(), alice.ID, "c1", true)
	frames = relay.to(bob.ID, events.PresenceUpdate)
	if len(frames) != 2 || frames[1].Payload.(httpdto.PresenceEvent).Online {
		t.Fatalf("frames = %+v", frames)
	}
}

func TestPresenceTrackerOverridesLocalView(t *testing.T) {
	repo, alice, bob := acceptedPair(t)
	relay := &recordingEmitter{}

	// alice is already online on another instance
	svc := NewPresenceService(repo, stubTracker{online: false}, nil)
	svc.SetRelay(relay)
	svc.OnConnect(context.Background(), alice.ID, "c1", true)
	if len(relay.to(bob.ID, events.PresenceUpdate)) != 0 {
		t.Fatal("no announcement expected while another instance holds a socket")
	}

	// tracker failure falls back to the local view
	svc.tracker = stubTracker{err: errors.New("redis down")}
	svc.OnConnect(context.Background(), alice.ID, "c2", true)
	if len(relay.to(bob.ID, events.PresenceUpdate)) != 1 {
		t.Fatal("expected the local view to be used when the tracker fails")
	}
}

type readingTracker struct {
	stubTracker
	online   bool
	lastSeen time.Time
}

func (r readingTracker) IsOnline(context.Context, uuid.UUID) (bool, error) {
	return r.online, nil
}

func (r readingTracker) LastSeen(context.Context, uuid.UUID) (time.Time, error) {
	return r.lastSeen, nil
}

func TestPresenceStatusIsContactOnly(t *testing.T) {
	repo, alice, bob := acceptedPair(t)
	stranger := newTestUser("mallory")
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewPresenceService(repo, readingTracker{lastSeen: seen}, nil)

	status, err := svc.Status(context.Background(), bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Online || status.LastSeen != "2026-03-01T12:00:00Z" {
		t.Fatalf("status = %+v", status)
	}

	if _, err := svc.Status(context.Background(), stranger.ID, alice.ID); !errors.Is(err, relay_errors.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestPresenceStatusFallsBackToLocalView(t *testing.T) {
	repo, alice, _ := acceptedPair(t)
	svc := NewPresenceService(repo, nil, nil)
	svc.SetLocalView(func(id uuid.UUID) bool { return id == alice.ID })

	status, err := svc.Status(context.Background(), alice.ID, alice.ID)
	if err != nil || !status.Online {
		t.Fatalf("status = %+v, %v", status, err)
	}
}
