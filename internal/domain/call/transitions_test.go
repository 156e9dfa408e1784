package call

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCanTransitionOnlyAllowsDefinedEdges(t *testing.T) {
	statuses := []Status{StatusRinging, StatusOngoing, StatusDeclined, StatusEnded, StatusMissed}
	allowed := map[[2]Status]bool{
		{StatusRinging, StatusOngoing}:  true,
		{StatusRinging, StatusDeclined}: true,
		{StatusOngoing, StatusEnded}:    true,
		{StatusRinging, StatusMissed}:   true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestParseClientActionRejectsStatusStrings(t *testing.T) {
	tests := []struct {
		in   string
		want Action
		ok   bool
	}{
		{"answer", ActionAnswer, true},
		{" Decline ", ActionDecline, true},
		{"END", ActionEnd, true},
		{"expire", "", false},
		{"ONGOING", "", false},
		{"ended", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseClientAction(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseClientAction(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTransitionStamps(t *testing.T) {
	answer, _ := TransitionFor(ActionAnswer)
	if !answer.StampAnswered || answer.StampEnded {
		t.Fatalf("answer stamps = answered:%v ended:%v", answer.StampAnswered, answer.StampEnded)
	}
	decline, _ := TransitionFor(ActionDecline)
	if decline.StampAnswered || decline.StampEnded {
		t.Fatalf("decline must not stamp anything")
	}
	end, _ := TransitionFor(ActionEnd)
	if end.StampAnswered || !end.StampEnded {
		t.Fatalf("end stamps = answered:%v ended:%v", end.StampAnswered, end.StampEnded)
	}
}

func TestMayPerform(t *testing.T) {
	caller, receiver, stranger := uuid.New(), uuid.New(), uuid.New()
	c := Call{CallerID: caller, ReceiverID: receiver}

	tests := []struct {
		name   string
		actor  uuid.UUID
		action Action
		want   bool
	}{
		{"receiver answers", receiver, ActionAnswer, true},
		{"caller cannot answer", caller, ActionAnswer, false},
		{"caller cancels", caller, ActionDecline, true},
		{"receiver declines", receiver, ActionDecline, true},
		{"either ends", caller, ActionEnd, true},
		{"stranger ends", stranger, ActionEnd, false},
		{"nobody expires", receiver, ActionExpire, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MayPerform(c, tt.actor, tt.action); got != tt.want {
				t.Fatalf("MayPerform = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRingExpired(t *testing.T) {
	now := time.Now()
	c := Call{Status: StatusRinging, CreatedAt: now.Add(-time.Minute)}
	if !c.RingExpired(now, 45*time.Second) {
		t.Fatalf("expected ringing call older than timeout to be expired")
	}
	if c.RingExpired(now, 0) {
		t.Fatalf("zero timeout disables expiry")
	}
	c.Status = StatusOngoing
	if c.RingExpired(now, 45*time.Second) {
		t.Fatalf("ongoing call must never expire")
	}
}

func TestParseType(t *testing.T) {
	if got, ok := ParseType("video"); !ok || got != TypeVideo {
		t.Fatalf("ParseType(video) = %q, %v", got, ok)
	}
	if _, ok := ParseType("screen"); ok {
		t.Fatalf("ParseType(screen) accepted")
	}
}
