package domain

import (
	"testing"
	"time"
)

func TestSessionState_Terminal(t *testing.T) {
	tests := []struct {
		name     string
		state    SessionState
		terminal bool
	}{
		{name: "awaiting input is not terminal", state: StateAwaitingInput, terminal: false},
		{name: "approved is terminal", state: StateApproved, terminal: true},
		{name: "declined is terminal", state: StateDeclined, terminal: true},
		{name: "expired is terminal", state: StateExpired, terminal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestSession_ExpiredAt(t *testing.T) {
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute

	tests := []struct {
		name    string
		now     time.Time
		expired bool
	}{
		{name: "fresh session", now: createdAt.Add(time.Second), expired: false},
		{name: "exactly at ttl", now: createdAt.Add(ttl), expired: false},
		{name: "one second past ttl", now: createdAt.Add(ttl + time.Second), expired: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{UserID: 300, CreatedAt: createdAt}
			if got := s.ExpiredAt(tt.now, ttl); got != tt.expired {
				t.Errorf("ExpiredAt() = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestSession_ApplyChallenge(t *testing.T) {
	s := &Session{
		UserID:            100,
		Prompt:            "3 + 4",
		Answer:            "7",
		InputBuffer:       "12",
		AttemptsRemaining: 2,
	}

	s.ApplyChallenge(Challenge{Prompt: "9 - 5", Answer: "4"})

	if s.Prompt != "9 - 5" || s.Answer != "4" {
		t.Errorf("challenge not applied: prompt=%q answer=%q", s.Prompt, s.Answer)
	}
	if s.InputBuffer != "" {
		t.Errorf("input buffer not cleared: %q", s.InputBuffer)
	}
	if s.AttemptsRemaining != 2 {
		t.Errorf("attempts changed by ApplyChallenge: %d", s.AttemptsRemaining)
	}
}
