package mocks

import (
	"context"
	"sync"

	"github.com/you/gatekeeper/domain"
)

// MockChallengeGenerator implements domain.ChallengeGenerator,
// replaying a fixed script of challenges.
type MockChallengeGenerator struct {
	mu         sync.Mutex
	Challenges []domain.Challenge
	next       int
}

// NewMockChallengeGenerator creates a generator cycling the given
// challenges.
func NewMockChallengeGenerator(challenges ...domain.Challenge) *MockChallengeGenerator {
	if len(challenges) == 0 {
		challenges = []domain.Challenge{{Prompt: "3 + 4", Answer: "7"}}
	}
	return &MockChallengeGenerator{Challenges: challenges}
}

func (m *MockChallengeGenerator) Generate() domain.Challenge {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := m.Challenges[m.next%len(m.Challenges)]
	m.next++
	return ch
}

// MockAdmissionStrategy implements domain.AdmissionStrategy.
type MockAdmissionStrategy struct {
	mu        sync.Mutex
	AdmitFunc func(userID int64) error
	DenyFunc  func(userID int64) error
	Admitted  []int64
	Denied    []int64
}

func NewMockAdmissionStrategy() *MockAdmissionStrategy {
	return &MockAdmissionStrategy{}
}

func (m *MockAdmissionStrategy) Admit(_ context.Context, userID int64) error {
	if m.AdmitFunc != nil {
		if err := m.AdmitFunc(userID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Admitted = append(m.Admitted, userID)
	return nil
}

func (m *MockAdmissionStrategy) Deny(_ context.Context, userID int64) error {
	if m.DenyFunc != nil {
		if err := m.DenyFunc(userID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Denied = append(m.Denied, userID)
	return nil
}

// MockAdminGate implements domain.AdminGate over a static id set.
type MockAdminGate struct {
	Operators map[int64]bool
}

func NewMockAdminGate(ids ...int64) *MockAdminGate {
	ops := make(map[int64]bool, len(ids))
	for _, id := range ids {
		ops[id] = true
	}
	return &MockAdminGate{Operators: ops}
}

func (m *MockAdminGate) IsAuthorized(userID int64) bool { return m.Operators[userID] }

func (m *MockAdminGate) Require(userID int64) error {
	if !m.IsAuthorized(userID) {
		return domain.ErrPermissionDenied
	}
	return nil
}

// MockBroadcaster implements domain.Broadcaster.
type MockBroadcaster struct {
	mu           sync.Mutex
	DispatchFunc func(payload domain.BroadcastPayload, recipients []int64) (*domain.BroadcastResult, error)
	Dispatched   []domain.BroadcastPayload
	Recipients   [][]int64
	Contexts     []context.Context
}

func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{}
}

func (m *MockBroadcaster) Dispatch(ctx context.Context, payload domain.BroadcastPayload, recipients []int64, progress func(domain.BroadcastProgress)) (*domain.BroadcastResult, error) {
	m.mu.Lock()
	m.Dispatched = append(m.Dispatched, payload)
	m.Recipients = append(m.Recipients, recipients)
	m.Contexts = append(m.Contexts, ctx)
	m.mu.Unlock()
	if m.DispatchFunc != nil {
		return m.DispatchFunc(payload, recipients)
	}
	result := &domain.BroadcastResult{Sent: len(recipients), Total: len(recipients)}
	if progress != nil {
		progress(domain.BroadcastProgress{Sent: result.Sent, Total: result.Total, Percent: 100})
	}
	return result, nil
}
