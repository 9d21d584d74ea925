package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/you/gatekeeper/domain"
)

// SentMessage records one outbound send for assertions.
type SentMessage struct {
	UserID int64
	Text   string
	Opts   *domain.SendOptions
}

// MockGateway implements domain.Gateway for testing. Behavior is
// customized through function fields; calls are recorded.
type MockGateway struct {
	mu sync.Mutex

	SendMessageFunc        func(userID int64, text string) (domain.MessageRef, error)
	EditMessageFunc        func(userID int64, ref domain.MessageRef, text string) error
	ApproveJoinRequestFunc func(userID int64) error
	DeclineJoinRequestFunc func(userID int64) error
	CreateInviteLinkFunc   func(expiry time.Duration, singleUse bool) (string, error)

	Sent      []SentMessage
	Edited    []SentMessage
	Deleted   []domain.MessageRef
	Approved  []int64
	Declined  []int64
	Callbacks []string
	nextRef   domain.MessageRef
}

// NewMockGateway creates a gateway mock where every call succeeds.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) SendMessage(_ context.Context, userID int64, text string, opts *domain.SendOptions) (domain.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendMessageFunc != nil {
		ref, err := m.SendMessageFunc(userID, text)
		if err != nil {
			return 0, err
		}
		m.Sent = append(m.Sent, SentMessage{UserID: userID, Text: text, Opts: opts})
		return ref, nil
	}
	m.nextRef++
	m.Sent = append(m.Sent, SentMessage{UserID: userID, Text: text, Opts: opts})
	return m.nextRef, nil
}

func (m *MockGateway) SendPhoto(_ context.Context, userID int64, fileID, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{UserID: userID, Text: caption})
	return nil
}

func (m *MockGateway) SendVideo(_ context.Context, userID int64, fileID, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{UserID: userID, Text: caption})
	return nil
}

func (m *MockGateway) SendDocument(_ context.Context, userID int64, filename string, data []byte, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMessage{UserID: userID, Text: filename})
	return nil
}

func (m *MockGateway) EditMessage(_ context.Context, userID int64, ref domain.MessageRef, text string, opts *domain.SendOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EditMessageFunc != nil {
		if err := m.EditMessageFunc(userID, ref, text); err != nil {
			return err
		}
	}
	m.Edited = append(m.Edited, SentMessage{UserID: userID, Text: text, Opts: opts})
	return nil
}

func (m *MockGateway) DeleteMessage(_ context.Context, userID int64, ref domain.MessageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, ref)
	return nil
}

func (m *MockGateway) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Callbacks = append(m.Callbacks, callbackID)
	return nil
}

func (m *MockGateway) ApproveJoinRequest(_ context.Context, userID int64) error {
	if m.ApproveJoinRequestFunc != nil {
		if err := m.ApproveJoinRequestFunc(userID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Approved = append(m.Approved, userID)
	return nil
}

func (m *MockGateway) DeclineJoinRequest(_ context.Context, userID int64) error {
	if m.DeclineJoinRequestFunc != nil {
		if err := m.DeclineJoinRequestFunc(userID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Declined = append(m.Declined, userID)
	return nil
}

func (m *MockGateway) CreateInviteLink(_ context.Context, expiry time.Duration, singleUse bool) (string, error) {
	if m.CreateInviteLinkFunc != nil {
		return m.CreateInviteLinkFunc(expiry, singleUse)
	}
	return "https://t.me/+test", nil
}

// SentTo returns the texts sent to one user, in order.
func (m *MockGateway) SentTo(userID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.Sent {
		if s.UserID == userID {
			out = append(out, s.Text)
		}
	}
	return out
}
