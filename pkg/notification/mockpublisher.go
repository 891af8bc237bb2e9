package notification

import (
	"context"
	"sync"
)

// MockPublisher records published mail. When Err is set, Publish fails with
// it and records nothing.
type MockPublisher struct {
	mu        sync.Mutex
	Err       error
	Published []MailRequest
}

func (m *MockPublisher) Publish(ctx context.Context, req MailRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Published = append(m.Published, req)
	return nil
}

// Sent returns a copy of the published requests.
func (m *MockPublisher) Sent() []MailRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MailRequest(nil), m.Published...)
}
