package aitime

import (
	"context"
	"sync"
	"time"
)

// MockResolver returns a canned Resolution or Err and records its inputs.
type MockResolver struct {
	Resolution Resolution
	Err        error
	// Delay blocks Resolve until it elapses or the context is done.
	Delay time.Duration

	mu    sync.Mutex
	calls []string
}

func NewMockResolver() *MockResolver {
	return &MockResolver{}
}

func (m *MockResolver) Resolve(ctx context.Context, text string, _ time.Time) (Resolution, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return Resolution{}, ctx.Err()
		}
	}
	if m.Err != nil {
		return Resolution{}, m.Err
	}
	return m.Resolution, nil
}

// Calls returns the inputs seen so far.
func (m *MockResolver) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

var _ Resolver = (*MockResolver)(nil)
