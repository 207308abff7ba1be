package ai

import (
	"context"
	"sync"
	"time"

	exerrors "github.com/hrygo/eventsense/internal/errors"
)

// MockProvider is a Provider returning canned answers, for tests.
type MockProvider struct {
	Available         bool
	Extraction        *Extraction
	Enhanced          string
	EnhanceConfidence float64
	Err               error
	Delay             time.Duration

	mu    sync.Mutex
	calls int
	hints []string
}

// NewMockProvider creates an available mock with no canned answer.
func NewMockProvider() *MockProvider {
	return &MockProvider{Available: true}
}

func (m *MockProvider) Name() string      { return "mock" }
func (m *MockProvider) IsAvailable() bool { return m.Available }

func (m *MockProvider) ExtractEvent(ctx context.Context, text, hint string) (*Extraction, error) {
	m.mu.Lock()
	m.calls++
	m.hints = append(m.hints, hint)
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Extraction == nil {
		return &Extraction{FieldConfidence: map[string]float64{}, ProviderMetadata: map[string]any{"provider": "mock"}}, nil
	}
	x := *m.Extraction
	return &x, nil
}

func (m *MockProvider) EnhanceText(ctx context.Context, text string) (string, float64, error) {
	if err := m.wait(ctx); err != nil {
		return "", 0, err
	}
	if m.Err != nil {
		return "", 0, m.Err
	}
	return m.Enhanced, m.EnhanceConfidence, nil
}

func (m *MockProvider) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(m.Delay):
		return nil
	case <-ctx.Done():
		return exerrors.ExtractionTimeout("mock", ctx.Err())
	}
}

// Calls returns the number of ExtractEvent calls.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Hints returns the hints passed to ExtractEvent, in call order.
func (m *MockProvider) Hints() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.hints...)
}
