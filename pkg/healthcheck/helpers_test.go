package healthcheck

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// MockChecker returns a configurable result and counts its calls
type MockChecker struct {
	name      string
	status    Status
	message   string
	metadata  interface{}
	delay     time.Duration
	callCount int
	mu        sync.Mutex
}

func NewMockChecker(name string) *MockChecker {
	return &MockChecker{
		name:   name,
		status: StatusHealthy,
	}
}

func (m *MockChecker) WithStatus(status Status) *MockChecker {
	m.status = status
	return m
}

func (m *MockChecker) WithMessage(message string) *MockChecker {
	m.message = message
	return m
}

func (m *MockChecker) WithMetadata(metadata interface{}) *MockChecker {
	m.metadata = metadata
	return m
}

func (m *MockChecker) WithDelay(delay time.Duration) *MockChecker {
	m.delay = delay
	return m
}

func (m *MockChecker) Check(ctx context.Context) Check {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	start := time.Now()
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
		}
	}

	return Check{
		Name:        m.name,
		Status:      m.status,
		Message:     m.message,
		Metadata:    m.metadata,
		LastChecked: start,
		Duration:    Millis(time.Since(start)),
	}
}

func (m *MockChecker) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// SlowChecker blocks for duration unless the context ends first
type SlowChecker struct {
	name     string
	duration time.Duration
}

func NewSlowChecker(name string, duration time.Duration) *SlowChecker {
	return &SlowChecker{name: name, duration: duration}
}

func (s *SlowChecker) Check(ctx context.Context) Check {
	start := time.Now()

	timer := time.NewTimer(s.duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return Check{
			Name:        s.name,
			Status:      StatusHealthy,
			Message:     "Slow check completed",
			LastChecked: start,
			Duration:    Millis(time.Since(start)),
		}
	case <-ctx.Done():
		return Check{
			Name:        s.name,
			Status:      StatusUnhealthy,
			Message:     "Check timed out",
			LastChecked: start,
			Duration:    Millis(time.Since(start)),
		}
	}
}

// AssertResponseStructure validates the shape of a health check response
func AssertResponseStructure(t *testing.T, response Response) {
	t.Helper()
	require.NotEmpty(t, response.Version, "Version should not be empty")
	require.NotZero(t, response.Timestamp, "Timestamp should be set")
	require.Contains(t, []Status{StatusHealthy, StatusDegraded, StatusUnhealthy},
		response.Status, "Status should be valid")
	require.True(t, response.TotalDuration >= 0, "TotalDuration should be non-negative")

	for _, check := range response.Checks {
		require.NotEmpty(t, check.Name, "Check name should not be empty")
		require.NotZero(t, check.LastChecked, "LastChecked should be set")
		require.True(t, check.Duration >= 0, "Duration should be non-negative")
	}
}
